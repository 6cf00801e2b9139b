package decision

import "github.com/santhosh-tekuri/jsonschema/v5"

const schemaURL = "decision.json"

// decisionSchema describes the object the system prompt asks the model for.
// Optional numeric fields may be null or absent. size_pct has no upper bound
// here: the sizer clamps it to the configured maximum.
const decisionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["decision"],
  "properties": {
    "decision": {"enum": ["OPEN_LONG", "OPEN_SHORT", "CLOSE", "HOLD"]},
    "coin": {"type": ["string", "null"]},
    "confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "size_pct": {"type": ["number", "null"], "minimum": 0},
    "leverage": {"type": ["integer", "null"], "minimum": 1, "maximum": 10},
    "stop_loss_pct": {"type": ["number", "null"], "minimum": 1, "maximum": 5},
    "take_profit_pct": {"type": ["number", "null"], "minimum": 2, "maximum": 10},
    "reasoning": {"type": ["string", "null"]}
  }
}`

var compiledSchema = jsonschema.MustCompileString(schemaURL, decisionSchema)
