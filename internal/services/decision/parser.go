// Package decision reads the model's free-form answer into a validated trading decision.
package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/vadiminshakov/hlpilot/internal/domain"
	"go.uber.org/zap"
)

// Parser turns raw model output into a domain.ParseResult. It never panics and
// never hands a partially validated decision to execution.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// wireDecision mirrors the JSON the model sends. Leverage is read as a number
// so that 3.0 is accepted; the schema has already checked it is integral.
type wireDecision struct {
	Decision      string   `json:"decision"`
	Coin          *string  `json:"coin"`
	Confidence    *float64 `json:"confidence"`
	SizePct       *float64 `json:"size_pct"`
	Leverage      *float64 `json:"leverage"`
	StopLossPct   *float64 `json:"stop_loss_pct"`
	TakeProfitPct *float64 `json:"take_profit_pct"`
	Reasoning     *string  `json:"reasoning"`
}

// Parse extracts, checks and validates the decision object in raw.
func (p *Parser) Parse(raw string) domain.ParseResult {
	span, ok := Extract(raw)
	if !ok || !gjson.Valid(span) {
		p.logger.Warn("model response is not parseable", zap.String("response", truncate(raw, 500)))
		return domain.Invalid(domain.ReasonUnparseable)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return domain.Invalid(domain.ReasonUnparseable)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		reason := "invalid decision: " + describe(err)
		p.logger.Warn("model decision rejected", zap.String("reason", reason))
		return domain.Invalid(reason)
	}

	var wire wireDecision
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		return domain.Invalid(domain.ReasonUnparseable)
	}

	d, err := wire.toDomain()
	if err != nil {
		p.logger.Warn("model decision rejected", zap.Error(err))
		return domain.Invalid("invalid decision: " + err.Error())
	}
	return domain.Valid(d)
}

// Extract returns the text from the first '{' to the last '}' inclusive.
// It does not try to balance braces.
func Extract(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func (w wireDecision) toDomain() (domain.TradingDecision, error) {
	action, ok := domain.ParseAction(w.Decision)
	if !ok {
		return domain.TradingDecision{}, errors.Errorf("unknown decision %q", w.Decision)
	}

	d := domain.TradingDecision{
		Action:        action,
		SizePct:       w.SizePct,
		StopLossPct:   w.StopLossPct,
		TakeProfitPct: w.TakeProfitPct,
	}
	if w.Coin != nil {
		d.Coin = strings.ToUpper(strings.TrimSpace(*w.Coin))
	}
	if w.Confidence != nil {
		d.Confidence = *w.Confidence
	}
	if w.Leverage != nil {
		lev := int(*w.Leverage)
		d.Leverage = &lev
	}
	if w.Reasoning != nil {
		d.Reasoning = strings.TrimSpace(*w.Reasoning)
	}

	if action.RequiresCoin() && d.Coin == "" {
		return domain.TradingDecision{}, errors.Errorf("%s requires a coin", action)
	}
	if action == domain.ActionHold {
		d.Coin = ""
	}
	return d, nil
}

// describe flattens a schema validation error into its leaf messages.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var leaves []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(leaves, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
