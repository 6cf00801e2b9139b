package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hlpilot/internal/domain"
	"go.uber.org/zap"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{name: "bare object", raw: `{"a":1}`, expected: `{"a":1}`, ok: true},
		{name: "surrounding prose", raw: "Sure! {\"a\":1} hope it helps", expected: `{"a":1}`, ok: true},
		{name: "markdown fence", raw: "```json\n{\"a\":{\"b\":2}}\n```", expected: `{"a":{"b":2}}`, ok: true},
		{name: "first to last brace even across fragments", raw: `x {"a":1} y {"b":2} z`, expected: `{"a":1} y {"b":2}`, ok: true},
		{name: "no braces", raw: "HOLD", ok: false},
		{name: "only opening", raw: "{ oops", ok: false},
		{name: "only closing", raw: "oops }", ok: false},
		{name: "reversed", raw: "} then {", ok: false},
		{name: "empty", raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, ok := Extract(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, span)
		})
	}
}

func TestParser_Fallbacks(t *testing.T) {
	p := NewParser(zap.NewNop())

	malformed := []string{
		"",
		"I think we should hold.",
		"{",
		"}",
		"} {",
		`{"decision": "OPEN_LONG", "coin": "BTC",}`,
		`{"decision": "HOLD"} and also {"unrelated": }`,
		"{not json at all}",
	}

	for _, raw := range malformed {
		t.Run(raw, func(t *testing.T) {
			r := p.Parse(raw)
			assert.False(t, r.IsValid())
			d := r.OrHold()
			assert.Equal(t, domain.ActionHold, d.Action)
			assert.Equal(t, domain.ReasonUnparseable, d.Reasoning)
		})
	}
}

func TestParser_Valid(t *testing.T) {
	p := NewParser(zap.NewNop())

	raw := `Here is my analysis.
{
  "decision": "OPEN_LONG",
  "coin": "btc",
  "confidence": 0.72,
  "size_pct": 5,
  "leverage": 3.0,
  "stop_loss_pct": 2.5,
  "take_profit_pct": 6,
  "reasoning": "RSI recovering, MACD crossed up"
}
Good luck!`

	r := p.Parse(raw)
	require.True(t, r.IsValid(), r.Reason())
	d, ok := r.Decision()
	require.True(t, ok)

	assert.Equal(t, domain.ActionOpenLong, d.Action)
	assert.Equal(t, "BTC", d.Coin)
	assert.Equal(t, 0.72, d.Confidence)
	require.NotNil(t, d.SizePct)
	assert.Equal(t, 5.0, *d.SizePct)
	require.NotNil(t, d.Leverage)
	assert.Equal(t, 3, *d.Leverage)
	assert.Equal(t, 2.5, d.StopLossOrDefault())
	assert.Equal(t, "RSI recovering, MACD crossed up", d.Reasoning)
}

func TestParser_HoldWithNulls(t *testing.T) {
	p := NewParser(nil)

	r := p.Parse(`{"decision":"HOLD","coin":null,"confidence":0.4,"size_pct":null,"leverage":null,"reasoning":""}`)
	require.True(t, r.IsValid(), r.Reason())

	d := r.OrHold()
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Empty(t, d.Coin)
	assert.Nil(t, d.Leverage)
	assert.NotEmpty(t, d.Reasoning)
}

func TestParser_SchemaViolations(t *testing.T) {
	p := NewParser(zap.NewNop())

	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown decision", raw: `{"decision":"BUY","coin":"BTC"}`},
		{name: "lowercase decision", raw: `{"decision":"open_long","coin":"BTC"}`},
		{name: "missing decision", raw: `{"coin":"BTC","confidence":0.5}`},
		{name: "confidence above one", raw: `{"decision":"OPEN_LONG","coin":"BTC","confidence":1.5}`},
		{name: "negative size", raw: `{"decision":"OPEN_LONG","coin":"BTC","size_pct":-5}`},
		{name: "fractional leverage", raw: `{"decision":"OPEN_LONG","coin":"BTC","leverage":2.5}`},
		{name: "leverage above ten", raw: `{"decision":"OPEN_SHORT","coin":"ETH","leverage":20}`},
		{name: "stop loss too tight", raw: `{"decision":"OPEN_LONG","coin":"BTC","stop_loss_pct":0.5}`},
		{name: "take profit too far", raw: `{"decision":"OPEN_LONG","coin":"BTC","take_profit_pct":15}`},
		{name: "coin wrong type", raw: `{"decision":"CLOSE","coin":7}`},
		{name: "open without coin", raw: `{"decision":"OPEN_LONG","confidence":0.9}`},
		{name: "close with null coin", raw: `{"decision":"CLOSE","coin":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.Parse(tt.raw)
			assert.False(t, r.IsValid())
			assert.ErrorIs(t, r.Err(), domain.ErrParse)

			d := r.OrHold()
			assert.Equal(t, domain.ActionHold, d.Action)
			assert.NotEmpty(t, d.Reasoning)
		})
	}
}
