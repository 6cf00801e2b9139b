package clients

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hlpilot/config"
)

type fakeChatModel struct {
	got   []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	return f.reply, f.err
}

func TestLLMClient_Chat(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage(`{"decision":"HOLD"}`, nil)}
	c := &LLMClient{model: fake, name: "test"}

	out, err := c.Chat(context.Background(), "system rules", "market context")
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"HOLD"}`, out)

	require.Len(t, fake.got, 2)
	assert.Equal(t, schema.System, fake.got[0].Role)
	assert.Equal(t, "system rules", fake.got[0].Content)
	assert.Equal(t, schema.User, fake.got[1].Role)
	assert.Equal(t, "market context", fake.got[1].Content)
}

func TestLLMClient_ChatErrors(t *testing.T) {
	c := &LLMClient{model: &fakeChatModel{err: errors.New("upstream 500")}}
	_, err := c.Chat(context.Background(), "s", "u")
	assert.Error(t, err)

	c = &LLMClient{model: &fakeChatModel{reply: schema.AssistantMessage("  ", nil)}}
	_, err = c.Chat(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestNewLLMClient_RequiresKey(t *testing.T) {
	_, err := NewLLMClient(context.Background(), config.LLMConfig{Provider: config.ProviderOpenAI, Model: "x"})
	assert.Error(t, err)
}

func TestNewHyperliquidClient_BadKey(t *testing.T) {
	_, err := NewHyperliquidClient("", "https://api.hyperliquid-testnet.xyz", "")
	assert.Error(t, err)

	_, err = NewHyperliquidClient("0xnothex", "https://api.hyperliquid-testnet.xyz", "")
	assert.Error(t, err)
}

func TestLLMClient_Model(t *testing.T) {
	assert.Equal(t, "yandexgpt", (&LLMClient{name: "gpt://b1g8t5pmnjifaov0paff/yandexgpt/rc"}).Model())
	assert.Equal(t, "anthropic/claude-sonnet-4", (&LLMClient{name: "anthropic/claude-sonnet-4"}).Model())
}
