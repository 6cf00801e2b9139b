package clients

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/hlpilot/config"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

// chatModel is the part of an eino chat model the client needs.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// LLMClient sends one system instruction and one user prompt and returns the raw reply.
// It does not retry; a failed call is handled by the caller.
type LLMClient struct {
	model chatModel
	name  string
}

// NewLLMClient creates a client for the configured provider. The openai provider
// covers any OpenAI-compatible endpoint (OpenAI, OpenRouter, local gateways).
func NewLLMClient(ctx context.Context, cfg config.LLMConfig) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key is empty")
	}

	var (
		m   chatModel
		err error
	)
	switch cfg.Provider {
	case config.ProviderDeepSeek:
		m, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		maxTokens := cfg.MaxTokens
		m, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: &maxTokens,
		})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create %s chat model", cfg.Provider)
	}

	return &LLMClient{model: m, name: cfg.Model}, nil
}

// Model returns the short model label used in logs and reports.
func (c *LLMClient) Model() string { return domain.NormalizeModelName(c.name) }

// Chat returns the text of the model's reply.
func (c *LLMClient) Chat(ctx context.Context, system, user string) (string, error) {
	msg, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", errors.Wrap(err, "generate")
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", errors.New("model returned an empty reply")
	}
	return msg.Content, nil
}
