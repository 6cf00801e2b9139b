package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeModelName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "deepseek-chat", expected: "deepseek-chat"},
		{name: "folder prefix with version", input: "gpt://b1g8t5pmnjifaov0paff/yandexgpt/rc", expected: "yandexgpt"},
		{name: "folder prefix", input: "gpt://folder/yandexgpt", expected: "yandexgpt"},
		{name: "openrouter id", input: "anthropic/claude-3.5-sonnet", expected: "anthropic/claude-3.5-sonnet"},
		{name: "whitespace", input: "  gpt-4o-mini ", expected: "gpt-4o-mini"},
		{name: "prefix without folder", input: "gpt://yandexgpt", expected: "gpt://yandexgpt"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeModelName(tt.input))
		})
	}
}
