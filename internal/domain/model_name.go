package domain

import "strings"

// NormalizeModelName turns a provider-qualified model id into the short label
// stored with decisions. "gpt://<folder>/yandexgpt/rc" becomes "yandexgpt";
// plain and slash-separated OpenRouter style ids are kept as is.
func NormalizeModelName(model string) string {
	model = strings.TrimSpace(model)
	_, rest, ok := strings.Cut(model, "gpt://")
	if !ok {
		return model
	}
	_, name, ok := strings.Cut(rest, "/")
	if !ok {
		return model
	}
	name, _, _ = strings.Cut(name, "/")
	return name
}
