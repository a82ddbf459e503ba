package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/arjunbot/arjun/pkg/config"
)

// FallbackResponse is returned whenever the model call fails or yields an
// empty response. Callers never need to special-case errors from this
// boundary; a failed model call degrades to this apologetic line.
const FallbackResponse = "sorry, having trouble processing that rn. could you try again?"

// Provider is the language-model collaborator. Complete suspends the
// caller until a response or failure; it never returns an error.
type Provider interface {
	Complete(ctx context.Context, userMessage, systemPrompt string) string
	Name() string
}

// CreateProvider builds the configured provider.
func CreateProvider(cfg *config.Config) (Provider, error) {
	apiKey := strings.TrimSpace(cfg.GetAPIKey())
	if apiKey == "" {
		return nil, fmt.Errorf("provider.api_key is required (or set ARJUN_PROVIDER_API_KEY)")
	}
	return NewAnthropicProvider(
		apiKey,
		cfg.GetAPIBase(),
		cfg.Agent.Model,
		cfg.Agent.MaxTokens,
		cfg.Agent.Temperature,
	), nil
}
