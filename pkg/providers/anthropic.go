package providers

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/arjunbot/arjun/pkg/logger"
)

// AnthropicProvider talks to the Claude Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewAnthropicProvider(apiKey, apiBase, model string, maxTokens int, temperature float64) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(apiBase) != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, userMessage, systemPrompt string) string {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
		Temperature: anthropic.Float(p.temperature),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		logger.ErrorCF("provider", "Claude API error", map[string]any{
			"model": p.model,
			"error": err.Error(),
		})
		return FallbackResponse
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		logger.WarnC("provider", "Claude returned an empty response")
		return FallbackResponse
	}
	return out
}
