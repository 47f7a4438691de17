// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package anthropic implements the llm.Provider interface for
// Anthropic's Messages API. Selecting it over the openai or local
// providers changes nothing observable at the llm.Provider call site.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/llm"
)

// Provider implements the llm.Provider interface for Anthropic's API.
type Provider struct {
	client anthropicsdk.Client
	model  string
	config *llm.Config
}

// NewProvider creates a new Anthropic provider instance.
func NewProvider(apiKey, model string, config *llm.Config) (*Provider, error) {
	if apiKey == "" {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "anthropic.NewProvider", "Anthropic API key is required")
	}
	if model == "" {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "anthropic.NewProvider", "model name is required")
	}

	if config == nil {
		config = &llm.Config{
			Provider:           "anthropic",
			APIKey:             apiKey,
			Model:              model,
			DefaultTemperature: 0.7,
			DefaultMaxTokens:   2048,
			TimeoutSeconds:     60,
		}
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := anthropicsdk.NewClient(opts...)

	return &Provider{client: client, model: model, config: config}, nil
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "anthropic.Complete", "completion request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "anthropic.Complete", "messages cannot be empty")
	}

	if p.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	system, messages := splitSystem(req.Messages)

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = int64(p.config.DefaultMaxTokens)
	}
	temperature := float64(req.Temperature)
	if temperature == 0 {
		temperature = float64(p.config.DefaultTemperature)
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(p.model),
		MaxTokens:   maxTokens,
		Temperature: anthropicsdk.Float(temperature),
		Messages:    messages,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError("anthropic.Complete", err)
	}

	return toCompletionResponse(resp), nil
}

// CompleteStructured generates a completion constrained to req.Schema.
// The Anthropic Messages API has no native response_format parameter,
// so the schema is embedded in the system prompt; conformance is
// validated by the retrypolicy wrapper, same as for every provider.
func (p *Provider) CompleteStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.CompletionResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "anthropic.CompleteStructured", "request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "anthropic.CompleteStructured", "messages cannot be empty")
	}

	timeout := p.config.TimeoutSeconds
	if req.TimeoutMs > 0 {
		timeout = req.TimeoutMs / 1000
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.InvalidArgument, "anthropic.CompleteStructured", err)
	}

	system, messages := splitSystem(req.Messages)
	systemPrompt := fmt.Sprintf("Respond with ONLY a JSON object conforming to this JSON schema (name=%s). No markdown fences, no commentary.\n%s",
		req.SchemaName, string(schemaJSON))
	if system != "" {
		systemPrompt = system + "\n\n" + systemPrompt
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = int64(p.config.DefaultMaxTokens)
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(p.model),
		MaxTokens:   maxTokens,
		Temperature: anthropicsdk.Float(float64(req.Temperature)),
		System:      []anthropicsdk.TextBlockParam{{Text: systemPrompt}},
		Messages:    messages,
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError("anthropic.CompleteStructured", err)
	}

	return toCompletionResponse(resp), nil
}

func splitSystem(msgs []llm.Message) (string, []anthropicsdk.MessageParam) {
	var system string
	out := make([]anthropicsdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case "assistant":
			out = append(out, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}
	return system, out
}

func toCompletionResponse(resp *anthropicsdk.Message) *llm.CompletionResponse {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &llm.CompletionResponse{
		Content:      content,
		FinishReason: string(resp.StopReason),
		Usage: llm.UsageStats{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Model: string(resp.Model),
	}
}

// classifyAnthropicError maps an Anthropic SDK error into the shared
// coreerrors taxonomy.
func classifyAnthropicError(op string, err error) error {
	var apiErr *anthropicsdk.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 401, 403:
			return coreerrors.Wrap(coreerrors.UpstreamAuth, op, err)
		case 429:
			return coreerrors.Wrap(coreerrors.UpstreamQuota, op, err)
		}
		if apiErr.StatusCode >= 500 {
			return coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
		}
	}
	return coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
}

func asAnthropicError(err error, target **anthropicsdk.Error) bool {
	for err != nil {
		if e, ok := err.(*anthropicsdk.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Name returns the provider name.
func (p *Provider) Name() string { return "anthropic" }

// ModelName returns the specific model being used.
func (p *Provider) ModelName() string { return p.model }

// SupportsStreaming indicates if this provider supports streaming responses.
func (p *Provider) SupportsStreaming() bool { return true }
