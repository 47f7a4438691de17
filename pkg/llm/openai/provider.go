// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
)

// Provider implements the llm.Provider interface for OpenAI's API.
type Provider struct {
	client *openai.Client
	model  string
	config *llm.Config
}

// NewProvider creates a new OpenAI provider instance.
// apiKey: OpenAI API key for authentication
// model: Model to use (e.g., "gpt-4", "gpt-4-turbo", "gpt-3.5-turbo")
// config: Optional configuration (can be nil for defaults)
func NewProvider(apiKey, model string, config *llm.Config) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		return nil, errors.New("model name is required")
	}

	// Apply default config if not provided
	if config == nil {
		config = &llm.Config{
			Provider:           "openai",
			APIKey:             apiKey,
			Model:              model,
			DefaultTemperature: 0.7,
			DefaultMaxTokens:   2048,
			TimeoutSeconds:     60,
		}
	}

	// Create OpenAI client configuration
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	client := openai.NewClientWithConfig(clientConfig)

	return &Provider{
		client: client,
		model:  model,
		config: config,
	}, nil
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("completion request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	// Apply timeout
	if p.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	// Convert our messages to OpenAI format
	openaiMessages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	// Apply defaults for unspecified parameters
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.DefaultTemperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.DefaultMaxTokens
	}

	// GPT-5 reasoning models don't support temperature, top_p, n, presence_penalty, frequency_penalty
	// Leave them at 0 so omitempty prevents them from being sent in JSON
	isReasoningModel := strings.HasPrefix(p.model, "gpt-5") || strings.HasPrefix(p.model, "o1") || strings.HasPrefix(p.model, "o3")

	var finalTemp, finalTopP float32
	if !isReasoningModel {
		finalTemp = temperature
		if finalTemp == 0 {
			finalTemp = p.config.DefaultTemperature
		}
		finalTopP = req.TopP
		if finalTopP == 0 {
			finalTopP = 1.0 // OpenAI default
		}
	}
	// else: leave at 0 for reasoning models (omitempty will exclude from JSON)

	// Create OpenAI request
	openaiReq := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            openaiMessages,
		Temperature:         finalTemp,
		MaxCompletionTokens: maxTokens,
		TopP:                finalTopP,
		Stop:                req.StopSequences,
	}

	// Execute request
	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, classifyOpenAIError("openai.Complete", err)
	}

	// Validate response
	if len(resp.Choices) == 0 {
		return nil, coreerrors.New(coreerrors.InternalError, "openai.Complete", "OpenAI returned no choices")
	}

	// Convert response to our format
	return &llm.CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: llm.UsageStats{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	}, nil
}

// CompleteStructured generates a completion constrained to req.Schema.
// go-openai's json_object response format guarantees syntactically
// valid JSON but not schema conformance, so the schema is also
// embedded in the system prompt and conformance is left to the
// caller (normally pkg/llm/retrypolicy) to validate and retry.
func (p *Provider) CompleteStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.CompletionResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "openai.CompleteStructured", "request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "openai.CompleteStructured", "messages cannot be empty")
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
		return nil, coreerrors.Wrap(coreerrors.InvalidArgument, "openai.CompleteStructured", err)
	}

	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
		Role: "system",
		Content: fmt.Sprintf("Respond with ONLY a JSON object conforming to this JSON schema (name=%s):\n%s",
			req.SchemaName, string(schemaJSON)),
	})
	for _, msg := range req.Messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.DefaultMaxTokens
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            openaiMessages,
		Temperature:         req.Temperature,
		MaxCompletionTokens: maxTokens,
		ResponseFormat:      &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, classifyOpenAIError("openai.CompleteStructured", err)
	}
	if len(resp.Choices) == 0 {
		return nil, coreerrors.New(coreerrors.InternalError, "openai.CompleteStructured", "OpenAI returned no choices")
	}

	return &llm.CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: llm.UsageStats{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	}, nil
}

// classifyOpenAIError maps a go-openai API error into the shared
// coreerrors taxonomy so retrypolicy can decide retry eligibility
// without depending on the openai package.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return coreerrors.Wrap(coreerrors.UpstreamAuth, op, err)
		case http.StatusTooManyRequests:
			return coreerrors.Wrap(coreerrors.UpstreamQuota, op, err)
		}
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "content_filter") {
			return coreerrors.Wrap(coreerrors.ContentRefused, op, err)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
	}
	return coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// ModelName returns the specific model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// SupportsStreaming indicates if this provider supports streaming responses.
func (p *Provider) SupportsStreaming() bool {
	return true // OpenAI supports streaming, but not implemented in Phase 1
}
