// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package local implements the llm.Provider interface for a locally
// hosted, OpenAI-compatible chat endpoint (e.g. Ollama's
// /v1/chat/completions). The endpoint shape is plain enough that it
// talks HTTP directly rather than pulling in a client library.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/llm"
)

// Provider implements llm.Provider against a local OpenAI-compatible
// HTTP endpoint.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	model      string
	config     *llm.Config
}

// NewProvider creates a new local provider instance. baseURL defaults
// to Ollama's default if baseURL is empty.
func NewProvider(baseURL, model string, config *llm.Config) (*Provider, error) {
	if model == "" {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "local.NewProvider", "model name is required")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}

	if config == nil {
		config = &llm.Config{
			Provider:           "local",
			Model:              model,
			BaseURL:            baseURL,
			DefaultTemperature: 0.7,
			DefaultMaxTokens:   2048,
			TimeoutSeconds:     60,
		}
	}

	return &Provider{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		model:      model,
		config:     config,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "local.Complete", "completion request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "local.Complete", "messages cannot be empty")
	}

	body := chatRequest{
		Model:       p.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: orDefaultF(req.Temperature, p.config.DefaultTemperature),
		MaxTokens:   orDefaultI(req.MaxTokens, p.config.DefaultMaxTokens),
		Stop:        req.StopSequences,
	}

	return p.call(ctx, "local.Complete", body, p.config.TimeoutSeconds)
}

// CompleteStructured generates a completion constrained to req.Schema
// using the OpenAI-compatible json_object response format.
func (p *Provider) CompleteStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.CompletionResponse, error) {
	if req == nil {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "local.CompleteStructured", "request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "local.CompleteStructured", "messages cannot be empty")
	}

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.InvalidArgument, "local.CompleteStructured", err)
	}

	messages := append([]llm.Message{{
		Role: "system",
		Content: fmt.Sprintf("Respond with ONLY a JSON object conforming to this JSON schema (name=%s):\n%s",
			req.SchemaName, string(schemaJSON)),
	}}, req.Messages...)

	body := chatRequest{
		Model:          p.model,
		Messages:       toChatMessages(messages),
		Temperature:    req.Temperature,
		MaxTokens:      orDefaultI(req.MaxTokens, p.config.DefaultMaxTokens),
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	timeout := p.config.TimeoutSeconds
	if req.TimeoutMs > 0 {
		timeout = req.TimeoutMs / 1000
	}
	return p.call(ctx, "local.CompleteStructured", body, timeout)
}

func (p *Provider) call(ctx context.Context, op string, body chatRequest, timeout int) (*llm.CompletionResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.InternalError, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.InternalError, op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.UpstreamUnavailable, op, err)
	}

	if resp.StatusCode >= 400 {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, coreerrors.New(coreerrors.UpstreamAuth, op, string(data))
		case http.StatusTooManyRequests:
			return nil, coreerrors.New(coreerrors.UpstreamQuota, op, string(data))
		default:
			return nil, coreerrors.New(coreerrors.UpstreamUnavailable, op, string(data))
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, coreerrors.Wrap(coreerrors.InternalError, op, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, coreerrors.New(coreerrors.InternalError, op, "local endpoint returned no choices")
	}

	return &llm.CompletionResponse{
		Content:      parsed.Choices[0].Message.Content,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: llm.UsageStats{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		Model: parsed.Model,
	}, nil
}

func toChatMessages(msgs []llm.Message) []chatMessage {
	out := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func orDefaultF(v, def float32) float32 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultI(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Name returns the provider name.
func (p *Provider) Name() string { return "local" }

// ModelName returns the specific model being used.
func (p *Provider) ModelName() string { return p.model }

// SupportsStreaming indicates if this provider supports streaming responses.
func (p *Provider) SupportsStreaming() bool { return false }
