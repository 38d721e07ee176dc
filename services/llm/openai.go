// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// secretKeyPath is where container secrets mount the API key.
const secretKeyPath = "/run/secrets/openai_api_key"

// OpenAIClient talks to the OpenAI chat completion API.
//
// Thread Safety: safe for concurrent use.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
	logger       *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.defaultModel = model
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// WithBaseURL points the client at an alternate API endpoint.
// Used by tests and OpenAI-compatible gateways.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.client = nil
		cfg := openai.DefaultConfig(resolveAPIKey())
		cfg.BaseURL = baseURL
		c.client = openai.NewClientWithConfig(cfg)
	}
}

// NewOpenAIClient builds a client from OPENAI_API_KEY (or the mounted
// container secret) and OPENAI_MODEL.
func NewOpenAIClient(opts ...OpenAIOption) (*OpenAIClient, error) {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-5-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-5-mini")
	}

	c := &OpenAIClient{
		defaultModel: model,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		apiKey := resolveAPIKey()
		if apiKey == "" {
			c.logger.Error("OPENAI_API_KEY environment variable not set and secret not found",
				slog.String("path", secretKeyPath))
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		c.client = openai.NewClient(apiKey)
	}
	c.logger.Info("Initializing OpenAI client", slog.String("model", c.defaultModel))
	return c, nil
}

// resolveAPIKey checks the environment, then the container secret.
func resolveAPIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	raw, err := os.ReadFile(secretKeyPath)
	if err != nil {
		return ""
	}
	slog.Info("Read the OpenAI API key from container secrets")
	return strings.TrimSpace(string(raw))
}

// Complete implements the Client interface.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	c.logger.Debug("Generating text via OpenAI", slog.String("model", model))

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	// Reasoning-series models fix temperature and top_p at 1; the client
	// library rejects any override before sending, so drop them here.
	if !reasoningSeries(model) {
		if req.Params.Temperature != nil {
			apiReq.Temperature = *req.Params.Temperature
		}
		if req.Params.TopP != nil {
			apiReq.TopP = *req.Params.TopP
		}
	}
	if req.Params.MaxTokens != nil {
		apiReq.MaxCompletionTokens = *req.Params.MaxTokens
	}
	if len(req.Params.Stop) > 0 {
		apiReq.Stop = req.Params.Stop
	}

	resp, err := c.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		c.logger.Error("OpenAI API call failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("OpenAI returned no choices")
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	choice := resp.Choices[0]
	c.logger.Debug("Received response from OpenAI",
		slog.String("finish_reason", string(choice.FinishReason)),
		slog.Int("total_tokens", resp.Usage.TotalTokens))
	return &Completion{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// reasoningSeries reports whether the model belongs to a reasoning family
// that does not accept sampling overrides.
func reasoningSeries(model string) bool {
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
