// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm wraps the OpenAI chat completion API behind a small
// interface so handlers and tests can swap in fakes.
package llm

import "context"

// GenerationParams are the optional sampling knobs for a completion.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks for one chat completion. Model is required
// because the router decides it per request.
type CompletionRequest struct {
	Model    string           `json:"model"`
	System   string           `json:"system,omitempty"`
	Messages []Message        `json:"messages"`
	Params   GenerationParams `json:"params"`
}

// Completion is the model's reply plus the token usage reported by
// the API, which feeds the usage tracker.
type Completion struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	FinishReason string `json:"finish_reason"`
}

// Client is the standard interface for any LLM backend.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
