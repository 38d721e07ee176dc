// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request and response bodies of the
// orchestrator API. Binding tags are enforced by gin's validator.
package datatypes

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ===== SIZE LIMITS =====

const (
	// MaxMessageBytes bounds a single chat message.
	MaxMessageBytes = 32 * 1024

	// MaxScriptBytes bounds a submitted PowerShell script.
	MaxScriptBytes = 256 * 1024

	// MaxHistoryMessages bounds the conversation history per request.
	MaxHistoryMessages = 100

	// MaxExecuteParameters bounds the -Name value pairs passed to a
	// sandboxed script.
	MaxExecuteParameters = 16
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("noctl", validateNoControlBytes)
	}
}

// validateNoControlBytes rejects NUL bytes, which break script files and
// subprocess argument handling.
func validateNoControlBytes(fl validator.FieldLevel) bool {
	return !strings.ContainsRune(fl.Field().String(), 0)
}

// ===== CHAT =====

// ChatTurn is one prior turn of the conversation.
type ChatTurn struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content" binding:"required,max=32768"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string     `json:"message" binding:"required,max=32768,noctl"`
	History []ChatTurn `json:"history" binding:"omitempty,max=100,dive"`
}

// ChatUsage reports the token accounting of one chat completion.
type ChatUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// ChatResponse is the body returned by POST /v1/chat.
//
// Valid=false means the guardrails redirected the request; Response then
// carries the redirect text and Model/Usage are empty.
type ChatResponse struct {
	Valid      bool      `json:"valid"`
	Response   string    `json:"response"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Model      string    `json:"model,omitempty"`
	TaskType   string    `json:"task_type,omitempty"`
	Complexity string    `json:"complexity,omitempty"`
	Safe       bool      `json:"safe"`
	Warnings   []string  `json:"warnings,omitempty"`
	Usage      ChatUsage `json:"usage"`
}

// ===== SCRIPTS =====

// ScanRequest is the body of POST /v1/scripts/scan.
type ScanRequest struct {
	Code    string `json:"code" binding:"required,max=262144,noctl"`
	Context string `json:"context" binding:"omitempty,max=256"`
}

// ValidateScriptRequest is the body of POST /v1/scripts/validate.
type ValidateScriptRequest struct {
	Script string `json:"script" binding:"required,max=262144,noctl"`
}

// ExecuteRequest is the body of POST /v1/scripts/execute.
type ExecuteRequest struct {
	Script     string            `json:"script" binding:"required,max=262144,noctl"`
	Parameters map[string]string `json:"parameters" binding:"omitempty,max=16"`
}

// DiffRequest is the body of POST /v1/scripts/diff. Original may be
// empty for newly generated code.
type DiffRequest struct {
	Original           string `json:"original" binding:"omitempty,max=262144"`
	Improved           string `json:"improved" binding:"required,max=262144"`
	DetectImprovements *bool  `json:"detect_improvements"`
	IncludeHTML        bool   `json:"include_html"`
}

// TestsRequest is the body of POST /v1/scripts/tests.
type TestsRequest struct {
	Script     string `json:"script" binding:"required,max=262144,noctl"`
	ScriptName string `json:"script_name" binding:"omitempty,max=256"`
}

// TestsResponse is the generated Pester test file.
type TestsResponse struct {
	ScriptName    string `json:"script_name"`
	TestFile      string `json:"test_file"`
	FunctionCount int    `json:"function_count"`
}

// ===== ERRORS =====

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
