// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router selects an OpenAI model for each request based on task
// type and complexity. This is a coding/PowerShell-first app, so routing
// biases toward strong coding models by default; cost-sensitive mode
// prefers cheaper models where quality allows it.
package router

// TaskComplexity grades how demanding a request is.
type TaskComplexity string

const (
	ComplexitySimple   TaskComplexity = "simple"
	ComplexityModerate TaskComplexity = "moderate"
	ComplexityComplex  TaskComplexity = "complex"
	ComplexityExpert   TaskComplexity = "expert"
)

var complexityRank = map[TaskComplexity]int{
	ComplexitySimple:   0,
	ComplexityModerate: 1,
	ComplexityComplex:  2,
	ComplexityExpert:   3,
}

// Rank returns the ordinal position of the complexity level. Unknown
// values rank as simple.
func (c TaskComplexity) Rank() int {
	return complexityRank[c]
}

// AtLeast reports whether c is at or above the given level.
func (c TaskComplexity) AtLeast(other TaskComplexity) bool {
	return c.Rank() >= other.Rank()
}

// TaskType classifies what the user is asking for.
type TaskType string

const (
	TaskChat             TaskType = "chat"
	TaskCodeGeneration   TaskType = "code_generation"
	TaskCodeReview       TaskType = "code_review"
	TaskExplanation      TaskType = "explanation"
	TaskDebugging        TaskType = "debugging"
	TaskArchitecture     TaskType = "architecture"
	TaskSecurityAnalysis TaskType = "security_analysis"
	TaskDocumentation    TaskType = "documentation"
)

// ModelConfig describes one routable model, including its USD-per-1K-token
// pricing and typical latency.
type ModelConfig struct {
	Name             string   `json:"name"`
	ModelID          string   `json:"model_id"`
	MaxTokens        int      `json:"max_tokens"`
	CostPer1KInput   float64  `json:"cost_per_1k_input"`
	CostPer1KOutput  float64  `json:"cost_per_1k_output"`
	AvgLatencyMillis int      `json:"avg_latency_ms"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
}

// RoutingDecision is the outcome of routing one query.
type RoutingDecision struct {
	ModelID                string         `json:"model_id"`
	ModelName              string         `json:"model_name"`
	Reason                 string         `json:"reason"`
	TaskType               TaskType       `json:"task_type"`
	Complexity             TaskComplexity `json:"complexity"`
	EstimatedCost          float64        `json:"estimated_cost"`
	EstimatedLatencyMillis int            `json:"estimated_latency_ms"`
	AlternativeModel       string         `json:"alternative_model,omitempty"`
}

// DefaultModelID is used for moderate chat when no override is configured.
const DefaultModelID = "gpt-5-mini"

// models holds the February 2026 registry. Pricing is USD per 1K tokens;
// "input" maps to prompt tokens, "output" to completion tokens.
var models = map[string]ModelConfig{
	"gpt-5-nano": {
		Name:             "GPT-5 Nano",
		ModelID:          "gpt-5-nano",
		MaxTokens:        128000,
		CostPer1KInput:   0.00005,
		CostPer1KOutput:  0.00040,
		AvgLatencyMillis: 350,
		Strengths:        []string{"fast", "high throughput", "cheap", "simple tasks"},
		Weaknesses:       []string{"weaker at complex code and multi-step reasoning"},
	},
	"gpt-5-mini": {
		Name:             "GPT-5 Mini",
		ModelID:          "gpt-5-mini",
		MaxTokens:        128000,
		CostPer1KInput:   0.00025,
		CostPer1KOutput:  0.00200,
		AvgLatencyMillis: 800,
		Strengths:        []string{"fast", "strong coding", "great default for UX"},
		Weaknesses:       []string{"less capable than GPT-5.2 on hardest problems"},
	},
	"gpt-5.2": {
		Name:             "GPT-5.2",
		ModelID:          "gpt-5.2",
		MaxTokens:        128000,
		CostPer1KInput:   0.00175,
		CostPer1KOutput:  0.01400,
		AvgLatencyMillis: 1800,
		Strengths:        []string{"best general reasoning", "agentic workflows", "code-heavy tasks"},
		Weaknesses:       []string{"higher cost than GPT-5 Mini"},
	},
	"gpt-5.2-codex": {
		Name:             "GPT-5.2-Codex",
		ModelID:          "gpt-5.2-codex",
		MaxTokens:        128000,
		CostPer1KInput:   0.00175,
		CostPer1KOutput:  0.01400,
		AvgLatencyMillis: 2200,
		Strengths:        []string{"agentic coding", "long-horizon changes", "deep code review"},
		Weaknesses:       []string{"higher latency/cost than GPT-5 Mini for small tasks"},
	},
}

// Models returns a copy of the model registry keyed by model ID.
func Models() map[string]ModelConfig {
	out := make(map[string]ModelConfig, len(models))
	for id, cfg := range models {
		out[id] = cfg
	}
	return out
}

// Lookup returns the configuration for a model ID.
func Lookup(modelID string) (ModelConfig, bool) {
	cfg, ok := models[modelID]
	return cfg, ok
}
