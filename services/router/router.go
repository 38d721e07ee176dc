// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// =============================================================================
// TASK DETECTION PATTERNS
// =============================================================================

// taskPatternGroup ties a task type to the regexes that detect it. Groups
// are evaluated in order; the first group with a match wins.
type taskPatternGroup struct {
	taskType TaskType
	patterns []*regexp.Regexp
}

var taskPatternGroups = []taskPatternGroup{
	{TaskCodeGeneration, compileAll(
		`\b(write|create|generate|make|build)\b.*\b(script|function|module|code)\b`,
		`\bscript\s+(?:to|that|for)\b`,
		`\bpowershell\s+(?:to|that|for)\b`,
		`\bfunction\s+(?:to|that|for)\b`,
	)},
	{TaskCodeReview, compileAll(
		`\b(review|check|analyze|improve|optimize)\b.*\b(script|code|function)\b`,
		`\bwhat's\s+wrong\b`,
		`\bfind\s+(?:bugs|issues|problems)\b`,
	)},
	{TaskDebugging, compileAll(
		`\b(debug|fix|error|exception|not\s+working)\b`,
		`\bwhy\s+(?:is|does|doesn't|isn't)\b`,
		`\bhelp\s+(?:with|me)\s+(?:debug|fix)\b`,
	)},
	{TaskExplanation, compileAll(
		`\b(what\s+is|what\s+are|explain|how\s+does|what\s+does)\b`,
		`\bwhat's\s+the\s+difference\b`,
		`\bcan\s+you\s+explain\b`,
	)},
	{TaskArchitecture, compileAll(
		`\b(design|architect|structure|organize)\b`,
		`\bbest\s+(?:way|practice|approach)\b`,
		`\bhow\s+should\s+i\b`,
	)},
	{TaskSecurityAnalysis, compileAll(
		`\b(security|secure|safe|vulnerability|exploit)\b`,
		`\bcredential|password|secret\b`,
		`\battack|malicious\b`,
	)},
}

var complexKeywords = []string{
	"enterprise", "production", "scale", "distributed",
	"multi-tenant", "high-availability", "fault-tolerant",
	"microservices", "kubernetes", "azure devops", "ci/cd",
	"authentication", "authorization", "encryption",
	"performance", "optimization", "concurrent", "parallel",
}

var expertKeywords = []string{
	"architecture", "design pattern", "best practices",
	"security audit", "compliance", "hipaa", "gdpr",
	"disaster recovery", "business continuity",
	"zero trust", "penetration test",
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// =============================================================================
// ROUTER
// =============================================================================

// ContextMessage is one prior conversation turn; only its presence counts
// toward complexity.
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Router picks the model for a query.
//
// Thread Safety: Safe for concurrent use; all state is set at construction.
type Router struct {
	defaultModel  string
	costSensitive bool
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithDefaultModel overrides the model used for moderate general chat.
func WithDefaultModel(modelID string) Option {
	return func(r *Router) {
		r.defaultModel = modelID
	}
}

// WithCostSensitive makes the router prefer cheaper models for simple
// tasks.
func WithCostSensitive(enabled bool) Option {
	return func(r *Router) {
		r.costSensitive = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// New creates a Router with the default performance-leaning strategy.
func New(opts ...Option) *Router {
	r := &Router{
		defaultModel: DefaultModelID,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AnalyzeTask determines the task type and complexity of a query. The
// pattern groups run in a fixed order and the first match wins, so a query
// that both generates and reviews code counts as generation.
func (r *Router) AnalyzeTask(query string, context []ContextMessage) (TaskType, TaskComplexity) {
	queryLower := strings.ToLower(query)

	taskType := TaskChat
groups:
	for _, group := range taskPatternGroups {
		for _, p := range group.patterns {
			if p.MatchString(queryLower) {
				taskType = group.taskType
				break groups
			}
		}
	}

	return taskType, assessComplexity(query, context)
}

// assessComplexity grades a query from word count, indicator keywords, and
// conversation depth.
func assessComplexity(query string, context []ContextMessage) TaskComplexity {
	wordCount := len(strings.Fields(query))
	queryLower := strings.ToLower(query)

	complexCount := 0
	for _, kw := range complexKeywords {
		if strings.Contains(queryLower, kw) {
			complexCount++
		}
	}
	expertCount := 0
	for _, kw := range expertKeywords {
		if strings.Contains(queryLower, kw) {
			expertCount++
		}
	}

	contextLength := len(context)

	switch {
	case expertCount >= 2 || (complexCount >= 3 && wordCount > 50):
		return ComplexityExpert
	case complexCount >= 2 || wordCount > 100 || contextLength > 10:
		return ComplexityComplex
	case wordCount > 30 || contextLength > 5:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// Route picks a model for the query.
//
// Description:
//
//	Classifies the query, then applies the per-task decision table:
//	code-heavy tasks escalate to GPT-5.2-Codex at high complexity,
//	reasoning-heavy tasks to GPT-5.2, and everything else defaults to
//	GPT-5 Mini (GPT-5 Nano when cost-sensitive and simple). The estimated
//	cost assumes a ~500 token prompt and ~1000 token completion.
//
// Inputs:
//
//	query - The user's query.
//	context - Optional prior turns; may be nil.
//
// Outputs:
//
//	RoutingDecision - Selected model, reasoning, and estimates.
//
// Thread Safety: Safe for concurrent use.
func (r *Router) Route(query string, context []ContextMessage) RoutingDecision {
	taskType, complexity := r.AnalyzeTask(query, context)

	var (
		model  ModelConfig
		reason string
	)

	switch taskType {
	case TaskCodeGeneration:
		switch {
		case complexity.AtLeast(ComplexityComplex):
			model = models["gpt-5.2-codex"]
			reason = "Complex code generation benefits from GPT-5.2-Codex long-horizon agentic coding strength"
		case r.costSensitive && complexity == ComplexitySimple:
			model = models["gpt-5-nano"]
			reason = "Simple code generation (cost-sensitive), using GPT-5 Nano"
		default:
			model = models["gpt-5-mini"]
			reason = "Code generation with GPT-5 Mini for strong quality + fast latency"
		}

	case TaskCodeReview:
		if complexity.AtLeast(ComplexityComplex) {
			model = models["gpt-5.2-codex"]
			reason = "Complex code review benefits from GPT-5.2-Codex"
		} else {
			model = models["gpt-5-mini"]
			reason = "Code review with GPT-5 Mini (fast + strong technical accuracy)"
		}

	case TaskDebugging:
		if complexity.AtLeast(ComplexityComplex) {
			model = models["gpt-5.2-codex"]
			reason = "Complex debugging benefits from GPT-5.2-Codex"
		} else {
			model = models["gpt-5-mini"]
			reason = "Standard debugging with GPT-5 Mini"
		}

	case TaskExplanation:
		switch {
		case complexity == ComplexitySimple && r.costSensitive:
			model = models["gpt-5-nano"]
			reason = "Simple explanation (cost-sensitive), using GPT-5 Nano"
		case complexity.AtLeast(ComplexityComplex):
			model = models["gpt-5.2"]
			reason = "Complex explanation benefits from GPT-5.2"
		default:
			model = models["gpt-5-mini"]
			reason = "Explanation with GPT-5 Mini"
		}

	case TaskArchitecture:
		if complexity.AtLeast(ComplexityComplex) {
			model = models["gpt-5.2"]
			reason = "Architecture decisions benefit from GPT-5.2"
		} else {
			model = models["gpt-5-mini"]
			reason = "Architecture guidance with GPT-5 Mini"
		}

	case TaskSecurityAnalysis:
		if complexity.AtLeast(ComplexityModerate) {
			model = models["gpt-5.2-codex"]
			reason = "Security analysis benefits from GPT-5.2-Codex depth and coding focus"
		} else {
			model = models["gpt-5-mini"]
			reason = "Quick security analysis with GPT-5 Mini"
		}

	default:
		switch {
		case complexity == ComplexitySimple && r.costSensitive:
			model = models["gpt-5-nano"]
			reason = "Simple chat query (cost-sensitive), using GPT-5 Nano"
		case complexity.AtLeast(ComplexityComplex):
			model = models["gpt-5.2"]
			reason = "Complex query benefits from GPT-5.2"
		default:
			var ok bool
			model, ok = models[r.defaultModel]
			if !ok {
				model = models[DefaultModelID]
			}
			reason = "Using default model for moderate complexity"
		}
	}

	estimatedCost := 0.5*model.CostPer1KInput + 1.0*model.CostPer1KOutput

	alternative := ""
	if model.ModelID != "gpt-5-mini" {
		alternative = "gpt-5-mini"
	}

	decision := RoutingDecision{
		ModelID:                model.ModelID,
		ModelName:              model.Name,
		Reason:                 reason,
		TaskType:               taskType,
		Complexity:             complexity,
		EstimatedCost:          estimatedCost,
		EstimatedLatencyMillis: model.AvgLatencyMillis,
		AlternativeModel:       alternative,
	}

	r.logger.Debug("Routed query",
		slog.String("model_id", decision.ModelID),
		slog.String("task_type", string(taskType)),
		slog.String("complexity", string(complexity)),
	)
	return decision
}

// GetModelForTask returns the model ID the router would pick for a given
// task type and complexity, using a synthetic query.
func (r *Router) GetModelForTask(taskType TaskType, complexity TaskComplexity) string {
	decision := r.Route(fmt.Sprintf("Task: %s with %s complexity", taskType, complexity), nil)
	return decision.ModelID
}
