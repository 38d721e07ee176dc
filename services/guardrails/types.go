// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package guardrails implements the policy-enforcement layer of the
// PowerShell assistant: topic validation for incoming chat messages and
// security scanning/sanitization for PowerShell code and generation
// requests.
//
// The package is deliberately heuristic. Every check is a regex or keyword
// table applied in a documented precedence order, and negative outcomes
// (off topic, unsafe, blocked) are returned as data rather than errors so
// callers can branch without exception handling. The tables fail open: a
// non-match means SAFE. That trade-off keeps the assistant usable and is
// an accepted limitation, not a bug.
package guardrails

// =============================================================================
// SECURITY TYPES
// =============================================================================

// Severity is the risk level assigned to a security finding.
//
// Levels are ordered SAFE < LOW < MEDIUM < HIGH < CRITICAL. The overall
// level of a scan is the maximum severity over all findings.
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank maps a Severity to its position in the ordering.
var severityRank = map[Severity]int{
	SeveritySafe:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric position of the severity in the
// SAFE < LOW < MEDIUM < HIGH < CRITICAL ordering. Unknown values rank as SAFE.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Max returns the higher of the two severities.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// Category classifies what kind of security concern a finding represents.
type Category string

const (
	CategoryDestructiveOperation Category = "destructive_operation"
	CategoryCredentialExposure   Category = "credential_exposure"
	CategorySystemModification   Category = "system_modification"
	CategoryNetworkOperation     Category = "network_operation"
	CategoryExecutionRisk        Category = "execution_risk"
	CategoryPrivilegeEscalation  Category = "privilege_escalation"
	CategoryDataExfiltration     Category = "data_exfiltration"
	CategoryObfuscation          Category = "obfuscation"
	CategoryPersistence          Category = "persistence"
	CategorySafe                 Category = "safe"
)

// Finding is a single security issue located in scanned code.
type Finding struct {
	Level          Severity `json:"level"`
	Category       Category `json:"category"`
	Message        string   `json:"message"`
	LineNumber     int      `json:"line_number,omitempty"`
	CodeSnippet    string   `json:"code_snippet,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// ScanResult aggregates the findings of one security scan.
//
// IsSafe is true unless the overall level reached CRITICAL (or HIGH in
// strict mode). Recommendations are capped at ten entries.
type ScanResult struct {
	IsSafe            bool      `json:"is_safe"`
	OverallLevel      Severity  `json:"overall_level"`
	Findings          []Finding `json:"findings"`
	BlockedOperations []string  `json:"blocked_operations"`
	Warnings          []string  `json:"warnings"`
	Recommendations   []string  `json:"recommendations"`
}

// OutputValidation is the result of validating AI-generated code before it
// is returned to the user.
type OutputValidation struct {
	IsSafe   bool     `json:"is_safe"`
	Code     string   `json:"code"`
	Warnings []string `json:"warnings"`
}

// RequestValidation is the result of sanitizing a script generation request.
type RequestValidation struct {
	IsValid   bool     `json:"is_valid"`
	Sanitized string   `json:"sanitized"`
	Removed   []string `json:"removed"`
}

// GuardStats reports the lifetime counters of a SecurityGuard instance.
type GuardStats struct {
	TotalScans        int  `json:"total_scans"`
	BlockedCount      int  `json:"blocked_count"`
	WarningCount      int  `json:"warning_count"`
	OutputValidations int  `json:"output_validations"`
	StrictMode        bool `json:"strict_mode"`
}

// =============================================================================
// TOPIC TYPES
// =============================================================================

// TopicCategory classifies what a chat message is about.
type TopicCategory string

const (
	TopicPowerShellScripting  TopicCategory = "powershell_scripting"
	TopicScriptAnalysis       TopicCategory = "script_analysis"
	TopicScriptGeneration     TopicCategory = "script_generation"
	TopicScriptingLanguages   TopicCategory = "scripting_languages"
	TopicDevOpsAutomation     TopicCategory = "devops_automation"
	TopicSystemAdministration TopicCategory = "system_administration"
	TopicGeneralGreeting      TopicCategory = "general_greeting"
	TopicOffTopic             TopicCategory = "off_topic"
)

// Message is one turn of a conversation, as the HTTP layer delivers it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TopicValidationResult is the outcome of classifying one user message.
//
// Created fresh per validated message and never mutated afterwards; the
// caller consumes it immediately to short-circuit or continue the request.
type TopicValidationResult struct {
	IsValid           bool          `json:"is_valid"`
	Category          TopicCategory `json:"category"`
	Confidence        float64       `json:"confidence"`
	Message           string        `json:"message,omitempty"`
	IsScriptRequest   bool          `json:"is_script_request"`
	SuggestedResponse string        `json:"suggested_response,omitempty"`
}

// ScriptRequirements captures what a script generation request asked for.
type ScriptRequirements struct {
	Description  string   `json:"description"`
	Features     []string `json:"features"`
	TargetSystem string   `json:"target_system"`
	Complexity   string   `json:"complexity"`
}
