// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// maxRecommendations caps the recommendation list of a scan.
const maxRecommendations = 10

// maxScanHistory bounds the guard's in-memory scan history.
const maxScanHistory = 100

// credentialPlaceholder replaces redacted credentials in generated output.
const credentialPlaceholder = "<# REMOVED: Hardcoded credential detected. Use Get-Credential instead. #>"

// dangerousMismatch pairs an innocuous request keyword with a generated
// command that should not appear for it. The table is deliberately small
// and fixed; it is a review hint, not an exhaustive policy.
var dangerousMismatches = []struct {
	SafeWord     string
	DangerousCmd string
}{
	{"delete", "Format-Volume"},
	{"delete", "Clear-Disk"},
	{"read", "Remove-Item"},
	{"list", "Stop-Computer"},
	{"get", "Set-ExecutionPolicy"},
}

// =============================================================================
// SECURITY GUARD
// =============================================================================

// SecurityGuard applies the three-layer guardrail architecture to
// PowerShell operations:
//
//  1. Input validation (ValidateRequest)
//  2. Code scanning (Scan)
//  3. Output validation (ValidateOutput)
//
// The guard owns process-lifetime counters and a bounded scan history.
// Construct one instance at the composition root and inject it; the state
// is reset only by process restart.
//
// Thread Safety: Safe for concurrent use. Counters and history are
// protected by a mutex; the pattern tables are immutable.
type SecurityGuard struct {
	patterns   *PatternFile
	strictMode bool
	logger     *slog.Logger

	mu                sync.Mutex
	scanHistory       []ScanResult
	blockedCount      int
	warningCount      int
	outputValidations int
}

// GuardOption configures a SecurityGuard.
type GuardOption func(*SecurityGuard)

// WithStrictMode makes the guard treat HIGH findings as unsafe and reject
// requests that needed sanitizing.
func WithStrictMode(strict bool) GuardOption {
	return func(g *SecurityGuard) {
		g.strictMode = strict
	}
}

// WithGuardLogger sets a custom logger.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *SecurityGuard) {
		g.logger = logger
	}
}

// NewSecurityGuard creates a guard backed by the embedded pattern tables.
//
// Returns an error only if the embedded YAML fails to parse or compile.
func NewSecurityGuard(opts ...GuardOption) (*SecurityGuard, error) {
	patterns, err := LoadPatterns()
	if err != nil {
		return nil, err
	}
	g := &SecurityGuard{
		patterns: patterns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger.Info("Security guard initialized",
		slog.Bool("strict_mode", g.strictMode),
		slog.String("pattern_version", PatternVersion),
	)
	return g, nil
}

// Scan runs the full pattern scan over the code and records the result in
// the guard's history and counters.
func (g *SecurityGuard) Scan(code string, context string) ScanResult {
	result := ScanCode(g.patterns, code, g.strictMode)

	g.mu.Lock()
	g.scanHistory = append(g.scanHistory, result)
	if len(g.scanHistory) > maxScanHistory {
		g.scanHistory = g.scanHistory[len(g.scanHistory)-maxScanHistory:]
	}
	if !result.IsSafe {
		g.blockedCount++
	}
	g.warningCount += len(result.Warnings)
	g.mu.Unlock()

	g.logger.Info("Security scan complete",
		slog.Int("findings", len(result.Findings)),
		slog.Bool("is_safe", result.IsSafe),
		slog.String("level", string(result.OverallLevel)),
		slog.String("context", context),
	)
	return result
}

// Stats returns a snapshot of the guard's lifetime counters.
func (g *SecurityGuard) Stats() GuardStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GuardStats{
		TotalScans:        len(g.scanHistory),
		BlockedCount:      g.blockedCount,
		WarningCount:      g.warningCount,
		OutputValidations: g.outputValidations,
		StrictMode:        g.strictMode,
	}
}

// ValidateRequest sanitizes a script generation request before it reaches
// the model, replacing each dangerous ask with [REMOVED].
//
// IsValid is false only in strict mode: in permissive mode the sanitized
// request proceeds with the dangerous fragments stripped.
func (g *SecurityGuard) ValidateRequest(request string) RequestValidation {
	var removed []string
	sanitized := request

	for i := range g.patterns.RequestFilters {
		filter := &g.patterns.RequestFilters[i]
		if filter.Match(request) {
			removed = append(removed, filter.Description)
			sanitized = filter.Pattern().ReplaceAllString(sanitized, "[REMOVED]")
			g.logger.Warn("Removed dangerous request pattern",
				slog.String("category", filter.Description),
			)
		}
	}

	return RequestValidation{
		IsValid:   len(removed) == 0 || !g.strictMode,
		Sanitized: sanitized,
		Removed:   removed,
	}
}

// ValidateOutput is the final safety check before AI-generated code is
// returned to the user (layer 3 of the guardrail architecture).
//
// CRITICAL findings block the output entirely; everything else yields
// non-blocking review warnings. Hardcoded credentials are redacted in
// place with a fixed comment placeholder.
func (g *SecurityGuard) ValidateOutput(generatedCode, originalRequest, context string) OutputValidation {
	g.mu.Lock()
	g.outputValidations++
	g.mu.Unlock()

	var warnings []string
	modified := generatedCode

	scan := ScanCode(g.patterns, generatedCode, false)
	if scan.OverallLevel == SeverityCritical {
		g.logger.Warn("Output validation blocked critical code",
			slog.Any("blocked_operations", scan.BlockedOperations),
		)
		return OutputValidation{
			IsSafe: false,
			Code:   "",
			Warnings: []string{
				"Generated code was blocked due to critical security issues.",
				fmt.Sprintf("Issues found: %s", strings.Join(scan.BlockedOperations, ", ")),
			},
		}
	}

	// Semantic mismatch check: the request asked for something innocuous
	// but the output contains a command from a different risk class.
	requestLower := strings.ToLower(originalRequest)
	codeLower := strings.ToLower(generatedCode)
	for _, pair := range dangerousMismatches {
		if strings.Contains(requestLower, pair.SafeWord) &&
			strings.Contains(codeLower, strings.ToLower(pair.DangerousCmd)) {
			warnings = append(warnings, fmt.Sprintf(
				"Generated code contains '%s' but request mentioned '%s'. Please review carefully.",
				pair.DangerousCmd, pair.SafeWord,
			))
		}
	}

	if strings.Contains(generatedCode, "-Force") && !strings.Contains(generatedCode, "-WhatIf") {
		warnings = append(warnings, "Script uses -Force flag. Consider testing with -WhatIf first.")
	}

	if len(strings.Split(generatedCode, "\n")) > 30 {
		if !strings.Contains(codeLower, "try") || !strings.Contains(codeLower, "catch") {
			warnings = append(warnings, "Complex script without try/catch. Consider adding error handling.")
		}
	}

	for i := range g.patterns.CredentialPatterns {
		cred := &g.patterns.CredentialPatterns[i]
		if cred.Match(modified) {
			modified = cred.Pattern().ReplaceAllString(modified, credentialPlaceholder)
			warnings = append(warnings, fmt.Sprintf("Removed hardcoded credential: %s", cred.Message))
		}
	}

	if len(warnings) > 0 {
		g.logger.Info("Output validation completed with warnings",
			slog.Int("warnings", len(warnings)),
		)
	} else {
		g.logger.Debug("Output validation passed cleanly")
	}

	return OutputValidation{
		IsSafe:   scan.IsSafe && scan.OverallLevel != SeverityCritical,
		Code:     modified,
		Warnings: warnings,
	}
}

// SecurityPromptInjection returns the security preamble the chat pipeline
// prepends to system prompts for script generation.
func SecurityPromptInjection() string {
	return `
SECURITY REQUIREMENTS FOR POWERSHELL SCRIPTS:

1. NEVER generate scripts that:
   - Delete system files or directories
   - Disable security features (firewall, antivirus, UAC)
   - Store passwords or secrets in plain text
   - Create backdoors or reverse shells
   - Implement keylogging or credential theft
   - Use excessive obfuscation

2. ALWAYS include:
   - -WhatIf support for destructive operations
   - Proper error handling with try/catch
   - Parameter validation with [ValidateScript()]
   - Clear comments explaining sensitive operations
   - Confirmation prompts for dangerous actions

3. USE secure practices:
   - Get-Credential for password input
   - SecureString for sensitive data
   - Environment variables for configuration
   - Proper logging without exposing secrets
   - Least-privilege principle

4. WARN the user when generating scripts that:
   - Modify registry
   - Create scheduled tasks
   - Change service configurations
   - Access network resources
   - Require elevated privileges
`
}

// =============================================================================
// PURE SCAN
// =============================================================================

// ScanCode scans PowerShell code against the guardrail tables.
//
// Description:
//
//	Walks the script line by line (comment lines are skipped) and applies
//	each pattern table in order: dangerous commands, credentials,
//	obfuscation, network, persistence, then best practices. The overall
//	level is the maximum severity over all findings. CRITICAL matches are
//	recorded in BlockedOperations; HIGH dangerous commands and every
//	credential match are recorded in Warnings. Best-practice matches only
//	feed Recommendations, capped at ten.
//
// Inputs:
//
//	patterns - The compiled pattern tables.
//	code - The PowerShell code to scan.
//	strict - When true, HIGH findings also make the result unsafe.
//
// Outputs:
//
//	ScanResult - Findings, blocked operations, warnings, recommendations.
//
// Thread Safety: Pure function over immutable tables; safe for concurrent
// use.
func ScanCode(patterns *PatternFile, code string, strict bool) ScanResult {
	var (
		findings        []Finding
		blocked         []string
		warnings        []string
		recommendations []string
	)
	overall := SeveritySafe

	lines := strings.Split(code, "\n")
	for idx, line := range lines {
		lineNum := idx + 1
		stripped := strings.TrimSpace(line)

		// Comment lines carry no executable risk.
		if strings.HasPrefix(stripped, "#") {
			continue
		}

		for i := range patterns.DangerousCommands {
			p := &patterns.DangerousCommands[i]
			if !p.Match(line) {
				continue
			}
			findings = append(findings, Finding{
				Level:          p.Severity,
				Category:       CategoryDestructiveOperation,
				Message:        p.Message,
				LineNumber:     lineNum,
				CodeSnippet:    truncate(stripped, 100),
				Recommendation: "Review necessity of this operation. Consider adding -WhatIf for testing.",
			})
			overall = overall.Max(p.Severity)
			switch p.Severity {
			case SeverityCritical:
				blocked = append(blocked, fmt.Sprintf("Line %d: %s", lineNum, p.Message))
			case SeverityHigh:
				warnings = append(warnings, fmt.Sprintf("Line %d: %s", lineNum, p.Message))
			}
		}

		for i := range patterns.CredentialPatterns {
			p := &patterns.CredentialPatterns[i]
			if !p.Match(line) {
				continue
			}
			findings = append(findings, Finding{
				Level:          SeverityHigh,
				Category:       CategoryCredentialExposure,
				Message:        p.Message,
				LineNumber:     lineNum,
				CodeSnippet:    truncate(stripped, 50) + "...",
				Recommendation: "Use Get-Credential, environment variables, or Azure Key Vault instead",
			})
			warnings = append(warnings, fmt.Sprintf("Line %d: %s", lineNum, p.Message))
			overall = overall.Max(SeverityHigh)
		}

		for i := range patterns.ObfuscationPatterns {
			p := &patterns.ObfuscationPatterns[i]
			if !p.Match(line) {
				continue
			}
			findings = append(findings, Finding{
				Level:          SeverityMedium,
				Category:       CategoryObfuscation,
				Message:        p.Message,
				LineNumber:     lineNum,
				CodeSnippet:    truncate(stripped, 80),
				Recommendation: "Review obfuscated content. Ensure it's not hiding malicious code.",
			})
			overall = overall.Max(SeverityMedium)
		}

		for i := range patterns.NetworkPatterns {
			p := &patterns.NetworkPatterns[i]
			if !p.Match(line) {
				continue
			}
			findings = append(findings, Finding{
				Level:       p.Severity,
				Category:    CategoryNetworkOperation,
				Message:     p.Message,
				LineNumber:  lineNum,
				CodeSnippet: truncate(stripped, 80),
			})
			overall = overall.Max(p.Severity)
		}

		for i := range patterns.PersistencePatterns {
			p := &patterns.PersistencePatterns[i]
			if !p.Match(line) {
				continue
			}
			findings = append(findings, Finding{
				Level:          SeverityMedium,
				Category:       CategoryPersistence,
				Message:        p.Message,
				LineNumber:     lineNum,
				CodeSnippet:    truncate(stripped, 80),
				Recommendation: "Ensure persistence mechanism is intentional and documented",
			})
			overall = overall.Max(SeverityMedium)
		}

		for i := range patterns.BestPractices {
			p := &patterns.BestPractices[i]
			if p.Match(line) {
				recommendations = append(recommendations, fmt.Sprintf("Line %d: %s", lineNum, p.Message))
			}
		}
	}

	isSafe := overall != SeverityCritical
	if strict && (overall == SeverityHigh || overall == SeverityCritical) {
		isSafe = false
	}

	if len(recommendations) > maxRecommendations {
		recommendations = recommendations[:maxRecommendations]
	}

	return ScanResult{
		IsSafe:            isSafe,
		OverallLevel:      overall,
		Findings:          findings,
		BlockedOperations: blocked,
		Warnings:          warnings,
		Recommendations:   recommendations,
	}
}

// truncate bounds a snippet to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
