// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/psscriptai/scriptguard/services/guardrails/enforcement"
)

// PatternVersion tracks the embedded pattern database version.
const PatternVersion = "2026.02"

// SecurityPattern is one entry of a guardrail pattern table.
//
// Patterns are data, not code: the YAML file fixes both the regex set and
// its precedence, so the tables can be golden-tested entry by entry.
//
// Thread Safety: SecurityPattern is immutable after Compile, safe for
// concurrent use.
type SecurityPattern struct {
	// ID is the unique pattern identifier (e.g. DGR-003).
	ID string `yaml:"id"`

	// Regex is the detection pattern, compiled case-insensitive.
	Regex string `yaml:"regex"`

	// Negative suppresses a match when it also matches the same line.
	// Used for "X without Y" rules, since RE2 has no lookahead.
	Negative string `yaml:"negative"`

	// Severity is the level assigned to a match. Tables whose severity is
	// fixed (credentials, obfuscation, persistence) leave this empty.
	Severity Severity `yaml:"severity"`

	// Message describes the finding to the user.
	Message string `yaml:"message"`

	// Description names the category of a removed request pattern.
	Description string `yaml:"description"`

	compiled         *regexp.Regexp
	compiledNegative *regexp.Regexp
}

// Match reports whether the line triggers this pattern, honoring the
// negative pattern when present.
func (p *SecurityPattern) Match(line string) bool {
	if p.compiled == nil || !p.compiled.MatchString(line) {
		return false
	}
	if p.compiledNegative != nil && p.compiledNegative.MatchString(line) {
		return false
	}
	return true
}

// FindString returns the matched fragment, or "" when the line does not
// trigger the pattern.
func (p *SecurityPattern) FindString(line string) string {
	if !p.Match(line) {
		return ""
	}
	return p.compiled.FindString(line)
}

// Pattern exposes the compiled regex for callers that need to substitute
// matches (request sanitization, credential redaction).
func (p *SecurityPattern) Pattern() *regexp.Regexp {
	return p.compiled
}

// PatternFile is the on-disk (embedded) shape of the guardrail tables.
type PatternFile struct {
	DangerousCommands   []SecurityPattern `yaml:"dangerous_commands"`
	CredentialPatterns  []SecurityPattern `yaml:"credential_patterns"`
	ObfuscationPatterns []SecurityPattern `yaml:"obfuscation_patterns"`
	NetworkPatterns     []SecurityPattern `yaml:"network_patterns"`
	PersistencePatterns []SecurityPattern `yaml:"persistence_patterns"`
	BestPractices       []SecurityPattern `yaml:"best_practices"`
	RequestFilters      []SecurityPattern `yaml:"request_filters"`
}

// UnmarshalYAML validates severity values while decoding.
func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	incoming := Severity(raw)
	switch incoming {
	case SeveritySafe, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		*s = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Severity: %q", incoming)
	}
}

// Compile compiles every regex in the file. All patterns are compiled with
// the case-insensitive flag to mirror PowerShell's own case folding.
func (f *PatternFile) Compile() error {
	tables := [][]SecurityPattern{
		f.DangerousCommands,
		f.CredentialPatterns,
		f.ObfuscationPatterns,
		f.NetworkPatterns,
		f.PersistencePatterns,
		f.BestPractices,
		f.RequestFilters,
	}
	for _, table := range tables {
		for i := range table {
			p := &table[i]
			re, err := regexp.Compile("(?i)" + p.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile pattern %s: %w", p.ID, err)
			}
			p.compiled = re
			if p.Negative != "" {
				neg, err := regexp.Compile("(?i)" + p.Negative)
				if err != nil {
					return fmt.Errorf("failed to compile negative pattern %s: %w", p.ID, err)
				}
				p.compiledNegative = neg
			}
		}
	}
	return nil
}

// LoadPatterns parses and compiles the embedded guardrail tables.
//
// Returns an error only if the embedded YAML is malformed or contains an
// invalid regex, which would be a build defect rather than a runtime
// condition.
func LoadPatterns() (*PatternFile, error) {
	var file PatternFile
	if err := yaml.Unmarshal(enforcement.SecurityPatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded pattern file: %w", err)
	}
	if err := file.Compile(); err != nil {
		return nil, err
	}
	return &file, nil
}
