// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diff compares original and improved PowerShell scripts. It
// produces a unified diff, structured hunks for side-by-side rendering,
// change statistics, and auto-detected improvement annotations.
package diff

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ChangeType labels one diff line.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeModified  ChangeType = "modified"
	ChangeUnchanged ChangeType = "unchanged"
)

// ImprovementCategory groups detected improvements.
type ImprovementCategory string

const (
	CategoryPerformance   ImprovementCategory = "performance"
	CategorySecurity      ImprovementCategory = "security"
	CategoryReadability   ImprovementCategory = "readability"
	CategoryErrorHandling ImprovementCategory = "error_handling"
	CategoryBestPractices ImprovementCategory = "best_practices"
	CategoryStyle         ImprovementCategory = "style"
	CategoryFunctionality ImprovementCategory = "functionality"
)

// DiffLine is a single row of a hunk. Nil line numbers and contents mean
// the side has no counterpart (pure insert or delete).
type DiffLine struct {
	LineNumberOld *int       `json:"line_number_old"`
	LineNumberNew *int       `json:"line_number_new"`
	ContentOld    *string    `json:"content_old"`
	ContentNew    *string    `json:"content_new"`
	ChangeType    ChangeType `json:"change_type"`
}

// DiffHunk is a contiguous run of changes plus surrounding context from
// the original.
type DiffHunk struct {
	StartLineOld  int        `json:"start_line_old"`
	StartLineNew  int        `json:"start_line_new"`
	Lines         []DiffLine `json:"lines"`
	ContextBefore []string   `json:"context_before"`
	ContextAfter  []string   `json:"context_after"`
}

// CodeImprovement is one auto-detected improvement in the new code.
type CodeImprovement struct {
	Category     ImprovementCategory `json:"category"`
	Description  string              `json:"description"`
	LineStart    int                 `json:"line_start"`
	LineEnd      int                 `json:"line_end"`
	OriginalCode string              `json:"original_code"`
	ImprovedCode string              `json:"improved_code"`
}

// Result is the complete comparison output.
type Result struct {
	OriginalLines   int               `json:"original_lines"`
	ImprovedLines   int               `json:"improved_lines"`
	LinesAdded      int               `json:"lines_added"`
	LinesRemoved    int               `json:"lines_removed"`
	LinesModified   int               `json:"lines_modified"`
	Hunks           []DiffHunk        `json:"hunks"`
	Improvements    []CodeImprovement `json:"improvements"`
	UnifiedDiff     string            `json:"unified_diff"`
	HTMLDiff        string            `json:"html_diff"`
	SimilarityRatio float64           `json:"similarity_ratio"`
}

// improvementPattern detects one improvement signature.
type improvementPattern struct {
	re          *regexp.Regexp
	description string
}

type improvementGroup struct {
	category ImprovementCategory
	patterns []improvementPattern
}

// improvementGroups are checked in a fixed order so output ordering is
// stable.
var improvementGroups = []improvementGroup{
	{CategoryErrorHandling, []improvementPattern{
		{regexp.MustCompile(`(?i)try\s*\{`), "Added try-catch error handling"},
		{regexp.MustCompile(`(?i)\$ErrorActionPreference\s*=`), "Set error action preference"},
		{regexp.MustCompile(`(?i)catch\s*\{`), "Added exception handler"},
		{regexp.MustCompile(`(?i)-ErrorAction\s+Stop`), "Configured terminating errors"},
	}},
	{CategorySecurity, []improvementPattern{
		{regexp.MustCompile(`(?i)\[SecureString\]`), "Using secure string for sensitive data"},
		{regexp.MustCompile(`(?i)Get-Credential`), "Using credential object"},
		{regexp.MustCompile(`(?i)-Credential\s+\$`), "Parameterized credentials"},
		{regexp.MustCompile(`(?i)ConvertTo-SecureString`), "Converting to secure string"},
	}},
	{CategoryPerformance, []improvementPattern{
		{regexp.MustCompile(`(?i)\.ForEach\(\{`), "Using ForEach method for performance"},
		{regexp.MustCompile(`(?i)\[System\.Collections\.Generic\.List`), "Using generic list"},
		{regexp.MustCompile(`(?i)-AsHashTable`), "Converting to hashtable for fast lookups"},
		{regexp.MustCompile(`(?i)\$null\s*=`), "Suppressing output for performance"},
	}},
	{CategoryBestPractices, []improvementPattern{
		{regexp.MustCompile(`(?i)\[CmdletBinding\(\)\]`), "Added CmdletBinding attribute"},
		{regexp.MustCompile(`(?i)\[Parameter\(`), "Using parameter attributes"},
		{regexp.MustCompile(`(?i)#Requires`), "Added module requirements"},
		{regexp.MustCompile(`(?i)\.SYNOPSIS`), "Added help documentation"},
		{regexp.MustCompile(`(?i)Set-StrictMode`), "Enabled strict mode"},
	}},
	{CategoryReadability, []improvementPattern{
		{regexp.MustCompile(`(?i)Write-Verbose`), "Added verbose output"},
		{regexp.MustCompile(`(?i)#\s*\w+`), "Added comments"},
		{regexp.MustCompile(`(?i)\$PSCmdlet\.WriteProgress`), "Added progress reporting"},
		{regexp.MustCompile(`(?i)@\{`), "Using splatting for readability"},
	}},
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces diffs between code versions.
//
// Thread Safety: Safe for concurrent use.
type Generator struct {
	contextLines int
}

// Option configures a Generator.
type Option func(*Generator)

// WithContextLines sets how many unchanged lines surround each hunk.
func WithContextLines(n int) Option {
	return func(g *Generator) { g.contextLines = n }
}

// New creates a Generator with three lines of context.
func New(opts ...Option) *Generator {
	g := &Generator{contextLines: 3}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate compares original and improved code.
//
// Description:
//
//	Builds the unified diff, the HTML side-by-side table, per-opcode
//	hunks, and aggregate statistics. Identical inputs produce an empty
//	unified diff, no hunks, and similarity 1.0. When detectImprovements
//	is set, patterns present in the improved code but absent from the
//	original are reported as improvements, one entry per occurrence.
//
// Inputs:
//
//	original - The original PowerShell code.
//	improved - The improved PowerShell code.
//	detectImprovements - Enables improvement annotation.
//
// Outputs:
//
//	Result - The full comparison.
//	error - Unified diff rendering failure.
//
// Thread Safety: Safe for concurrent use.
func (g *Generator) Generate(original, improved string, detectImprovements bool) (Result, error) {
	originalLines := splitKeepEnds(original)
	improvedLines := splitKeepEnds(improved)

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(improved),
		FromFile: "original.ps1",
		ToFile:   "improved.ps1",
		Context:  g.contextLines,
	})
	if err != nil {
		return Result{}, fmt.Errorf("diff: render unified diff: %w", err)
	}

	matcher := difflib.NewMatcher(originalLines, improvedLines)
	opcodes := matcher.GetOpCodes()

	added, removed, modified := calculateStats(opcodes)
	hunks := g.generateHunks(opcodes, originalLines, improvedLines)

	var improvements []CodeImprovement
	if detectImprovements {
		improvements = detectImprovementsIn(original, improved)
	}

	similarity := charSimilarity(original, improved)

	return Result{
		OriginalLines:   len(originalLines),
		ImprovedLines:   len(improvedLines),
		LinesAdded:      added,
		LinesRemoved:    removed,
		LinesModified:   modified,
		Hunks:           hunks,
		Improvements:    improvements,
		UnifiedDiff:     unified,
		HTMLDiff:        g.generateHTMLDiff(opcodes, originalLines, improvedLines),
		SimilarityRatio: similarity,
	}, nil
}

// calculateStats aggregates opcode spans. A replace counts as the longer
// of its two sides.
func calculateStats(opcodes []difflib.OpCode) (added, removed, modified int) {
	for _, op := range opcodes {
		switch op.Tag {
		case 'i':
			added += op.J2 - op.J1
		case 'd':
			removed += op.I2 - op.I1
		case 'r':
			oldSpan := op.I2 - op.I1
			newSpan := op.J2 - op.J1
			if oldSpan > newSpan {
				modified += oldSpan
			} else {
				modified += newSpan
			}
		}
	}
	return added, removed, modified
}

// generateHunks converts non-equal opcodes into hunks with surrounding
// context from the original.
func (g *Generator) generateHunks(opcodes []difflib.OpCode, original, improved []string) []DiffHunk {
	var hunks []DiffHunk

	for _, op := range opcodes {
		if op.Tag == 'e' {
			continue
		}

		var lines []DiffLine
		switch op.Tag {
		case 'r':
			oldSpan := op.I2 - op.I1
			newSpan := op.J2 - op.J1
			span := oldSpan
			if newSpan > span {
				span = newSpan
			}
			for k := 0; k < span; k++ {
				line := DiffLine{ChangeType: ChangeModified}
				if k < oldSpan {
					line.LineNumberOld = intPtr(op.I1 + k + 1)
					line.ContentOld = strPtr(strings.TrimRight(original[op.I1+k], " \t\r\n"))
				}
				if k < newSpan {
					line.LineNumberNew = intPtr(op.J1 + k + 1)
					line.ContentNew = strPtr(strings.TrimRight(improved[op.J1+k], " \t\r\n"))
				}
				lines = append(lines, line)
			}
		case 'd':
			for k := op.I1; k < op.I2; k++ {
				lines = append(lines, DiffLine{
					LineNumberOld: intPtr(k + 1),
					ContentOld:    strPtr(strings.TrimRight(original[k], " \t\r\n")),
					ChangeType:    ChangeRemoved,
				})
			}
		case 'i':
			for k := op.J1; k < op.J2; k++ {
				lines = append(lines, DiffLine{
					LineNumberNew: intPtr(k + 1),
					ContentNew:    strPtr(strings.TrimRight(improved[k], " \t\r\n")),
					ChangeType:    ChangeAdded,
				})
			}
		}

		var contextBefore, contextAfter []string
		startCtx := op.I1 - g.contextLines
		if startCtx < 0 {
			startCtx = 0
		}
		for k := startCtx; k < op.I1; k++ {
			contextBefore = append(contextBefore, strings.TrimRight(original[k], " \t\r\n"))
		}
		endCtx := op.I2 + g.contextLines
		if endCtx > len(original) {
			endCtx = len(original)
		}
		for k := op.I2; k < endCtx; k++ {
			contextAfter = append(contextAfter, strings.TrimRight(original[k], " \t\r\n"))
		}

		hunks = append(hunks, DiffHunk{
			StartLineOld:  op.I1 + 1,
			StartLineNew:  op.J1 + 1,
			Lines:         lines,
			ContextBefore: contextBefore,
			ContextAfter:  contextAfter,
		})
	}

	return hunks
}

// detectImprovementsIn reports patterns that appear in the improved code
// but not the original, one entry per occurrence with a small excerpt.
func detectImprovementsIn(original, improved string) []CodeImprovement {
	var improvements []CodeImprovement
	improvedLines := strings.Split(improved, "\n")

	for _, group := range improvementGroups {
		for _, p := range group.patterns {
			if p.re.MatchString(original) {
				continue
			}
			for _, loc := range p.re.FindAllStringIndex(improved, -1) {
				lineStart := strings.Count(improved[:loc[0]], "\n") + 1
				lineEnd := strings.Count(improved[:loc[1]], "\n") + 1

				startIdx := lineStart - 2
				if startIdx < 0 {
					startIdx = 0
				}
				endIdx := lineEnd + 1
				if endIdx > len(improvedLines) {
					endIdx = len(improvedLines)
				}
				excerpt := strings.Join(improvedLines[startIdx:endIdx], "\n")

				improvements = append(improvements, CodeImprovement{
					Category:     group.category,
					Description:  p.description,
					LineStart:    lineStart,
					LineEnd:      lineEnd,
					OriginalCode: "",
					ImprovedCode: excerpt,
				})
			}
		}
	}

	return improvements
}

// ChangeSummary renders a human-readable report of a comparison.
func ChangeSummary(result Result) string {
	parts := []string{
		"Code Comparison Summary",
		strings.Repeat("=", 40),
		fmt.Sprintf("Original: %d lines", result.OriginalLines),
		fmt.Sprintf("Improved: %d lines", result.ImprovedLines),
		"",
		"Changes:",
		fmt.Sprintf("  + %d lines added", result.LinesAdded),
		fmt.Sprintf("  - %d lines removed", result.LinesRemoved),
		fmt.Sprintf("  ~ %d lines modified", result.LinesModified),
		"",
		fmt.Sprintf("Similarity: %.1f%%", result.SimilarityRatio*100),
	}

	if len(result.Improvements) > 0 {
		parts = append(parts, "", "Detected Improvements:")
		for _, imp := range result.Improvements {
			parts = append(parts, fmt.Sprintf("  [%s] %s", imp.Category, imp.Description))
		}
	}

	return strings.Join(parts, "\n")
}

// charSimilarity is the sequence-match ratio over individual characters,
// 1.0 for identical inputs.
func charSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	matcher := difflib.NewMatcher(explode(a), explode(b))
	return matcher.Ratio()
}

func explode(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// splitKeepEnds splits into lines that keep their trailing newline; an
// empty input yields no lines.
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}
