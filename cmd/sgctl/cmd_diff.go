// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/psscriptai/scriptguard/services/diff"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	diffContextLines   int  // Context lines around each hunk
	diffHTML           bool // Emit the HTML rendering instead of unified text
	diffNoImprovements bool // Skip improvement detection
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// diffCmd compares two script versions.
//
// # Examples
//
//	sgctl diff old.ps1 new.ps1             # Unified diff + improvements
//	sgctl diff old.ps1 new.ps1 --html      # HTML side-by-side rendering
//	sgctl diff old.ps1 new.ps1 --json      # Full structured result
var diffCmd = &cobra.Command{
	Use:   "diff <original> <improved>",
	Short: "Diff two PowerShell script versions and detect improvements",
	Long: `Generates a unified diff between two script versions, reports
line statistics and similarity, and detects improvement categories such
as added error handling or parameter validation.`,
	Args: cobra.ExactArgs(2),
	Run:  runDiffCommand,
}

func init() {
	diffCmd.Flags().IntVarP(&diffContextLines, "context", "c", 3,
		"Context lines around each diff hunk")
	diffCmd.Flags().BoolVar(&diffHTML, "html", false,
		"Print the HTML diff rendering")
	diffCmd.Flags().BoolVar(&diffNoImprovements, "no-improvements", false,
		"Skip improvement detection")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runDiffCommand(cmd *cobra.Command, args []string) {
	original, err := os.ReadFile(args[0])
	if err != nil {
		fatalf("Error: failed to read %s: %v", args[0], err)
	}
	improved, err := os.ReadFile(args[1])
	if err != nil {
		fatalf("Error: failed to read %s: %v", args[1], err)
	}

	gen := diff.New(diff.WithContextLines(diffContextLines))
	result, err := gen.Generate(string(original), string(improved), !diffNoImprovements)
	if err != nil {
		fatalf("Error: %v", err)
	}

	switch {
	case jsonOutput:
		printJSON(result)
	case diffHTML:
		fmt.Println(result.HTMLDiff)
	default:
		fmt.Print(result.UnifiedDiff)
		fmt.Println()
		fmt.Println(diff.ChangeSummary(result))
		for _, imp := range result.Improvements {
			fmt.Printf("  improvement [%s]: %s\n", imp.Category, imp.Description)
		}
	}
}
