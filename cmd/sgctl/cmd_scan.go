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

	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	scanStrict bool // Treat HIGH findings as unsafe
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// scanCmd runs the security pattern scan against a script.
//
// # Description
//
// Scans a PowerShell script with the embedded security pattern tables and
// reports findings by severity. Exits with code 1 when the script is not
// safe, so the command can gate CI pipelines.
//
// # Examples
//
//	sgctl scan deploy.ps1            # Human-readable report
//	sgctl scan deploy.ps1 --json     # JSON output
//	cat deploy.ps1 | sgctl scan      # Read from stdin
//	sgctl scan deploy.ps1 --strict   # HIGH findings also fail
var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan a PowerShell script for dangerous patterns",
	Long: `Scans a PowerShell script for dangerous commands, credential
exposure, injection risks, and obfuscation.

Exits non-zero when the script is unsafe:
  sgctl scan deploy.ps1 && ./deploy.sh`,
	Args: cobra.MaximumNArgs(1),
	Run:  runScanCommand,
}

func init() {
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false,
		"Treat HIGH severity findings as unsafe")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runScanCommand(cmd *cobra.Command, args []string) {
	script, err := readScriptArg(args, 0)
	if err != nil {
		fatalf("Error: %v", err)
	}

	guard, err := guardrails.NewSecurityGuard(
		guardrails.WithStrictMode(scanStrict),
		guardrails.WithGuardLogger(quietLogger()),
	)
	if err != nil {
		fatalf("Error initializing security guard: %v", err)
	}

	result := guard.Scan(script, "cli")

	if jsonOutput {
		printJSON(result)
	} else {
		printScanReport(result)
	}
	if !result.IsSafe {
		os.Exit(1)
	}
}

func printScanReport(result guardrails.ScanResult) {
	if result.IsSafe {
		fmt.Printf("Safe (level: %s)\n", result.OverallLevel)
	} else {
		fmt.Printf("UNSAFE (level: %s)\n", result.OverallLevel)
	}
	for _, f := range result.Findings {
		if f.LineNumber > 0 {
			fmt.Printf("  [%s] line %d: %s\n", f.Level, f.LineNumber, f.Message)
		} else {
			fmt.Printf("  [%s] %s\n", f.Level, f.Message)
		}
		if f.Recommendation != "" {
			fmt.Printf("      -> %s\n", f.Recommendation)
		}
	}
	for _, op := range result.BlockedOperations {
		fmt.Printf("  blocked: %s\n", op)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
