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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:   "sgctl",
		Short: "A cli for analyzing PowerShell scripts without the server",
		Long: `sgctl runs the scriptguard analysis pipeline against local files
or stdin: security scanning, sandbox validation, diffing, Pester test
generation, and model-routing previews.

Every command accepts a file path argument or reads the script from
stdin when the argument is omitted or given as "-".`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(pesterCmd)
	rootCmd.AddCommand(routeCmd)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// readScriptArg returns the contents of the file named by args[idx], or
// stdin when the argument is missing or "-".
func readScriptArg(args []string, idx int) (string, error) {
	if len(args) <= idx || args[idx] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[idx])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[idx], err)
	}
	return string(data), nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// quietLogger keeps service-level log lines out of the command output.
// Warnings and errors still reach stderr.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelWarn}))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
