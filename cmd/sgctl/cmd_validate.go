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

	"github.com/psscriptai/scriptguard/services/sandbox"
	"github.com/spf13/cobra"
)

// validateCmd checks a script against the sandbox whitelist without
// executing it.
//
// # Examples
//
//	sgctl validate report.ps1
//	cat report.ps1 | sgctl validate --json
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a script against the sandbox command whitelist",
	Long: `Checks whether a PowerShell script would be allowed to run in the
execution sandbox: blocked commands, short aliases of blocked commands,
and suspicious constructs. The script is never executed.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runValidateCommand,
}

func runValidateCommand(cmd *cobra.Command, args []string) {
	script, err := readScriptArg(args, 0)
	if err != nil {
		fatalf("Error: %v", err)
	}

	sb := sandbox.New(sandbox.WithSandboxLogger(quietLogger()))
	result := sb.ValidateScript(script)

	if jsonOutput {
		printJSON(result)
	} else {
		if result.IsValid {
			fmt.Println("Valid: script passes sandbox validation")
		} else {
			fmt.Println("INVALID: script would be blocked by the sandbox")
		}
		for _, c := range result.BlockedCommands {
			fmt.Printf("  blocked: %s\n", c)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	if !result.IsValid {
		os.Exit(1)
	}
}
