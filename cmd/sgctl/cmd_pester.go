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
	"path/filepath"

	"github.com/psscriptai/scriptguard/services/pester"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	pesterOutputPath string // Write the test file here instead of stdout
	pesterCoverage   string // minimal, standard, or comprehensive
	pesterNoMocks    bool   // Omit mock scaffolding
	pesterScriptName string // Override the script name in the generated file
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// pesterCmd generates a Pester test skeleton for a script.
//
// # Examples
//
//	sgctl pester Get-DiskReport.ps1                       # Print to stdout
//	sgctl pester Get-DiskReport.ps1 -o tests/             # Write .Tests.ps1
//	sgctl pester Get-DiskReport.ps1 --coverage minimal
var pesterCmd = &cobra.Command{
	Use:   "pester [file]",
	Short: "Generate Pester v5 test skeletons for a script's functions",
	Long: `Parses the functions in a PowerShell script and generates a Pester
v5 test file covering parameter validation, output checks, and error
handling per function.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPesterCommand,
}

func init() {
	pesterCmd.Flags().StringVarP(&pesterOutputPath, "output", "o", "",
		"Directory or file path to write the generated test file")
	pesterCmd.Flags().StringVar(&pesterCoverage, "coverage", string(pester.CoverageStandard),
		"Coverage level: minimal, standard, or comprehensive")
	pesterCmd.Flags().BoolVar(&pesterNoMocks, "no-mocks", false,
		"Omit mock scaffolding from the generated tests")
	pesterCmd.Flags().StringVar(&pesterScriptName, "name", "",
		"Script name to reference in the test file (defaults to the file name)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runPesterCommand(cmd *cobra.Command, args []string) {
	script, err := readScriptArg(args, 0)
	if err != nil {
		fatalf("Error: %v", err)
	}

	scriptName := pesterScriptName
	if scriptName == "" {
		if len(args) > 0 && args[0] != "-" {
			scriptName = filepath.Base(args[0])
		} else {
			scriptName = "Script.ps1"
		}
	}

	gen := pester.New(
		pester.WithCoverage(pester.Coverage(pesterCoverage)),
		pester.WithMocks(!pesterNoMocks),
	)
	functions := pester.ParseFunctions(script)
	tests := gen.GenerateTests(functions)

	if pesterOutputPath != "" {
		path := pesterOutputPath
		if filepath.Ext(path) == "" {
			base := scriptName[:len(scriptName)-len(filepath.Ext(scriptName))]
			path = filepath.Join(path, base+".Tests.ps1")
		}
		written, err := gen.WriteTestFile(tests, scriptName, path)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("Wrote %d tests for %d functions to %s\n",
			len(tests), len(functions), written)
		return
	}

	fmt.Print(gen.CreateTestFile(tests, scriptName))
}
