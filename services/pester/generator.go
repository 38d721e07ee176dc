// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pester

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// TestType tags a generated test.
type TestType string

const (
	TypeUnit        TestType = "Unit"
	TypeIntegration TestType = "Integration"
	TypeAcceptance  TestType = "Acceptance"
)

var testTypes = []TestType{TypeUnit, TypeIntegration, TypeAcceptance}

// Test is one generated Pester It block.
type Test struct {
	FunctionName string   `json:"function_name"`
	TestName     string   `json:"test_name"`
	TestCode     string   `json:"test_code"`
	TestType     TestType `json:"test_type"`
	Mocks        []string `json:"mocks,omitempty"`
}

// Coverage selects how many tests are generated per function.
type Coverage string

const (
	CoverageMinimal       Coverage = "minimal"
	CoverageStandard      Coverage = "standard"
	CoverageComprehensive Coverage = "comprehensive"
)

const testFileTemplate = `<#
    .SYNOPSIS
    Pester tests for %s

    .DESCRIPTION
    Auto-generated Pester 5.x tests covering:
    - Function parameter validation
    - Expected outputs
    - Error handling
    - Mock scenarios

    Generated: %s
    Generator: PSScript AI (January 2026)
#>

BeforeAll {
    # Import the script being tested
    . $PSScriptRoot/%s
}

%s
`

const describeTemplate = `
Describe "%s" -Tag "%s" {
%s
}
`

const contextTemplate = `    Context "When %s" {
%s
%s
    }
`

const itTemplate = `        It "%s" {
%s
        }
`

// testValues maps parameter types to literal test inputs.
var testValues = map[string]string{
	"string":       `"TestValue"`,
	"int":          "42",
	"bool":         "$true",
	"switch":       "",
	"datetime":     "(Get-Date)",
	"array":        `@("item1", "item2")`,
	"hashtable":    `@{ Key = "Value" }`,
	"pscredential": `(New-Object PSCredential "user", (ConvertTo-SecureString "pass" -AsPlainText -Force))`,
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces Pester 5.x tests.
//
// Thread Safety: Safe for concurrent use.
type Generator struct {
	includeMocks bool
	coverage     Coverage
	now          func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithMocks toggles Mock statement generation.
func WithMocks(include bool) Option {
	return func(g *Generator) { g.includeMocks = include }
}

// WithCoverage selects the coverage level.
func WithCoverage(c Coverage) Option {
	return func(g *Generator) { g.coverage = c }
}

// WithClock overrides the timestamp source for reproducible output.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator with mocks enabled and standard coverage.
func New(opts ...Option) *Generator {
	g := &Generator{
		includeMocks: true,
		coverage:     CoverageStandard,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateTests produces tests for the parsed functions: parameter tests,
// output tests, error handling tests (standard coverage and up), and
// WhatIf tests for functions that support ShouldProcess.
func (g *Generator) GenerateTests(functions []FunctionInfo) []Test {
	var tests []Test

	for _, fn := range functions {
		tests = append(tests, g.parameterTests(fn)...)
		tests = append(tests, g.outputTests(fn)...)
		if g.coverage == CoverageStandard || g.coverage == CoverageComprehensive {
			tests = append(tests, g.errorTests(fn)...)
		}
		if fn.HasShouldProcess {
			tests = append(tests, g.shouldProcessTests(fn)...)
		}
	}

	return tests
}

func (g *Generator) parameterTests(fn FunctionInfo) []Test {
	var tests []Test

	for _, param := range fn.Parameters {
		if param.Mandatory {
			tests = append(tests, Test{
				FunctionName: fn.Name,
				TestName:     fmt.Sprintf("requires mandatory parameter %s", param.Name),
				TestCode: formatTestCode(fmt.Sprintf(
					`{ %s } | Should -Throw -Because "%s is mandatory"`,
					fn.Name, param.Name,
				)),
				TestType: TypeUnit,
			})
		}

		if param.Type != "object" && param.Type != "string" {
			tests = append(tests, Test{
				FunctionName: fn.Name,
				TestName:     fmt.Sprintf("validates %s is of type %s", param.Name, param.Type),
				TestCode: formatTestCode(fmt.Sprintf(
					"$result = %s -%s %s\n# Verify parameter accepted correct type\n$? | Should -BeTrue",
					fn.Name, param.Name, testValue(param.Type),
				)),
				TestType: TypeUnit,
			})
		}
	}

	return tests
}

func (g *Generator) outputTests(fn FunctionInfo) []Test {
	var tests []Test

	for _, outputType := range fn.Outputs {
		tests = append(tests, Test{
			FunctionName: fn.Name,
			TestName:     fmt.Sprintf("returns %s type", outputType),
			TestCode: formatTestCode(fmt.Sprintf(
				"$result = %s %s\n$result | Should -Not -BeNullOrEmpty",
				fn.Name, minimalParams(fn.Parameters),
			)),
			TestType: TypeUnit,
		})
	}

	return tests
}

func (g *Generator) errorTests(fn FunctionInfo) []Test {
	test := Test{
		FunctionName: fn.Name,
		TestName:     "handles errors gracefully",
		TestCode: formatTestCode(fmt.Sprintf(
			"# Test with invalid input\n{ %s -ErrorAction Stop } | Should -Not -Throw",
			fn.Name,
		)),
		TestType: TypeUnit,
	}
	if g.includeMocks {
		test.Mocks = []string{"Mock Write-Error {}"}
	}
	return []Test{test}
}

func (g *Generator) shouldProcessTests(fn FunctionInfo) []Test {
	return []Test{{
		FunctionName: fn.Name,
		TestName:     "supports -WhatIf",
		TestCode: formatTestCode(fmt.Sprintf(
			"# WhatIf should not make changes\n$result = %s %s -WhatIf\n# Verify no actual changes were made",
			fn.Name, minimalParams(fn.Parameters),
		)),
		TestType: TypeUnit,
	}}
}

// formatTestCode indents every non-empty line to the It block depth.
func formatTestCode(code string) string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(code), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, "            "+trimmed)
	}
	return strings.Join(out, "\n")
}

func testValue(paramType string) string {
	if val, ok := testValues[strings.ToLower(paramType)]; ok {
		return val
	}
	return `"TestValue"`
}

// minimalParams builds the smallest argument list that satisfies the
// mandatory parameters.
func minimalParams(parameters []Parameter) string {
	var parts []string
	for _, param := range parameters {
		if param.Mandatory {
			parts = append(parts, fmt.Sprintf("-%s %s", param.Name, testValue(param.Type)))
		}
	}
	return strings.Join(parts, " ")
}

// CreateTestFile assembles a complete test file: one Describe block per
// function in first-seen order, with tests grouped into Context blocks by
// test type and shared mocks hoisted into BeforeEach.
func (g *Generator) CreateTestFile(tests []Test, scriptName string) string {
	var order []string
	byFunction := make(map[string][]Test)
	for _, test := range tests {
		if _, seen := byFunction[test.FunctionName]; !seen {
			order = append(order, test.FunctionName)
		}
		byFunction[test.FunctionName] = append(byFunction[test.FunctionName], test)
	}

	var describeBlocks []string
	for _, funcName := range order {
		funcTests := byFunction[funcName]
		var contexts []string

		for _, testType := range testTypes {
			var typeTests []Test
			for _, test := range funcTests {
				if test.TestType == testType {
					typeTests = append(typeTests, test)
				}
			}
			if len(typeTests) == 0 {
				continue
			}

			var itBlocks []string
			for _, test := range typeTests {
				itBlocks = append(itBlocks, fmt.Sprintf(itTemplate, test.TestName, test.TestCode))
			}

			beforeEach := ""
			var mocks []string
			seen := make(map[string]bool)
			for _, test := range typeTests {
				for _, mock := range test.Mocks {
					if !seen[mock] {
						seen[mock] = true
						mocks = append(mocks, mock)
					}
				}
			}
			if len(mocks) > 0 {
				beforeEach = fmt.Sprintf(
					"        BeforeEach {\n            %s\n        }\n",
					strings.Join(mocks, "\n            "),
				)
			}

			contexts = append(contexts, fmt.Sprintf(contextTemplate,
				fmt.Sprintf("performing %s tests", testType),
				beforeEach,
				strings.Join(itBlocks, "\n"),
			))
		}

		describeBlocks = append(describeBlocks, fmt.Sprintf(describeTemplate,
			funcName, "Unit", strings.Join(contexts, "\n"),
		))
	}

	return fmt.Sprintf(testFileTemplate,
		scriptName,
		g.now().Format("2006-01-02 15:04"),
		scriptName,
		strings.Join(describeBlocks, "\n"),
	)
}

// WriteTestFile renders the test file and writes it to path.
func (g *Generator) WriteTestFile(tests []Test, scriptName, path string) (string, error) {
	content := g.CreateTestFile(tests, scriptName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("pester: write test file: %w", err)
	}
	return content, nil
}

// GenerateTestFile parses a script and renders its full Pester test file.
// Scripts with no functions get a placeholder comment instead.
func GenerateTestFile(scriptContent, scriptName string) string {
	g := New()
	functions := ParseFunctions(scriptContent)
	if len(functions) == 0 {
		return fmt.Sprintf("# No functions found in %s\n# Add functions to generate Pester tests\n", scriptName)
	}
	return g.CreateTestFile(g.GenerateTests(functions), scriptName)
}
