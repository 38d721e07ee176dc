// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pester generates Pester 5.x unit tests for PowerShell scripts:
// function discovery, parameter coverage, output checks, and mock
// scaffolding.
package pester

import (
	"fmt"
	"regexp"
	"strings"
)

// Parameter describes one function parameter.
type Parameter struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Mandatory bool   `json:"mandatory"`
	Default   string `json:"default,omitempty"`
}

// FunctionInfo describes one function found in a script.
type FunctionInfo struct {
	Name               string      `json:"name"`
	Parameters         []Parameter `json:"parameters"`
	HasCmdletBinding   bool        `json:"has_cmdlet_binding"`
	HasShouldProcess   bool        `json:"has_should_process"`
	HasBeginProcessEnd bool        `json:"has_begin_process_end"`
	Outputs            []string    `json:"outputs"`
	LineNumber         int         `json:"line_number"`
}

var (
	functionPattern      = regexp.MustCompile(`(?:^|\n)\s*function\s+([\w-]+)\s*(?:\{|\()`)
	paramBlockPattern    = regexp.MustCompile(`(?is)param\s*\((.*?)\)`)
	paramPattern         = regexp.MustCompile(`(?:\[Parameter[^]]*\])?\s*(?:\[([\w\[\]]+)\])?\s*\$(\w+)\s*(?:=\s*([^,\)]+))?`)
	cmdletBindingPattern = regexp.MustCompile(`(?i)\[CmdletBinding`)
	shouldProcessPattern = regexp.MustCompile(`(?i)SupportsShouldProcess|PSCmdlet\.ShouldProcess`)
	beginProcessPattern  = regexp.MustCompile(`(?i)\b(begin|process|end)\s*\{`)
	outputTypePattern    = regexp.MustCompile(`\[OutputType\(([^)]+)\)\]`)
	returnObjectPattern  = regexp.MustCompile(`\breturn\s+\[PSCustomObject\]`)
	returnBoolPattern    = regexp.MustCompile(`\breturn\s+\$true|\$false`)
	writeOutputPattern   = regexp.MustCompile(`Write-Output|return\s+\$\w+`)
)

// ParseFunctions extracts function declarations from a PowerShell script.
//
// The body is found by matching braces, tracking quoted strings so braces
// inside string literals are ignored (backtick-escaped quotes do not
// toggle string state). An unbalanced body falls back to the next 500
// characters.
func ParseFunctions(scriptContent string) []FunctionInfo {
	var functions []FunctionInfo

	for _, loc := range functionPattern.FindAllStringSubmatchIndex(scriptContent, -1) {
		funcName := scriptContent[loc[2]:loc[3]]
		lineNumber := strings.Count(scriptContent[:loc[0]], "\n") + 1

		body := extractFunctionBody(scriptContent, loc[1])

		functions = append(functions, FunctionInfo{
			Name:               funcName,
			Parameters:         parseParameters(body),
			HasCmdletBinding:   cmdletBindingPattern.MatchString(body),
			HasShouldProcess:   shouldProcessPattern.MatchString(body),
			HasBeginProcessEnd: beginProcessPattern.MatchString(body),
			Outputs:            detectOutputs(body),
			LineNumber:         lineNumber,
		})
	}

	return functions
}

// extractFunctionBody returns the brace-delimited body starting at or
// after startPos.
func extractFunctionBody(content string, startPos int) string {
	braceCount := 0
	inString := false
	var stringChar byte
	bodyStart := -1

	for i := startPos; i < len(content); i++ {
		ch := content[i]
		if (ch == '"' || ch == '\'') && (i == 0 || content[i-1] != '`') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		if inString {
			continue
		}
		switch ch {
		case '{':
			if braceCount == 0 {
				bodyStart = i
			}
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 && bodyStart >= 0 {
				return content[bodyStart : i+1]
			}
		}
	}

	end := startPos + 500
	if end > len(content) {
		end = len(content)
	}
	return content[startPos:end]
}

// parseParameters reads the param() block. No param block means no
// parameters.
func parseParameters(funcBody string) []Parameter {
	blockMatch := paramBlockPattern.FindStringSubmatch(funcBody)
	if blockMatch == nil {
		return nil
	}
	paramBlock := blockMatch[1]

	var parameters []Parameter
	for _, m := range paramPattern.FindAllStringSubmatch(paramBlock, -1) {
		paramType := m[1]
		if paramType == "" {
			paramType = "object"
		}
		name := m[2]

		mandatoryPattern := regexp.MustCompile(
			fmt.Sprintf(`(?i)\[Parameter\([^]]*Mandatory[^]]*\)\][^$]*\$%s`, regexp.QuoteMeta(name)),
		)

		parameters = append(parameters, Parameter{
			Name:      name,
			Type:      paramType,
			Mandatory: mandatoryPattern.MatchString(paramBlock),
			Default:   strings.TrimSpace(m[3]),
		})
	}

	return parameters
}

// detectOutputs guesses output types from attributes and return patterns.
func detectOutputs(funcBody string) []string {
	var outputs []string

	if m := outputTypePattern.FindStringSubmatch(funcBody); m != nil {
		outputs = append(outputs, strings.Trim(m[1], `'"[]`))
	}
	if returnObjectPattern.MatchString(funcBody) {
		outputs = append(outputs, "PSCustomObject")
	}
	if returnBoolPattern.MatchString(funcBody) {
		outputs = append(outputs, "bool")
	}
	if writeOutputPattern.MatchString(funcBody) && !contains(outputs, "object") {
		outputs = append(outputs, "object")
	}

	if len(outputs) == 0 {
		return []string{"void"}
	}
	return outputs
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
