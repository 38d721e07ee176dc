// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psscriptai/scriptguard/services/diff"
	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/orchestrator/datatypes"
	"github.com/psscriptai/scriptguard/services/sandbox"
)

// stubRunner satisfies sandbox.ProcessRunner with fixed output.
type stubRunner struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

func (r stubRunner) Run(_ context.Context, _ string, _ []string, _ string, _ []string) ([]byte, []byte, int, error) {
	return []byte(r.stdout), []byte(r.stderr), r.exitCode, r.err
}

func TestScriptScan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard, err := guardrails.NewSecurityGuard()
	require.NoError(t, err)

	r := gin.New()
	r.POST("/v1/scripts/scan", HandleScriptScan(guard, nil))

	w := postJSON(t, r, "/v1/scripts/scan", datatypes.ScanRequest{
		Code: `Remove-Item -Recurse -Force C:\Windows\System32`,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result guardrails.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.IsSafe)
	assert.Equal(t, guardrails.SeverityCritical, result.OverallLevel)
	assert.NotEmpty(t, result.BlockedOperations)
}

func TestScriptScanSafeCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard, err := guardrails.NewSecurityGuard()
	require.NoError(t, err)

	r := gin.New()
	r.POST("/v1/scripts/scan", HandleScriptScan(guard, nil))

	w := postJSON(t, r, "/v1/scripts/scan", datatypes.ScanRequest{
		Code: "Get-Process | Select-Object Name, CPU",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result guardrails.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.IsSafe)
	assert.Equal(t, guardrails.SeveritySafe, result.OverallLevel)
}

func TestScriptValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sb := sandbox.New(sandbox.WithRunner(stubRunner{}), sandbox.WithPwshPath("pwsh"))

	r := gin.New()
	r.POST("/v1/scripts/validate", HandleScriptValidate(sb, nil))

	w := postJSON(t, r, "/v1/scripts/validate", datatypes.ValidateScriptRequest{
		Script: "Remove-Item -Path ./data",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result sandbox.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.BlockedCommands, "Remove-Item")
}

func TestScriptExecuteSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sb := sandbox.New(
		sandbox.WithRunner(stubRunner{stdout: "hello from pwsh\n"}),
		sandbox.WithPwshPath("pwsh"),
	)

	r := gin.New()
	r.POST("/v1/scripts/execute", HandleScriptExecute(sb, nil))

	w := postJSON(t, r, "/v1/scripts/execute", datatypes.ExecuteRequest{
		Script:     "Write-Output 'hello from pwsh'",
		Parameters: map[string]string{"Name": "demo"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result sandbox.ExecutionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, sandbox.StatusSuccess, result.Status)
	assert.Equal(t, "hello from pwsh\n", result.Stdout)
	assert.Zero(t, result.ExitCode)
}

func TestScriptExecuteBlocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sb := sandbox.New(sandbox.WithRunner(stubRunner{}), sandbox.WithPwshPath("pwsh"))

	r := gin.New()
	r.POST("/v1/scripts/execute", HandleScriptExecute(sb, nil))

	w := postJSON(t, r, "/v1/scripts/execute", datatypes.ExecuteRequest{
		Script: "Remove-Item -Path ./data -Recurse",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result sandbox.ExecutionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, sandbox.StatusBlocked, result.Status)
	assert.Contains(t, result.BlockedCommands, "Remove-Item")
}

func TestScriptExecutePwshMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// Every probe fails, so pwsh discovery gives up.
	sb := sandbox.New(sandbox.WithRunner(stubRunner{exitCode: 127, err: exec.ErrNotFound}))

	r := gin.New()
	r.POST("/v1/scripts/execute", HandleScriptExecute(sb, nil))

	w := postJSON(t, r, "/v1/scripts/execute", datatypes.ExecuteRequest{
		Script: "Write-Output 'hi'",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScriptDiff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/scripts/diff", HandleScriptDiff(diff.New(), nil))

	// The shared line is unchanged, so the wrapping lines are pure
	// insertions rather than a replace that counts as modified.
	w := postJSON(t, r, "/v1/scripts/diff", datatypes.DiffRequest{
		Original: "Get-Service\n",
		Improved: "try {\nGet-Service\n} catch {\nWrite-Error $_\n}\n",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result diff.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Positive(t, result.LinesAdded)
	assert.Zero(t, result.LinesRemoved)
	assert.NotEmpty(t, result.UnifiedDiff)
	assert.NotEmpty(t, result.Improvements)
	assert.Empty(t, result.HTMLDiff)
}

func TestScriptDiffIncludeHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/scripts/diff", HandleScriptDiff(diff.New(), nil))

	w := postJSON(t, r, "/v1/scripts/diff", datatypes.DiffRequest{
		Original:    "a\n",
		Improved:    "b\n",
		IncludeHTML: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result diff.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Contains(t, result.HTMLDiff, "diff-table")
}

func TestScriptTests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/scripts/tests", HandleScriptTests(nil))

	script := "function Get-DiskReport {\n    param([string]$Path)\n    Get-PSDrive\n}\n"
	w := postJSON(t, r, "/v1/scripts/tests", datatypes.TestsRequest{
		Script:     script,
		ScriptName: "DiskReport.ps1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.TestsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DiskReport.ps1", resp.ScriptName)
	assert.Equal(t, 1, resp.FunctionCount)
	assert.Contains(t, resp.TestFile, `Describe "Get-DiskReport"`)
}

func TestScriptTestsNoFunctions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/scripts/tests", HandleScriptTests(nil))

	w := postJSON(t, r, "/v1/scripts/tests", datatypes.TestsRequest{
		Script: "Write-Output 'no functions here'",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.TestsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.FunctionCount)
	assert.Contains(t, resp.TestFile, "# No functions found in Script.ps1")
}
