// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/psscriptai/scriptguard/services/diff"
	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/orchestrator/datatypes"
	"github.com/psscriptai/scriptguard/services/orchestrator/observability"
	"github.com/psscriptai/scriptguard/services/pester"
	"github.com/psscriptai/scriptguard/services/sandbox"
)

// HandleScriptScan runs the security guard over a submitted script.
func HandleScriptScan(guard *guardrails.SecurityGuard, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleScriptScan")
		defer span.End()

		var req datatypes.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}

		result := guard.Scan(req.Code, req.Context)
		span.SetAttributes(
			attribute.String("scan.level", string(result.OverallLevel)),
			attribute.Int("scan.findings", len(result.Findings)),
		)
		metrics.RecordScan(string(result.OverallLevel))
		if !result.IsSafe {
			metrics.RecordBlocked("scan")
		}
		metrics.RecordRequest("scan", "success")
		c.JSON(http.StatusOK, result)
	}
}

// HandleScriptValidate runs sandbox validation without executing.
func HandleScriptValidate(sb *sandbox.Sandbox, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleScriptValidate")
		defer span.End()

		var req datatypes.ValidateScriptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}

		result := sb.ValidateScript(req.Script)
		if !result.IsValid {
			metrics.RecordBlocked("sandbox")
		}
		metrics.RecordRequest("validate", "success")
		c.JSON(http.StatusOK, result)
	}
}

// HandleScriptExecute runs a script in the PowerShell sandbox. A missing
// pwsh installation maps to 503.
func HandleScriptExecute(sb *sandbox.Sandbox, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleScriptExecute")
		defer span.End()

		var req datatypes.ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}

		result, err := sb.Execute(ctx, req.Script, req.Parameters)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, sandbox.ErrPwshNotFound) {
				slog.Error("sandbox unavailable: pwsh not found")
				metrics.RecordRequest("execute", "error")
				c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
					Error: "PowerShell is not available on this host",
				})
				return
			}
			slog.Error("sandbox execution failed", "error", err)
			metrics.RecordRequest("execute", "error")
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "execution failed"})
			return
		}

		span.SetAttributes(
			attribute.String("sandbox.status", string(result.Status)),
			attribute.Int("sandbox.exit_code", result.ExitCode),
		)
		metrics.RecordSandboxExecution(string(result.Status), result.ExecutionTime)
		if result.Status == sandbox.StatusBlocked {
			metrics.RecordBlocked("sandbox")
		}
		metrics.RecordRequest("execute", "success")
		c.JSON(http.StatusOK, result)
	}
}

// HandleScriptDiff compares two script versions.
func HandleScriptDiff(gen *diff.Generator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleScriptDiff")
		defer span.End()

		var req datatypes.DiffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}

		detect := true
		if req.DetectImprovements != nil {
			detect = *req.DetectImprovements
		}
		result, err := gen.Generate(req.Original, req.Improved, detect)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("diff generation failed", "error", err)
			metrics.RecordRequest("diff", "error")
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "diff generation failed"})
			return
		}
		if !req.IncludeHTML {
			result.HTMLDiff = ""
		}
		metrics.RecordRequest("diff", "success")
		c.JSON(http.StatusOK, result)
	}
}

// HandleScriptTests generates a Pester test file for a script.
func HandleScriptTests(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleScriptTests")
		defer span.End()

		var req datatypes.TestsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}

		scriptName := req.ScriptName
		if scriptName == "" {
			scriptName = "Script.ps1"
		}
		functions := pester.ParseFunctions(req.Script)
		testFile := pester.GenerateTestFile(req.Script, scriptName)

		metrics.RecordRequest("tests", "success")
		c.JSON(http.StatusOK, datatypes.TestsResponse{
			ScriptName:    scriptName,
			TestFile:      testFile,
			FunctionCount: len(functions),
		})
	}
}
