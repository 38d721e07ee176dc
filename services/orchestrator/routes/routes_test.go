// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psscriptai/scriptguard/services/diff"
	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/llm"
	"github.com/psscriptai/scriptguard/services/orchestrator/observability"
	"github.com/psscriptai/scriptguard/services/router"
	"github.com/psscriptai/scriptguard/services/sandbox"
	"github.com/psscriptai/scriptguard/services/usage"
)

// echoLLM returns its prompt as the completion.
type echoLLM struct{}

func (echoLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	content := "Get-Process"
	if len(req.Messages) > 0 {
		content = req.Messages[len(req.Messages)-1].Content
	}
	return &llm.Completion{Content: content, Model: req.Model, InputTokens: 10, OutputTokens: 5}, nil
}

// okRunner satisfies sandbox.ProcessRunner without spawning anything.
type okRunner struct{}

func (okRunner) Run(_ context.Context, _ string, _ []string, _ string, _ []string) ([]byte, []byte, int, error) {
	return []byte("ok\n"), nil, 0, nil
}

func newTestServer(t *testing.T, executeRPS float64, executeBurst int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	guard, err := guardrails.NewSecurityGuard()
	require.NoError(t, err)
	counter, err := usage.NewTokenCounter(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)

	engine := gin.New()
	SetupRoutes(engine, Deps{
		Guard:        guard,
		Router:       router.New(),
		Sandbox:      sandbox.New(sandbox.WithRunner(okRunner{}), sandbox.WithPwshPath("pwsh")),
		Differ:       diff.New(),
		LLM:          echoLLM{},
		Counter:      counter,
		Metrics:      observability.NewMetrics(prometheus.NewRegistry()),
		ExecuteRPS:   executeRPS,
		ExecuteBurst: executeBurst,
	})
	return engine
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestServer(t, 10, 10)
	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scriptguard")
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestServer(t, 10, 10)
	w := do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	r := newTestServer(t, 10, 10)
	w := do(r, http.MethodGet, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAllEndpointsWired(t *testing.T) {
	r := newTestServer(t, 10, 10)

	tests := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{http.MethodPost, "/v1/chat", gin.H{"message": "Write a PowerShell script to list services"}, http.StatusOK},
		{http.MethodPost, "/v1/scripts/scan", gin.H{"code": "Get-Process"}, http.StatusOK},
		{http.MethodPost, "/v1/scripts/validate", gin.H{"script": "Get-Process"}, http.StatusOK},
		{http.MethodPost, "/v1/scripts/execute", gin.H{"script": "Get-Process"}, http.StatusOK},
		{http.MethodPost, "/v1/scripts/diff", gin.H{"original": "a\n", "improved": "b\n"}, http.StatusOK},
		{http.MethodPost, "/v1/scripts/tests", gin.H{"script": "function Get-Thing { }"}, http.StatusOK},
		{http.MethodGet, "/v1/usage", nil, http.StatusOK},
		{http.MethodGet, "/v1/usage/sessions", nil, http.StatusOK},
		{http.MethodGet, "/v1/routing/preview?q=write+a+powershell+script", nil, http.StatusOK},
		{http.MethodGet, "/v1/guard/stats", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestExecuteRateLimited(t *testing.T) {
	// One-shot bucket with near-zero refill.
	r := newTestServer(t, 0.0001, 1)

	first := do(r, http.MethodPost, "/v1/scripts/execute", gin.H{"script": "Get-Process"})
	assert.Equal(t, http.StatusOK, first.Code)

	second := do(r, http.MethodPost, "/v1/scripts/execute", gin.H{"script": "Get-Process"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestChatThroughRoutes(t *testing.T) {
	r := newTestServer(t, 10, 10)

	w := do(r, http.MethodPost, "/v1/chat", gin.H{
		"message": "Create a PowerShell function to restart a service safely",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["valid"])
	assert.NotEmpty(t, resp["model"])
}
