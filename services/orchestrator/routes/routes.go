// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the orchestrator's HTTP endpoints.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psscriptai/scriptguard/services/diff"
	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/llm"
	"github.com/psscriptai/scriptguard/services/orchestrator/handlers"
	"github.com/psscriptai/scriptguard/services/orchestrator/middleware"
	"github.com/psscriptai/scriptguard/services/orchestrator/observability"
	"github.com/psscriptai/scriptguard/services/router"
	"github.com/psscriptai/scriptguard/services/sandbox"
	"github.com/psscriptai/scriptguard/services/usage"
)

// Deps are the constructed components the routes close over.
type Deps struct {
	Guard        *guardrails.SecurityGuard
	Router       *router.Router
	Sandbox      *sandbox.Sandbox
	Differ       *diff.Generator
	LLM          llm.Client
	Counter      *usage.TokenCounter
	Metrics      *observability.Metrics
	ExecuteRPS   float64
	ExecuteBurst int
}

// SetupRoutes registers all endpoints on the engine.
func SetupRoutes(engine *gin.Engine, deps Deps) {
	engine.GET("/health", handlers.HealthCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	executeRPS := deps.ExecuteRPS
	if executeRPS <= 0 {
		executeRPS = 1
	}
	executeBurst := deps.ExecuteBurst
	if executeBurst <= 0 {
		executeBurst = 3
	}

	v1 := engine.Group("/v1")
	{
		v1.POST("/chat", handlers.HandleChat(deps.Guard, deps.Router, deps.LLM, deps.Counter, deps.Metrics))

		scripts := v1.Group("/scripts")
		{
			scripts.POST("/scan", handlers.HandleScriptScan(deps.Guard, deps.Metrics))
			scripts.POST("/validate", handlers.HandleScriptValidate(deps.Sandbox, deps.Metrics))
			scripts.POST("/execute",
				middleware.RateLimit(executeRPS, executeBurst),
				handlers.HandleScriptExecute(deps.Sandbox, deps.Metrics))
			scripts.POST("/diff", handlers.HandleScriptDiff(deps.Differ, deps.Metrics))
			scripts.POST("/tests", handlers.HandleScriptTests(deps.Metrics))
		}

		v1.GET("/usage", handlers.HandleUsageSummary(deps.Counter))
		v1.GET("/usage/sessions", handlers.HandleUsageSessions(deps.Counter))
		v1.GET("/routing/preview", handlers.HandleRoutingPreview(deps.Router))
		v1.GET("/guard/stats", handlers.HandleGuardStats(deps.Guard))
	}
}
