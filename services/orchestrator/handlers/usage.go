// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/orchestrator/datatypes"
	"github.com/psscriptai/scriptguard/services/router"
	"github.com/psscriptai/scriptguard/services/usage"
)

// HandleUsageSummary returns lifetime token usage totals.
func HandleUsageSummary(counter *usage.TokenCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, counter.UsageSummary())
	}
}

// HandleUsageSessions returns the most recent tracked sessions.
// Query param: limit (default 10).
func HandleUsageSessions(counter *usage.TokenCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "limit must be a non-negative integer"})
				return
			}
			limit = parsed
		}
		c.JSON(http.StatusOK, gin.H{"sessions": counter.RecentSessions(limit)})
	}
}

// HandleRoutingPreview returns the routing decision for a query without
// calling the model. Query params: q (required), context (turn count).
func HandleRoutingPreview(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "q query parameter is required"})
			return
		}

		contextTurns := 0
		if raw := c.Query("context"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "context must be a non-negative integer"})
				return
			}
			contextTurns = parsed
		}

		// Only the turn count matters for complexity.
		ctxMessages := make([]router.ContextMessage, contextTurns)
		c.JSON(http.StatusOK, rt.Route(query, ctxMessages))
	}
}

// HandleGuardStats returns the security guard's lifetime counters.
func HandleGuardStats(guard *guardrails.SecurityGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, guard.Stats())
	}
}
