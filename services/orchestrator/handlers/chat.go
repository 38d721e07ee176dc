// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/llm"
	"github.com/psscriptai/scriptguard/services/orchestrator/datatypes"
	"github.com/psscriptai/scriptguard/services/orchestrator/observability"
	"github.com/psscriptai/scriptguard/services/router"
	"github.com/psscriptai/scriptguard/services/usage"
)

// HandleChat runs the full guarded chat pipeline: topic validation,
// request sanitization, model routing, completion, output validation,
// and usage tracking.
func HandleChat(guard *guardrails.SecurityGuard, rt *router.Router, client llm.Client,
	counter *usage.TokenCounter, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}

		history := make([]guardrails.Message, 0, len(req.History))
		for _, turn := range req.History {
			history = append(history, guardrails.Message{Role: turn.Role, Content: turn.Content})
		}

		topic := guardrails.ValidateTopic(req.Message, history)
		span.SetAttributes(
			attribute.String("topic.category", string(topic.Category)),
			attribute.Float64("topic.confidence", topic.Confidence),
		)
		if !topic.IsValid {
			slog.Info("chat request redirected",
				slog.String("category", string(topic.Category)),
				slog.Float64("confidence", topic.Confidence))
			metrics.RecordBlocked("topic")
			metrics.RecordRequest("chat", "blocked")
			c.JSON(http.StatusOK, datatypes.ChatResponse{
				Valid:      false,
				Response:   topic.SuggestedResponse,
				Category:   string(topic.Category),
				Confidence: topic.Confidence,
				Safe:       true,
			})
			return
		}

		sanitized := guard.ValidateRequest(req.Message)
		if !sanitized.IsValid {
			slog.Warn("chat request rejected by security guard",
				slog.Int("removed", len(sanitized.Removed)))
			metrics.RecordBlocked("scan")
			metrics.RecordRequest("chat", "blocked")
			c.JSON(http.StatusForbidden, datatypes.ErrorResponse{
				Error:   "request contains patterns that cannot be processed",
				Details: sanitized.Removed,
			})
			return
		}

		ctxMessages := make([]router.ContextMessage, 0, len(req.History))
		for _, turn := range req.History {
			ctxMessages = append(ctxMessages, router.ContextMessage{Role: turn.Role, Content: turn.Content})
		}
		decision := rt.Route(sanitized.Sanitized, ctxMessages)
		metrics.RecordRoutingDecision(decision.ModelID, string(decision.TaskType))
		span.SetAttributes(
			attribute.String("routing.model", decision.ModelID),
			attribute.String("routing.task_type", string(decision.TaskType)),
		)

		messages := make([]llm.Message, 0, len(req.History)+1)
		for _, turn := range req.History {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
		messages = append(messages, llm.Message{Role: "user", Content: sanitized.Sanitized})

		completion, err := client.Complete(ctx, llm.CompletionRequest{
			Model:    decision.ModelID,
			System:   guardrails.SecurityPromptInjection(),
			Messages: messages,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("LLM completion failed", "error", err)
			metrics.RecordRequest("chat", "error")
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: "model request failed"})
			return
		}

		output := guard.ValidateOutput(completion.Content, req.Message, "chat")
		if !output.IsSafe {
			metrics.RecordBlocked("output_validation")
		}

		totalTokens, cost, err := counter.TrackUsage(
			decision.ModelID, "chat", completion.InputTokens, completion.OutputTokens)
		if err != nil {
			// Tracking failures must not fail the chat.
			slog.Error("failed to persist usage", "error", err)
		}
		metrics.RecordTokens(completion.InputTokens, completion.OutputTokens, decision.ModelID)
		metrics.RecordRequest("chat", "success")

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Valid:      true,
			Response:   output.Code,
			Category:   string(topic.Category),
			Confidence: topic.Confidence,
			Model:      decision.ModelID,
			TaskType:   string(decision.TaskType),
			Complexity: string(decision.Complexity),
			Safe:       output.IsSafe,
			Warnings:   output.Warnings,
			Usage: datatypes.ChatUsage{
				InputTokens:  completion.InputTokens,
				OutputTokens: completion.OutputTokens,
				TotalTokens:  totalTokens,
				Cost:         cost,
			},
		})
	}
}
