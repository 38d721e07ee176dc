// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package usage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ===== CONSTANTS =====

const (
	// maxSessions caps the persisted session log.
	maxSessions = 1000

	// defaultRecentLimit is how many sessions RecentSessions returns
	// when the caller passes a non-positive limit.
	defaultRecentLimit = 10

	usageFileMode = 0o600
)

// ===== TYPES =====

// ModelUsage aggregates consumption for a single model.
type ModelUsage struct {
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Calls        int     `json:"calls"`
}

// Session records a single tracked API call.
type Session struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Model        string  `json:"model"`
	Operation    string  `json:"operation"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// usageData is the on-disk shape of the usage file.
type usageData struct {
	TotalTokens int                    `json:"total_tokens"`
	TotalCost   float64                `json:"total_cost"`
	ByModel     map[string]*ModelUsage `json:"by_model"`
	Sessions    []Session              `json:"sessions"`
	LastUpdated string                 `json:"last_updated"`
}

// CostEstimate is the result of pricing a prospective call.
type CostEstimate struct {
	Model         string  `json:"model"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	FormattedCost string  `json:"formatted_cost"`
}

// Summary reports lifetime usage totals.
type Summary struct {
	TotalTokens   int                   `json:"total_tokens"`
	TotalCost     float64               `json:"total_cost"`
	FormattedCost string                `json:"formatted_cost"`
	ByModel       map[string]ModelUsage `json:"by_model"`
	SessionCount  int                   `json:"session_count"`
	LastUpdated   string                `json:"last_updated"`
}

// ===== TOKEN COUNTER =====

// TokenCounter persists per-model token usage and costs to a JSON file.
//
// Description:
//
//	Every tracked call updates the lifetime totals, the per-model
//	aggregates and a bounded session log, then writes the file back
//	out so usage survives restarts.
//
// Thread Safety: all methods are safe for concurrent use.
type TokenCounter struct {
	mu     sync.Mutex
	path   string
	data   usageData
	logger *slog.Logger
	now    func() time.Time
}

// CounterOption configures a TokenCounter.
type CounterOption func(*TokenCounter)

// WithCounterLogger overrides the default slog logger.
func WithCounterLogger(logger *slog.Logger) CounterOption {
	return func(c *TokenCounter) {
		c.logger = logger
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) CounterOption {
	return func(c *TokenCounter) {
		c.now = now
	}
}

// NewTokenCounter opens (or initializes) the usage file at path.
// A corrupt or missing file starts empty rather than failing.
func NewTokenCounter(path string, opts ...CounterOption) (*TokenCounter, error) {
	c := &TokenCounter{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.data = usageData{ByModel: make(map[string]*ModelUsage)}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var loaded usageData
		if jsonErr := json.Unmarshal(raw, &loaded); jsonErr != nil {
			c.logger.Warn("usage file is corrupt, starting fresh",
				slog.String("path", path),
				slog.String("error", jsonErr.Error()))
		} else {
			if loaded.ByModel == nil {
				loaded.ByModel = make(map[string]*ModelUsage)
			}
			c.data = loaded
		}
	case os.IsNotExist(err):
		// First run.
	default:
		return nil, fmt.Errorf("read usage file: %w", err)
	}
	return c, nil
}

// CalculateCost prices a call. Unknown models are billed at the
// gpt-4o rate with a warning.
func (c *TokenCounter) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	key, ok := NormalizeModel(model)
	if !ok {
		c.logger.Warn("unknown model for pricing, using gpt-4o pricing",
			slog.String("model", model))
		key = fallbackModel
	}
	p := pricing[key]
	inputCost := float64(inputTokens) / 1_000_000 * p.Input
	outputCost := float64(outputTokens) / 1_000_000 * p.Output
	return inputCost + outputCost
}

// TrackUsage records a completed API call and persists the new totals.
//
// Outputs: the call's total token count and its cost in USD.
func (c *TokenCounter) TrackUsage(model, operation string, inputTokens, outputTokens int) (int, float64, error) {
	totalTokens := inputTokens + outputTokens
	cost := c.CalculateCost(model, inputTokens, outputTokens)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.TotalTokens += totalTokens
	c.data.TotalCost += cost

	mu := c.data.ByModel[model]
	if mu == nil {
		mu = &ModelUsage{}
		c.data.ByModel[model] = mu
	}
	mu.TotalTokens += totalTokens
	mu.TotalCost += cost
	mu.InputTokens += inputTokens
	mu.OutputTokens += outputTokens
	mu.Calls++

	c.data.Sessions = append(c.data.Sessions, Session{
		ID:           uuid.NewString(),
		Timestamp:    c.now().UTC().Format(time.RFC3339),
		Model:        model,
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		Cost:         cost,
	})
	if len(c.data.Sessions) > maxSessions {
		c.data.Sessions = c.data.Sessions[len(c.data.Sessions)-maxSessions:]
	}

	if err := c.saveLocked(); err != nil {
		return totalTokens, cost, err
	}
	return totalTokens, cost, nil
}

// EstimateCost prices a prospective call without recording it.
func (c *TokenCounter) EstimateCost(model string, inputTokens, outputTokens int) CostEstimate {
	cost := c.CalculateCost(model, inputTokens, outputTokens)
	return CostEstimate{
		Model:         model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		EstimatedCost: cost,
		FormattedCost: fmt.Sprintf("$%.4f", cost),
	}
}

// UsageSummary returns lifetime totals with per-model breakdown.
func (c *TokenCounter) UsageSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	byModel := make(map[string]ModelUsage, len(c.data.ByModel))
	for model, mu := range c.data.ByModel {
		byModel[model] = *mu
	}
	return Summary{
		TotalTokens:   c.data.TotalTokens,
		TotalCost:     c.data.TotalCost,
		FormattedCost: fmt.Sprintf("$%.2f", c.data.TotalCost),
		ByModel:       byModel,
		SessionCount:  len(c.data.Sessions),
		LastUpdated:   c.data.LastUpdated,
	}
}

// RecentSessions returns the last limit sessions, newest last.
// A non-positive limit defaults to 10.
func (c *TokenCounter) RecentSessions(limit int) []Session {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := len(c.data.Sessions) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Session, len(c.data.Sessions)-start)
	copy(out, c.data.Sessions[start:])
	return out
}

// Reset clears all recorded usage and persists the empty state.
func (c *TokenCounter) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = usageData{ByModel: make(map[string]*ModelUsage)}
	if err := c.saveLocked(); err != nil {
		return err
	}
	c.logger.Info("usage data reset", slog.String("path", c.path))
	return nil
}

// saveLocked writes the usage file. Caller holds c.mu.
func (c *TokenCounter) saveLocked() error {
	c.data.LastUpdated = c.now().UTC().Format(time.RFC3339)

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create usage dir: %w", err)
		}
	}
	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage data: %w", err)
	}
	if err := os.WriteFile(c.path, raw, usageFileMode); err != nil {
		return fmt.Errorf("write usage file: %w", err)
	}
	return nil
}
