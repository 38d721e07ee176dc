// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package usage tracks token consumption and estimates OpenAI API costs.
package usage

import (
	"sort"
	"strings"
)

// ModelPricing is USD per one million tokens.
type ModelPricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// fallbackModel prices unknown models.
const fallbackModel = "gpt-4o"

// pricing holds January 2026 OpenAI list prices per 1M tokens.
// Embeddings have no output cost.
var pricing = map[string]ModelPricing{
	"gpt-4o":      {Input: 2.50, Output: 10.0},
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"o3":          {Input: 10.0, Output: 40.0},
	// Legacy, kept for backwards compatibility.
	"gpt-4-turbo":            {Input: 10.0, Output: 30.0},
	"gpt-4":                  {Input: 30.0, Output: 60.0},
	"gpt-3.5-turbo":          {Input: 0.50, Output: 1.50},
	"text-embedding-3-large": {Input: 0.13, Output: 0.0},
	"text-embedding-3-small": {Input: 0.02, Output: 0.0},
	"text-embedding-ada-002": {Input: 0.10, Output: 0.0},
}

// pricingKeysByLength caches the price table keys longest-first so
// normalization prefers the most specific match ("gpt-4o-mini" before
// "gpt-4o", "gpt-4-turbo" before "gpt-4").
var pricingKeysByLength = func() []string {
	keys := make([]string, 0, len(pricing))
	for k := range pricing {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// NormalizeModel maps a model name (including dated variants like
// "gpt-4o-2024-11-20") onto a pricing key. The second return is false
// when no table entry matches.
func NormalizeModel(model string) (string, bool) {
	modelKey := strings.ToLower(model)
	if _, ok := pricing[modelKey]; ok {
		return modelKey, true
	}
	for _, key := range pricingKeysByLength {
		if strings.Contains(modelKey, key) {
			return key, true
		}
	}
	return "", false
}

// Pricing returns a copy of the price table.
func Pricing() map[string]ModelPricing {
	out := make(map[string]ModelPricing, len(pricing))
	for k, v := range pricing {
		out[k] = v
	}
	return out
}

// EstimateTokens approximates the token count of a text with the ~4
// characters per token heuristic for English.
func EstimateTokens(text string) int {
	return len(text) / 4
}
