// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTopic_Greetings(t *testing.T) {
	tests := []string{"hi", "Hello!", "hey", "good morning", "thanks", "Thank you!"}

	for _, msg := range tests {
		t.Run(msg, func(t *testing.T) {
			result := ValidateTopic(msg, nil)
			assert.True(t, result.IsValid)
			assert.Equal(t, TopicGeneralGreeting, result.Category)
			assert.InDelta(t, 0.95, result.Confidence, 0.001)
		})
	}
}

func TestValidateTopic_ScriptGeneration(t *testing.T) {
	tests := []string{
		"create a PowerShell script that backs up files",
		"can you write a function to parse logs",
		"I need a script to restart services",
		"help me write an automation for user onboarding",
	}

	for _, msg := range tests {
		t.Run(msg, func(t *testing.T) {
			result := ValidateTopic(msg, nil)
			assert.True(t, result.IsValid)
			assert.Equal(t, TopicScriptGeneration, result.Category)
			assert.True(t, result.IsScriptRequest)
			assert.InDelta(t, 0.9, result.Confidence, 0.001)
		})
	}
}

func TestValidateTopic_Categories(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		category TopicCategory
	}{
		{
			"analysis",
			"please review this Get-Process pipeline and explain the bottleneck",
			TopicScriptAnalysis,
		},
		{
			"devops",
			"deploy my powershell module to azure with a ci/cd pipeline",
			TopicDevOpsAutomation,
		},
		{
			"sysadmin",
			"the registry entries on my windows server need an automation pass",
			TopicSystemAdministration,
		},
		{
			"plain scripting",
			"why does my foreach-object pipeline swallow the erroractionpreference value",
			TopicPowerShellScripting,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateTopic(tc.message, nil)
			assert.True(t, result.IsValid)
			assert.Equal(t, tc.category, result.Category)
			assert.GreaterOrEqual(t, result.Confidence, 0.3)
		})
	}
}

func TestValidateTopic_OffTopicRedirect(t *testing.T) {
	result := ValidateTopic("recommend a recipe for cooking pasta plus a movie with good music for movie night", nil)

	assert.False(t, result.IsValid)
	assert.Equal(t, TopicOffTopic, result.Category)
	assert.Greater(t, result.Confidence, 0.5)
	assert.Contains(t, result.SuggestedResponse, "PSScript AI")
	assert.Contains(t, result.SuggestedResponse, "PowerShell scripting")
}

func TestValidateTopic_ConversationContinuity(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "how do I write a powershell script with error handling"},
		{Role: "assistant", Content: "Use try/catch blocks..."},
	}

	result := ValidateTopic("what about the second approach you mentioned there", history)

	assert.True(t, result.IsValid)
	assert.Equal(t, TopicPowerShellScripting, result.Category)
	assert.Equal(t, "Assumed relevant based on conversation context", result.Message)
	assert.Less(t, result.Confidence, 1.0)
}

func TestValidateTopic_ShortMessageAllowed(t *testing.T) {
	result := ValidateTopic("and then?", nil)

	assert.True(t, result.IsValid)
	assert.InDelta(t, 0.4, result.Confidence, 0.001)
}

func TestValidateTopic_AmbiguousLongMessage(t *testing.T) {
	result := ValidateTopic("tell me about the general history of the region and its people over the last centuries", nil)

	assert.False(t, result.IsValid)
	assert.Equal(t, TopicOffTopic, result.Category)
	assert.InDelta(t, 0.6, result.Confidence, 0.001)
	assert.Contains(t, result.SuggestedResponse, "rephrase")
}

func TestIsScriptGenerationRequest(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"create a script to rotate logs", true},
		{"script that monitors disk space", true},
		{"can you generate a backup routine", true},
		{"what does Get-Member do", false},
		{"why is the weather nice", false},
	}

	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, IsScriptGenerationRequest(tc.message))
		})
	}
}

func TestExtractScriptRequirements(t *testing.T) {
	req := ExtractScriptRequirements("create an advanced bash script for linux with logging and error handling")

	assert.Equal(t, "linux", req.TargetSystem)
	assert.Equal(t, "complex", req.Complexity)
	assert.Contains(t, req.Features, "logging")
	assert.Contains(t, req.Features, "error handling")
}

func TestExtractScriptRequirements_Defaults(t *testing.T) {
	req := ExtractScriptRequirements("create a script to list services")

	assert.Equal(t, "windows", req.TargetSystem)
	assert.Equal(t, "medium", req.Complexity)
	assert.Empty(t, req.Features)
}

func TestTopicValidator_StrictMode(t *testing.T) {
	permissive := NewTopicValidator(false)
	strict := NewTopicValidator(true)

	msg := "and then?"
	assert.True(t, permissive.Validate(msg).IsValid)

	result := strict.Validate(msg)
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.SuggestedResponse)
}

func TestTopicValidator_HistoryBounded(t *testing.T) {
	v := NewTopicValidator(false)
	for i := 0; i < 25; i++ {
		v.AddMessage("user", "how do I debug my powershell script")
	}

	v.mu.Lock()
	n := len(v.history)
	v.mu.Unlock()
	assert.Equal(t, maxConversationHistory, n)

	v.ClearHistory()
	result := v.Validate("explain the powershell pipeline to me please")
	assert.True(t, result.IsValid)
}
