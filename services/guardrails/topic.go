// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"regexp"
	"strings"
	"sync"
)

// maxConversationHistory bounds the validator's context window.
const maxConversationHistory = 10

// =============================================================================
// KEYWORD TABLES
// =============================================================================

// powershellKeywords covers the topics the assistant stays on: PowerShell
// itself, Windows scripting, general scripting, DevOps, and sysadmin work.
var powershellKeywords = newKeywordSet(
	// PowerShell specific
	"powershell", "ps1", "pwsh", "cmdlet", "cmdlets", "get-", "set-", "new-",
	"remove-", "invoke-", "out-", "write-host", "write-output", "param",
	"function", "module", "import-module", "export-modulemember", "pipeline",
	"psobject", "pscustomobject", "scriptblock", "psscriptroot", "pscommandpath",
	"erroractionpreference", "verbosepreference", "progresspreference",
	"foreach-object", "where-object", "select-object", "sort-object",
	"group-object", "measure-object", "format-table", "format-list",
	"convertto-json", "convertfrom-json", "convertto-xml", "export-csv",
	"import-csv", "get-content", "set-content", "add-content", "test-path",
	"get-childitem", "copy-item", "move-item", "remove-item", "new-item",
	"get-process", "stop-process", "start-process", "get-service",
	"start-service", "stop-service", "restart-service", "get-wmiobject",
	"get-ciminstance", "invoke-command", "enter-pssession", "new-pssession",
	"try", "catch", "finally", "throw", "trap", "-erroraction", "-verbose",

	// Windows scripting
	"batch", "bat", "cmd", "command prompt", "vbscript", "wsh", "cscript",
	"wscript", "windows script",

	// General scripting
	"script", "scripting", "automation", "automate", "scheduled task",
	"task scheduler", "cron", "shell", "bash", "command line", "cli",
	"terminal", "console", "parameter", "argument", "variable", "loop",
	"conditional", "library", "api call",

	// DevOps/Automation
	"azure", "aws", "gcp", "cloud", "ci/cd", "deployment",
	"infrastructure", "configuration", "provisioning", "terraform", "ansible",
	"docker", "kubernetes", "container", "virtualization", "hyper-v", "vmware",

	// System administration
	"registry", "active directory", "ad", "ldap", "group policy", "gpo",
	"iis", "web server", "dns", "dhcp", "file server", "share", "permission",
	"security", "firewall", "antivirus", "backup", "restore", "log", "event log",
	"performance", "monitoring", "wmi", "cim", "dsc", "desired state",

	// Code/programming context
	"code", "debug", "error", "exception", "syntax", "best practice",
	"optimize", "refactor", "test", "unit test", "pester", "validate",
)

// scriptGenerationKeywords marks requests to produce a new script.
var scriptGenerationKeywords = newKeywordSet(
	"create", "generate", "write", "make", "build", "design", "develop",
	"help me write", "help me create", "can you write", "can you create",
	"i need a script", "i want a script", "script that", "script to",
	"script for", "new script", "custom script", "automate this",
	"automation for", "how to automate", "how do i script",
)

// offTopicKeywords triggers the redirect response when they dominate.
var offTopicKeywords = newKeywordSet(
	"recipe", "cooking", "weather", "sports", "movie", "music", "game",
	"dating", "relationship", "medical", "health", "legal", "lawyer",
	"investment", "stock", "crypto", "bitcoin", "lottery", "gambling",
	"politics", "election", "religion", "philosophy", "astrology",
	"celebrity", "gossip", "fashion", "beauty", "makeup", "diet",
	"exercise", "workout", "travel", "vacation", "hotel", "flight",
)

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|greetings|good\s+(morning|afternoon|evening))[\s!?.]*$`),
	regexp.MustCompile(`(?i)^(how are you|what'?s up|sup)[\s!?.]*$`),
	regexp.MustCompile(`(?i)^(thanks?|thank you|ty)[\s!?.]*$`),
}

var generationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(create|generate|write|make|build)\s+(a\s+)?(powershell\s+)?script`),
	regexp.MustCompile(`script\s+(that|to|for|which)`),
	regexp.MustCompile(`(i\s+)?need\s+(a\s+)?script`),
	regexp.MustCompile(`can\s+you\s+(write|create|make|generate)`),
	regexp.MustCompile(`help\s+(me\s+)?(write|create|make|generate)`),
	regexp.MustCompile(`how\s+(to|do\s+i)\s+(write|create|make)\s+(a\s+)?script`),
}

var wordToken = regexp.MustCompile(`\b[\w\-]+\b`)

const capabilityRedirect = `I'm PSScript AI, specialized in PowerShell and scripting topics. I can help you with:

- **PowerShell scripting** - Writing, debugging, and optimizing scripts
- **Script analysis** - Security reviews, code quality checks
- **Automation** - DevOps, CI/CD, scheduled tasks
- **System administration** - Active Directory, Windows Server, services
- **Script generation** - Creating new PowerShell scripts from requirements

What PowerShell or scripting challenge can I help you with today?`

const clarificationRedirect = `I'm PSScript AI, your PowerShell scripting assistant. I didn't quite understand how your request relates to PowerShell or scripting.

Here's what I can help you with:

- **Write scripts** - "Create a PowerShell script that backs up files to Azure"
- **Debug code** - "Why is my Get-ChildItem command not working?"
- **Explain concepts** - "How do parameters work in PowerShell functions?"
- **Review scripts** - "Can you analyze this script for security issues?"
- **Automate tasks** - "How do I schedule a PowerShell script?"

Could you rephrase your question with more PowerShell context?`

// =============================================================================
// KEYWORD MATCHING
// =============================================================================

type keywordSet map[string]struct{}

func newKeywordSet(words ...string) keywordSet {
	s := make(keywordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// checkKeywords scores how strongly text matches a keyword set. The score
// counts whole-word hits plus substring hits (so "get-process" also feeds
// the "get-" keyword) and maps the count onto a 0.3..1.0 confidence curve.
func checkKeywords(text string, keywords keywordSet) (bool, float64) {
	normalized := normalizeText(text)

	words := make(map[string]struct{})
	for _, tok := range wordToken.FindAllString(normalized, -1) {
		words[tok] = struct{}{}
	}

	total := 0
	for kw := range keywords {
		if _, ok := words[kw]; ok {
			total++
		}
		if strings.Contains(normalized, kw) {
			total++
		}
	}

	if total == 0 {
		return false, 0.0
	}
	confidence := 0.3 + float64(total)*0.15
	if confidence > 1.0 {
		confidence = 1.0
	}
	return true, confidence
}

func normalizeText(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

func containsAny(normalized string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// IsScriptGenerationRequest reports whether the user is asking for a new
// script rather than discussing an existing one.
func IsScriptGenerationRequest(text string) bool {
	normalized := normalizeText(text)

	for _, p := range generationPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}

	hasGeneration, _ := checkKeywords(normalized, scriptGenerationKeywords)
	hasContext, _ := checkKeywords(normalized, powershellKeywords)
	return hasGeneration && hasContext
}

// ExtractScriptRequirements pulls structured hints out of a generation
// request: target system, complexity, and named feature asks. The raw text
// stays in Description for the prompt builder.
func ExtractScriptRequirements(text string) ScriptRequirements {
	req := ScriptRequirements{
		Description:  text,
		Features:     []string{},
		TargetSystem: "windows",
		Complexity:   "medium",
	}

	normalized := normalizeText(text)

	switch {
	case containsAny(normalized, "linux", "ubuntu", "centos", "redhat", "bash"):
		req.TargetSystem = "linux"
	case containsAny(normalized, "mac", "macos", "osx", "darwin"):
		req.TargetSystem = "macos"
	case containsAny(normalized, "cross-platform", "cross platform", "pwsh"):
		req.TargetSystem = "cross-platform"
	}

	switch {
	case containsAny(normalized, "simple", "basic", "quick", "easy"):
		req.Complexity = "simple"
	case containsAny(normalized, "complex", "advanced", "comprehensive", "full"):
		req.Complexity = "complex"
	}

	featureKeywords := []string{
		"error handling", "logging", "progress", "verbose", "parameters",
		"help", "documentation", "validation", "retry", "parallel",
		"async", "remote", "credential", "secure", "encrypted",
	}
	for _, kw := range featureKeywords {
		if strings.Contains(normalized, kw) {
			req.Features = append(req.Features, kw)
		}
	}

	return req
}

// ValidateTopic classifies a user message against the assistant's allowed
// topics.
//
// Description:
//
//	Layered cheap-to-expensive checks, first match wins:
//	 1. Greetings are always valid.
//	 2. Script generation requests are valid and flagged as such.
//	 3. PowerShell keyword matches are valid, with a sub-category.
//	 4. Dominant off-topic keywords reject with a capability redirect.
//	 5. Recent on-topic history extends relevance to follow-ups.
//	 6. Short messages pass with low confidence.
//	 7. Everything else rejects with a clarification redirect.
//
// Inputs:
//
//	userMessage - The message to classify.
//	history - Optional prior messages; the last three user turns feed the
//	          continuity check. May be nil.
//
// Outputs:
//
//	TopicValidationResult - Validity, category, confidence, and a suggested
//	response for rejections.
//
// Thread Safety: Pure function; safe for concurrent use.
func ValidateTopic(userMessage string, history []Message) TopicValidationResult {
	normalized := normalizeText(userMessage)

	// Layer 1: Greetings.
	for _, p := range greetingPatterns {
		if p.MatchString(normalized) {
			return TopicValidationResult{
				IsValid:    true,
				Category:   TopicGeneralGreeting,
				Confidence: 0.95,
				Message:    "Greeting detected",
			}
		}
	}

	// Layer 2: Script generation requests.
	if IsScriptGenerationRequest(userMessage) {
		return TopicValidationResult{
			IsValid:         true,
			Category:        TopicScriptGeneration,
			Confidence:      0.9,
			Message:         "Script generation request detected",
			IsScriptRequest: true,
		}
	}

	// Layer 3: Explicit PowerShell or scripting keywords.
	if hasPS, psConfidence := checkKeywords(normalized, powershellKeywords); hasPS {
		category := TopicPowerShellScripting
		switch {
		case containsAny(normalized, "analyze", "review", "check", "explain"):
			category = TopicScriptAnalysis
		case containsAny(normalized, "azure", "aws", "docker", "kubernetes", "ci/cd"):
			category = TopicDevOpsAutomation
		case containsAny(normalized, "bash", "shell", "python", "cmd", "batch"):
			category = TopicScriptingLanguages
		case containsAny(normalized, "server", "admin", "system", "registry", "service"):
			category = TopicSystemAdministration
		}
		return TopicValidationResult{
			IsValid:    true,
			Category:   category,
			Confidence: psConfidence,
			Message:    "PowerShell/scripting topic detected",
		}
	}

	// Layer 4: Off-topic content.
	if hasOffTopic, offConfidence := checkKeywords(normalized, offTopicKeywords); hasOffTopic && offConfidence > 0.5 {
		return TopicValidationResult{
			IsValid:           false,
			Category:          TopicOffTopic,
			Confidence:        offConfidence,
			Message:           "Off-topic request detected",
			SuggestedResponse: capabilityRedirect,
		}
	}

	// Layer 5: Conversation continuity.
	if len(history) > 0 {
		recent := history
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		var confidences []float64
		for _, msg := range recent {
			if msg.Role != "user" {
				continue
			}
			if has, conf := checkKeywords(msg.Content, powershellKeywords); has {
				confidences = append(confidences, conf)
			}
		}
		if len(confidences) > 0 {
			sum := 0.0
			for _, c := range confidences {
				sum += c
			}
			avg := sum / float64(len(confidences))
			if avg > 0.3 {
				return TopicValidationResult{
					IsValid:    true,
					Category:   TopicPowerShellScripting,
					Confidence: avg * 0.7,
					Message:    "Assumed relevant based on conversation context",
				}
			}
		}
	}

	// Layer 6: Short messages are likely follow-ups.
	if len(strings.Fields(normalized)) < 5 {
		return TopicValidationResult{
			IsValid:    true,
			Category:   TopicPowerShellScripting,
			Confidence: 0.4,
			Message:    "Short message - assuming relevance",
		}
	}

	// Layer 7: Unclassifiable.
	return TopicValidationResult{
		IsValid:           false,
		Category:          TopicOffTopic,
		Confidence:        0.6,
		Message:           "Could not determine PowerShell/scripting relevance",
		SuggestedResponse: clarificationRedirect,
	}
}

// =============================================================================
// STATEFUL VALIDATOR
// =============================================================================

// TopicValidator wraps ValidateTopic with per-conversation history so
// follow-ups inherit relevance from earlier on-topic turns.
//
// Thread Safety: Safe for concurrent use.
type TopicValidator struct {
	strictMode bool

	mu      sync.Mutex
	history []Message
}

// NewTopicValidator creates a validator. In strict mode, low-confidence
// results are rejected instead of allowed through.
func NewTopicValidator(strictMode bool) *TopicValidator {
	return &TopicValidator{strictMode: strictMode}
}

// AddMessage appends a turn to the conversation history, keeping only the
// most recent entries.
func (v *TopicValidator) AddMessage(role, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, Message{Role: role, Content: content})
	if len(v.history) > maxConversationHistory {
		v.history = v.history[len(v.history)-maxConversationHistory:]
	}
}

// Validate classifies a message using the accumulated history.
func (v *TopicValidator) Validate(userMessage string) TopicValidationResult {
	v.mu.Lock()
	history := make([]Message, len(v.history))
	copy(history, v.history)
	v.mu.Unlock()

	result := ValidateTopic(userMessage, history)

	if v.strictMode && result.IsValid && result.Confidence < 0.5 {
		result.IsValid = false
		if result.SuggestedResponse == "" {
			result.SuggestedResponse = "Please provide more context about how this relates to PowerShell scripting."
		}
	}
	return result
}

// ClearHistory drops the conversation context.
func (v *TopicValidator) ClearHistory() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = nil
}
