// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sandbox executes PowerShell scripts in a restricted subprocess.
//
// The isolation layers: a validation pass over a hard block list, a
// stripped environment, a throwaway working directory, an execution
// timeout, and output caps. This is defense in depth, not absolute
// security; running untrusted code always carries risk.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrPwshNotFound is returned when no PowerShell executable answers the
// version probe.
var ErrPwshNotFound = errors.New("sandbox: pwsh executable not found")

// ExecutionStatus describes how a sandboxed run ended.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
	StatusTimeout ExecutionStatus = "timeout"
	StatusBlocked ExecutionStatus = "blocked"
	StatusPartial ExecutionStatus = "partial"
)

// ExecutionResult is the outcome of one sandboxed run. ExecutionTime is
// in seconds.
type ExecutionResult struct {
	Status          ExecutionStatus `json:"status"`
	Stdout          string          `json:"stdout"`
	Stderr          string          `json:"stderr"`
	ExitCode        int             `json:"exit_code"`
	ExecutionTime   float64         `json:"execution_time"`
	Warnings        []string        `json:"warnings"`
	BlockedCommands []string        `json:"blocked_commands,omitempty"`
}

// ValidationResult is the outcome of a validation-only pass.
type ValidationResult struct {
	IsValid         bool     `json:"is_valid"`
	Warnings        []string `json:"warnings"`
	BlockedCommands []string `json:"blocked_commands"`
}

// ProcessRunner abstracts subprocess execution so tests can run without a
// PowerShell installation.
type ProcessRunner interface {
	// Run executes the command and returns captured stdout/stderr and the
	// exit code. A non-zero exit is not an error; err reports spawn
	// failures and context cancellation.
	Run(ctx context.Context, name string, args []string, dir string, env []string) (stdout, stderr []byte, exitCode int, err error)
}

// maxCaptureBytes bounds what the runner buffers per stream before the
// configured truncation limits are applied.
const maxCaptureBytes = 1 << 20

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, dir string, env []string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: maxCaptureBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxCaptureBytes}

	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
		}
		return nil, nil, -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// limitedWriter drops bytes past the limit instead of failing the command.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	remaining := lw.limit - lw.w.Len()
	if remaining > 0 {
		if len(p) > remaining {
			lw.w.Write(p[:remaining])
		} else {
			lw.w.Write(p)
		}
	}
	return len(p), nil
}

// pwshCandidates are probed in order when no explicit path is configured.
var pwshCandidates = []string{
	"pwsh",
	"/usr/local/bin/pwsh",
	`C:\Program Files\PowerShell\7\pwsh.exe`,
}

// =============================================================================
// SANDBOX
// =============================================================================

// Sandbox runs PowerShell scripts under the restriction rules.
//
// Thread Safety: Safe for concurrent use. Concurrent executions are
// bounded by the configured semaphore; each run gets its own temp
// directory.
type Sandbox struct {
	timeout        time.Duration
	maxLines       int
	maxChars       int
	allowNetwork   bool
	allowFileWrite bool
	workingDir     string
	runner         ProcessRunner
	sem            *semaphore.Weighted
	logger         *slog.Logger

	// pwshMu guards the lazily resolved executable path; Execute calls
	// Executable from concurrent request handlers.
	pwshMu   sync.Mutex
	pwshPath string
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithTimeout sets the per-execution wall clock limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.timeout = d }
}

// WithMaxOutputLines caps captured output lines per stream.
func WithMaxOutputLines(n int) Option {
	return func(s *Sandbox) { s.maxLines = n }
}

// WithMaxOutputChars caps captured output characters per stream.
func WithMaxOutputChars(n int) Option {
	return func(s *Sandbox) { s.maxChars = n }
}

// WithPwshPath pins the PowerShell executable, skipping discovery.
func WithPwshPath(path string) Option {
	return func(s *Sandbox) { s.pwshPath = path }
}

// WithAllowNetwork permits network indicators as warnings instead of
// blocks. Dangerous; off by default.
func WithAllowNetwork(allow bool) Option {
	return func(s *Sandbox) { s.allowNetwork = allow }
}

// WithAllowFileWrite is reserved for callers that relax the file write
// rules. Off by default.
func WithAllowFileWrite(allow bool) Option {
	return func(s *Sandbox) { s.allowFileWrite = allow }
}

// WithWorkingDir overrides the per-run temp dir as the process cwd.
func WithWorkingDir(dir string) Option {
	return func(s *Sandbox) { s.workingDir = dir }
}

// WithRunner replaces the subprocess runner.
func WithRunner(r ProcessRunner) Option {
	return func(s *Sandbox) { s.runner = r }
}

// WithMaxConcurrent bounds how many scripts run at once.
func WithMaxConcurrent(n int64) Option {
	return func(s *Sandbox) { s.sem = semaphore.NewWeighted(n) }
}

// WithSandboxLogger sets a custom logger.
func WithSandboxLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) { s.logger = logger }
}

// New creates a Sandbox with 30s timeout, 1000 line / 50000 char output
// caps, and at most 4 concurrent executions.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		timeout:  30 * time.Second,
		maxLines: 1000,
		maxChars: 50000,
		runner:   execRunner{},
		sem:      semaphore.NewWeighted(4),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Executable returns the PowerShell path, probing the well-known
// candidates on first use.
func (s *Sandbox) Executable(ctx context.Context) (string, error) {
	s.pwshMu.Lock()
	defer s.pwshMu.Unlock()
	if s.pwshPath != "" {
		return s.pwshPath, nil
	}
	for _, candidate := range pwshCandidates {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, _, exitCode, err := s.runner.Run(probeCtx, candidate, []string{"-Version"}, "", os.Environ())
		cancel()
		if err == nil && exitCode == 0 {
			s.pwshPath = candidate
			return candidate, nil
		}
	}
	return "", ErrPwshNotFound
}

// ValidateScript checks a script against the block list and suspicious
// patterns without executing anything. Short aliases only count when they
// appear as whole words so variable names like "$irma" do not trip them.
func (s *Sandbox) ValidateScript(script string) ValidationResult {
	var warnings, blocked []string
	scriptUpper := strings.ToUpper(script)

	for _, cmd := range blockedCommands {
		if !strings.Contains(scriptUpper, strings.ToUpper(cmd)) {
			continue
		}
		if re, ok := shortAliases[cmd]; ok {
			if re.MatchString(script) {
				blocked = append(blocked, cmd)
			}
			continue
		}
		blocked = append(blocked, cmd)
	}

	for _, sp := range suspiciousPatterns {
		if !strings.Contains(scriptUpper, strings.ToUpper(sp.Needle)) {
			continue
		}
		if !s.allowNetwork && strings.Contains(sp.Needle, "Net") {
			blocked = append(blocked, sp.Needle)
		} else {
			warnings = append(warnings, sp.Warning)
		}
	}

	return ValidationResult{
		IsValid:         len(blocked) == 0,
		Warnings:        warnings,
		BlockedCommands: blocked,
	}
}

// Execute runs a script in the sandbox.
//
// Description:
//
//	Validates first; a blocked script returns StatusBlocked without
//	spawning a process. Otherwise the script is written to a throwaway
//	temp directory with the sandbox preamble prepended and run under
//	pwsh with -NoProfile -NonInteractive -NoLogo and a stripped
//	environment. The temp directory is removed when the run finishes,
//	whatever the outcome.
//
// Inputs:
//
//	ctx - Cancels the run; the subprocess is killed on expiry.
//	script - The PowerShell script content.
//	parameters - Optional named arguments appended as -Key value pairs,
//	             in sorted key order.
//
// Outputs:
//
//	ExecutionResult - Run outcome including truncated output.
//	error - Infrastructure failures only (pwsh missing, temp dir,
//	        spawn). Script failures are reported in the result.
//
// Thread Safety: Safe for concurrent use.
func (s *Sandbox) Execute(ctx context.Context, script string, parameters map[string]string) (ExecutionResult, error) {
	start := time.Now()

	validation := s.ValidateScript(script)
	if !validation.IsValid {
		s.logger.Warn("Sandbox blocked script",
			slog.Any("blocked_commands", validation.BlockedCommands),
		)
		return ExecutionResult{
			Status:          StatusBlocked,
			Stdout:          "",
			Stderr:          fmt.Sprintf("Script blocked: Contains forbidden commands: %s", strings.Join(validation.BlockedCommands, ", ")),
			ExitCode:        -1,
			ExecutionTime:   0,
			Warnings:        validation.Warnings,
			BlockedCommands: validation.BlockedCommands,
		}, nil
	}

	pwsh, err := s.Executable(ctx)
	if err != nil {
		return ExecutionResult{}, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return ExecutionResult{}, fmt.Errorf("sandbox: acquire execution slot: %w", err)
	}
	defer s.sem.Release(1)

	tempDir, err := os.MkdirTemp("", "pssandbox_")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("sandbox: create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			s.logger.Warn("Failed to clean up temp directory",
				slog.String("dir", tempDir),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	scriptPath := filepath.Join(tempDir, "script.ps1")
	content := sandboxPreamble + "\n\n" + script
	if err := os.WriteFile(scriptPath, []byte(content), 0o600); err != nil {
		return ExecutionResult{}, fmt.Errorf("sandbox: write script: %w", err)
	}

	args := []string{
		"-NoProfile",
		"-NonInteractive",
		"-NoLogo",
		"-ExecutionPolicy", "Bypass",
		"-File", scriptPath,
	}
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-"+k, parameters[k])
	}

	dir := s.workingDir
	if dir == "" {
		dir = tempDir
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout, stderr, exitCode, err := s.runner.Run(runCtx, pwsh, args, dir, restrictedEnv())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Sandbox execution timed out",
				slog.Duration("timeout", s.timeout),
			)
			return ExecutionResult{
				Status:        StatusTimeout,
				Stdout:        "",
				Stderr:        fmt.Sprintf("Script execution timed out after %d seconds", int(s.timeout.Seconds())),
				ExitCode:      -1,
				ExecutionTime: s.timeout.Seconds(),
				Warnings:      validation.Warnings,
			}, nil
		}
		return ExecutionResult{}, fmt.Errorf("sandbox: run pwsh: %w", err)
	}

	status := StatusSuccess
	if exitCode != 0 {
		status = StatusError
	}

	result := ExecutionResult{
		Status:        status,
		Stdout:        s.truncateOutput(string(stdout)),
		Stderr:        s.truncateOutput(string(stderr)),
		ExitCode:      exitCode,
		ExecutionTime: time.Since(start).Seconds(),
		Warnings:      validation.Warnings,
	}
	s.logger.Info("Sandbox execution finished",
		slog.String("status", string(result.Status)),
		slog.Int("exit_code", result.ExitCode),
		slog.Float64("execution_time", result.ExecutionTime),
	)
	return result, nil
}

// sandboxPreamble is prepended to every script before execution.
const sandboxPreamble = `# Sandbox Environment Setup
$ErrorActionPreference = 'Stop'
$ProgressPreference = 'SilentlyContinue'
$WarningPreference = 'Continue'
$VerbosePreference = 'SilentlyContinue'

# Restrict available cmdlets (commented out for compatibility)
# Some commands are blocked at the validation level instead
`

// restrictedEnv passes through only the essentials plus the PowerShell
// telemetry opt-outs.
func restrictedEnv() []string {
	var env []string
	for _, key := range []string{"PATH", "TEMP", "TMP", "HOME", "USER", "SHELL"} {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	env = append(env,
		"POWERSHELL_TELEMETRY_OPTOUT=1",
		"POWERSHELL_UPDATECHECK=Off",
	)
	return env
}

// truncateOutput applies the configured line and character caps, marking
// each truncation in the output itself.
func (s *Sandbox) truncateOutput(output string) string {
	if output == "" {
		return ""
	}

	lines := strings.Split(output, "\n")
	if len(lines) > s.maxLines {
		lines = lines[:s.maxLines]
		lines = append(lines, fmt.Sprintf("\n... [Output truncated: %d line limit]", s.maxLines))
	}
	result := strings.Join(lines, "\n")

	if len(result) > s.maxChars {
		result = result[:s.maxChars] + fmt.Sprintf("\n... [Output truncated: %d char limit]", s.maxChars)
	}
	return result
}
