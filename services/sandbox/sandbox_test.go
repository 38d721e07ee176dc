// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner stands in for pwsh so tests run without PowerShell.
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall

	stdout   string
	stderr   string
	exitCode int
	err      error
	onRun    func(call fakeCall)
}

type fakeCall struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, dir string, env []string) ([]byte, []byte, int, error) {
	call := fakeCall{Name: name, Args: args, Dir: dir, Env: env}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(call)
	}
	if f.err != nil {
		return nil, nil, -1, f.err
	}
	return []byte(f.stdout), []byte(f.stderr), f.exitCode, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestValidateScript(t *testing.T) {
	s := New()

	tests := []struct {
		name        string
		script      string
		wantValid   bool
		wantBlocked []string
	}{
		{
			"clean read-only script",
			"Get-Process | Select-Object -First 5",
			true,
			nil,
		},
		{
			"blocked file deletion",
			"Remove-Item -Path ./data",
			false,
			[]string{"Remove-Item"},
		},
		{
			"blocked invoke expression",
			"iex (Get-Content cmd.txt)",
			false,
			[]string{"iex"},
		},
		{
			"alias as identifier is fine",
			"$irma = 5; $series = 1..3",
			true,
			nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := s.ValidateScript(tc.script)
			assert.Equal(t, tc.wantValid, result.IsValid)
			for _, want := range tc.wantBlocked {
				assert.Contains(t, result.BlockedCommands, want)
			}
		})
	}
}

func TestValidateScript_SuspiciousWarnings(t *testing.T) {
	s := New()

	result := s.ValidateScript(`Write-Output $env:COMPUTERNAME`)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "Environment variable access detected")
}

func TestValidateScript_NetworkIndicators(t *testing.T) {
	script := `[System.Net.Dns]::GetHostName()`

	blocked := New().ValidateScript(script)
	assert.False(t, blocked.IsValid)
	assert.Contains(t, blocked.BlockedCommands, "System.Net.")

	allowed := New(WithAllowNetwork(true)).ValidateScript(script)
	assert.True(t, allowed.IsValid)
	assert.Contains(t, allowed.Warnings, "Network classes not allowed")
}

func TestExecute_BlockedSpawnsNothing(t *testing.T) {
	runner := &fakeRunner{}
	s := New(WithRunner(runner), WithPwshPath("pwsh"))

	result, err := s.Execute(context.Background(), "Remove-Item -Path ./x", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, result.Status)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Stderr, "Script blocked: Contains forbidden commands:")
	assert.NotEmpty(t, result.BlockedCommands)
	assert.Zero(t, runner.callCount(), "blocked script must not spawn a process")
}

func TestExecute_Success(t *testing.T) {
	var (
		scriptContent string
		runDir        string
	)
	runner := &fakeRunner{
		stdout: "hello\n",
		onRun: func(call fakeCall) {
			runDir = call.Dir
			for i, arg := range call.Args {
				if arg == "-File" && i+1 < len(call.Args) {
					data, err := os.ReadFile(call.Args[i+1])
					if err == nil {
						scriptContent = string(data)
					}
				}
			}
		},
	}
	s := New(WithRunner(runner), WithPwshPath("pwsh"))

	result, err := s.Execute(context.Background(), "Write-Output 'hello'", map[string]string{
		"Name": "world",
		"Age":  "3",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.Greater(t, result.ExecutionTime, 0.0)

	require.Equal(t, 1, runner.callCount())
	call := runner.calls[0]
	assert.Equal(t, "pwsh", call.Name)
	assert.Equal(t, []string{"-NoProfile", "-NonInteractive", "-NoLogo", "-ExecutionPolicy", "Bypass"}, call.Args[:5])

	// Parameters follow the script path in sorted key order.
	tail := call.Args[len(call.Args)-4:]
	assert.Equal(t, []string{"-Age", "3", "-Name", "world"}, tail)

	assert.Contains(t, scriptContent, "$ErrorActionPreference = 'Stop'")
	assert.Contains(t, scriptContent, "Write-Output 'hello'")

	assert.Contains(t, call.Env, "POWERSHELL_TELEMETRY_OPTOUT=1")
	assert.Contains(t, call.Env, "POWERSHELL_UPDATECHECK=Off")
	for _, entry := range call.Env {
		assert.False(t, strings.HasPrefix(entry, "GOPATH="), "non-essential env must be stripped")
	}

	// The throwaway directory is gone once Execute returns.
	require.NotEmpty(t, runDir)
	_, statErr := os.Stat(runDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_NonZeroExit(t *testing.T) {
	runner := &fakeRunner{stderr: "boom", exitCode: 1}
	s := New(WithRunner(runner), WithPwshPath("pwsh"))

	result, err := s.Execute(context.Background(), "Get-Date", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, "boom", result.Stderr)
}

func TestExecute_Timeout(t *testing.T) {
	runner := &fakeRunner{err: context.DeadlineExceeded}
	s := New(WithRunner(runner), WithPwshPath("pwsh"), WithTimeout(2*time.Second))

	result, err := s.Execute(context.Background(), "Start-Sleep -Seconds 60", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, result.Status)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Stderr, "timed out after 2 seconds")
	assert.InDelta(t, 2.0, result.ExecutionTime, 0.001)
}

func TestExecute_PwshNotFound(t *testing.T) {
	runner := &fakeRunner{err: exec.ErrNotFound}
	s := New(WithRunner(runner))

	_, err := s.Execute(context.Background(), "Get-Date", nil)
	assert.ErrorIs(t, err, ErrPwshNotFound)
}

func TestTruncateOutput(t *testing.T) {
	s := New(WithMaxOutputLines(3), WithMaxOutputChars(500))

	out := s.truncateOutput("alpha\nbravo\ncharlie\ndelta\necho")
	assert.Contains(t, out, "... [Output truncated: 3 line limit]")
	assert.Contains(t, out, "charlie")
	assert.NotContains(t, out, "delta")

	s = New(WithMaxOutputLines(1000), WithMaxOutputChars(10))
	out = s.truncateOutput("0123456789abcdef")
	assert.Contains(t, out, "... [Output truncated: 10 char limit]")
	assert.True(t, strings.HasPrefix(out, "0123456789"))
}

func TestExecutableCaching(t *testing.T) {
	runner := &fakeRunner{exitCode: 0}
	s := New(WithRunner(runner))

	path, err := s.Executable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pwsh", path)

	// Second lookup uses the cached path without probing again.
	before := runner.callCount()
	_, err = s.Executable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, runner.callCount())
}

func TestExecute_ConcurrentLazyResolution(t *testing.T) {
	runner := &fakeRunner{stdout: "ok\n", exitCode: 0}
	s := New(WithRunner(runner))

	// No pinned path: every goroutine races through Executable on first use.
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := s.Execute(context.Background(), "Get-Date", nil)
			if err == nil && result.Status != StatusSuccess {
				err = fmt.Errorf("unexpected status %s", result.Status)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "execution %d", i)
	}
	path, err := s.Executable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pwsh", path)
}

// TestExecute_RealPwsh exercises a real PowerShell installation when one
// is present.
func TestExecute_RealPwsh(t *testing.T) {
	if _, err := exec.LookPath("pwsh"); err != nil {
		t.Skip("pwsh not installed")
	}

	s := New(WithTimeout(20 * time.Second))
	result, err := s.Execute(context.Background(), `Write-Output "sandbox-ok"`, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Contains(t, result.Stdout, "sandbox-ok")
	assert.Equal(t, 0, result.ExitCode)
}
