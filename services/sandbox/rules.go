// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import "regexp"

// blockedCommands are never allowed inside the sandbox. Matching is a
// case-insensitive substring check, so aliases and type accelerators are
// caught wherever they appear on a line.
var blockedCommands = []string{
	// Dangerous execution
	"Invoke-Expression",
	"iex",
	"Invoke-Command",
	"icm",
	"Start-Process",
	"saps",
	// Network/Download
	"Invoke-WebRequest",
	"iwr",
	"Invoke-RestMethod",
	"irm",
	"wget",
	"curl",
	"Net.WebClient",
	"Start-BitsTransfer",
	// Registry modification
	"Set-ItemProperty",
	"Remove-ItemProperty",
	"New-ItemProperty",
	// Service manipulation
	"Start-Service",
	"Stop-Service",
	"Set-Service",
	"Restart-Service",
	// Scheduled tasks
	"Register-ScheduledTask",
	"Set-ScheduledTask",
	// User/security
	"New-LocalUser",
	"Add-LocalGroupMember",
	"Set-LocalUser",
	// PowerShell remoting
	"Enter-PSSession",
	"New-PSSession",
	"Invoke-CimMethod",
	// Dangerous file operations
	"Remove-Item",
	"ri",
	"del",
	"rmdir",
	"Clear-Content",
	"Set-Content",
	"Out-File",
	"Add-Content",
	// Environment modification
	"Set-Variable",
	"New-Variable",
	"[Environment]",
	// Execution policy bypass
	"Set-ExecutionPolicy",
	"-ExecutionPolicy Bypass",
	// Encoding tricks
	"[System.Convert]::FromBase64String",
	"[Text.Encoding]",
	// Assembly/Reflection
	"Add-Type",
	"[Reflection.Assembly]",
	"Load(",
	// COM objects
	"New-Object -ComObject",
}

// shortAliases are blocked entries that frequently collide with ordinary
// identifiers ("irma", "$series"). They only count as blocked when they
// appear as a whole word.
var shortAliases = map[string]*regexp.Regexp{
	"iex":   regexp.MustCompile(`(?i)\biex\b`),
	"icm":   regexp.MustCompile(`(?i)\bicm\b`),
	"iwr":   regexp.MustCompile(`(?i)\biwr\b`),
	"irm":   regexp.MustCompile(`(?i)\birm\b`),
	"ri":    regexp.MustCompile(`(?i)\bri\b`),
	"del":   regexp.MustCompile(`(?i)\bdel\b`),
	"rmdir": regexp.MustCompile(`(?i)\brmdir\b`),
	"saps":  regexp.MustCompile(`(?i)\bsaps\b`),
	"wget":  regexp.MustCompile(`(?i)\bwget\b`),
	"curl":  regexp.MustCompile(`(?i)\bcurl\b`),
}

// allowedCommands documents the read-only surface the sandbox is meant
// for. The list is advisory: validation blocks the dangerous surface and
// this list is exposed so callers can show users what is supported.
var allowedCommands = []string{
	// System info (read-only)
	"Get-Process",
	"Get-Service",
	"Get-EventLog",
	"Get-WinEvent",
	"Get-CimInstance",
	"Get-WmiObject",
	"Get-ComputerInfo",
	// File system (read-only)
	"Get-ChildItem",
	"Get-Item",
	"Get-Content",
	"Test-Path",
	"Get-Location",
	"Resolve-Path",
	// PowerShell info
	"Get-Command",
	"Get-Help",
	"Get-Module",
	"Get-Variable",
	"Get-Alias",
	// Object pipeline
	"Select-Object",
	"Where-Object",
	"ForEach-Object",
	"Sort-Object",
	"Group-Object",
	"Measure-Object",
	"Format-Table",
	"Format-List",
	"Out-String",
	"ConvertTo-Json",
	"ConvertFrom-Json",
	// Math/Calculations
	"Measure-Command",
	// Date/Time
	"Get-Date",
	"New-TimeSpan",
}

// suspiciousPattern warns (or blocks, for network indicators when network
// access is off) without being on the hard block list.
type suspiciousPattern struct {
	Needle  string
	Warning string
}

var suspiciousPatterns = []suspiciousPattern{
	{"-EncodedCommand", "Encoded commands are not allowed"},
	{"-enc ", "Encoded commands are not allowed"},
	{"DownloadString", "Remote code execution not allowed"},
	{"DownloadFile", "File downloads not allowed"},
	{"System.Net.", "Network classes not allowed"},
	{"System.IO.File", "Direct file access not allowed"},
	{"::WriteAllBytes", "Binary file writing not allowed"},
	{"$env:", "Environment variable access detected"},
	{"$profile", "Profile access not allowed"},
}

// AllowedCommands returns the advisory read-only command list.
func AllowedCommands() []string {
	out := make([]string, len(allowedCommands))
	copy(out, allowedCommands)
	return out
}

// BlockedCommands returns the hard block list.
func BlockedCommands() []string {
	out := make([]string, len(blockedCommands))
	copy(out, blockedCommands)
	return out
}
