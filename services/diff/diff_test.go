// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diff

import (
	"strings"
	"testing"

	godiff "github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const originalScript = `$files = Get-ChildItem
foreach ($f in $files) {
    Write-Host $f.Name
}
`

const improvedScript = `[CmdletBinding()]
param()

$files = Get-ChildItem
try {
    foreach ($f in $files) {
        Write-Output $f.Name
    }
} catch {
    Write-Error $_
}
`

func TestGenerate_Identical(t *testing.T) {
	g := New()

	result, err := g.Generate(originalScript, originalScript, true)
	require.NoError(t, err)

	assert.Empty(t, result.UnifiedDiff)
	assert.Empty(t, result.Hunks)
	assert.Zero(t, result.LinesAdded)
	assert.Zero(t, result.LinesRemoved)
	assert.Zero(t, result.LinesModified)
	assert.Equal(t, 1.0, result.SimilarityRatio)
	assert.Empty(t, result.Improvements)
}

func TestGenerate_Statistics(t *testing.T) {
	g := New()

	result, err := g.Generate("a\nb\nc\n", "a\nX\nc\nd\n", false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.OriginalLines)
	assert.Equal(t, 4, result.ImprovedLines)
	assert.Equal(t, 1, result.LinesModified)
	assert.Equal(t, 1, result.LinesAdded)
	assert.Zero(t, result.LinesRemoved)
	assert.Greater(t, result.SimilarityRatio, 0.0)
	assert.Less(t, result.SimilarityRatio, 1.0)
}

func TestGenerate_PureInsertAndDelete(t *testing.T) {
	g := New()

	result, err := g.Generate("a\nb\n", "a\nb\nc\nd\n", false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.LinesAdded)
	assert.Zero(t, result.LinesRemoved)

	result, err = g.Generate("a\nb\nc\n", "a\n", false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.LinesRemoved)
	assert.Zero(t, result.LinesAdded)
}

func TestGenerate_UnifiedDiffParses(t *testing.T) {
	g := New()

	result, err := g.Generate(originalScript, improvedScript, false)
	require.NoError(t, err)
	require.NotEmpty(t, result.UnifiedDiff)

	parsed, err := godiff.ParseFileDiff([]byte(result.UnifiedDiff))
	require.NoError(t, err)
	assert.Contains(t, parsed.OrigName, "original.ps1")
	assert.Contains(t, parsed.NewName, "improved.ps1")
	assert.NotEmpty(t, parsed.Hunks)
}

func TestGenerate_Hunks(t *testing.T) {
	g := New()

	result, err := g.Generate("a\nb\nc\nd\ne\nf\ng\n", "a\nb\nc\nX\ne\nf\ng\n", false)
	require.NoError(t, err)
	require.Len(t, result.Hunks, 1)

	hunk := result.Hunks[0]
	assert.Equal(t, 4, hunk.StartLineOld)
	assert.Equal(t, 4, hunk.StartLineNew)
	assert.Equal(t, []string{"a", "b", "c"}, hunk.ContextBefore)
	assert.Equal(t, []string{"e", "f", "g"}, hunk.ContextAfter)

	require.Len(t, hunk.Lines, 1)
	line := hunk.Lines[0]
	assert.Equal(t, ChangeModified, line.ChangeType)
	require.NotNil(t, line.ContentOld)
	require.NotNil(t, line.ContentNew)
	assert.Equal(t, "d", *line.ContentOld)
	assert.Equal(t, "X", *line.ContentNew)
}

func TestGenerate_InsertLineNumbers(t *testing.T) {
	g := New()

	result, err := g.Generate("a\nb\n", "a\nb\nc\n", false)
	require.NoError(t, err)
	require.Len(t, result.Hunks, 1)

	line := result.Hunks[0].Lines[0]
	assert.Equal(t, ChangeAdded, line.ChangeType)
	assert.Nil(t, line.LineNumberOld)
	assert.Nil(t, line.ContentOld)
	require.NotNil(t, line.LineNumberNew)
	assert.Equal(t, 3, *line.LineNumberNew)
}

func TestDetectImprovements(t *testing.T) {
	g := New()

	result, err := g.Generate(originalScript, improvedScript, true)
	require.NoError(t, err)
	require.NotEmpty(t, result.Improvements)

	categories := make(map[ImprovementCategory]bool)
	descriptions := make(map[string]bool)
	for _, imp := range result.Improvements {
		categories[imp.Category] = true
		descriptions[imp.Description] = true
		assert.Positive(t, imp.LineStart)
		assert.GreaterOrEqual(t, imp.LineEnd, imp.LineStart)
		assert.NotEmpty(t, imp.ImprovedCode)
		assert.Empty(t, imp.OriginalCode)
	}

	assert.True(t, categories[CategoryErrorHandling])
	assert.True(t, categories[CategoryBestPractices])
	assert.True(t, descriptions["Added try-catch error handling"])
	assert.True(t, descriptions["Added CmdletBinding attribute"])
}

func TestDetectImprovements_SkipsExisting(t *testing.T) {
	g := New()

	// try/catch exists in both versions, so it is not an improvement.
	code := "try { Get-Date } catch { }"
	result, err := g.Generate(code, code+"\nWrite-Verbose 'done'", true)
	require.NoError(t, err)

	for _, imp := range result.Improvements {
		assert.NotEqual(t, "Added try-catch error handling", imp.Description)
	}
}

func TestChangeSummary(t *testing.T) {
	g := New()

	result, err := g.Generate(originalScript, improvedScript, true)
	require.NoError(t, err)

	summary := ChangeSummary(result)
	assert.Contains(t, summary, "Code Comparison Summary")
	assert.Contains(t, summary, "lines added")
	assert.Contains(t, summary, "Similarity:")
	assert.Contains(t, summary, "Detected Improvements:")
	assert.Contains(t, summary, "[error_handling]")
}

func TestHTMLDiff(t *testing.T) {
	g := New()

	result, err := g.Generate("a\n<b>\n", "a\n<c>\n", false)
	require.NoError(t, err)

	assert.Contains(t, result.HTMLDiff, "diff-table")
	assert.Contains(t, result.HTMLDiff, "diff_chg")
	assert.Contains(t, result.HTMLDiff, "&lt;b&gt;")
	assert.Contains(t, result.HTMLDiff, "&lt;c&gt;")
	assert.NotContains(t, result.HTMLDiff, "<b>")
}

func TestSimilaritySymmetricBounds(t *testing.T) {
	g := New()

	result, err := g.Generate("completely different\n", strings.Repeat("x\n", 10), false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.SimilarityRatio, 0.0)
	assert.LessOrEqual(t, result.SimilarityRatio, 1.0)
}
