// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/refparser"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

const sampleGoSource = `package sample

func Helper() int {
	return 1
}

func Caller() int {
	return Helper()
}
`

func TestAnalyzeFirstRunProducesNodesAndEdges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", sampleGoSource)

	p := New("r", refparser.New(), nil, nil)
	result, err := p.Analyze(context.Background(), "pkg/sample", dir, Options{IfChanged: true})
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.FilesAnalyzed)
	assert.GreaterOrEqual(t, result.NodesCreated, 2)
}

// TestAnalyzeIfChangedSkipsUnmodifiedPackage is scenario S4: running Analyze
// twice with if_changed=true and no file modifications between runs must
// report skipped=true and files_analyzed=0 on the second run.
func TestAnalyzeIfChangedSkipsUnmodifiedPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", sampleGoSource)

	p := New("r", refparser.New(), nil, nil)
	ctx := context.Background()

	first, err := p.Analyze(ctx, "pkg/sample", dir, Options{IfChanged: true})
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := p.Analyze(ctx, "pkg/sample", dir, Options{IfChanged: true})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, 0, second.FilesAnalyzed)
}

func TestAnalyzeForceReanalyzesEvenWithoutChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", sampleGoSource)

	p := New("r", refparser.New(), nil, nil)
	ctx := context.Background()

	_, err := p.Analyze(ctx, "pkg/sample", dir, Options{IfChanged: true})
	require.NoError(t, err)

	second, err := p.Analyze(ctx, "pkg/sample", dir, Options{IfChanged: true, Force: true})
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.Equal(t, 1, second.FilesAnalyzed)
}

func TestAnalyzeDetectsChangedFileAfterEdit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", sampleGoSource)

	p := New("r", refparser.New(), nil, nil)
	ctx := context.Background()

	_, err := p.Analyze(ctx, "pkg/sample", dir, Options{IfChanged: true})
	require.NoError(t, err)

	writeFile(t, dir, "sample.go", sampleGoSource+"\nfunc Extra() {}\n")

	second, err := p.Analyze(ctx, "pkg/sample", dir, Options{IfChanged: true})
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.Equal(t, 1, second.FilesAnalyzed)
	assert.GreaterOrEqual(t, second.NodesCreated, 3)
}

func TestAnalyzeResolvesLocalCall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", sampleGoSource)

	p := New("r", refparser.New(), nil, nil)
	result, err := p.Analyze(context.Background(), "pkg/sample", dir, Options{})
	require.NoError(t, err)
	assert.Greater(t, result.EdgesCreated, 0)
}
