// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package hub

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/graph"
	"github.com/kraklabs/devac/pkg/pipeline"
	"github.com/kraklabs/devac/pkg/refparser"
	"github.com/kraklabs/devac/pkg/seedstore"
)

func writeGoFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// analyzedRepo builds a minimal one-package repo with seed artifacts already
// written, ready to be registered with a Hub.
func analyzedRepo(t *testing.T, repoID string) string {
	t.Helper()
	dir := t.TempDir()
	writeGoFile(t, dir, "app.go", "package app\n\nfunc Run() int {\n\treturn 1\n}\n")

	p := pipeline.New(repoID, refparser.New(), nil, nil)
	_, err := p.Analyze(context.Background(), ".", dir, pipeline.Options{})
	require.NoError(t, err)
	return dir
}

func TestRegisterCreatesRepoAndPackageRows(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	repoDir := analyzedRepo(t, "repoA")
	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))

	repos, err := h.ListRepos(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "repoA", repos[0].RepoID)

	status, err := h.GetRepoStatus(context.Background(), "repoA")
	require.NoError(t, err)
	assert.Equal(t, repoDir, status.LocalPath)
}

func TestGetRepoStatusNotFound(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.GetRepoStatus(context.Background(), "missing")
	require.Error(t, err)
}

func TestInitForceReinitClearsCatalog(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	repoDir := analyzedRepo(t, "repoA")
	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))
	require.NoError(t, h.Close())

	h2, err := Init(hubDir, true, nil, nil)
	require.NoError(t, err)
	defer h2.Close()

	repos, err := h2.ListRepos(context.Background())
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestDiagnosticsLifecycle(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	repoDir := analyzedRepo(t, "repoA")
	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))

	require.NoError(t, h.PushDiagnostic(context.Background(), Diagnostic{
		ID: "d1", RepoID: "repoA", Severity: "error", Message: "broken import",
	}))
	require.NoError(t, h.PushDiagnostic(context.Background(), Diagnostic{
		ID: "d2", RepoID: "repoA", Severity: "warning", Message: "unused symbol",
	}))

	diags, err := h.GetDiagnostics(context.Background(), "repoA", false)
	require.NoError(t, err)
	assert.Len(t, diags, 2)

	summary, err := h.GetDiagnosticsSummary(context.Background(), "repoA")
	require.NoError(t, err)
	assert.Equal(t, 1, summary["error"])
	assert.Equal(t, 1, summary["warning"])

	require.NoError(t, h.ResolveDiagnostic(context.Background(), "d1"))
	unresolved, err := h.GetDiagnostics(context.Background(), "repoA", true)
	require.NoError(t, err)
	assert.Len(t, unresolved, 1)
	assert.Equal(t, "d2", unresolved[0].ID)

	require.NoError(t, h.ClearDiagnostics(context.Background(), "repoA"))
	cleared, err := h.GetDiagnostics(context.Background(), "repoA", false)
	require.NoError(t, err)
	assert.Empty(t, cleared)
}

func TestRegisterProjectsCrossRepoEdgeSourceFilePath(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	repoDir := analyzedRepo(t, "repoA")
	store := seedstore.New(repoDir, nil)
	require.NoError(t, store.Write(context.Background(), "", seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "repoA:pkg:function:local1", Name: "local1", FilePath: "app.go"}},
		ExternalRefs: []graph.ExternalRef{{
			SourceEntityID: "repoA:pkg:function:local1",
			TargetEntityID: "repoB:pkg:function:remote1",
			IsResolved:     true,
			SourceFilePath: "app.go",
		}},
	}))

	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))

	var sourceFilePath string
	row := h.db.QueryRowContext(context.Background(), `
		SELECT source_file_path FROM cross_repo_edges
		WHERE source_entity_id = ? AND target_entity_id = ?
	`, "repoA:pkg:function:local1", "repoB:pkg:function:remote1")
	require.NoError(t, row.Scan(&sourceFilePath))
	assert.Equal(t, "app.go", sourceFilePath)
}

func TestAnalyzeFindsDirectlyAffectedRepo(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	repoDir := analyzedRepo(t, "repoA")
	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))

	ctx := context.Background()
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO cross_repo_edges (source_entity_id, target_entity_id, source_repo_id, target_repo_id, edge_type)
		VALUES (?, ?, ?, ?, ?)
	`, "repoA:pkg:function:abc", "repoB:pkg:function:def", "repoA", "repoB", "CALLS")
	require.NoError(t, err)

	affected, err := h.Analyze(ctx, []string{"repoB:pkg:function:def"}, 10)
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, "repoA", affected[0].RepoID)
	assert.Equal(t, "direct", affected[0].ImpactLevel)
	assert.Contains(t, affected[0].AffectedEntities, "repoA:pkg:function:abc")
}

func TestRefreshRegeneratesManifest(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	repoDir := analyzedRepo(t, "repoA")
	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))

	result, err := h.Refresh(context.Background(), []string{"repoA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"repoA"}, result.RefreshedRepos)
	assert.Empty(t, result.Errors)
}

func TestQueryExecutesRawSQLAgainstCatalog(t *testing.T) {
	hubDir := t.TempDir()
	h, err := Init(hubDir, false, nil, nil)
	require.NoError(t, err)
	defer h.Close()

	repoDir := analyzedRepo(t, "repoA")
	require.NoError(t, h.Register(context.Background(), "repoA", repoDir))

	rows, err := h.Query(context.Background(), "SELECT repo_id FROM repos")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "repoA", rows[0]["repo_id"])
}
