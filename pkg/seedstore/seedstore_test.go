// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package seedstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/graph"
)

func sampleSet() SeedSet {
	return SeedSet{
		Nodes: []graph.Node{
			{EntityID: "r:p:class:aaaa", Name: "A", Kind: graph.KindClass, FilePath: "a.ts", Branch: "base"},
			{EntityID: "r:p:method:bbbb", Name: "m", Kind: graph.KindMethod, FilePath: "a.ts", Branch: "base"},
		},
		Edges: []graph.Edge{
			{SourceEntityID: "r:p:class:aaaa", TargetEntityID: "r:p:method:bbbb", EdgeType: graph.EdgeContains, SourceFilePath: "a.ts", Branch: "base"},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)

	set := sampleSet()
	require.NoError(t, store.Write(context.Background(), "", set))

	got, err := store.Read(BasePartition)
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
	assert.Equal(t, "A", got.Nodes[0].Name)
}

func TestWriteIsAtomicNoStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	require.NoError(t, store.Write(context.Background(), "", sampleSet()))

	nodesPath := store.tablePath(BasePartition, TableNodes)
	_, err := os.Stat(nodesPath)
	require.NoError(t, err)

	matches, err := filepath.Glob(nodesPath + ".tmp.*")
	require.NoError(t, err)
	assert.Empty(t, matches, "no leftover temp files after a successful write")
}

func TestReadLeavesWrittenTableUnchanged(t *testing.T) {
	// Writes once, reads the partition back, and checks that the nodes table
	// file is byte-for-byte what the write produced. No failed write is
	// simulated here.
	dir := t.TempDir()
	store := New(dir, nil)
	first := sampleSet()
	require.NoError(t, store.Write(context.Background(), "", first))

	before, err := os.ReadFile(store.tablePath(BasePartition, TableNodes))
	require.NoError(t, err)

	got, err := store.Read(BasePartition)
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)

	after, err := os.ReadFile(store.tablePath(BasePartition, TableNodes))
	require.NoError(t, err)
	assert.Equal(t, before, after, "reading must never mutate the on-disk file")
}

func TestConcurrentWriteIsRejected(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)

	release, err := store.acquireLock()
	require.NoError(t, err)
	defer release()

	err = store.Write(context.Background(), "", sampleSet())
	require.Error(t, err)
}

func TestStaleLockIsOverwritten(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.lockPath()), 0o755))
	require.NoError(t, os.WriteFile(store.lockPath(), []byte("pid=999999999\nstarted=2020-01-01T00:00:00Z\nid=stale\n"), 0o644))

	err := store.Write(context.Background(), "", sampleSet())
	require.NoError(t, err, "a lockfile naming a dead pid must be overwritten, not treated as permanently held")

	got, err := store.Read("")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
}

func TestBranchDeltaMerge(t *testing.T) {
	// S3: base {N1, N2}; delta on branch "feat" {N2', N3, tombstone(N1)};
	// live(P, feat) = {N2', N3}.
	dir := t.TempDir()
	store := New(dir, nil)

	n1 := graph.Node{EntityID: "r:p:function:n1", Name: "n1", Branch: "base"}
	n2 := graph.Node{EntityID: "r:p:function:n2", Name: "n2", Branch: "base"}
	require.NoError(t, store.Write(context.Background(), "", SeedSet{Nodes: []graph.Node{n1, n2}}))

	n2Prime := graph.Node{EntityID: "r:p:function:n2", Name: "n2-renamed", Branch: "feat"}
	n3 := graph.Node{EntityID: "r:p:function:n3", Name: "n3", Branch: "feat"}
	tombstoneN1 := graph.Node{EntityID: "r:p:function:n1", IsDeleted: true, Branch: "feat"}
	require.NoError(t, store.Write(context.Background(), "feat", SeedSet{Nodes: []graph.Node{n2Prime, n3, tombstoneN1}}))

	live, err := store.Read("feat")
	require.NoError(t, err)

	names := map[string]string{}
	for _, n := range live.Nodes {
		names[n.EntityID] = n.Name
	}
	assert.Len(t, live.Nodes, 2)
	assert.Equal(t, "n2-renamed", names["r:p:function:n2"])
	assert.Equal(t, "n3", names["r:p:function:n3"])
	_, hasN1 := names["r:p:function:n1"]
	assert.False(t, hasN1)
}

func TestValidateReportsOrphanEdge(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	require.NoError(t, store.Write(context.Background(), "", SeedSet{
		Nodes: []graph.Node{{EntityID: "r:p:function:a"}},
		Edges: []graph.Edge{{SourceEntityID: "r:p:function:missing", TargetEntityID: "r:p:function:a", EdgeType: graph.EdgeCalls}},
	}))

	result := store.Validate(context.Background())
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateWarnsOnUnresolvedRefsOnly(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	require.NoError(t, store.Write(context.Background(), "", SeedSet{
		Nodes:        []graph.Node{{EntityID: "r:p:function:a"}},
		ExternalRefs: []graph.ExternalRef{{SourceEntityID: "r:p:function:a", ImportedSymbol: "x", TargetEntityID: "unresolved:x"}},
	}))

	result := store.Validate(context.Background())
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}
