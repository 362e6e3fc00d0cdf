// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package queryengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/graph"
	"github.com/kraklabs/devac/pkg/seedstore"
)

func writePackage(t *testing.T, dir string, set seedstore.SeedSet) {
	t.Helper()
	store := seedstore.New(dir, nil)
	require.NoError(t, store.Write(context.Background(), "", set))
}

func TestQueryBindsNodesAcrossPackages(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writePackage(t, dirA, seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "r:a:function:1", Name: "fnA", Kind: graph.KindFunction, Branch: "base"}},
	})
	writePackage(t, dirB, seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "r:b:function:1", Name: "fnB", Kind: graph.KindFunction, Branch: "base"}},
	})

	engine, err := New(0, nil)
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.Query(context.Background(), Request{
		Packages: []string{dirA, dirB},
		SQL:      "SELECT name FROM nodes ORDER BY name",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "fnA", res.Rows[0]["name"])
	assert.Equal(t, "fnB", res.Rows[1]["name"])
}

func TestQueryPlaceholderSubstitution(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "r:a:function:1", Name: "fn", Kind: graph.KindFunction, Branch: "base"}},
	})

	engine, err := New(0, nil)
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.Query(context.Background(), Request{
		Packages: []string{dir},
		SQL:      "SELECT COUNT(*) as c FROM {nodes}",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 1, res.Rows[0]["c"])
}

func TestQueryMissingTableReportsWarning(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "r:a:function:1", Name: "fn", Branch: "base"}},
	})

	engine, err := New(0, nil)
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.Query(context.Background(), Request{
		Packages: []string{dir},
		SQL:      "SELECT name FROM nodes",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "no rows bound for logical table: edges")
}

func TestQueryInvalidSQLIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "r:a:function:1", Name: "fn", Branch: "base"}},
	})

	engine, err := New(0, nil)
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Query(context.Background(), Request{
		Packages: []string{dir},
		SQL:      "SELECT * FROM not_a_real_table",
	})
	require.Error(t, err)
	// A retried failure ends as Unavailable; a schema error returns at once as Invalid.
	kind, ok := engerr.As(err)
	require.True(t, ok)
	assert.Equal(t, engerr.KindInvalid, kind)
}

func TestQueryJoinsNodesAndEdges(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, seedstore.SeedSet{
		Nodes: []graph.Node{
			{EntityID: "r:p:class:a", Name: "A", Kind: graph.KindClass, Branch: "base"},
			{EntityID: "r:p:method:b", Name: "m", Kind: graph.KindMethod, Branch: "base"},
		},
		Edges: []graph.Edge{
			{SourceEntityID: "r:p:class:a", TargetEntityID: "r:p:method:b", EdgeType: graph.EdgeContains, Branch: "base"},
		},
	})

	engine, err := New(0, nil)
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.Query(context.Background(), Request{
		Packages: []string{dir},
		SQL:      "SELECT n.name FROM nodes n JOIN edges e ON e.target_entity_id = n.entity_id",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "m", res.Rows[0]["name"])
}
