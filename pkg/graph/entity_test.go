// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashStableAcrossReparses(t *testing.T) {
	// S1: parsing `export class A { m() {} }` twice must yield identical
	// entity IDs for A and m.
	h1 := ContentHash("pkg/a.ts", "A", string(KindClass), 1, 0, 1, 25)
	h2 := ContentHash("pkg/a.ts", "A", string(KindClass), 1, 0, 1, 25)
	assert.Equal(t, h1, h2)

	m1 := ContentHash("pkg/a.ts", "m", string(KindMethod), 1, 16, 1, 23)
	m2 := ContentHash("pkg/a.ts", "m", string(KindMethod), 1, 16, 1, 23)
	assert.Equal(t, m1, m2)
	assert.NotEqual(t, h1, m1)
}

func TestEntityIDRoundTrip(t *testing.T) {
	id := NewEntityID("repo1", "pkg/a", string(KindClass), "abc123")
	parsed, ok := ParseEntityID(id)
	require.True(t, ok)
	assert.Equal(t, "repo1", parsed.Repo)
	assert.Equal(t, "pkg/a", parsed.Package)
	assert.Equal(t, string(KindClass), parsed.Kind)
	assert.Equal(t, "abc123", parsed.Hash)
}

func TestEntityIDRootPackage(t *testing.T) {
	id := NewEntityID("repo1", "", string(KindModule), "root")
	assert.Equal(t, "repo1:.:module:root", id)
}

func TestEdgeUnresolvedHelpers(t *testing.T) {
	e := Edge{TargetEntityID: "unresolved:doStuff"}
	assert.True(t, e.IsUnresolved())
	assert.Equal(t, "doStuff", e.UnresolvedName())

	resolved := Edge{TargetEntityID: "repo1:pkg:function:deadbeef"}
	assert.False(t, resolved.IsUnresolved())
	assert.Equal(t, "", resolved.UnresolvedName())
}

func TestFileContentHashChangesWithContent(t *testing.T) {
	h1 := FileContentHash([]byte("package a\n"))
	h2 := FileContentHash([]byte("package a\n"))
	h3 := FileContentHash([]byte("package b\n"))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
