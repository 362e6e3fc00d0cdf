// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/graph"
)

// sameDirResolver resolves "./name" specifiers to "<name>.ts" in the same
// directory as fromFile, a minimal stand-in for a language module resolver.
type sameDirResolver struct{ files map[string]bool }

func (s sameDirResolver) ResolveModule(fromFile, specifier string) (string, bool) {
	dir := filepath.Dir(fromFile)
	name := specifier
	if len(name) > 2 && name[:2] == "./" {
		name = name[2:]
	}
	candidate := filepath.Join(dir, name+".ts")
	if s.files[candidate] {
		return candidate, true
	}
	return "", false
}

func TestResolveRefsAcrossFiles(t *testing.T) {
	aFile := FileUnit{
		Path: "pkg/a.ts",
		Result: graph.ParseResult{
			Nodes: []graph.Node{{EntityID: "r:p:function:helper", Name: "helper", Flags: graph.Flags{IsExported: true}}},
		},
	}
	bFile := FileUnit{
		Path: "pkg/b.ts",
		Result: graph.ParseResult{
			ExternalRefs: []graph.ExternalRef{
				{SourceEntityID: "r:p:function:caller", ModuleSpecifier: "./a", ImportedSymbol: "helper", ImportStyle: graph.ImportNamed, TargetEntityID: "unresolved:helper"},
			},
		},
	}

	files := []FileUnit{aFile, bFile}
	resolv := New(nil, sameDirResolver{files: map[string]bool{"pkg/a.ts": true}})
	resolv.BuildIndex(files)

	result := resolv.Resolve(context.Background(), "pkg", files)
	require.Len(t, result.ExternalRefs, 1)
	assert.True(t, result.ExternalRefs[0].IsResolved)
	assert.Equal(t, "r:p:function:helper", result.ExternalRefs[0].TargetEntityID)
}

func TestResolveCallsLocalFirst(t *testing.T) {
	f := FileUnit{
		Path: "pkg/a.ts",
		Result: graph.ParseResult{
			Nodes: []graph.Node{
				{EntityID: "r:p:function:caller", Name: "caller"},
				{EntityID: "r:p:function:callee", Name: "callee"},
			},
			Edges: []graph.Edge{
				{SourceEntityID: "r:p:function:caller", TargetEntityID: "unresolved:callee", EdgeType: graph.EdgeCalls},
			},
		},
	}
	files := []FileUnit{f}
	resolv := New(nil, nil)
	resolv.BuildIndex(files)
	result := resolv.Resolve(context.Background(), "pkg", files)

	require.Len(t, result.Edges, 1)
	assert.Equal(t, "r:p:function:callee", result.Edges[0].TargetEntityID)
	assert.False(t, result.Edges[0].IsUnresolved())
}

func TestUnresolvableRefRecordsModuleNotFound(t *testing.T) {
	f := FileUnit{
		Path: "pkg/b.ts",
		Result: graph.ParseResult{
			ExternalRefs: []graph.ExternalRef{
				{ModuleSpecifier: "./missing", ImportedSymbol: "x", TargetEntityID: "unresolved:x"},
			},
		},
	}
	files := []FileUnit{f}
	resolv := New(nil, sameDirResolver{files: map[string]bool{}})
	resolv.BuildIndex(files)
	result := resolv.Resolve(context.Background(), "pkg", files)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrModuleNotFound, result.Errors[0].Code)
	assert.False(t, result.ExternalRefs[0].IsResolved)
}

func TestResolverMonotonicityAcrossRepeatedRuns(t *testing.T) {
	// Testable property 5: running the resolver twice on the same inputs
	// yields the same resolved count; it never decreases.
	aFile := FileUnit{
		Path:   "pkg/a.ts",
		Result: graph.ParseResult{Nodes: []graph.Node{{EntityID: "r:p:function:helper", Name: "helper", Flags: graph.Flags{IsExported: true}}}},
	}
	bFile := FileUnit{
		Path: "pkg/b.ts",
		Result: graph.ParseResult{
			ExternalRefs: []graph.ExternalRef{
				{ModuleSpecifier: "./a", ImportedSymbol: "helper", ImportStyle: graph.ImportNamed, TargetEntityID: "unresolved:helper"},
			},
		},
	}
	files := []FileUnit{aFile, bFile}

	run := func() int {
		resolv := New(nil, sameDirResolver{files: map[string]bool{"pkg/a.ts": true}})
		resolv.BuildIndex(files)
		return resolv.Resolve(context.Background(), "pkg", files).ResolvedCount
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, second, first)
}
