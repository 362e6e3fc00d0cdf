// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package seedstore

import (
	"fmt"

	"github.com/kraklabs/devac/pkg/graph"
)

// Merge computes the live view of base ⊎ delta, grouped by primary key, with
// delta rows winning and tombstones (is_deleted=true) dropped from the
// result (testable property 3, scenario S3).
func Merge(base, delta SeedSet) SeedSet {
	return SeedSet{
		Nodes:        mergeRows(base.Nodes, delta.Nodes, nodeKey),
		Edges:        mergeRows(base.Edges, delta.Edges, edgeKey),
		ExternalRefs: mergeRows(base.ExternalRefs, delta.ExternalRefs, refKey),
		Effects:      mergeRows(base.Effects, delta.Effects, effectKey),
	}
}

func nodeKey(n graph.Node) string { return n.EntityID }

func edgeKey(e graph.Edge) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%d", e.SourceEntityID, e.TargetEntityID, e.EdgeType, e.SourceLine, e.SourceColumn)
}

func refKey(r graph.ExternalRef) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d", r.SourceEntityID, r.ModuleSpecifier, r.ImportedSymbol, r.SourceLine)
}

func effectKey(e graph.Effect) string { return e.EffectID }

func mergeRows[T any](base, delta []T, keyOf func(T) string) []T {
	isDeletedOf := func(v T) bool {
		switch x := any(v).(type) {
		case graph.Node:
			return x.IsDeleted
		case graph.Edge:
			return x.IsDeleted
		case graph.ExternalRef:
			return x.IsDeleted
		case graph.Effect:
			return false
		}
		return false
	}

	byKey := make(map[string]T, len(base)+len(delta))
	order := make([]string, 0, len(base)+len(delta))
	for _, b := range base {
		k := keyOf(b)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = b
	}
	for _, d := range delta {
		k := keyOf(d)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = d
	}

	result := make([]T, 0, len(order))
	for _, k := range order {
		v := byKey[k]
		if isDeletedOf(v) {
			continue
		}
		result = append(result, v)
	}
	return result
}
