// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package seedstore

import (
	"context"
	"fmt"
	"os"
)

// ValidationResult is the outcome of Store.Validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Stats    Stats    `json:"stats"`
}

// Validate checks the base partition's integrity per SPEC_FULL §4.1:
// existence/readability of each table file, meta.json presence/parseability,
// schema_version equality, referential consistency (every edge's source
// appears as a node in the same partition), and counts unresolved refs as a
// warning, not an error.
func (s *Store) Validate(ctx context.Context) ValidationResult {
	result := ValidationResult{Valid: true}

	meta, err := s.ReadMeta()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("meta.json: %v", err))
		result.Valid = false
	} else if meta.SchemaVersion != SchemaVersion {
		result.Errors = append(result.Errors, fmt.Sprintf("schema version mismatch: have %q, engine supports %q", meta.SchemaVersion, SchemaVersion))
		result.Valid = false
	}

	for _, table := range allTables {
		path := s.tablePath(BasePartition, table)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s table missing (seeds can be regenerated)", table))
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s table unreadable: %v", table, err))
			result.Valid = false
		}
	}

	set, err := s.ReadPartition(BasePartition)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("read base partition: %v", err))
		result.Valid = false
		return result
	}

	nodeIDs := make(map[string]struct{}, len(set.Nodes))
	for _, n := range set.Nodes {
		nodeIDs[n.EntityID] = struct{}{}
	}

	unresolvedCount := 0
	for _, e := range set.Edges {
		if _, ok := nodeIDs[e.SourceEntityID]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("orphan edge source: %s -> %s", e.SourceEntityID, e.TargetEntityID))
			result.Valid = false
		}
		if e.IsUnresolved() {
			unresolvedCount++
		}
	}
	for _, r := range set.ExternalRefs {
		if !r.IsResolved {
			unresolvedCount++
		}
	}
	if unresolvedCount > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d unresolved reference(s)", unresolvedCount))
	}

	result.Stats = Stats{
		NodeCount: len(set.Nodes),
		EdgeCount: len(set.Edges),
		RefCount:  len(set.ExternalRefs),
	}
	return result
}
