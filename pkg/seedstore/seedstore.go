// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package seedstore implements the Columnar Seed Store (C1): atomic
// read/write of per-package graph artifacts, base/branch partitioning and
// integrity validation over Parquet files.
package seedstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/graph"
)

// SeedRoot is the directory name holding a package's seed artifacts,
// mirroring the repo-level and workspace-level ".devac" convention.
const SeedRoot = ".devac"

// BasePartition is the branch name for the full-snapshot partition.
const BasePartition = "base"

// SchemaVersion is the schema version this engine build reads and writes.
// It is independent of the repository manifest's schema version (see
// pkg/manifest).
const SchemaVersion = "1.0"

// Table enumerates the four columnar tables of a package seed set.
type Table string

const (
	TableNodes        Table = "nodes"
	TableEdges        Table = "edges"
	TableExternalRefs Table = "external_refs"
	TableEffects      Table = "effects"
)

var allTables = []Table{TableNodes, TableEdges, TableExternalRefs, TableEffects}

// Meta is the content of meta.json.
type Meta struct {
	SchemaVersion string `json:"schemaVersion"`
}

// Stats is the content of stats.json.
type Stats struct {
	NodeCount int `json:"nodeCount"`
	EdgeCount int `json:"edgeCount"`
	RefCount  int `json:"refCount"`
	FileCount int `json:"fileCount"`
}

// SeedSet is the in-memory unit of atomic storage: the four tables for one
// (package, branch) partition.
type SeedSet struct {
	Nodes        []graph.Node
	Edges        []graph.Edge
	ExternalRefs []graph.ExternalRef
	Effects      []graph.Effect
}

// Store writes and reads seed sets for a single package directory.
type Store struct {
	PackageDir string
	logger     *slog.Logger
}

// New returns a Store rooted at packageDir (the directory containing
// <SeedRoot>/base and, optionally, <SeedRoot>/branch/<name>).
func New(packageDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{PackageDir: packageDir, logger: logger}
}

func (s *Store) partitionDir(branch string) string {
	if branch == "" || branch == BasePartition {
		return filepath.Join(s.PackageDir, SeedRoot, BasePartition)
	}
	return filepath.Join(s.PackageDir, SeedRoot, "branch", branch)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.PackageDir, SeedRoot, ".lock")
}

func (s *Store) metaPath() string {
	return filepath.Join(s.PackageDir, SeedRoot, "meta.json")
}

func (s *Store) statsPath() string {
	return filepath.Join(s.PackageDir, SeedRoot, "stats.json")
}

func (s *Store) tablePath(branch string, table Table) string {
	return filepath.Join(s.partitionDir(branch), string(table)+".parquet")
}

// Write atomically replaces the four tables of one (branch) partition. The
// per-package lockfile is held for the duration; a concurrent writer to the
// same package fails with a Conflict-kind WriteBusy error.
func (s *Store) Write(ctx context.Context, branch string, set SeedSet) error {
	if branch == "" {
		branch = BasePartition
	}

	release, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	dir := s.partitionDir(branch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engerr.Wrap(engerr.KindIO, "create partition directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.metaPath()), 0o755); err != nil {
		return engerr.Wrap(engerr.KindIO, "create seed root", err)
	}

	writes := []struct {
		table Table
		rows  int
	}{}

	if err := writeTable(s.tablePath(branch, TableNodes), toNodeRows(set.Nodes)); err != nil {
		return err
	}
	writes = append(writes, struct {
		table Table
		rows  int
	}{TableNodes, len(set.Nodes)})

	if err := writeTable(s.tablePath(branch, TableEdges), toEdgeRows(set.Edges)); err != nil {
		return err
	}
	writes = append(writes, struct {
		table Table
		rows  int
	}{TableEdges, len(set.Edges)})

	if err := writeTable(s.tablePath(branch, TableExternalRefs), toRefRows(set.ExternalRefs)); err != nil {
		return err
	}
	writes = append(writes, struct {
		table Table
		rows  int
	}{TableExternalRefs, len(set.ExternalRefs)})

	if err := writeTable(s.tablePath(branch, TableEffects), toEffectRows(set.Effects)); err != nil {
		return err
	}
	writes = append(writes, struct {
		table Table
		rows  int
	}{TableEffects, len(set.Effects)})

	if err := s.writeMeta(); err != nil {
		return err
	}

	stats := Stats{
		NodeCount: len(set.Nodes),
		EdgeCount: len(set.Edges),
		RefCount:  len(set.ExternalRefs),
		FileCount: len(distinctFilePaths(set.Nodes)),
	}
	if err := s.writeStats(stats); err != nil {
		return err
	}

	s.logger.Info("seedstore.write.commit",
		"package", s.PackageDir, "branch", branch,
		"nodes", len(set.Nodes), "edges", len(set.Edges),
		"refs", len(set.ExternalRefs), "effects", len(set.Effects))
	return nil
}

// distinctFilePaths returns the set of distinct file paths referenced by nodes.
func distinctFilePaths(nodes []graph.Node) map[string]struct{} {
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n.FilePath] = struct{}{}
	}
	return seen
}

// writeTable writes rows to path via temp-file + rename, the store's single
// linearization point (testable property 2: atomicity).
func writeTable[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return engerr.Wrap(engerr.KindIO, "create table directory", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d.%s", path, time.Now().UnixNano(), uuid.NewString()[:8])
	if err := writeParquet(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return engerr.Wrap(engerr.KindIO, "write parquet temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return engerr.Wrap(engerr.KindIO, "rename parquet temp file", err)
	}
	return nil
}

func (s *Store) writeMeta() error {
	b, err := json.Marshal(Meta{SchemaVersion: SchemaVersion})
	if err != nil {
		return engerr.Wrap(engerr.KindInvalid, "marshal meta.json", err)
	}
	return atomicWriteBytes(s.metaPath(), b)
}

func (s *Store) writeStats(stats Stats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return engerr.Wrap(engerr.KindInvalid, "marshal stats.json", err)
	}
	return atomicWriteBytes(s.statsPath(), b)
}

func atomicWriteBytes(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return engerr.Wrap(engerr.KindIO, "create directory", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d.%s", path, time.Now().UnixNano(), uuid.NewString()[:8])
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return engerr.Wrap(engerr.KindIO, "write temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return engerr.Wrap(engerr.KindIO, "rename temp file", err)
	}
	return nil
}

// ReadMeta reads meta.json, returning a NotFound error if it is absent.
func (s *Store) ReadMeta() (Meta, error) {
	b, err := os.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, engerr.New(engerr.KindNotFound, "meta.json not found")
		}
		return Meta{}, engerr.Wrap(engerr.KindIO, "read meta.json", err)
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, engerr.Wrap(engerr.KindInvalid, "parse meta.json", err)
	}
	return m, nil
}

// ReadStats reads stats.json, returning zero-value Stats (not an error) if
// absent, since stats can always be recomputed.
func (s *Store) ReadStats() (Stats, error) {
	b, err := os.ReadFile(s.statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, engerr.Wrap(engerr.KindIO, "read stats.json", err)
	}
	var st Stats
	if err := json.Unmarshal(b, &st); err != nil {
		return Stats{}, engerr.Wrap(engerr.KindInvalid, "parse stats.json", err)
	}
	return st, nil
}

// ReadPartition reads the raw (un-merged) contents of one partition. Missing
// table files yield empty slices, not errors: a freshly created branch delta
// need not contain all four tables.
func (s *Store) ReadPartition(branch string) (SeedSet, error) {
	nodeRows, err := readTable[nodeRow](s.tablePath(branch, TableNodes))
	if err != nil {
		return SeedSet{}, err
	}
	edgeRows, err := readTable[edgeRow](s.tablePath(branch, TableEdges))
	if err != nil {
		return SeedSet{}, err
	}
	refRows, err := readTable[refRow](s.tablePath(branch, TableExternalRefs))
	if err != nil {
		return SeedSet{}, err
	}
	effectRows, err := readTable[effectRow](s.tablePath(branch, TableEffects))
	if err != nil {
		return SeedSet{}, err
	}
	return SeedSet{
		Nodes:        fromNodeRows(nodeRows),
		Edges:        fromEdgeRows(edgeRows),
		ExternalRefs: fromRefRows(refRows),
		Effects:      fromEffectRows(effectRows),
	}, nil
}

// Read returns the live view of a package/branch: base merged with the
// branch delta and tombstones applied (testable property 3).
func (s *Store) Read(branch string) (SeedSet, error) {
	base, err := s.ReadPartition(BasePartition)
	if err != nil {
		return SeedSet{}, err
	}
	if branch == "" || branch == BasePartition {
		return base, nil
	}
	delta, err := s.ReadPartition(branch)
	if err != nil {
		return SeedSet{}, err
	}
	return Merge(base, delta), nil
}

func readTable[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engerr.Wrap(engerr.KindIO, "stat table file", err)
	}
	rows, err := readParquet[T](path)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "read parquet table", err)
	}
	return rows, nil
}

// acquireLock creates the per-package lockfile, failing with a Conflict
// WriteBusy error if one already exists and its descriptor names a pid that
// is still alive. Crashed writers leave a lockfile whose pid no longer
// exists; the next writer detects that and overwrites it, per SPEC_FULL
// §4.1: "crashed writers leave stale locks that readers ignore and the next
// writer overwrites."
func (s *Store) acquireLock() (release func(), err error) {
	lockDir := filepath.Dir(s.lockPath())
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "create seed root for lock", err)
	}

	descriptor := fmt.Sprintf("pid=%d\nstarted=%s\nid=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339), uuid.NewString())

	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, engerr.Wrap(engerr.KindIO, "create lockfile", err)
		}
		if s.lockHolderAlive() {
			return nil, engerr.New(engerr.KindConflict, "seed partition is locked by another writer")
		}
		s.logger.Warn("seedstore.lock.stale", "package", s.PackageDir)
		if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
			return nil, engerr.Wrap(engerr.KindIO, "remove stale lockfile", err)
		}
		f, err = os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return nil, engerr.New(engerr.KindConflict, "seed partition is locked by another writer")
			}
			return nil, engerr.Wrap(engerr.KindIO, "create lockfile", err)
		}
	}
	if _, err := f.WriteString(descriptor); err != nil {
		_ = f.Close()
		_ = os.Remove(s.lockPath())
		return nil, engerr.Wrap(engerr.KindIO, "write lockfile descriptor", err)
	}
	_ = f.Close()
	return func() { _ = os.Remove(s.lockPath()) }, nil
}

// lockHolderAlive parses the existing lockfile's pid= line and reports
// whether that process still exists. An unparseable or unreadable
// descriptor is treated as held (fail safe toward Conflict, not data loss).
func (s *Store) lockHolderAlive() bool {
	data, err := os.ReadFile(s.lockPath())
	if err != nil {
		return !os.IsNotExist(err)
	}
	var pid int
	for _, line := range strings.Split(string(data), "\n") {
		if p, ok := strings.CutPrefix(line, "pid="); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				pid = n
			}
			break
		}
	}
	if pid <= 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
