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

// Package queryengine implements the Unified Query Engine (C2): it binds the
// artifact sets of N packages as the logical tables nodes/edges/
// external_refs/effects and executes analytical SQL against them, using an
// in-memory modernc.org/sqlite database as the embedded analytical engine.
package queryengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/devac/internal/contract"
	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/graph"
	"github.com/kraklabs/devac/pkg/seedstore"
)

// logicalTables is the closed set of views a query may reference, per
// SPEC_FULL §4.2.
var logicalTables = []string{"nodes", "edges", "external_refs", "effects"}

// Request is one query invocation. Packages is the sole indicator of scope:
// one package is a package query, many packages in the same repo is a repo
// query, many packages across repos is a workspace query — the engine does
// not care which, it only unions whatever it is given.
type Request struct {
	Packages []string // absolute package directories
	Branch   string
	SQL      string
}

// Result is the outcome of one query.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int
	TimeMs   int64
	Warnings []string
}

// maxRetries bounds the exponential backoff retry loop for transient backend
// errors (SPEC_FULL §4.2); schema errors are never retried.
const maxRetries = 3

// Engine executes queries over dynamically bound package artifact sets. It
// holds a single pooled connection to an in-memory SQLite database; writes
// (binding tables) and reads both funnel through the same connection pool,
// matching the donor's "one writer at a time" catalog discipline generalized
// to the query layer (SPEC_FULL §4.2, §11).
type Engine struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// New opens the embedded analytical engine. memoryLimitMB bounds the SQLite
// page cache (0 uses the driver default).
func New(memoryLimitMB int, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "open embedded analytical engine", err)
	}
	db.SetMaxOpenConns(1) // shared in-memory DB: one connection avoids losing the schema between opens.

	if memoryLimitMB > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA cache_size = -%d", memoryLimitMB*1024)); err != nil {
			db.Close()
			return nil, engerr.Wrap(engerr.KindIO, "set cache_size pragma", err)
		}
	}
	return &Engine{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Query runs req.SQL against views bound to the union of req.Packages' seed
// sets for req.Branch (SPEC_FULL §4.2 Binding).
func (e *Engine) Query(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	if v := contract.ValidateQueryText(req.SQL); !v.OK {
		return Result{}, engerr.New(engerr.KindInvalid, v.Message)
	}
	branch := req.Branch
	if branch == "" {
		branch = seedstore.BasePartition
	}

	merged, warnings, err := e.loadPackages(req.Packages, branch)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	runID := fmt.Sprintf("q%d", time.Now().UnixNano())
	bound, bindWarnings, err := e.bindTables(ctx, runID, merged)
	warnings = append(warnings, bindWarnings...)
	if err != nil {
		return Result{}, err
	}
	defer e.dropTables(runID)

	sqlText := substitutePlaceholders(req.SQL, runID, bound)

	res, err := e.execWithRetry(ctx, sqlText)
	if err != nil {
		return Result{}, err
	}
	res.TimeMs = time.Since(start).Milliseconds()
	res.Warnings = append(res.Warnings, warnings...)

	e.logger.Info("queryengine.query.complete", "packages", len(req.Packages),
		"branch", branch, "rows", res.RowCount, "time_ms", res.TimeMs)
	return res, nil
}

// loadPackages reads every package's live view for branch and unions them
// per logical table.
func (e *Engine) loadPackages(packageDirs []string, branch string) (seedstore.SeedSet, []string, error) {
	var merged seedstore.SeedSet
	var warnings []string
	for _, dir := range packageDirs {
		store := seedstore.New(dir, e.logger)
		set, err := store.Read(branch)
		if err != nil {
			if k, ok := engerr.As(err); ok && k == engerr.KindNotFound {
				warnings = append(warnings, "package has no seed artifacts: "+dir)
				continue
			}
			return seedstore.SeedSet{}, nil, err
		}
		merged.Nodes = append(merged.Nodes, set.Nodes...)
		merged.Edges = append(merged.Edges, set.Edges...)
		merged.ExternalRefs = append(merged.ExternalRefs, set.ExternalRefs...)
		merged.Effects = append(merged.Effects, set.Effects...)
	}
	return merged, warnings, nil
}

// bindTables creates one physical table per non-empty logical table,
// suffixed by runID so concurrent queries never collide, and returns the
// logical→physical name map actually bound (tables with zero rows across
// every package are omitted with a warning, per SPEC_FULL §4.2 Binding).
func (e *Engine) bindTables(ctx context.Context, runID string, set seedstore.SeedSet) (map[string]string, []string, error) {
	bound := map[string]string{}
	var warnings []string

	if len(set.Nodes) > 0 {
		name := "nodes_" + runID
		if err := e.createNodesTable(ctx, name, set.Nodes); err != nil {
			return nil, nil, err
		}
		bound["nodes"] = name
	} else {
		warnings = append(warnings, "no rows bound for logical table: nodes")
	}

	if len(set.Edges) > 0 {
		name := "edges_" + runID
		if err := e.createEdgesTable(ctx, name, set.Edges); err != nil {
			return nil, nil, err
		}
		bound["edges"] = name
	} else {
		warnings = append(warnings, "no rows bound for logical table: edges")
	}

	if len(set.ExternalRefs) > 0 {
		name := "external_refs_" + runID
		if err := e.createRefsTable(ctx, name, set.ExternalRefs); err != nil {
			return nil, nil, err
		}
		bound["external_refs"] = name
	} else {
		warnings = append(warnings, "no rows bound for logical table: external_refs")
	}

	if len(set.Effects) > 0 {
		name := "effects_" + runID
		if err := e.createEffectsTable(ctx, name, set.Effects); err != nil {
			return nil, nil, err
		}
		bound["effects"] = name
	} else {
		warnings = append(warnings, "no rows bound for logical table: effects")
	}

	return bound, warnings, nil
}

func (e *Engine) dropTables(runID string) {
	for _, logical := range logicalTables {
		_, _ = e.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s_%s", logical, runID))
	}
}

func (e *Engine) createNodesTable(ctx context.Context, name string, rows []graph.Node) error {
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		entity_id TEXT, name TEXT, qualified_name TEXT, kind TEXT, file_path TEXT,
		start_line INTEGER, start_column INTEGER, end_line INTEGER, end_column INTEGER,
		visibility TEXT, is_exported INTEGER, is_default_export INTEGER, is_async INTEGER,
		is_generator INTEGER, is_static INTEGER, is_abstract INTEGER,
		type_signature TEXT, documentation TEXT, source_file_hash TEXT,
		branch TEXT, is_deleted INTEGER, updated_at TEXT, properties TEXT
	)`, name)
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return engerr.Wrap(engerr.KindIO, "create nodes view", err)
	}
	stmt := fmt.Sprintf(`INSERT INTO %s VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, name)
	for _, n := range rows {
		props, _ := json.Marshal(n.Properties)
		if _, err := e.db.ExecContext(ctx, stmt,
			n.EntityID, n.Name, n.QualifiedName, string(n.Kind), n.FilePath,
			n.StartLine, n.StartColumn, n.EndLine, n.EndColumn,
			string(n.Visibility), boolInt(n.Flags.IsExported), boolInt(n.Flags.IsDefaultExport),
			boolInt(n.Flags.IsAsync), boolInt(n.Flags.IsGenerator), boolInt(n.Flags.IsStatic), boolInt(n.Flags.IsAbstract),
			n.TypeSignature, n.Documentation, n.SourceFileHash,
			n.Branch, boolInt(n.IsDeleted), n.UpdatedAt, string(props)); err != nil {
			return engerr.Wrap(engerr.KindIO, "insert node row", err)
		}
	}
	return nil
}

func (e *Engine) createEdgesTable(ctx context.Context, name string, rows []graph.Edge) error {
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		source_entity_id TEXT, target_entity_id TEXT, edge_type TEXT,
		source_file_path TEXT, source_line INTEGER, source_column INTEGER,
		source_file_hash TEXT, branch TEXT, is_deleted INTEGER, updated_at TEXT, properties TEXT
	)`, name)
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return engerr.Wrap(engerr.KindIO, "create edges view", err)
	}
	stmt := fmt.Sprintf(`INSERT INTO %s VALUES (?,?,?,?,?,?,?,?,?,?,?)`, name)
	for _, ed := range rows {
		props, _ := json.Marshal(ed.Properties)
		if _, err := e.db.ExecContext(ctx, stmt,
			ed.SourceEntityID, ed.TargetEntityID, string(ed.EdgeType),
			ed.SourceFilePath, ed.SourceLine, ed.SourceColumn,
			ed.SourceFileHash, ed.Branch, boolInt(ed.IsDeleted), ed.UpdatedAt, string(props)); err != nil {
			return engerr.Wrap(engerr.KindIO, "insert edge row", err)
		}
	}
	return nil
}

func (e *Engine) createRefsTable(ctx context.Context, name string, rows []graph.ExternalRef) error {
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		source_entity_id TEXT, module_specifier TEXT, imported_symbol TEXT, local_alias TEXT,
		import_style TEXT, is_type_only INTEGER, source_file_path TEXT, source_line INTEGER,
		source_column INTEGER, target_entity_id TEXT, is_resolved INTEGER, is_reexport INTEGER,
		export_alias TEXT, source_file_hash TEXT, branch TEXT, is_deleted INTEGER, updated_at TEXT
	)`, name)
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return engerr.Wrap(engerr.KindIO, "create external_refs view", err)
	}
	stmt := fmt.Sprintf(`INSERT INTO %s VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, name)
	for _, r := range rows {
		if _, err := e.db.ExecContext(ctx, stmt,
			r.SourceEntityID, r.ModuleSpecifier, r.ImportedSymbol, r.LocalAlias,
			string(r.ImportStyle), boolInt(r.IsTypeOnly), r.SourceFilePath, r.SourceLine,
			r.SourceColumn, r.TargetEntityID, boolInt(r.IsResolved), boolInt(r.IsReexport),
			r.ExportAlias, r.SourceFileHash, r.Branch, boolInt(r.IsDeleted), r.UpdatedAt); err != nil {
			return engerr.Wrap(engerr.KindIO, "insert external_ref row", err)
		}
	}
	return nil
}

func (e *Engine) createEffectsTable(ctx context.Context, name string, rows []graph.Effect) error {
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		effect_id TEXT, kind TEXT, timestamp TEXT, source_entity_id TEXT,
		source_file_path TEXT, source_line INTEGER, source_column INTEGER, branch TEXT, properties TEXT,
		callee_name TEXT, is_external INTEGER, store_type TEXT, operation TEXT, target_resource TEXT,
		protocol TEXT, endpoint TEXT, status_code INTEGER, label TEXT, child_count INTEGER
	)`, name)
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return engerr.Wrap(engerr.KindIO, "create effects view", err)
	}
	stmt := fmt.Sprintf(`INSERT INTO %s VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, name)
	for _, ef := range rows {
		props, _ := json.Marshal(ef.Properties)
		if _, err := e.db.ExecContext(ctx, stmt,
			ef.EffectID, string(ef.Kind), ef.Timestamp, ef.SourceEntityID,
			ef.SourceFilePath, ef.SourceLine, ef.SourceColumn, ef.Branch, string(props),
			ef.CalleeName, boolIntPtr(ef.IsExternal), ef.StoreType, ef.Operation, ef.TargetResource,
			ef.Protocol, ef.Endpoint, ef.StatusCode, ef.Label, ef.ChildCount); err != nil {
			return engerr.Wrap(engerr.KindIO, "insert effect row", err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolIntPtr(b *bool) any {
	if b == nil {
		return nil
	}
	return boolInt(*b)
}

// substitutePlaceholders rewrites a user query's {nodes}/{edges}/
// {external_refs}/{effects} placeholders and bare logical table names to the
// run-scoped physical table names actually bound.
func substitutePlaceholders(sqlText, runID string, bound map[string]string) string {
	out := sqlText
	for _, logical := range logicalTables {
		physical, ok := bound[logical]
		if !ok {
			physical = logical + "_" + runID // unbound; query will fail with a clear "no such table"
		}
		out = strings.ReplaceAll(out, "{"+logical+"}", physical)
		out = replaceWholeWord(out, logical, physical)
	}
	return out
}

// replaceWholeWord substitutes word to replacement everywhere word appears
// as a standalone identifier (not a substring of a longer identifier), so
// "nodes" doesn't clobber "external_refs_nodes_x" style text.
func replaceWholeWord(s, word, replacement string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if isWordStart(s, i) && strings.HasPrefix(s[i:], word) && isWordBoundaryAfter(s, i+len(word)) {
			b.WriteString(replacement)
			i += len(word)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isWordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	c := s[i-1]
	return !isIdentChar(c)
}

func isWordBoundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isIdentChar(s[i])
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// execWithRetry runs sqlText, retrying transient backend errors with
// exponential backoff. Schema errors (missing table/column, syntax error)
// are never retried, per SPEC_FULL §4.2.
func (e *Engine) execWithRetry(ctx context.Context, sqlText string) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := e.runQuery(ctx, sqlText)
		if err == nil {
			return res, nil
		}
		if !isTransient(err) {
			return Result{}, engerr.Wrap(engerr.KindInvalid, "query execution failed", err)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return Result{}, engerr.Wrap(engerr.KindTimeout, "query cancelled during retry", ctx.Err())
		case <-time.After(time.Duration(1<<attempt) * 10 * time.Millisecond):
		}
	}
	return Result{}, engerr.Wrap(engerr.KindUnavailable, "query failed after retries", lastErr)
}

func (e *Engine) runQuery(ctx context.Context, sqlText string) (Result, error) {
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		row := map[string]any{}
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return Result{Columns: cols, Rows: out, RowCount: len(out)}, nil
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy") || strings.Contains(msg, "SQLITE_BUSY")
}
