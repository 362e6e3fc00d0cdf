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

// Package hub implements the Federation Hub (C7): a per-workspace process
// owning a relational catalog of registered repositories, their manifests,
// and the cross-repo edges projected from each repo's external references.
package hub

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/graph"
	"github.com/kraklabs/devac/pkg/manifest"
	"github.com/kraklabs/devac/pkg/seedstore"
)

// CatalogFileName is the catalog's on-disk name under the hub directory,
// per SPEC_FULL §6.
const CatalogFileName = "central.db"

const currentSchemaVersion = 1

const catalogSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS repos (
	repo_id TEXT PRIMARY KEY,
	local_path TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	last_refreshed TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repo_packages (
	repo_id TEXT NOT NULL,
	path TEXT NOT NULL,
	name TEXT,
	seed_path TEXT,
	node_count INTEGER,
	edge_count INTEGER,
	file_count INTEGER,
	PRIMARY KEY (repo_id, path),
	FOREIGN KEY (repo_id) REFERENCES repos(repo_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cross_repo_edges (
	source_entity_id TEXT NOT NULL,
	target_entity_id TEXT NOT NULL,
	source_repo_id TEXT NOT NULL,
	target_repo_id TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	source_file_path TEXT,
	PRIMARY KEY (source_entity_id, target_entity_id, edge_type),
	FOREIGN KEY (source_repo_id) REFERENCES repos(repo_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cross_repo_edges_target ON cross_repo_edges(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_cross_repo_edges_source_repo ON cross_repo_edges(source_repo_id);

CREATE TABLE IF NOT EXISTS diagnostics (
	id TEXT PRIMARY KEY,
	repo_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	file_path TEXT,
	line INTEGER,
	created_at TEXT NOT NULL,
	resolved INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (repo_id) REFERENCES repos(repo_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_diagnostics_repo ON diagnostics(repo_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_resolved ON diagnostics(resolved);
`

// RepoRecord is one row of the repos table.
type RepoRecord struct {
	RepoID        string `json:"repo_id"`
	LocalPath     string `json:"local_path"`
	RegisteredAt  string `json:"registered_at"`
	LastRefreshed string `json:"last_refreshed"`
}

// Diagnostic is one row of the diagnostics table.
type Diagnostic struct {
	ID        string `json:"id"`
	RepoID    string `json:"repo_id"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	FilePath  string `json:"file_path,omitempty"`
	Line      int    `json:"line,omitempty"`
	CreatedAt string `json:"created_at"`
	Resolved  bool   `json:"resolved"`
}

// AffectedRepo is one entry of an Analyze result, grouped by repo.
type AffectedRepo struct {
	RepoID           string   `json:"repo_id"`
	ImpactLevel      string   `json:"impact_level"` // "direct" | "transitive"
	AffectedEntities []string `json:"affected_entities"`
}

// RefreshResult is the per-repo outcome of Refresh.
type RefreshResult struct {
	RefreshedRepos []string          `json:"refreshed_repos"`
	Errors         map[string]string `json:"errors"` // repo_id -> error message
}

// Hub is the sole writer of one workspace's federation catalog.
type Hub struct {
	dir    string
	db     *sql.DB
	mu     sync.Mutex
	logger logger
	metrics *Metrics
}

// logger is the minimal structured-logging surface Hub depends on, matching
// the donor's constructor-injected *slog.Logger convention without forcing
// every caller to import log/slog directly into this small interface.
type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Init opens (creating if absent) the catalog at <hubDir>/central.db. If
// force is true and a catalog already exists, it is dropped and recreated;
// otherwise Init is idempotent (SPEC_FULL §4.7 Lifecycle).
func Init(hubDir string, force bool, log logger, metrics *Metrics) (*Hub, error) {
	if log == nil {
		log = noopLogger{}
	}
	if err := os.MkdirAll(hubDir, 0o755); err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "create hub directory", err)
	}
	dbPath := filepath.Join(hubDir, CatalogFileName)

	if force {
		_ = os.Remove(dbPath)
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "open hub catalog", err)
	}

	h := &Hub{dir: hubDir, db: db, logger: log, metrics: metrics}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("hub.init.complete", "dir", hubDir, "force", force)
	return h, nil
}

func (h *Hub) initSchema() error {
	var version int
	err := h.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows || err != nil:
		if _, execErr := h.db.Exec(catalogSchema); execErr != nil {
			return engerr.Wrap(engerr.KindIO, "create catalog schema", execErr)
		}
		if _, execErr := h.db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", currentSchemaVersion); execErr != nil {
			return engerr.Wrap(engerr.KindIO, "record schema version", execErr)
		}
	case version != currentSchemaVersion:
		return engerr.New(engerr.KindConflict, fmt.Sprintf("catalog schema version %d != supported %d", version, currentSchemaVersion))
	}
	return nil
}

// Close releases the catalog connection.
func (h *Hub) Close() error {
	return h.db.Close()
}

// Register validates repoPath has seeds (a manifest, generating one if
// missing), upserts its repos row, replaces its repo_packages rows, and
// rebuilds the cross_repo_edges rows originating in this repo.
func (h *Hub) Register(ctx context.Context, repoID, repoPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := manifest.Load(repoPath)
	if err != nil {
		if k, ok := engerr.As(err); !ok || k != engerr.KindNotFound {
			return err
		}
		gen := manifest.New(nil)
		m, err = gen.Generate(repoPath)
		if err != nil {
			return err
		}
		if err := manifest.Save(repoPath, m); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := h.db.ExecContext(ctx, `
		INSERT INTO repos (repo_id, local_path, registered_at, last_refreshed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_id) DO UPDATE SET local_path = excluded.local_path, last_refreshed = excluded.last_refreshed
	`, repoID, repoPath, now, now); err != nil {
		return engerr.Wrap(engerr.KindIO, "upsert repo row", err)
	}

	if err := h.replacePackages(ctx, repoID, m); err != nil {
		return err
	}
	if err := h.projectCrossRepoEdges(ctx, repoID, repoPath, m); err != nil {
		return err
	}

	h.logger.Info("hub.register.complete", "repo_id", repoID, "packages", len(m.Packages))
	if h.metrics != nil {
		h.metrics.ReposRegistered.Inc()
	}
	return nil
}

func (h *Hub) replacePackages(ctx context.Context, repoID string, m *manifest.Manifest) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM repo_packages WHERE repo_id = ?", repoID); err != nil {
		return engerr.Wrap(engerr.KindIO, "clear repo_packages", err)
	}
	for _, p := range m.Packages {
		if _, err := h.db.ExecContext(ctx, `
			INSERT INTO repo_packages (repo_id, path, name, seed_path, node_count, edge_count, file_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, repoID, p.Path, p.Name, p.SeedPath, p.NodeCount, p.EdgeCount, p.FileCount); err != nil {
			return engerr.Wrap(engerr.KindIO, "insert repo_packages row", err)
		}
	}
	return nil
}

// projectCrossRepoEdges scans each package's external_refs for targets whose
// entity ID parses to a different repo_id and records them as cross-repo
// edges (SPEC_FULL §4.7 Register).
func (h *Hub) projectCrossRepoEdges(ctx context.Context, repoID, repoPath string, m *manifest.Manifest) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM cross_repo_edges WHERE source_repo_id = ?", repoID); err != nil {
		return engerr.Wrap(engerr.KindIO, "clear cross_repo_edges", err)
	}

	for _, p := range m.Packages {
		pkgDir := filepath.Join(repoPath, p.Path)
		set, err := readPackageRefs(pkgDir)
		if err != nil {
			h.logger.Warn("hub.register.project_edges_skip", "repo_id", repoID, "package", p.Path, "error", err.Error())
			continue
		}
		for _, ref := range set {
			if !ref.IsResolved || ref.TargetEntityID == "" {
				continue
			}
			parsed, ok := graph.ParseEntityID(ref.TargetEntityID)
			if !ok || parsed.Repo == repoID {
				continue
			}
			if _, err := h.db.ExecContext(ctx, `
				INSERT INTO cross_repo_edges (source_entity_id, target_entity_id, source_repo_id, target_repo_id, edge_type, source_file_path)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(source_entity_id, target_entity_id, edge_type) DO NOTHING
			`, ref.SourceEntityID, ref.TargetEntityID, repoID, parsed.Repo, "IMPORTS", ref.SourceFilePath); err != nil {
				return engerr.Wrap(engerr.KindIO, "insert cross_repo_edges row", err)
			}
		}
	}
	return nil
}

// Refresh regenerates the manifest for repoIDs (or every registered repo if
// empty), then re-runs cross-repo edge projection for each. Per-repo
// failures are captured in the result; other repos continue.
func (h *Hub) Refresh(ctx context.Context, repoIDs []string) (RefreshResult, error) {
	start := time.Now()
	h.mu.Lock()
	targets := repoIDs
	if len(targets) == 0 {
		rows, err := h.db.QueryContext(ctx, "SELECT repo_id FROM repos")
		if err != nil {
			h.mu.Unlock()
			return RefreshResult{}, engerr.Wrap(engerr.KindIO, "list repos for refresh", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err == nil {
				targets = append(targets, id)
			}
		}
		rows.Close()
	}
	h.mu.Unlock()

	result := RefreshResult{Errors: map[string]string{}}
	for _, repoID := range targets {
		var repoPath string
		if err := h.db.QueryRowContext(ctx, "SELECT local_path FROM repos WHERE repo_id = ?", repoID).Scan(&repoPath); err != nil {
			result.Errors[repoID] = "repo not registered"
			continue
		}

		gen := manifest.New(nil)
		m, err := gen.Generate(repoPath)
		if err != nil {
			result.Errors[repoID] = err.Error()
			continue
		}
		if err := manifest.Save(repoPath, m); err != nil {
			result.Errors[repoID] = err.Error()
			continue
		}

		h.mu.Lock()
		now := time.Now().UTC().Format(time.RFC3339)
		_, execErr := h.db.ExecContext(ctx, "UPDATE repos SET last_refreshed = ? WHERE repo_id = ?", now, repoID)
		if execErr == nil {
			execErr = h.replacePackages(ctx, repoID, m)
		}
		if execErr == nil {
			execErr = h.projectCrossRepoEdges(ctx, repoID, repoPath, m)
		}
		h.mu.Unlock()

		if execErr != nil {
			result.Errors[repoID] = execErr.Error()
			continue
		}
		result.RefreshedRepos = append(result.RefreshedRepos, repoID)
	}

	h.logger.Info("hub.refresh.complete", "refreshed", len(result.RefreshedRepos), "errors", len(result.Errors))
	if h.metrics != nil {
		h.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// Analyze returns the transitive set of entities depending on changedEntityIDs
// by BFS over cross_repo_edges in the reverse (target → source) direction,
// per SPEC_FULL §4.7 Affected set / testable property 8 / scenario S5.
func (h *Hub) Analyze(ctx context.Context, changedEntityIDs []string, maxDepth int) ([]AffectedRepo, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	visited := map[string]bool{}
	byRepo := map[string]*AffectedRepo{}
	frontier := append([]string{}, changedEntityIDs...)
	for _, id := range frontier {
		visited[id] = true
	}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, target := range frontier {
			rows, err := h.db.QueryContext(ctx, `
				SELECT source_entity_id, source_repo_id FROM cross_repo_edges WHERE target_entity_id = ?
			`, target)
			if err != nil {
				return nil, engerr.Wrap(engerr.KindIO, "query cross_repo_edges for affected set", err)
			}
			for rows.Next() {
				var sourceID, sourceRepo string
				if err := rows.Scan(&sourceID, &sourceRepo); err != nil {
					rows.Close()
					return nil, engerr.Wrap(engerr.KindIO, "scan cross_repo_edges row", err)
				}
				impact := "transitive"
				if depth == 1 {
					impact = "direct"
				}
				rec, ok := byRepo[sourceRepo]
				if !ok {
					rec = &AffectedRepo{RepoID: sourceRepo, ImpactLevel: impact}
					byRepo[sourceRepo] = rec
				}
				rec.AffectedEntities = append(rec.AffectedEntities, sourceID)
				if !visited[sourceID] {
					visited[sourceID] = true
					next = append(next, sourceID)
				}
			}
			rows.Close()
		}
		frontier = next
	}

	if h.metrics != nil {
		h.metrics.AffectedSetDepth.Observe(float64(maxDepth))
	}

	var out []AffectedRepo
	for _, rec := range byRepo {
		out = append(out, *rec)
	}
	return out, nil
}

// GetStatus returns a coarse summary: repo count and package count.
func (h *Hub) GetStatus(ctx context.Context) (map[string]any, error) {
	var repoCount, pkgCount int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repos").Scan(&repoCount); err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "count repos", err)
	}
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repo_packages").Scan(&pkgCount); err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "count repo_packages", err)
	}
	return map[string]any{"repos": repoCount, "packages": pkgCount}, nil
}

// ListRepos returns every registered repo.
func (h *Hub) ListRepos(ctx context.Context) ([]RepoRecord, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT repo_id, local_path, registered_at, last_refreshed FROM repos ORDER BY repo_id")
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "list repos", err)
	}
	defer rows.Close()

	var out []RepoRecord
	for rows.Next() {
		var r RepoRecord
		if err := rows.Scan(&r.RepoID, &r.LocalPath, &r.RegisteredAt, &r.LastRefreshed); err != nil {
			return nil, engerr.Wrap(engerr.KindIO, "scan repo row", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRepoStatus returns one repo's record, or NotFound if unregistered.
func (h *Hub) GetRepoStatus(ctx context.Context, repoID string) (RepoRecord, error) {
	var r RepoRecord
	err := h.db.QueryRowContext(ctx, "SELECT repo_id, local_path, registered_at, last_refreshed FROM repos WHERE repo_id = ?", repoID).
		Scan(&r.RepoID, &r.LocalPath, &r.RegisteredAt, &r.LastRefreshed)
	if err == sql.ErrNoRows {
		return RepoRecord{}, engerr.New(engerr.KindNotFound, "repo not registered: "+repoID)
	}
	if err != nil {
		return RepoRecord{}, engerr.Wrap(engerr.KindIO, "get repo status", err)
	}
	return r, nil
}

// PushDiagnostic inserts one diagnostic row.
func (h *Hub) PushDiagnostic(ctx context.Context, d Diagnostic) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d.CreatedAt == "" {
		d.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO diagnostics (id, repo_id, severity, message, file_path, line, created_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET severity=excluded.severity, message=excluded.message,
			file_path=excluded.file_path, line=excluded.line, resolved=excluded.resolved
	`, d.ID, d.RepoID, d.Severity, d.Message, d.FilePath, d.Line, d.CreatedAt, boolInt(d.Resolved))
	if err != nil {
		return engerr.Wrap(engerr.KindIO, "push diagnostic", err)
	}
	return nil
}

// ClearDiagnostics deletes every diagnostic for a repo.
func (h *Hub) ClearDiagnostics(ctx context.Context, repoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.db.ExecContext(ctx, "DELETE FROM diagnostics WHERE repo_id = ?", repoID); err != nil {
		return engerr.Wrap(engerr.KindIO, "clear diagnostics", err)
	}
	return nil
}

// ResolveDiagnostic marks one diagnostic resolved.
func (h *Hub) ResolveDiagnostic(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.db.ExecContext(ctx, "UPDATE diagnostics SET resolved = 1 WHERE id = ?", id); err != nil {
		return engerr.Wrap(engerr.KindIO, "resolve diagnostic", err)
	}
	return nil
}

// GetDiagnostics lists diagnostics for a repo, optionally filtered to
// unresolved only.
func (h *Hub) GetDiagnostics(ctx context.Context, repoID string, onlyUnresolved bool) ([]Diagnostic, error) {
	query := "SELECT id, repo_id, severity, message, file_path, line, created_at, resolved FROM diagnostics WHERE repo_id = ?"
	if onlyUnresolved {
		query += " AND resolved = 0"
	}
	rows, err := h.db.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "get diagnostics", err)
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		var resolved int
		if err := rows.Scan(&d.ID, &d.RepoID, &d.Severity, &d.Message, &d.FilePath, &d.Line, &d.CreatedAt, &resolved); err != nil {
			return nil, engerr.Wrap(engerr.KindIO, "scan diagnostic row", err)
		}
		d.Resolved = resolved != 0
		out = append(out, d)
	}
	return out, nil
}

// GetDiagnosticsSummary returns a count of unresolved diagnostics per severity for a repo.
func (h *Hub) GetDiagnosticsSummary(ctx context.Context, repoID string) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM diagnostics WHERE repo_id = ? AND resolved = 0 GROUP BY severity
	`, repoID)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "get diagnostics summary", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, engerr.Wrap(engerr.KindIO, "scan diagnostics summary row", err)
		}
		out[sev] = count
	}
	return out, nil
}

// GetDiagnosticsCounts returns a count of ALL diagnostics per severity for a
// repo, resolved or not, unlike GetDiagnosticsSummary.
func (h *Hub) GetDiagnosticsCounts(ctx context.Context, repoID string) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM diagnostics WHERE repo_id = ? GROUP BY severity
	`, repoID)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "get diagnostics counts", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, engerr.Wrap(engerr.KindIO, "scan diagnostics counts row", err)
		}
		out[sev] = count
	}
	return out, nil
}

// Unregister removes a repo and (via ON DELETE CASCADE) its packages,
// cross-repo edges, and diagnostics from the catalog.
func (h *Hub) Unregister(ctx context.Context, repoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	res, err := h.db.ExecContext(ctx, "DELETE FROM repos WHERE repo_id = ?", repoID)
	if err != nil {
		return engerr.Wrap(engerr.KindIO, "unregister repo", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engerr.New(engerr.KindNotFound, "repo not registered: "+repoID)
	}
	h.logger.Info("hub.unregister.complete", "repo_id", repoID)
	return nil
}

// Query executes raw SQL against the catalog database alone and returns the
// rows. The catalog tables are not bound into pkg/queryengine, so a query
// here cannot join them with seed data.
func (h *Hub) Query(ctx context.Context, sqlText string) ([]map[string]any, error) {
	rows, err := h.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindInvalid, "hub catalog query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "read query columns", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, engerr.Wrap(engerr.KindIO, "scan query row", err)
		}
		row := map[string]any{}
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// readPackageRefs loads a package's live external_refs from its seed store
// partition, defaulting to the base branch.
func readPackageRefs(pkgDir string) ([]graph.ExternalRef, error) {
	set, err := seedstore.New(pkgDir, nil).Read(seedstore.BasePartition)
	if err != nil {
		return nil, err
	}
	return set.ExternalRefs, nil
}
