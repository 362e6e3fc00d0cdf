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

// Package manifest implements the Manifest Generator (C6): per-repo summaries
// consumed by the Federation Hub.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/seedstore"
)

// SchemaVersion is the manifest wire format version. Both generator and hub
// reject any other value (SPEC_FULL §6).
const SchemaVersion = "2.0"

// RelPath is the repo-relative path to the manifest file.
const RelPath = ".devac/manifest.json"

// PackageInfo summarizes one analyzed package.
type PackageInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	SeedPath     string `json:"seed_path"`
	LastAnalyzed string `json:"last_analyzed"`
	FileCount    int    `json:"file_count"`
	NodeCount    int    `json:"node_count"`
	EdgeCount    int    `json:"edge_count"`
}

// ExternalDependency summarizes one cross-package/cross-repo dependency.
type ExternalDependency struct {
	Package string `json:"package"`
	RepoID  string `json:"repo_id,omitempty"`
	Version string `json:"version,omitempty"`
}

// Manifest is the per-repo summary at <repo>/.devac/manifest.json.
type Manifest struct {
	Version              string               `json:"version"`
	RepoID               string               `json:"repo_id"`
	GeneratedAt          string               `json:"generated_at"`
	Packages             []PackageInfo        `json:"packages"`
	ExternalDependencies []ExternalDependency `json:"external_dependencies"`
}

var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, ".devac": true,
	"dist": true, "build": true, "vendor": true, "target": true,
}

// Generator walks a repository and produces/updates its Manifest.
type Generator struct {
	logger *slog.Logger
	// nowFunc is overridable in tests for deterministic generated_at values.
	nowFunc func() time.Time
}

// New returns a Generator using logger (or slog.Default()).
func New(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger, nowFunc: time.Now}
}

// DetectRepoID tries, in order: a normalized git remote origin URL, a
// package-metadata name (go.mod module path or package.json name), then the
// directory's base name. The first that succeeds wins.
func DetectRepoID(repoPath string) string {
	if id := repoIDFromGitRemote(repoPath); id != "" {
		return id
	}
	if id := repoIDFromPackageMetadata(repoPath); id != "" {
		return id
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return filepath.Base(repoPath)
	}
	return filepath.Base(abs)
}

func repoIDFromGitRemote(repoPath string) string {
	f, err := os.Open(filepath.Join(repoPath, ".git", "config"))
	if err != nil {
		return ""
	}
	defer f.Close()

	inOrigin := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[remote") {
			inOrigin = strings.Contains(line, `"origin"`)
			continue
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return normalizeRemoteURL(strings.TrimSpace(parts[1]))
			}
		}
	}
	return ""
}

func normalizeRemoteURL(raw string) string {
	s := strings.TrimSuffix(raw, ".git")
	s = strings.TrimPrefix(s, "git@")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "ssh://git@")
	s = strings.Replace(s, ":", "/", 1)
	s = strings.TrimPrefix(s, "/")
	return s
}

func repoIDFromPackageMetadata(repoPath string) string {
	if b, err := os.ReadFile(filepath.Join(repoPath, "go.mod")); err == nil {
		for _, line := range strings.Split(string(b), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "module ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "module"))
			}
		}
	}
	if b, err := os.ReadFile(filepath.Join(repoPath, "package.json")); err == nil {
		var meta struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(b, &meta); err == nil && meta.Name != "" {
			return meta.Name
		}
	}
	return ""
}

// Generate walks repoPath and produces a fresh Manifest from every directory
// containing <SeedRoot>/base.
func (g *Generator) Generate(repoPath string) (*Manifest, error) {
	repoID := DetectRepoID(repoPath)
	packages, err := g.discoverPackages(repoPath)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		Version:     SchemaVersion,
		RepoID:      repoID,
		GeneratedAt: g.nowFunc().UTC().Format(time.RFC3339),
		Packages:    packages,
	}, nil
}

// Update reuses entries for packages not listed in changedPackages,
// recomputes entries for changedPackages, and picks up newly discovered
// packages, then writes the result atomically.
func (g *Generator) Update(repoPath string, changedPackages []string) (*Manifest, error) {
	existing, err := Load(repoPath)
	if err != nil {
		if k, ok := engerr.As(err); !ok || k != engerr.KindNotFound {
			return nil, err
		}
		existing = &Manifest{Version: SchemaVersion, RepoID: DetectRepoID(repoPath)}
	}

	changed := make(map[string]bool, len(changedPackages))
	for _, p := range changedPackages {
		changed[filepath.Clean(p)] = true
	}

	discovered, err := g.discoverPackages(repoPath)
	if err != nil {
		return nil, err
	}
	discoveredByPath := make(map[string]PackageInfo, len(discovered))
	for _, p := range discovered {
		discoveredByPath[p.Path] = p
	}

	merged := make([]PackageInfo, 0, len(discovered))
	seen := map[string]bool{}
	for _, prior := range existing.Packages {
		if d, ok := discoveredByPath[prior.Path]; ok {
			if changed[prior.Path] {
				merged = append(merged, d)
			} else {
				merged = append(merged, prior)
			}
			seen[prior.Path] = true
		}
	}
	for _, d := range discovered {
		if !seen[d.Path] {
			merged = append(merged, d)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Path < merged[j].Path })

	result := &Manifest{
		Version:              SchemaVersion,
		RepoID:               existing.RepoID,
		GeneratedAt:          g.nowFunc().UTC().Format(time.RFC3339),
		Packages:             merged,
		ExternalDependencies: existing.ExternalDependencies,
	}
	if result.RepoID == "" {
		result.RepoID = DetectRepoID(repoPath)
	}
	if err := Save(repoPath, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (g *Generator) discoverPackages(repoPath string) ([]PackageInfo, error) {
	var packages []PackageInfo
	err := filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if info.Name() != filepath.Base(repoPath) && skipDirs[info.Name()] {
			return filepath.SkipDir
		}
		baseDir := filepath.Join(path, seedstore.SeedRoot, seedstore.BasePartition)
		stat, err := os.Stat(baseDir)
		if err != nil || !stat.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		store := seedstore.New(path, g.logger)
		stats, _ := store.ReadStats()
		lastAnalyzed := g.nowFunc().UTC().Format(time.RFC3339)
		if fi, err := os.Stat(filepath.Join(baseDir, "nodes.parquet")); err == nil {
			lastAnalyzed = fi.ModTime().UTC().Format(time.RFC3339)
		}

		packages = append(packages, PackageInfo{
			Path:         relPath,
			Name:         filepath.Base(path),
			SeedPath:     filepath.ToSlash(filepath.Join(relPath, seedstore.SeedRoot)),
			LastAnalyzed: lastAnalyzed,
			FileCount:    stats.FileCount,
			NodeCount:    stats.NodeCount,
			EdgeCount:    stats.EdgeCount,
		})
		return nil
	})
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "walk repository", err)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Path < packages[j].Path })
	return packages, nil
}

// Validate checks a Manifest's schema version and structural well-formedness.
func Validate(m *Manifest) (valid bool, errors, warnings []string) {
	valid = true
	if m.Version != SchemaVersion {
		errors = append(errors, fmt.Sprintf("unsupported manifest version %q (expected %q)", m.Version, SchemaVersion))
		valid = false
	}
	if m.RepoID == "" {
		errors = append(errors, "repo_id is empty")
		valid = false
	}
	seenPaths := map[string]bool{}
	for _, p := range m.Packages {
		if seenPaths[p.Path] {
			errors = append(errors, fmt.Sprintf("duplicate package path %q", p.Path))
			valid = false
		}
		seenPaths[p.Path] = true
		if p.SeedPath == "" {
			warnings = append(warnings, fmt.Sprintf("package %q has no seed_path", p.Path))
		}
	}
	return valid, errors, warnings
}

// Load reads the manifest from <repoPath>/.devac/manifest.json.
func Load(repoPath string) (*Manifest, error) {
	path := filepath.Join(repoPath, RelPath)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engerr.New(engerr.KindNotFound, "manifest not found: run analysis first")
		}
		return nil, engerr.Wrap(engerr.KindIO, "read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, engerr.Wrap(engerr.KindInvalid, "parse manifest", err)
	}
	return &m, nil
}

// Save writes the manifest atomically (temp + rename, random suffix so
// concurrent callers never collide on the temp path).
func Save(repoPath string, m *Manifest) error {
	dir := filepath.Join(repoPath, ".devac")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engerr.Wrap(engerr.KindIO, "create .devac directory", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return engerr.Wrap(engerr.KindInvalid, "marshal manifest", err)
	}
	path := filepath.Join(dir, "manifest.json")
	tmp := fmt.Sprintf("%s.tmp.%s", path, uuid.NewString())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return engerr.Wrap(engerr.KindIO, "write manifest temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return engerr.Wrap(engerr.KindIO, "rename manifest temp file", err)
	}
	return nil
}
