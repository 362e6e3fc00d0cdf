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

// Package watcher implements the Workspace Watcher (C8): one fsnotify
// watcher over every registered repo's tree, routing raw filesystem events
// to the repo that owns them and debouncing at both the per-path and
// workspace level before reporting a repo as changed.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kraklabs/devac/pkg/seedstore"
)

// skipDirs are never descended into: .devac is deliberately absent here so
// that AddRepo's walk can reach <pkgDir>/.devac/base, the seed directory a
// seed-change needs to be watched (SPEC_FULL §4.8). "hub" keeps the
// workspace-level hub directory, which nests under a repo's own .devac in
// some layouts, out of the per-package seed watch.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, "bin": true, "target": true, "hub": true,
}

// Per-path debounce collapses a burst of edits to one file into a single
// event; the workspace debounce collapses a burst of seed-change events
// across many repos into a single hub refresh (SPEC_FULL §4.8).
const (
	PathDebounce      = 100 * time.Millisecond
	WorkspaceDebounce = 500 * time.Millisecond
)

// Category classifies a debounced file-change event.
type Category string

const (
	CategoryCode Category = "code"
	CategorySeed Category = "seed"
)

// defaultCodeExtensions is used when Options.CodeExtensions is empty.
var defaultCodeExtensions = []string{".go"}

// LifecycleEvent is emitted on state transitions, not file changes.
type LifecycleEvent struct {
	Kind     string // "watcher-state" | "repo-discovery"
	RepoPath string
	State    string
}

// Watcher watches the union of every registered repo's tree and reports,
// per debounced batch, which repos had changes.
type Watcher struct {
	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger

	codeExtensions []string

	repoRoots []string // sorted longest-first for prefix routing

	onFileChange func(repoPath, path string, category Category)
	onSeedChange func(repoPaths []string)
	onLifecycle  func(LifecycleEvent)

	pathTimers       map[string]*time.Timer
	pendingSeedRepos map[string]bool
	workspaceTimer   *time.Timer
	workspaceFireCh  chan struct{}

	done chan struct{}
}

// Options configures a Watcher.
//
// OnFileChange, if set, is called once per per-path-debounce cycle for every
// code-file or seed-file change (events categorized as "other" are dropped
// before reaching it).
//
// OnSeedChange is called (from the watcher's own goroutine) once per
// workspace-debounce cycle with every repo that had at least one seed-file
// change in that cycle. This is the SPEC_FULL §4.8 auto-refresh trigger: the
// caller is expected to resolve each repo path to a repo ID and invoke
// hub.Refresh.
//
// OnLifecycle, if set, receives watcher-state and repo-discovery
// notifications.
type Options struct {
	Logger         *slog.Logger
	CodeExtensions []string
	OnFileChange   func(repoPath, path string, category Category)
	OnSeedChange   func(repoPaths []string)
	OnLifecycle    func(LifecycleEvent)
}

// New creates a Watcher with no repos registered yet; call AddRepo before Run.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codeExtensions := opts.CodeExtensions
	if len(codeExtensions) == 0 {
		codeExtensions = defaultCodeExtensions
	}
	return &Watcher{
		fsWatcher:        fsw,
		logger:           logger,
		codeExtensions:   codeExtensions,
		onFileChange:     opts.OnFileChange,
		onSeedChange:     opts.OnSeedChange,
		onLifecycle:      opts.OnLifecycle,
		pathTimers:       map[string]*time.Timer{},
		pendingSeedRepos: map[string]bool{},
		workspaceFireCh:  make(chan struct{}, 1),
		done:             make(chan struct{}),
	}, nil
}

// AddRepo recursively adds repoPath's directories (skipping the usual noise
// dirs) to the underlying fsnotify watch set and registers it as a routing
// target for longest-path-prefix matching.
func (w *Watcher) AddRepo(repoPath string) error {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return err
	}

	watched := 0
	walkErr := filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		// The seed root is dot-prefixed but must still be descended into and
		// watched; a seed-change can only be detected if <pkgDir>/.devac/base
		// is in the fsnotify watch set.
		if base != seedstore.SeedRoot && (skipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(abs))) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("watcher.add_dir.failed", "path", path, "error", err.Error())
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		watched++
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	w.mu.Lock()
	w.repoRoots = append(w.repoRoots, abs)
	sort.Slice(w.repoRoots, func(i, j int) bool { return len(w.repoRoots[i]) > len(w.repoRoots[j]) })
	w.mu.Unlock()

	w.logger.Info("watcher.repo_added", "repo", abs, "watched_dirs", watched)
	w.emitLifecycle(LifecycleEvent{Kind: "repo-discovery", RepoPath: abs, State: "added"})
	return nil
}

// RemoveRepo drops a repo from the routing table. Its directories remain in
// the fsnotify watch set (fsnotify has no bulk-remove-by-prefix); events
// under it are simply no longer routed to a callback.
func (w *Watcher) RemoveRepo(repoPath string) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.repoRoots[:0]
	for _, r := range w.repoRoots {
		if r != abs {
			out = append(out, r)
		}
	}
	w.repoRoots = out
	w.emitLifecycle(LifecycleEvent{Kind: "repo-discovery", RepoPath: abs, State: "removed"})
}

func (w *Watcher) emitLifecycle(ev LifecycleEvent) {
	if w.onLifecycle != nil {
		w.onLifecycle(ev)
	}
}

// categorize classifies path as a code-file change, a seed-file change (a
// parquet table under a package's <seedstore.SeedRoot>/<seedstore.BasePartition>
// partition), or other (ignored).
func (w *Watcher) categorize(path string) Category {
	ext := filepath.Ext(path)
	if ext == ".parquet" {
		dir := filepath.Dir(path)
		if filepath.Base(dir) == seedstore.BasePartition && filepath.Base(filepath.Dir(dir)) == seedstore.SeedRoot {
			return CategorySeed
		}
	}
	for _, e := range w.codeExtensions {
		if ext == e {
			return CategoryCode
		}
	}
	return ""
}

// repoForPath returns the longest registered repo root that is a prefix of
// path, or "" if none matches. Caller must hold w.mu.
func (w *Watcher) repoForPath(path string) string {
	for _, root := range w.repoRoots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// Run processes fsnotify events until ctx is cancelled, debouncing per-path
// before invoking OnFileChange and per-workspace before invoking
// OnSeedChange.
func (w *Watcher) Run(ctx context.Context) {
	w.emitLifecycle(LifecycleEvent{Kind: "watcher-state", State: "running"})
	defer w.emitLifecycle(LifecycleEvent{Kind: "watcher-state", State: "stopped"})

	for {
		select {
		case <-ctx.Done():
			w.drainTimers()
			return
		case <-w.done:
			w.drainTimers()
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.onPathEvent(event.Name)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher.fsnotify_error", "error", err.Error())
		case <-w.workspaceFireCh:
			w.fireWorkspaceBatch()
		}
	}
}

// onPathEvent drops events outside any watched repo or not matching a known
// category, then resets the per-path debounce timer for the changed path.
// When that timer fires, OnFileChange is invoked, and a seed-file change
// additionally marks its repo pending and (re)arms the workspace-level
// debounce timer that drives OnSeedChange.
func (w *Watcher) onPathEvent(path string) {
	category := w.categorize(path)
	if category == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	repo := w.repoForPath(path)
	if repo == "" {
		return
	}

	if t, ok := w.pathTimers[path]; ok {
		t.Stop()
	}
	w.pathTimers[path] = time.AfterFunc(PathDebounce, func() {
		w.mu.Lock()
		delete(w.pathTimers, path)
		if category == CategorySeed {
			w.pendingSeedRepos[repo] = true
			if w.workspaceTimer != nil {
				w.workspaceTimer.Stop()
			}
			w.workspaceTimer = time.AfterFunc(WorkspaceDebounce, func() {
				select {
				case w.workspaceFireCh <- struct{}{}:
				default:
				}
			})
		}
		w.mu.Unlock()

		if w.onFileChange != nil {
			w.onFileChange(repo, path, category)
		}
	})
}

func (w *Watcher) fireWorkspaceBatch() {
	w.mu.Lock()
	repos := make([]string, 0, len(w.pendingSeedRepos))
	for r := range w.pendingSeedRepos {
		repos = append(repos, r)
	}
	w.pendingSeedRepos = map[string]bool{}
	w.mu.Unlock()

	sort.Strings(repos)
	w.logger.Info("watcher.batch.complete", "repos_seed_changed", len(repos))
	if len(repos) > 0 && w.onSeedChange != nil {
		w.onSeedChange(repos)
	}
}

func (w *Watcher) drainTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.pathTimers {
		t.Stop()
	}
	w.pathTimers = map[string]*time.Timer{}
	if w.workspaceTimer != nil {
		w.workspaceTimer.Stop()
		w.workspaceTimer = nil
	}
	w.pendingSeedRepos = map[string]bool{}
}

// Close releases the underlying fsnotify watcher and stops Run if active.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}
