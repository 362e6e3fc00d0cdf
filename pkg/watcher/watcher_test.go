// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/seedstore"
)

func TestAddRepoRegistersForRouting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	w, err := New(Options{})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddRepo(dir))

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, w.repoForPath(filepath.Join(abs, "sub", "file.go")))
}

func TestRepoForPathPrefersLongestMatch(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "nested")
	require.NoError(t, os.MkdirAll(inner, 0o755))

	w, err := New(Options{})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddRepo(outer))
	require.NoError(t, w.AddRepo(inner))

	absInner, err := filepath.Abs(inner)
	require.NoError(t, err)
	assert.Equal(t, absInner, w.repoForPath(filepath.Join(absInner, "x.go")))
}

func TestCodeFileChangeFiresOnFileChangeAfterDebounce(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var changed []string
	var categories []Category

	w, err := New(Options{
		OnFileChange: func(repoPath, path string, category Category) {
			mu.Lock()
			changed = append(changed, repoPath)
			categories = append(categories, category)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRepo(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	abs, _ := filepath.Abs(dir)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for i, r := range changed {
			if r == abs && categories[i] == CategoryCode {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSeedFileChangeDrivesOnSeedChangeAfterWorkspaceDebounce(t *testing.T) {
	dir := t.TempDir()
	seedDir := filepath.Join(dir, seedstore.SeedRoot, seedstore.BasePartition)
	require.NoError(t, os.MkdirAll(seedDir, 0o755))

	var mu sync.Mutex
	var batches [][]string

	w, err := New(Options{
		OnSeedChange: func(repoPaths []string) {
			mu.Lock()
			batches = append(batches, repoPaths)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRepo(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "nodes.parquet"), []byte("x"), 0o644))

	abs, _ := filepath.Abs(dir)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, batch := range batches {
			for _, r := range batch {
				if r == abs {
					return true
				}
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestOtherFileChangeIsIgnored(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var calls int

	w, err := New(Options{
		OnFileChange: func(repoPath, path string, category Category) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRepo(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls, "a non-code, non-seed file must not trigger OnFileChange")
}

func TestLifecycleEventsFireOnRepoDiscovery(t *testing.T) {
	dir := t.TempDir()

	var events []LifecycleEvent
	var mu sync.Mutex

	w, err := New(Options{
		OnLifecycle: func(ev LifecycleEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddRepo(dir))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, "repo-discovery", events[0].Kind)
	assert.Equal(t, "added", events[0].State)
}
