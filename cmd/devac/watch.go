// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/bootstrap"
	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/ui"
	"github.com/kraklabs/devac/pkg/hub"
	"github.com/kraklabs/devac/pkg/manifest"
	"github.com/kraklabs/devac/pkg/refparser"
	"github.com/kraklabs/devac/pkg/watcher"
)

func runWatch(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac watch <repo-path> [<repo-path> ...]\n\nWatches repos and refreshes the workspace hub when their seeds change.\n")
	}
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		errors.FatalError(errors.NewMisuseError("at least one repo path required", "", "Run: devac watch <repo-path> [<repo-path> ...]"), globals.JSON)
	}

	logger := newLogger(globals)
	wsInfo, err := bootstrap.OpenWorkspace(globals.WorkspaceRoot)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	h, err := hub.Init(wsInfo.HubDir, false, logger, nil)
	if err != nil {
		errors.FatalError(errors.FromEngErr("Cannot open hub catalog", err), globals.JSON)
	}
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(watcher.Options{
		Logger:         logger,
		CodeExtensions: refparser.New().Extensions(),
		OnFileChange: func(repoPath, path string, category watcher.Category) {
			logger.Info("watch.file_change", "repo_path", repoPath, "path", path, "category", string(category))
		},
		OnSeedChange: func(repoPaths []string) {
			repoIDs := make([]string, 0, len(repoPaths))
			for _, p := range repoPaths {
				repoIDs = append(repoIDs, manifest.DetectRepoID(p))
			}
			ui.Infof("seed change in %d repo(s), refreshing hub", len(repoIDs))
			result, err := h.Refresh(ctx, repoIDs)
			if err != nil {
				ui.Errorf("hub refresh: %v", err)
				return
			}
			logger.Info("watch.hub_refresh", "refreshed_repos", result.RefreshedRepos, "errors", result.Errors)
			for repoID, msg := range result.Errors {
				ui.Errorf("%s: %s", repoID, msg)
			}
		},
		OnLifecycle: func(ev watcher.LifecycleEvent) {
			logger.Info("watch.lifecycle", "kind", ev.Kind, "repo_path", ev.RepoPath, "state", ev.State)
		},
	})
	if err != nil {
		errors.FatalError(errors.NewUserError("Cannot start watcher", err.Error(), "Check the filesystem watch limit (inotify) for your OS", err), globals.JSON)
	}
	defer w.Close()

	for _, repoPath := range fs.Args() {
		if err := w.AddRepo(repoPath); err != nil {
			errors.FatalError(errors.NewUserError("Cannot watch repo", err.Error(), fmt.Sprintf("Check that %s exists and is readable", repoPath), err), globals.JSON)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("watch.shutdown.signal")
		cancel()
	}()

	ui.Successf("Watching %d repo(s); press Ctrl-C to stop", fs.NArg())
	w.Run(ctx)
}
