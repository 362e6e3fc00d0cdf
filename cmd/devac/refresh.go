// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/bootstrap"
	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/output"
	"github.com/kraklabs/devac/internal/ui"
	"github.com/kraklabs/devac/pkg/hub"
)

func runRefresh(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	repoIDs := fs.StringArray("repo", nil, "Repo ID to refresh (repeatable; default: every registered repo)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac refresh [--repo <id> ...]\n\nRegenerates manifests from existing seeds and updates the workspace hub catalog.\nNo analysis is run; use 'devac analyze' to rebuild seeds.\n")
	}
	_ = fs.Parse(args)

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

	result, err := h.Refresh(context.Background(), *repoIDs)
	if err != nil {
		errors.FatalError(errors.FromEngErr("Refresh failed", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	ui.Successf("Refreshed %d repo(s)", len(result.RefreshedRepos))
	for repoID, msg := range result.Errors {
		ui.Errorf("%s: %s", repoID, msg)
	}
}
