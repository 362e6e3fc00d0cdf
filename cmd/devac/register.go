// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/bootstrap"
	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/output"
	"github.com/kraklabs/devac/internal/ui"
)

func runRegister(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac register <repo-path>\n\nGenerates a manifest for repo-path and registers it with the workspace hub.\n")
	}
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewMisuseError("repo path required", "", "Run: devac register <repo-path>"), globals.JSON)
	}
	repoPath := fs.Arg(0)

	logger := newLogger(globals)
	wsInfo, err := bootstrap.OpenWorkspace(globals.WorkspaceRoot)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	repoInfo, err := bootstrap.InitRepo(repoPath, wsInfo.HubDir, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(repoInfo)
		return
	}
	ui.Successf("Registered %s (%s)", repoInfo.RepoID, repoInfo.RepoPath)
}
