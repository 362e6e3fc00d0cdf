// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/bootstrap"
	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/output"
	"github.com/kraklabs/devac/internal/ui"
)

func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Recreate the workspace config and hub catalog even if one already exists")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac init [--force]\n\nCreates <workspace>/.devac/config.yaml and an empty Federation Hub catalog.\n")
	}
	_ = fs.Parse(args)

	logger := newLogger(globals)
	info, err := bootstrap.InitWorkspace(globals.WorkspaceRoot, *force, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(info)
		return
	}
	ui.Successf("Initialized workspace at %s (hub catalog: %s)", info.WorkspaceRoot, info.HubDir)
}

func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	}
	if globals.Quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
