// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/output"
	"github.com/kraklabs/devac/internal/ui"
	"github.com/kraklabs/devac/pkg/manifest"
	"github.com/kraklabs/devac/pkg/pipeline"
	"github.com/kraklabs/devac/pkg/refparser"
)

func runAnalyze(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	branch := fs.String("branch", "base", "Seed partition to write")
	force := fs.Bool("force", false, "Reparse every file regardless of hash")
	ifChanged := fs.Bool("if-changed", false, "Skip if no source file hash changed since the last run")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac analyze <repo-path> <package-rel-path> [options]\n\nRuns the parse-resolve-write pipeline over one package directory.\n")
	}
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		errors.FatalError(errors.NewMisuseError("repo and package path required", "", "Run: devac analyze <repo-path> <package-rel-path>"), globals.JSON)
	}
	repoPath, pkgRel := fs.Arg(0), fs.Arg(1)

	repoAbs, err := filepath.Abs(repoPath)
	if err != nil {
		errors.FatalError(errors.NewUserError("Cannot resolve repo path", err.Error(), "Pass an existing directory", err), globals.JSON)
	}
	pkgAbs := filepath.Join(repoAbs, pkgRel)

	logger := newLogger(globals)
	repoID := manifest.DetectRepoID(repoAbs)
	p := pipeline.New(repoID, refparser.New(), nil, logger)

	opts := pipeline.Options{
		Branch:    *branch,
		Force:     *force,
		IfChanged: *ifChanged,
	}
	if !globals.JSON && !globals.Quiet && isatty.IsTerminal(os.Stdout.Fd()) {
		var bar *progressbar.ProgressBar
		opts.ProgressFunc = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions64(int64(total), progressbar.OptionSetDescription("Parsing files"), progressbar.OptionClearOnFinish())
			}
			_ = bar.Set64(int64(done))
			if done == total {
				_ = bar.Finish()
			}
		}
	}

	result, err := p.Analyze(context.Background(), pkgRel, pkgAbs, opts)
	if err != nil {
		errors.FatalError(errors.FromEngErr("Analysis failed", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	if result.Skipped {
		ui.Info(fmt.Sprintf("%s: no changes since last analysis", pkgRel))
		return
	}
	ui.Successf("%s: %d files, %d nodes, %d edges (%dms)", pkgRel, result.FilesAnalyzed, result.NodesCreated, result.EdgesCreated, result.TimeMs)
	for _, w := range result.Warnings {
		ui.Warning(w)
	}
}
