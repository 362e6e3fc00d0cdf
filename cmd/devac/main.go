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

// Package main implements the devac CLI: a thin driver over the analysis
// pipeline, seed store, Federation Hub, and workspace watcher, enough to
// exercise the library surface end to end.
//
// Usage:
//
//	devac init                          Initialize a workspace and its hub catalog
//	devac register <repo>                Generate a manifest and register a repo
//	devac analyze <repo> <package>        Run the analysis pipeline over one package
//	devac query --packages <dirs> --sql   Run a query over bound packages
//	devac refresh                         Regenerate manifests and hub catalog rows from existing seeds
//	devac watch <repo>...                  Watch repos and auto-refresh on change
//	devac serve                           Start the hub IPC server
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the CLI flags that apply to every subcommand.
type GlobalFlags struct {
	JSON          bool
	NoColor       bool
	Verbose       int
	Quiet         bool
	WorkspaceRoot string
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		workspace   = flag.StringP("workspace", "w", ".", "Workspace root directory")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `devac - cross-repo code analysis

Usage:
  devac <command> [options]

Commands:
  init           Initialize a workspace and its Federation Hub catalog
  register       Generate a manifest for a repo and register it with the hub
  analyze        Run the analysis pipeline over one package
  query          Run a query over bound packages
  refresh        Regenerate manifests and hub catalog rows for registered repos
  watch          Watch registered repos and refresh on change
  serve          Start the hub as an IPC server over a Unix socket

Global Options:
  -w, --workspace   Workspace root (default: current directory)
  --json            Output in JSON format
  --no-color        Disable color output (respects NO_COLOR)
  -v, --verbose     Increase verbosity
  -q, --quiet       Suppress non-essential output
  -V, --version     Show version and exit

For detailed command help: devac <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("devac version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{
		JSON:          *jsonOutput,
		NoColor:       *noColor,
		Verbose:       *verbose,
		Quiet:         *quiet,
		WorkspaceRoot: *workspace,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(errors.ExitMisuse)
	}

	command, cmdArgs := args[0], args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "register":
		runRegister(cmdArgs, globals)
	case "analyze":
		runAnalyze(cmdArgs, globals)
	case "query":
		runQuery(cmdArgs, globals)
	case "refresh":
		runRefresh(cmdArgs, globals)
	case "watch":
		runWatch(cmdArgs, globals)
	case "serve":
		runServe(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(errors.ExitMisuse)
	}
}
