// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/internal/output"
	"github.com/kraklabs/devac/pkg/queryengine"
)

func runQuery(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	packages := fs.StringArray("packages", nil, "Package directory to bind (repeatable)")
	branch := fs.String("branch", "base", "Seed partition to read")
	sqlText := fs.String("sql", "", "SQL to run against the bound nodes/edges/external_refs/effects views")
	memLimit := fs.Int("memory-limit-mb", 0, "SQLite page cache limit in MB (0 uses the driver default)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devac query --packages <dir> [--packages <dir> ...] --sql <query> [options]\n")
	}
	_ = fs.Parse(args)

	if len(*packages) == 0 || *sqlText == "" {
		errors.FatalError(errors.NewMisuseError("--packages and --sql are required", "", "Run: devac query --packages ./pkg/foo --sql 'select * from nodes'"), globals.JSON)
	}

	logger := newLogger(globals)
	engine, err := queryengine.New(*memLimit, logger)
	if err != nil {
		errors.FatalError(errors.FromEngErr("Cannot start query engine", err), globals.JSON)
	}
	defer engine.Close()

	result, err := engine.Query(context.Background(), queryengine.Request{
		Packages: *packages,
		Branch:   *branch,
		SQL:      *sqlText,
	})
	if err != nil {
		errors.FatalError(errors.FromEngErr("Query failed", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	printTable(result.Columns, result.Rows)
	fmt.Printf("\n%d row(s) in %dms\n", result.RowCount, result.TimeMs)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func printTable(columns []string, rows []map[string]any) {
	for _, col := range columns {
		fmt.Printf("%s\t", col)
	}
	fmt.Println()
	for _, row := range rows {
		for _, col := range columns {
			fmt.Printf("%v\t", row[col])
		}
		fmt.Println()
	}
}
