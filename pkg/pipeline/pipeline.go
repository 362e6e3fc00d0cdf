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

// Package pipeline implements the Analysis Pipeline (C5): drives structural
// parsing (C3) and semantic resolution (C4) for a package, then commits the
// result to the seed store (C1) atomically.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/graph"
	"github.com/kraklabs/devac/pkg/resolver"
	"github.com/kraklabs/devac/pkg/seedstore"
)

var defaultIgnoreDirs = map[string]bool{
	"node_modules": true, ".git": true, seedstore.SeedRoot: true,
	"dist": true, "build": true, "vendor": true, "target": true,
}

// Options controls one Analyze call.
type Options struct {
	Branch    string
	Force     bool
	IfChanged bool

	// ProgressFunc, if set, is called after each changed file is parsed with
	// the number of files parsed so far and the total to parse.
	ProgressFunc func(done, total int)
}

// Result is the outcome of Analyze.
type Result struct {
	FilesAnalyzed int
	NodesCreated  int
	EdgesCreated  int
	Skipped       bool
	Warnings      []string
	TimeMs        int64
}

// Pipeline drives one package's analysis.
type Pipeline struct {
	Repo           string
	Parser         graph.Parser
	ModuleResolver resolver.ModuleResolver
	logger         *slog.Logger
}

// New returns a Pipeline for repo using parser as the structural parser and
// moduleResolver (may be nil) as the per-language module resolution rule.
func New(repo string, parser graph.Parser, moduleResolver resolver.ModuleResolver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Repo: repo, Parser: parser, ModuleResolver: moduleResolver, logger: logger}
}

// Analyze runs the full parse→resolve→write cycle for one package directory.
func (p *Pipeline) Analyze(ctx context.Context, pkgRelPath, pkgAbsPath string, opts Options) (Result, error) {
	start := time.Now()
	branch := opts.Branch
	if branch == "" {
		branch = seedstore.BasePartition
	}

	store := seedstore.New(pkgAbsPath, p.logger)
	p.logger.Info("pipeline.analyze.start", "package", pkgRelPath, "branch", branch, "force", opts.Force)

	candidateFiles, err := p.enumerateFiles(pkgAbsPath)
	if err != nil {
		return Result{}, err
	}

	currentHashes := map[string]string{}
	contents := map[string][]byte{}
	for _, rel := range candidateFiles {
		b, err := os.ReadFile(filepath.Join(pkgAbsPath, rel))
		if err != nil {
			return Result{}, engerr.Wrap(engerr.KindIO, "read candidate file "+rel, err)
		}
		contents[rel] = b
		currentHashes[rel] = graph.FileContentHash(b)
	}

	prior, err := store.Read(branch)
	if err != nil {
		if k, ok := engerr.As(err); !ok || k != engerr.KindNotFound {
			return Result{}, err
		}
		prior = seedstore.SeedSet{}
	}
	priorHashes := fileHashesOf(prior)

	if opts.IfChanged && !opts.Force && !hashesChanged(priorHashes, currentHashes) {
		p.logger.Info("pipeline.analyze.skip", "package", pkgRelPath, "reason", "if_changed_no_diff")
		return Result{Skipped: true, TimeMs: time.Since(start).Milliseconds()}, nil
	}

	changed := map[string]bool{}
	for rel, hash := range currentHashes {
		if opts.Force || priorHashes[rel] != hash {
			changed[rel] = true
		}
	}
	deletedFiles := map[string]bool{}
	for rel := range priorHashes {
		if _, exists := currentHashes[rel]; !exists {
			deletedFiles[rel] = true
		}
	}

	var warnings []string
	var fileUnits []resolver.FileUnit

	// Unchanged files contribute their previously-resolved rows verbatim,
	// reconstructed as a synthetic parse result so the resolver can still
	// use their exports/locals for cross-file resolution.
	for rel := range priorHashes {
		if changed[rel] || deletedFiles[rel] {
			continue
		}
		fileUnits = append(fileUnits, resolver.FileUnit{Path: rel, Result: reconstructParseResult(rel, prior)})
	}

	var parsed int
	for rel := range changed {
		pr, err := p.Parser.ParseFile(ctx, p.Repo, pkgRelPath, rel, contents[rel])
		parsed++
		if opts.ProgressFunc != nil {
			opts.ProgressFunc(parsed, len(changed))
		}
		if err != nil {
			warnings = append(warnings, "parse error in "+rel+": "+err.Error())
			continue
		}
		pr.SourceFileHash = currentHashes[rel]
		fileUnits = append(fileUnits, resolver.FileUnit{Path: rel, Result: pr})
	}

	res := resolver.New(p.logger, p.ModuleResolver)
	res.BuildIndex(fileUnits)
	resolved := res.Resolve(ctx, pkgRelPath, fileUnits)
	for _, rerr := range resolved.Errors {
		warnings = append(warnings, rerr.Error())
	}

	next := composePartition(prior, fileUnits, resolved, deletedFiles, branch)

	if err := store.Write(ctx, branch, next); err != nil {
		return Result{}, err
	}

	result := Result{
		FilesAnalyzed: len(changed),
		NodesCreated:  len(next.Nodes),
		EdgesCreated:  len(next.Edges),
		Warnings:      warnings,
		TimeMs:        time.Since(start).Milliseconds(),
	}
	p.logger.Info("pipeline.analyze.complete", "package", pkgRelPath,
		"files_analyzed", result.FilesAnalyzed, "nodes", result.NodesCreated, "edges", result.EdgesCreated)
	return result, nil
}

func (p *Pipeline) enumerateFiles(pkgAbsPath string) ([]string, error) {
	extSet := map[string]bool{}
	for _, ext := range p.Parser.Extensions() {
		extSet[ext] = true
	}

	var files []string
	err := filepath.Walk(pkgAbsPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != pkgAbsPath && defaultIgnoreDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !extSet[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(pkgAbsPath, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, engerr.Wrap(engerr.KindIO, "enumerate package files", err)
	}
	return files, nil
}

func fileHashesOf(set seedstore.SeedSet) map[string]string {
	hashes := map[string]string{}
	for _, n := range set.Nodes {
		if n.FilePath != "" {
			hashes[n.FilePath] = n.SourceFileHash
		}
	}
	return hashes
}

func hashesChanged(prior, current map[string]string) bool {
	if len(prior) != len(current) {
		return true
	}
	for rel, hash := range current {
		if prior[rel] != hash {
			return true
		}
	}
	return false
}

// reconstructParseResult rebuilds a minimal ParseResult for an unchanged
// file from the previously-committed partition, so the resolver can still
// see its exports and local symbols without re-parsing.
func reconstructParseResult(filePath string, prior seedstore.SeedSet) graph.ParseResult {
	var pr graph.ParseResult
	pr.FilePath = filePath
	for _, n := range prior.Nodes {
		if n.FilePath == filePath {
			pr.Nodes = append(pr.Nodes, n)
			pr.SourceFileHash = n.SourceFileHash
		}
	}
	for _, e := range prior.Edges {
		if e.SourceFilePath == filePath {
			pr.Edges = append(pr.Edges, e)
		}
	}
	for _, r := range prior.ExternalRefs {
		if r.SourceFilePath == filePath {
			pr.ExternalRefs = append(pr.ExternalRefs, r)
		}
	}
	return pr
}

// composePartition merges unchanged rows, overlays changed rows, and applies
// tombstones for deleted files, per SPEC_FULL §4.5 step 6.
func composePartition(prior seedstore.SeedSet, units []resolver.FileUnit, resolved resolver.Result, deletedFiles map[string]bool, branch string) seedstore.SeedSet {
	now := time.Now().UTC().Format(time.RFC3339)

	touchedFiles := map[string]bool{}
	for _, u := range units {
		touchedFiles[u.Path] = true
	}

	var nodes []graph.Node
	for _, u := range units {
		for _, n := range u.Result.Nodes {
			n.Branch = branch
			n.UpdatedAt = now
			nodes = append(nodes, n)
		}
	}
	for _, n := range prior.Nodes {
		if deletedFiles[n.FilePath] {
			n.IsDeleted = true
			n.Branch = branch
			n.UpdatedAt = now
			nodes = append(nodes, n)
		}
	}

	edges := resolved.Edges
	for i := range edges {
		edges[i].Branch = branch
		edges[i].UpdatedAt = now
	}
	for _, e := range prior.Edges {
		if deletedFiles[e.SourceFilePath] {
			e.IsDeleted = true
			e.Branch = branch
			e.UpdatedAt = now
			edges = append(edges, e)
		}
	}

	refs := resolved.ExternalRefs
	for i := range refs {
		refs[i].Branch = branch
		refs[i].UpdatedAt = now
	}
	for _, r := range prior.ExternalRefs {
		if deletedFiles[r.SourceFilePath] {
			r.IsDeleted = true
			r.Branch = branch
			r.UpdatedAt = now
			refs = append(refs, r)
		}
	}

	return seedstore.SeedSet{Nodes: nodes, Edges: edges, ExternalRefs: refs, Effects: prior.Effects}
}
