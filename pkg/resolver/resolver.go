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

// Package resolver implements the Semantic Resolver (C4): turns
// unresolved:* edge and external-reference targets into concrete entity IDs
// using a per-package export index and local symbol index.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/kraklabs/devac/pkg/graph"
)

// ErrorCode enumerates the typed resolution failure reasons.
type ErrorCode string

const (
	ErrModuleNotFound     ErrorCode = "MODULE_NOT_FOUND"
	ErrSymbolNotFound     ErrorCode = "SYMBOL_NOT_FOUND"
	ErrParseError         ErrorCode = "PARSE_ERROR"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// ResolutionError is a per-file, non-fatal resolution failure; it never
// aborts the package's overall resolution (SPEC_FULL §4.4).
type ResolutionError struct {
	Code     ErrorCode
	FilePath string
	Target   string
	Message  string
}

func (e ResolutionError) Error() string {
	return string(e.Code) + ": " + e.FilePath + ": " + e.Message
}

// ExportedSymbol describes one symbol a file exports.
type ExportedSymbol struct {
	Name           string
	Kind           graph.NodeKind
	EntityID       string
	IsDefault      bool
	IsTypeOnly     bool
	ReexportModule string // non-empty if this symbol is a re-export of another module
}

// ModuleResolver resolves a module specifier written in fromFile to a file
// path within the package, per the language's module-resolution rules. It is
// pluggable per language; no implementation ships in this repository (the
// resolver tests define a same-directory stand-in).
type ModuleResolver interface {
	ResolveModule(fromFile, specifier string) (file string, ok bool)
}

// FileUnit is one file's structural parse output, as produced by a
// graph.Parser and consumed by the resolver.
type FileUnit struct {
	Path   string
	Result graph.ParseResult
}

// Result is the outcome of resolving one package.
type Result struct {
	ExternalRefs []graph.ExternalRef
	Edges        []graph.Edge
	Errors       []ResolutionError
	// ResolvedCount is the number of refs/edges with is_resolved=true /
	// non-unresolved target after this run, used to check resolver
	// monotonicity (testable property 5) across repeated runs.
	ResolvedCount int
}

// Stats summarizes one resolution run.
type Stats struct {
	TotalRefs      int
	ResolvedRefs   int
	TotalCalls     int
	ResolvedCalls  int
	Errors         int
}

// Resolver resolves unresolved refs and CALLS edges for one package.
type Resolver struct {
	logger         *slog.Logger
	moduleResolver ModuleResolver
	// PerFileTimeout bounds each file's resolution work (default 30s per
	// SPEC_FULL §5).
	PerFileTimeout time.Duration

	exportIndex map[string][]ExportedSymbol // file -> exports
	localIndex  map[string]map[string]string // file -> name -> entity_id
}

// New returns a Resolver. moduleResolver may be nil, in which case module
// specifiers never resolve (every ref becomes MODULE_NOT_FOUND) — useful
// for languages without a pluggable resolver wired yet.
func New(logger *slog.Logger, moduleResolver ModuleResolver) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		logger:         logger,
		moduleResolver: moduleResolver,
		PerFileTimeout: 30 * time.Second,
		exportIndex:    map[string][]ExportedSymbol{},
		localIndex:     map[string]map[string]string{},
	}
}

// BuildIndex constructs the export index and local symbol index from a
// package's files (step 1 and 2 of SPEC_FULL §4.4).
func (r *Resolver) BuildIndex(files []FileUnit) {
	r.exportIndex = map[string][]ExportedSymbol{}
	r.localIndex = map[string]map[string]string{}

	for _, f := range files {
		locals := map[string]string{}
		var exports []ExportedSymbol
		for _, n := range f.Result.Nodes {
			if n.IsDeleted {
				continue
			}
			locals[n.Name] = n.EntityID
			if n.Flags.IsExported {
				exports = append(exports, ExportedSymbol{
					Name: n.Name, Kind: n.Kind, EntityID: n.EntityID,
					IsDefault: n.Flags.IsDefaultExport,
				})
			}
		}
		r.localIndex[f.Path] = locals
		r.exportIndex[f.Path] = exports
	}
}

// Resolve runs ref and CALLS resolution over every file, respecting
// per-file timeouts and never aborting the package on an individual
// failure.
func (r *Resolver) Resolve(ctx context.Context, pkgPath string, files []FileUnit) Result {
	var result Result
	visiting := map[string]bool{}

	for _, f := range files {
		fileCtx, cancel := context.WithTimeout(ctx, r.PerFileTimeout)

		refs, refErrs := r.resolveRefsForFile(fileCtx, f, visiting)
		edges, callErrs := r.resolveCallsForFile(fileCtx, f)
		cancel()

		if fileCtx.Err() == context.DeadlineExceeded {
			result.Errors = append(result.Errors, ResolutionError{Code: ErrTimeout, FilePath: f.Path, Message: "resolution deadline exceeded"})
		}

		result.ExternalRefs = append(result.ExternalRefs, refs...)
		result.Edges = append(result.Edges, edges...)
		result.Errors = append(result.Errors, refErrs...)
		result.Errors = append(result.Errors, callErrs...)
	}

	for _, ref := range result.ExternalRefs {
		if ref.IsResolved {
			result.ResolvedCount++
		}
	}
	for _, e := range result.Edges {
		if e.EdgeType == graph.EdgeCalls && !e.IsUnresolved() {
			result.ResolvedCount++
		}
	}

	r.logger.Info("resolver.resolve.complete", "package", pkgPath, "files", len(files),
		"resolved", result.ResolvedCount, "errors", len(result.Errors))
	return result
}

func (r *Resolver) resolveRefsForFile(ctx context.Context, f FileUnit, visiting map[string]bool) ([]graph.ExternalRef, []ResolutionError) {
	var errs []ResolutionError
	refs := make([]graph.ExternalRef, 0, len(f.Result.ExternalRefs))

	for _, ref := range f.Result.ExternalRefs {
		if ctx.Err() != nil {
			refs = append(refs, ref)
			continue
		}
		if ref.IsResolved {
			refs = append(refs, ref)
			continue
		}

		targetFile, ok := r.resolveModuleWithCycles(f.Path, ref.ModuleSpecifier, visiting)
		if !ok {
			errs = append(errs, ResolutionError{Code: ErrModuleNotFound, FilePath: f.Path, Target: ref.ModuleSpecifier, Message: "module not found"})
			refs = append(refs, ref)
			continue
		}

		exports := r.exportIndex[targetFile]
		match, found := matchExport(exports, ref)
		if !found {
			errs = append(errs, ResolutionError{Code: ErrSymbolNotFound, FilePath: f.Path, Target: ref.ImportedSymbol, Message: "exported symbol not found"})
			refs = append(refs, ref)
			continue
		}

		ref.TargetEntityID = match.EntityID
		ref.IsResolved = true
		refs = append(refs, ref)
	}
	return refs, errs
}

// resolveModuleWithCycles resolves specifier from fromFile, refusing a
// (fromFile, specifier) pair already marked in visiting. It resolves one hop
// only: re-export chains are not followed, so no CIRCULAR_DEPENDENCY error
// is ever produced.
func (r *Resolver) resolveModuleWithCycles(fromFile, specifier string, visiting map[string]bool) (string, bool) {
	if r.moduleResolver == nil {
		return "", false
	}
	if visiting[fromFile+"->"+specifier] {
		return "", false
	}
	visiting[fromFile+"->"+specifier] = true
	defer delete(visiting, fromFile+"->"+specifier)

	return r.moduleResolver.ResolveModule(fromFile, specifier)
}

func matchExport(exports []ExportedSymbol, ref graph.ExternalRef) (ExportedSymbol, bool) {
	switch ref.ImportStyle {
	case graph.ImportDefault:
		for _, e := range exports {
			if e.IsDefault {
				return e, true
			}
		}
		return ExportedSymbol{}, false
	case graph.ImportNamespace:
		if len(exports) == 0 {
			return ExportedSymbol{}, false
		}
		// A namespace import resolves to a synthetic handle over the whole
		// file; use the first export as a stand-in target since the spec
		// does not require per-member namespace resolution.
		return exports[0], true
	default:
		for _, e := range exports {
			if e.Name == ref.ImportedSymbol {
				if ref.IsTypeOnly && e.IsTypeOnly {
					return e, true
				}
				if !ref.IsTypeOnly {
					return e, true
				}
			}
		}
		return ExportedSymbol{}, false
	}
}

func (r *Resolver) resolveCallsForFile(ctx context.Context, f FileUnit) ([]graph.Edge, []ResolutionError) {
	var errs []ResolutionError
	edges := make([]graph.Edge, 0, len(f.Result.Edges))

	for _, e := range f.Result.Edges {
		if ctx.Err() != nil || e.EdgeType != graph.EdgeCalls || !e.IsUnresolved() {
			edges = append(edges, e)
			continue
		}

		calleeName := e.UnresolvedName()

		// method=local: same-file symbol index first.
		if id, ok := r.localIndex[f.Path][calleeName]; ok {
			e.TargetEntityID = id
			edges = append(edges, e)
			continue
		}

		// method=index: exported symbols of files imported by this file.
		candidates := r.candidateCalleesAcrossImports(f, calleeName)
		switch len(candidates) {
		case 0:
			errs = append(errs, ResolutionError{Code: ErrSymbolNotFound, FilePath: f.Path, Target: calleeName, Message: "call target not found"})
			edges = append(edges, e)
		case 1:
			e.TargetEntityID = candidates[0]
			edges = append(edges, e)
		default:
			// Ambiguous: leave unresolved; no confidence value is recorded.
			edges = append(edges, e)
		}
	}
	return edges, errs
}

func (r *Resolver) candidateCalleesAcrossImports(f FileUnit, calleeName string) []string {
	var ids []string
	for _, ref := range f.Result.ExternalRefs {
		targetFile, ok := r.resolveModuleWithCycles(f.Path, ref.ModuleSpecifier, map[string]bool{})
		if !ok {
			continue
		}
		for _, ex := range r.exportIndex[targetFile] {
			if ex.Name == calleeName {
				ids = append(ids, ex.EntityID)
			}
		}
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ComputeStats summarizes a resolution result.
func ComputeStats(files []FileUnit, result Result) Stats {
	var st Stats
	for _, f := range files {
		st.TotalRefs += len(f.Result.ExternalRefs)
		for _, e := range f.Result.Edges {
			if e.EdgeType == graph.EdgeCalls {
				st.TotalCalls++
			}
		}
	}
	for _, ref := range result.ExternalRefs {
		if ref.IsResolved {
			st.ResolvedRefs++
		}
	}
	for _, e := range result.Edges {
		if e.EdgeType == graph.EdgeCalls && !e.IsUnresolved() {
			st.ResolvedCalls++
		}
	}
	st.Errors = len(result.Errors)
	return st
}
