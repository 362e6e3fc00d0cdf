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

// Package graph defines the normalized code graph: the Node/Edge/ExternalRef/
// Effect entities every parser emits and every downstream component (resolver,
// seed store, query engine, hub) consumes. It is the structural parser
// contract (C3): language-agnostic, dependency-free, and stable under
// identical re-parses of the same bytes.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RootPackage is the special package component of an entity ID that denotes
// the repository root rather than a named package directory.
const RootPackage = "."

// UnresolvedPrefix marks an edge target or external reference target that has
// not yet been through semantic resolution.
const UnresolvedPrefix = "unresolved:"

// NodeKind enumerates the recognized symbol kinds.
type NodeKind string

const (
	KindFunction      NodeKind = "function"
	KindClass         NodeKind = "class"
	KindMethod        NodeKind = "method"
	KindProperty      NodeKind = "property"
	KindVariable      NodeKind = "variable"
	KindConstant      NodeKind = "constant"
	KindInterface     NodeKind = "interface"
	KindType          NodeKind = "type"
	KindEnum          NodeKind = "enum"
	KindEnumMember    NodeKind = "enum_member"
	KindNamespace     NodeKind = "namespace"
	KindModule        NodeKind = "module"
	KindParameter     NodeKind = "parameter"
	KindDecorator     NodeKind = "decorator"
	KindJSXComponent  NodeKind = "jsx_component"
	KindHTMLElement   NodeKind = "html_element"
	KindHook          NodeKind = "hook"
	KindUnknown       NodeKind = "unknown"
)

// Visibility enumerates symbol access levels.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
)

// EdgeType enumerates the directed relation kinds between entities.
type EdgeType string

const (
	EdgeContains     EdgeType = "CONTAINS"
	EdgeCalls        EdgeType = "CALLS"
	EdgeImports      EdgeType = "IMPORTS"
	EdgeExtends      EdgeType = "EXTENDS"
	EdgeImplements   EdgeType = "IMPLEMENTS"
	EdgeReturns      EdgeType = "RETURNS"
	EdgeParameterOf  EdgeType = "PARAMETER_OF"
	EdgeTypeOf       EdgeType = "TYPE_OF"
	EdgeDecorates    EdgeType = "DECORATES"
	EdgeOverrides    EdgeType = "OVERRIDES"
	EdgeReferences   EdgeType = "REFERENCES"
	EdgeExports      EdgeType = "EXPORTS"
	EdgeReExports    EdgeType = "RE_EXPORTS"
	EdgeInstantiates EdgeType = "INSTANTIATES"
	EdgeUsesType     EdgeType = "USES_TYPE"
	EdgeAccesses     EdgeType = "ACCESSES"
	EdgeThrows       EdgeType = "THROWS"
	EdgeAwaits       EdgeType = "AWAITS"
	EdgeYields       EdgeType = "YIELDS"
	EdgeRenders      EdgeType = "RENDERS"
	EdgePassesProps  EdgeType = "PASSES_PROPS"
)

// ImportStyle enumerates how an external reference was imported.
type ImportStyle string

const (
	ImportNamed       ImportStyle = "named"
	ImportDefault     ImportStyle = "default"
	ImportNamespace   ImportStyle = "namespace"
	ImportSideEffect  ImportStyle = "side_effect"
	ImportDynamic     ImportStyle = "dynamic"
	ImportRequire     ImportStyle = "require"
)

// Flags bundles the boolean modifiers carried by a Node.
type Flags struct {
	IsExported       bool `json:"is_exported"`
	IsDefaultExport  bool `json:"is_default_export"`
	IsAsync          bool `json:"is_async"`
	IsGenerator      bool `json:"is_generator"`
	IsStatic         bool `json:"is_static"`
	IsAbstract       bool `json:"is_abstract"`
}

// Node is a symbol occurrence within a package partition.
type Node struct {
	EntityID       string         `json:"entity_id"`
	Name           string         `json:"name"`
	QualifiedName  string         `json:"qualified_name"`
	Kind           NodeKind       `json:"kind"`
	FilePath       string         `json:"file_path"`
	StartLine      int            `json:"start_line"`
	StartColumn    int            `json:"start_column"`
	EndLine        int            `json:"end_line"`
	EndColumn      int            `json:"end_column"`
	Visibility     Visibility     `json:"visibility"`
	Flags          Flags          `json:"flags"`
	TypeSignature  string         `json:"type_signature,omitempty"`
	Documentation  string         `json:"documentation,omitempty"`
	Decorators     []string       `json:"decorators,omitempty"`
	TypeParameters []string       `json:"type_parameters,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
	SourceFileHash string         `json:"source_file_hash"`
	Branch         string         `json:"branch"`
	IsDeleted      bool           `json:"is_deleted"`
	UpdatedAt      string         `json:"updated_at"`
}

// Edge is a directed relation between two entities.
type Edge struct {
	SourceEntityID string         `json:"source_entity_id"`
	TargetEntityID string         `json:"target_entity_id"`
	EdgeType       EdgeType       `json:"edge_type"`
	SourceFilePath string         `json:"source_file_path"`
	SourceLine     int            `json:"source_line"`
	SourceColumn   int            `json:"source_column"`
	Properties     map[string]any `json:"properties,omitempty"`
	SourceFileHash string         `json:"source_file_hash"`
	Branch         string         `json:"branch"`
	IsDeleted      bool           `json:"is_deleted"`
	UpdatedAt      string         `json:"updated_at"`
}

// IsUnresolved reports whether the edge's target is a pending placeholder.
func (e Edge) IsUnresolved() bool {
	return strings.HasPrefix(e.TargetEntityID, UnresolvedPrefix)
}

// UnresolvedName extracts the display name from an unresolved target, or ""
// if the edge is already resolved.
func (e Edge) UnresolvedName() string {
	if !e.IsUnresolved() {
		return ""
	}
	return strings.TrimPrefix(e.TargetEntityID, UnresolvedPrefix)
}

// ExternalRef is a cross-package import reference.
type ExternalRef struct {
	SourceEntityID   string      `json:"source_entity_id"`
	ModuleSpecifier  string      `json:"module_specifier"`
	ImportedSymbol   string      `json:"imported_symbol"`
	LocalAlias       string      `json:"local_alias,omitempty"`
	ImportStyle      ImportStyle `json:"import_style"`
	IsTypeOnly       bool        `json:"is_type_only"`
	SourceFilePath   string      `json:"source_file_path"`
	SourceLine       int         `json:"source_line"`
	SourceColumn     int         `json:"source_column"`
	TargetEntityID   string      `json:"target_entity_id,omitempty"`
	IsResolved       bool        `json:"is_resolved"`
	IsReexport       bool        `json:"is_reexport"`
	ExportAlias      string      `json:"export_alias,omitempty"`
	SourceFileHash   string      `json:"source_file_hash"`
	Branch           string      `json:"branch"`
	IsDeleted        bool        `json:"is_deleted"`
	UpdatedAt        string      `json:"updated_at"`
}

// UnresolvedName extracts the display name from an unresolved target.
func (r ExternalRef) UnresolvedName() string {
	if r.IsResolved || !strings.HasPrefix(r.TargetEntityID, UnresolvedPrefix) {
		return ""
	}
	return strings.TrimPrefix(r.TargetEntityID, UnresolvedPrefix)
}

// ParsedEntityID is the decomposed form of an entity ID.
type ParsedEntityID struct {
	Repo    string
	Package string
	Kind    string
	Hash    string
}

// NewEntityID formats an entity ID per the grammar repo:package:kind:hash.
// pkg may be RootPackage to denote the repository root.
func NewEntityID(repo, pkg, kind, hash string) string {
	if pkg == "" {
		pkg = RootPackage
	}
	return fmt.Sprintf("%s:%s:%s:%s", repo, pkg, kind, hash)
}

// ParseEntityID splits an entity ID into its four grammar components. It
// returns an error (via ok=false) for malformed IDs, such as the
// unresolved:<name> placeholder, which callers must check for separately.
func ParseEntityID(id string) (ParsedEntityID, bool) {
	parts := strings.SplitN(id, ":", 4)
	if len(parts) != 4 {
		return ParsedEntityID{}, false
	}
	return ParsedEntityID{Repo: parts[0], Package: parts[1], Kind: parts[2], Hash: parts[3]}, true
}

// ContentHash computes the content-derived hash used as the final component
// of an entity ID, from the symbol's file-relative location and shape
// (name, kind and byte range). Two parses of unchanged bytes MUST produce
// the same hash for the same symbol (testable property 1, scenario S1).
func ContentHash(filePath, name, kind string, startLine, startCol, endLine, endCol int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d:%d-%d:%d", filePath, name, kind, startLine, startCol, endLine, endCol)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// FileContentHash computes the SHA-256 hex digest of a file's raw bytes, used
// as the source_file_hash carried by every node/edge/ref/effect and as the
// change-detection key for the analysis pipeline (C5).
func FileContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
