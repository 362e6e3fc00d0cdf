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

// Package refparser is the one concrete implementation of the Structural
// Parser Contract (C3) shipped with this repository. Language-specific
// parsers are otherwise external per SPEC_FULL §1; this one exists to
// exercise the analysis pipeline end to end in tests and in the `devac`
// CLI's `analyze` path, using Tree-sitter's Go grammar at much smaller scope
// than a production multi-language parser set.
package refparser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/devac/pkg/graph"
)

// GoParser implements graph.Parser for Go source files.
type GoParser struct{}

// New returns a reference Go structural parser.
func New() *GoParser { return &GoParser{} }

func (p *GoParser) Language() string     { return "go" }
func (p *GoParser) Extensions() []string { return []string{".go"} }

// ParseFile extracts top-level function/method declarations, type
// declarations and their CONTAINS/CALLS relationships from one Go file.
func (p *GoParser) ParseFile(ctx context.Context, repo, pkg, filePath string, content []byte) (graph.ParseResult, error) {
	result := graph.ParseResult{
		FilePath:       filePath,
		SourceFileHash: graph.FileContentHash(content),
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return result, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		result.Warnings = append(result.Warnings, "syntax errors present; best-effort extraction")
	}

	walker := &walker{repo: repo, pkg: pkg, filePath: filePath, content: content, fileHash: result.SourceFileHash}
	walker.walk(root)

	result.Nodes = walker.nodes
	result.Edges = walker.edges
	result.ExternalRefs = walker.refs
	return result, nil
}

type walker struct {
	repo, pkg, filePath string
	content             []byte
	fileHash            string

	nodes []graph.Node
	edges []graph.Edge
	refs  []graph.ExternalRef

	currentFuncID string
	nameToID      map[string]string
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.content)
}

func (w *walker) walk(root *sitter.Node) {
	w.nameToID = map[string]string{}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "function_declaration":
			w.emitFunction(n, "")
		case "method_declaration":
			w.emitFunction(n, w.receiverType(n))
		case "type_declaration":
			w.emitTypeDeclaration(n)
		case "import_spec":
			w.emitImport(n)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)

	// Second pass: calls, now that every declared name has an entity ID.
	var visitCalls func(n *sitter.Node, enclosingFuncID string)
	visitCalls = func(n *sitter.Node, enclosingFuncID string) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "function_declaration", "method_declaration":
			if id, ok := w.funcIDForDecl(n); ok {
				enclosingFuncID = id
			}
		case "call_expression":
			w.emitCall(n, enclosingFuncID)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visitCalls(n.Child(i), enclosingFuncID)
		}
	}
	visitCalls(root, "")
}

func (w *walker) receiverType(n *sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	return stripPointer(w.text(recv))
}

func stripPointer(s string) string {
	for len(s) > 0 && (s[0] == '*' || s[0] == ' ' || s[0] == '(') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ')' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	// receiver text looks like "(r *Resolver)"; take the last field.
	fields := splitFields(s)
	if len(fields) > 0 {
		return fields[len(fields)-1]
	}
	return s
}

func splitFields(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' || r == '*' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func (w *walker) emitFunction(n *sitter.Node, receiver string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	kind := graph.KindFunction
	qualified := name
	if receiver != "" {
		kind = graph.KindMethod
		qualified = receiver + "." + name
	}

	start := nameNode.StartPoint()
	end := n.EndPoint()
	id := graph.NewEntityID(w.repo, w.pkg, string(kind),
		graph.ContentHash(w.filePath, qualified, string(kind), int(start.Row)+1, int(start.Column), int(end.Row)+1, int(end.Column)))

	exported := len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
	node := graph.Node{
		EntityID: id, Name: name, QualifiedName: qualified, Kind: kind,
		FilePath: w.filePath, StartLine: int(start.Row) + 1, StartColumn: int(start.Column),
		EndLine: int(end.Row) + 1, EndColumn: int(end.Column),
		Visibility:     visibilityOf(exported),
		Flags:          graph.Flags{IsExported: exported},
		SourceFileHash: w.fileHash,
	}
	w.nodes = append(w.nodes, node)
	w.nameToID[qualified] = id
	if receiver == "" {
		w.nameToID[name] = id
	}

	if receiver != "" {
		if typeID, ok := w.nameToID[receiver]; ok {
			w.edges = append(w.edges, graph.Edge{
				SourceEntityID: typeID, TargetEntityID: id, EdgeType: graph.EdgeContains,
				SourceFilePath: w.filePath, SourceLine: int(start.Row) + 1, SourceFileHash: w.fileHash,
			})
		}
	}
}

func visibilityOf(exported bool) graph.Visibility {
	if exported {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

func (w *walker) funcIDForDecl(n *sitter.Node) (string, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return "", false
	}
	name := w.text(nameNode)
	qualified := name
	if n.Type() == "method_declaration" {
		qualified = w.receiverType(n) + "." + name
	}
	id, ok := w.nameToID[qualified]
	return id, ok
}

func (w *walker) emitTypeDeclaration(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		spec := n.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := w.text(nameNode)
		kind := graph.KindType
		typeNode := spec.ChildByFieldName("type")
		if typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = graph.KindClass
			case "interface_type":
				kind = graph.KindInterface
			}
		}

		start := nameNode.StartPoint()
		end := spec.EndPoint()
		id := graph.NewEntityID(w.repo, w.pkg, string(kind),
			graph.ContentHash(w.filePath, name, string(kind), int(start.Row)+1, int(start.Column), int(end.Row)+1, int(end.Column)))

		exported := len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
		w.nodes = append(w.nodes, graph.Node{
			EntityID: id, Name: name, QualifiedName: name, Kind: kind,
			FilePath: w.filePath, StartLine: int(start.Row) + 1, StartColumn: int(start.Column),
			EndLine: int(end.Row) + 1, EndColumn: int(end.Column),
			Visibility:     visibilityOf(exported),
			Flags:          graph.Flags{IsExported: exported},
			SourceFileHash: w.fileHash,
		})
		w.nameToID[name] = id
	}
}

func (w *walker) emitImport(n *sitter.Node) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	path := trimQuotes(w.text(pathNode))
	nameNode := n.ChildByFieldName("name")
	alias := ""
	style := graph.ImportNamed
	if nameNode != nil {
		alias = w.text(nameNode)
		switch alias {
		case "_":
			style = graph.ImportSideEffect
		case ".":
			style = graph.ImportNamespace
		}
	}
	start := n.StartPoint()
	w.refs = append(w.refs, graph.ExternalRef{
		ModuleSpecifier: path, ImportedSymbol: path, LocalAlias: alias,
		ImportStyle: style, SourceFilePath: w.filePath, SourceLine: int(start.Row) + 1,
		TargetEntityID: graph.UnresolvedPrefix + path, SourceFileHash: w.fileHash,
	})
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}

func (w *walker) emitCall(n *sitter.Node, enclosingFuncID string) {
	if enclosingFuncID == "" {
		return
	}
	funcNode := n.ChildByFieldName("function")
	if funcNode == nil {
		return
	}
	var calleeName string
	switch funcNode.Type() {
	case "identifier":
		calleeName = w.text(funcNode)
	case "selector_expression":
		fieldNode := funcNode.ChildByFieldName("field")
		calleeName = w.text(fieldNode)
	default:
		return
	}
	if calleeName == "" {
		return
	}
	start := n.StartPoint()
	w.edges = append(w.edges, graph.Edge{
		SourceEntityID: enclosingFuncID,
		TargetEntityID: graph.UnresolvedPrefix + calleeName,
		EdgeType:       graph.EdgeCalls,
		SourceFilePath: w.filePath,
		SourceLine:     int(start.Row) + 1,
		SourceFileHash: w.fileHash,
	})
}
