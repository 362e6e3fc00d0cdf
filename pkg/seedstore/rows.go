// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package seedstore

import (
	"encoding/json"

	"github.com/kraklabs/devac/pkg/graph"
)

// Row structs mirror §6: string columns UTF-8, boolean columns one byte,
// timestamps as ISO-8601 strings, free-form properties as serialized JSON
// strings (SPEC_FULL §9: dynamic property bags are an opaque payload with a
// typed accessor, not a static schema).

type nodeRow struct {
	EntityID       string `parquet:"name=entity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name           string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	QualifiedName  string `parquet:"name=qualified_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind           string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	FilePath       string `parquet:"name=file_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartLine      int32  `parquet:"name=start_line, type=INT32"`
	StartColumn    int32  `parquet:"name=start_column, type=INT32"`
	EndLine        int32  `parquet:"name=end_line, type=INT32"`
	EndColumn      int32  `parquet:"name=end_column, type=INT32"`
	Visibility     string `parquet:"name=visibility, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsExported     bool   `parquet:"name=is_exported, type=BOOLEAN"`
	IsDefaultExport bool  `parquet:"name=is_default_export, type=BOOLEAN"`
	IsAsync        bool   `parquet:"name=is_async, type=BOOLEAN"`
	IsGenerator    bool   `parquet:"name=is_generator, type=BOOLEAN"`
	IsStatic       bool   `parquet:"name=is_static, type=BOOLEAN"`
	IsAbstract     bool   `parquet:"name=is_abstract, type=BOOLEAN"`
	TypeSignature  string `parquet:"name=type_signature, type=BYTE_ARRAY, convertedtype=UTF8"`
	Documentation  string `parquet:"name=documentation, type=BYTE_ARRAY, convertedtype=UTF8"`
	DecoratorsJSON string `parquet:"name=decorators_json, type=BYTE_ARRAY, convertedtype=UTF8"`
	TypeParamsJSON string `parquet:"name=type_parameters_json, type=BYTE_ARRAY, convertedtype=UTF8"`
	PropertiesJSON string `parquet:"name=properties_json, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceFileHash string `parquet:"name=source_file_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Branch         string `parquet:"name=branch, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsDeleted      bool   `parquet:"name=is_deleted, type=BOOLEAN"`
	UpdatedAt      string `parquet:"name=updated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toNodeRows(nodes []graph.Node) []nodeRow {
	rows := make([]nodeRow, 0, len(nodes))
	for _, n := range nodes {
		dec, _ := json.Marshal(n.Decorators)
		tp, _ := json.Marshal(n.TypeParameters)
		props, _ := json.Marshal(n.Properties)
		rows = append(rows, nodeRow{
			EntityID: n.EntityID, Name: n.Name, QualifiedName: n.QualifiedName,
			Kind: string(n.Kind), FilePath: n.FilePath,
			StartLine: int32(n.StartLine), StartColumn: int32(n.StartColumn),
			EndLine: int32(n.EndLine), EndColumn: int32(n.EndColumn),
			Visibility: string(n.Visibility),
			IsExported: n.Flags.IsExported, IsDefaultExport: n.Flags.IsDefaultExport,
			IsAsync: n.Flags.IsAsync, IsGenerator: n.Flags.IsGenerator,
			IsStatic: n.Flags.IsStatic, IsAbstract: n.Flags.IsAbstract,
			TypeSignature: n.TypeSignature, Documentation: n.Documentation,
			DecoratorsJSON: string(dec), TypeParamsJSON: string(tp), PropertiesJSON: string(props),
			SourceFileHash: n.SourceFileHash, Branch: n.Branch, IsDeleted: n.IsDeleted, UpdatedAt: n.UpdatedAt,
		})
	}
	return rows
}

func fromNodeRows(rows []nodeRow) []graph.Node {
	nodes := make([]graph.Node, 0, len(rows))
	for _, r := range rows {
		var dec, tp []string
		var props map[string]any
		_ = json.Unmarshal([]byte(r.DecoratorsJSON), &dec)
		_ = json.Unmarshal([]byte(r.TypeParamsJSON), &tp)
		_ = json.Unmarshal([]byte(r.PropertiesJSON), &props)
		nodes = append(nodes, graph.Node{
			EntityID: r.EntityID, Name: r.Name, QualifiedName: r.QualifiedName,
			Kind: graph.NodeKind(r.Kind), FilePath: r.FilePath,
			StartLine: int(r.StartLine), StartColumn: int(r.StartColumn),
			EndLine: int(r.EndLine), EndColumn: int(r.EndColumn),
			Visibility: graph.Visibility(r.Visibility),
			Flags: graph.Flags{
				IsExported: r.IsExported, IsDefaultExport: r.IsDefaultExport,
				IsAsync: r.IsAsync, IsGenerator: r.IsGenerator,
				IsStatic: r.IsStatic, IsAbstract: r.IsAbstract,
			},
			TypeSignature: r.TypeSignature, Documentation: r.Documentation,
			Decorators: dec, TypeParameters: tp, Properties: props,
			SourceFileHash: r.SourceFileHash, Branch: r.Branch, IsDeleted: r.IsDeleted, UpdatedAt: r.UpdatedAt,
		})
	}
	return nodes
}

type edgeRow struct {
	SourceEntityID string `parquet:"name=source_entity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TargetEntityID string `parquet:"name=target_entity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EdgeType       string `parquet:"name=edge_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceFilePath string `parquet:"name=source_file_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceLine     int32  `parquet:"name=source_line, type=INT32"`
	SourceColumn   int32  `parquet:"name=source_column, type=INT32"`
	PropertiesJSON string `parquet:"name=properties_json, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceFileHash string `parquet:"name=source_file_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Branch         string `parquet:"name=branch, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsDeleted      bool   `parquet:"name=is_deleted, type=BOOLEAN"`
	UpdatedAt      string `parquet:"name=updated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toEdgeRows(edges []graph.Edge) []edgeRow {
	rows := make([]edgeRow, 0, len(edges))
	for _, e := range edges {
		props, _ := json.Marshal(e.Properties)
		rows = append(rows, edgeRow{
			SourceEntityID: e.SourceEntityID, TargetEntityID: e.TargetEntityID,
			EdgeType: string(e.EdgeType), SourceFilePath: e.SourceFilePath,
			SourceLine: int32(e.SourceLine), SourceColumn: int32(e.SourceColumn),
			PropertiesJSON: string(props), SourceFileHash: e.SourceFileHash,
			Branch: e.Branch, IsDeleted: e.IsDeleted, UpdatedAt: e.UpdatedAt,
		})
	}
	return rows
}

func fromEdgeRows(rows []edgeRow) []graph.Edge {
	edges := make([]graph.Edge, 0, len(rows))
	for _, r := range rows {
		var props map[string]any
		_ = json.Unmarshal([]byte(r.PropertiesJSON), &props)
		edges = append(edges, graph.Edge{
			SourceEntityID: r.SourceEntityID, TargetEntityID: r.TargetEntityID,
			EdgeType: graph.EdgeType(r.EdgeType), SourceFilePath: r.SourceFilePath,
			SourceLine: int(r.SourceLine), SourceColumn: int(r.SourceColumn),
			Properties: props, SourceFileHash: r.SourceFileHash,
			Branch: r.Branch, IsDeleted: r.IsDeleted, UpdatedAt: r.UpdatedAt,
		})
	}
	return edges
}

type refRow struct {
	SourceEntityID  string `parquet:"name=source_entity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ModuleSpecifier string `parquet:"name=module_specifier, type=BYTE_ARRAY, convertedtype=UTF8"`
	ImportedSymbol  string `parquet:"name=imported_symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	LocalAlias      string `parquet:"name=local_alias, type=BYTE_ARRAY, convertedtype=UTF8"`
	ImportStyle     string `parquet:"name=import_style, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsTypeOnly      bool   `parquet:"name=is_type_only, type=BOOLEAN"`
	SourceFilePath  string `parquet:"name=source_file_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceLine      int32  `parquet:"name=source_line, type=INT32"`
	SourceColumn    int32  `parquet:"name=source_column, type=INT32"`
	TargetEntityID  string `parquet:"name=target_entity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsResolved      bool   `parquet:"name=is_resolved, type=BOOLEAN"`
	IsReexport      bool   `parquet:"name=is_reexport, type=BOOLEAN"`
	ExportAlias     string `parquet:"name=export_alias, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceFileHash  string `parquet:"name=source_file_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Branch          string `parquet:"name=branch, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsDeleted       bool   `parquet:"name=is_deleted, type=BOOLEAN"`
	UpdatedAt       string `parquet:"name=updated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRefRows(refs []graph.ExternalRef) []refRow {
	rows := make([]refRow, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, refRow{
			SourceEntityID: r.SourceEntityID, ModuleSpecifier: r.ModuleSpecifier,
			ImportedSymbol: r.ImportedSymbol, LocalAlias: r.LocalAlias,
			ImportStyle: string(r.ImportStyle), IsTypeOnly: r.IsTypeOnly,
			SourceFilePath: r.SourceFilePath, SourceLine: int32(r.SourceLine), SourceColumn: int32(r.SourceColumn),
			TargetEntityID: r.TargetEntityID, IsResolved: r.IsResolved, IsReexport: r.IsReexport,
			ExportAlias: r.ExportAlias, SourceFileHash: r.SourceFileHash,
			Branch: r.Branch, IsDeleted: r.IsDeleted, UpdatedAt: r.UpdatedAt,
		})
	}
	return rows
}

func fromRefRows(rows []refRow) []graph.ExternalRef {
	refs := make([]graph.ExternalRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, graph.ExternalRef{
			SourceEntityID: r.SourceEntityID, ModuleSpecifier: r.ModuleSpecifier,
			ImportedSymbol: r.ImportedSymbol, LocalAlias: r.LocalAlias,
			ImportStyle: graph.ImportStyle(r.ImportStyle), IsTypeOnly: r.IsTypeOnly,
			SourceFilePath: r.SourceFilePath, SourceLine: int(r.SourceLine), SourceColumn: int(r.SourceColumn),
			TargetEntityID: r.TargetEntityID, IsResolved: r.IsResolved, IsReexport: r.IsReexport,
			ExportAlias: r.ExportAlias, SourceFileHash: r.SourceFileHash,
			Branch: r.Branch, IsDeleted: r.IsDeleted, UpdatedAt: r.UpdatedAt,
		})
	}
	return refs
}

type effectRow struct {
	EffectID       string `parquet:"name=effect_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind           string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp      string `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceEntityID string `parquet:"name=source_entity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceFilePath string `parquet:"name=source_file_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceLine     int32  `parquet:"name=source_line, type=INT32"`
	SourceColumn   int32  `parquet:"name=source_column, type=INT32"`
	Branch         string `parquet:"name=branch, type=BYTE_ARRAY, convertedtype=UTF8"`
	PropertiesJSON string `parquet:"name=properties_json, type=BYTE_ARRAY, convertedtype=UTF8"`
	CalleeName     string `parquet:"name=callee_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsExternal     bool   `parquet:"name=is_external, type=BOOLEAN"`
	StoreType      string `parquet:"name=store_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Operation      string `parquet:"name=operation, type=BYTE_ARRAY, convertedtype=UTF8"`
	TargetResource string `parquet:"name=target_resource, type=BYTE_ARRAY, convertedtype=UTF8"`
	Protocol       string `parquet:"name=protocol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Endpoint       string `parquet:"name=endpoint, type=BYTE_ARRAY, convertedtype=UTF8"`
	StatusCode     int32  `parquet:"name=status_code, type=INT32"`
	Label          string `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChildCount     int32  `parquet:"name=child_count, type=INT32"`
}

func strOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolOf(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func intOf(p *int) int32 {
	if p == nil {
		return 0
	}
	return int32(*p)
}

func toEffectRows(effects []graph.Effect) []effectRow {
	rows := make([]effectRow, 0, len(effects))
	for _, e := range effects {
		props, _ := json.Marshal(e.Properties)
		rows = append(rows, effectRow{
			EffectID: e.EffectID, Kind: string(e.Kind), Timestamp: e.Timestamp,
			SourceEntityID: e.SourceEntityID, SourceFilePath: e.SourceFilePath,
			SourceLine: int32(e.SourceLine), SourceColumn: int32(e.SourceColumn),
			Branch: e.Branch, PropertiesJSON: string(props),
			CalleeName: strOf(e.CalleeName), IsExternal: boolOf(e.IsExternal),
			StoreType: strOf(e.StoreType), Operation: strOf(e.Operation), TargetResource: strOf(e.TargetResource),
			Protocol: strOf(e.Protocol), Endpoint: strOf(e.Endpoint), StatusCode: intOf(e.StatusCode),
			Label: strOf(e.Label), ChildCount: intOf(e.ChildCount),
		})
	}
	return rows
}

func fromEffectRows(rows []effectRow) []graph.Effect {
	effects := make([]graph.Effect, 0, len(rows))
	for _, r := range rows {
		var props map[string]any
		_ = json.Unmarshal([]byte(r.PropertiesJSON), &props)
		e := graph.Effect{
			EffectID: r.EffectID, Kind: graph.EffectKind(r.Kind), Timestamp: r.Timestamp,
			SourceEntityID: r.SourceEntityID, SourceFilePath: r.SourceFilePath,
			SourceLine: int(r.SourceLine), SourceColumn: int(r.SourceColumn),
			Branch: r.Branch, Properties: props,
		}
		if r.CalleeName != "" {
			v := r.CalleeName
			e.CalleeName = &v
			ext := r.IsExternal
			e.IsExternal = &ext
		}
		if r.StoreType != "" {
			st, op, tr := r.StoreType, r.Operation, r.TargetResource
			e.StoreType, e.Operation, e.TargetResource = &st, &op, &tr
		}
		effects = append(effects, e)
	}
	return effects
}
