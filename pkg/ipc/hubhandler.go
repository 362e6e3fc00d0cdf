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

package ipc

import (
	"context"
	"encoding/json"

	"github.com/kraklabs/devac/pkg/engerr"
	"github.com/kraklabs/devac/pkg/hub"
	"github.com/kraklabs/devac/pkg/queryengine"
)

// NewHubHandler builds a Handler that dispatches the closed method set onto
// h and qe, translating engerr.Kind into the hub-specific JSON-RPC codes
// (SPEC_FULL §4.9/§7).
func NewHubHandler(h *hub.Hub, qe *queryengine.Engine) Handler {
	return func(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
		if h == nil {
			return nil, &RPCError{Code: CodeHubNotReady, Message: "hub not initialized"}
		}
		switch method {
		case "register":
			var p struct{ RepoID, RepoPath string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			if err := h.Register(ctx, p.RepoID, p.RepoPath); err != nil {
				return nil, toRPCError(err)
			}
			return map[string]any{"ok": true}, nil

		case "unregister":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			if err := h.Unregister(ctx, p.RepoID); err != nil {
				return nil, toRPCError(err)
			}
			return map[string]any{"ok": true}, nil

		case "refresh":
			var p struct{ RepoIDs []string `json:"repoIds"` }
			_ = json.Unmarshal(params, &p)
			result, err := h.Refresh(ctx, p.RepoIDs)
			if err != nil {
				return nil, toRPCError(err)
			}
			return result, nil

		case "refreshAll":
			result, err := h.Refresh(ctx, nil)
			if err != nil {
				return nil, toRPCError(err)
			}
			return result, nil

		case "analyze":
			var p struct {
				ChangedEntityIDs []string `json:"changedEntityIds"`
				MaxDepth         int      `json:"maxDepth"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			affected, err := h.Analyze(ctx, p.ChangedEntityIDs, p.MaxDepth)
			if err != nil {
				return nil, toRPCError(err)
			}
			return affected, nil

		case "pushDiagnostics":
			var p struct{ Diagnostics []hub.Diagnostic }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			for _, d := range p.Diagnostics {
				if err := h.PushDiagnostic(ctx, d); err != nil {
					return nil, toRPCError(err)
				}
			}
			return map[string]any{"pushed": len(p.Diagnostics)}, nil

		case "pushValidationErrors":
			var p struct {
				RepoID string
				Errors []hub.Diagnostic
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			for _, d := range p.Errors {
				d.RepoID = p.RepoID
				d.Severity = "validation"
				if err := h.PushDiagnostic(ctx, d); err != nil {
					return nil, toRPCError(err)
				}
			}
			return map[string]any{"pushed": len(p.Errors)}, nil

		case "clearDiagnostics":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			if err := h.ClearDiagnostics(ctx, p.RepoID); err != nil {
				return nil, toRPCError(err)
			}
			return map[string]any{"ok": true}, nil

		case "resolveDiagnostics":
			var p struct{ IDs []string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			for _, id := range p.IDs {
				if err := h.ResolveDiagnostic(ctx, id); err != nil {
					return nil, toRPCError(err)
				}
			}
			return map[string]any{"resolved": len(p.IDs)}, nil

		case "getDiagnostics":
			var p struct {
				RepoID         string
				OnlyUnresolved bool `json:"onlyUnresolved"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			diags, err := h.GetDiagnostics(ctx, p.RepoID, p.OnlyUnresolved)
			if err != nil {
				return nil, toRPCError(err)
			}
			return diags, nil

		case "getValidationErrors":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			diags, err := h.GetDiagnostics(ctx, p.RepoID, false)
			if err != nil {
				return nil, toRPCError(err)
			}
			return filterSeverity(diags, "validation"), nil

		case "getDiagnosticsSummary":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			summary, err := h.GetDiagnosticsSummary(ctx, p.RepoID)
			if err != nil {
				return nil, toRPCError(err)
			}
			return summary, nil

		case "getValidationSummary":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			summary, err := h.GetDiagnosticsSummary(ctx, p.RepoID)
			if err != nil {
				return nil, toRPCError(err)
			}
			return map[string]int{"validation": summary["validation"]}, nil

		case "getDiagnosticsCounts":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			counts, err := h.GetDiagnosticsCounts(ctx, p.RepoID)
			if err != nil {
				return nil, toRPCError(err)
			}
			return counts, nil

		case "getValidationCounts":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			counts, err := h.GetDiagnosticsCounts(ctx, p.RepoID)
			if err != nil {
				return nil, toRPCError(err)
			}
			return map[string]int{"validation": counts["validation"]}, nil

		case "listRepos":
			repos, err := h.ListRepos(ctx)
			if err != nil {
				return nil, toRPCError(err)
			}
			return repos, nil

		case "getRepoStatus":
			var p struct{ RepoID string }
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			status, err := h.GetRepoStatus(ctx, p.RepoID)
			if err != nil {
				return nil, toRPCError(err)
			}
			return status, nil

		case "getStatus":
			status, err := h.GetStatus(ctx)
			if err != nil {
				return nil, toRPCError(err)
			}
			return status, nil

		case "query":
			var p struct {
				Packages []string
				Branch   string
				SQL      string
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			if qe == nil {
				return nil, &RPCError{Code: CodeHubNotReady, Message: "query engine not initialized"}
			}
			result, err := qe.Query(ctx, queryengine.Request{Packages: p.Packages, Branch: p.Branch, SQL: p.SQL})
			if err != nil {
				return nil, toRPCError(err)
			}
			return result, nil

		default:
			return nil, &RPCError{Code: CodeMethodNotFound, Message: "unknown method: " + method}
		}
	}
}

func invalidParams(err error) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
}

func toRPCError(err error) *RPCError {
	kind, ok := engerr.As(err)
	if !ok {
		return &RPCError{Code: CodeOperationFailed, Message: err.Error()}
	}
	switch kind {
	case engerr.KindInvalid:
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	case engerr.KindUnavailable:
		return &RPCError{Code: CodeHubNotReady, Message: err.Error()}
	case engerr.KindIntegrity:
		return &RPCError{Code: CodeOperationFailed, Message: err.Error()}
	case engerr.KindNotFound, engerr.KindConflict, engerr.KindIO, engerr.KindTimeout:
		return &RPCError{Code: CodeInternalError, Message: err.Error(), Data: map[string]string{"kind": kind.String()}}
	default:
		return &RPCError{Code: CodeOperationFailed, Message: err.Error()}
	}
}

func filterSeverity(diags []hub.Diagnostic, severity string) []hub.Diagnostic {
	var out []hub.Diagnostic
	for _, d := range diags {
		if d.Severity == severity {
			out = append(out, d)
		}
	}
	return out
}
