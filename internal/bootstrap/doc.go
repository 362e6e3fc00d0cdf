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

// Package bootstrap handles devac workspace and repo initialization.
//
// A workspace owns one Federation Hub catalog; each repo within it is
// registered independently. This package wires pkg/config, pkg/manifest, and
// pkg/hub together so cmd/devac's init/register subcommands stay thin.
//
// # Initialization Workflow
//
//	info, err := bootstrap.InitWorkspace(workspaceRoot, false, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	repo, err := bootstrap.InitRepo(repoPath, info.HubDir, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("registered %s with hub at %s\n", repo.RepoID, info.HubDir)
//
// # Idempotency
//
// Both InitWorkspace and InitRepo are safe to call repeatedly: InitWorkspace
// leaves an existing config.yaml and hub catalog untouched unless force is
// set, and InitRepo always regenerates the manifest and re-registers with the
// hub.
//
// # Configuration
//
// pkg/config defines the two YAML files this package reads and writes:
// WorkspaceConfig (<workspace>/.devac/config.yaml) names the hub directory
// and shared indexing defaults; RepoConfig (<repo>/.devac/repo.yaml) records
// one repo's ID and the hub address it registers against.
package bootstrap
