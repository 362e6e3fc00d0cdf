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

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/devac/internal/errors"
	"github.com/kraklabs/devac/pkg/config"
	"github.com/kraklabs/devac/pkg/hub"
	"github.com/kraklabs/devac/pkg/manifest"
)

// WorkspaceInfo describes a freshly initialized or opened workspace.
type WorkspaceInfo struct {
	WorkspaceRoot string
	HubDir        string
}

// RepoInfo describes a freshly registered or opened repo.
type RepoInfo struct {
	RepoID       string
	RepoPath     string
	ManifestPath string
}

// InitWorkspace creates <workspaceRoot>/.devac/config.yaml and the Federation
// Hub catalog directory it names. It is idempotent unless force is set, in
// which case any existing hub catalog is wiped and recreated empty.
//
// InitWorkspace does not itself open the hub; callers that need a live *hub.Hub
// should call hub.Init(info.HubDir, force, logger, metrics) afterward.
func InitWorkspace(workspaceRoot string, force bool, logger *slog.Logger) (*WorkspaceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := config.DefaultWorkspaceConfig()
	hubDir := filepath.Join(workspaceRoot, cfg.HubDir)

	if _, err := os.Stat(config.WorkspaceConfigPath(workspaceRoot)); err == nil && !force {
		logger.Info("bootstrap.workspace.init.exists", "workspace_root", workspaceRoot)
		existing, err := config.LoadWorkspaceConfig(workspaceRoot)
		if err != nil {
			return nil, err
		}
		return &WorkspaceInfo{WorkspaceRoot: workspaceRoot, HubDir: filepath.Join(workspaceRoot, existing.HubDir)}, nil
	}

	logger.Info("bootstrap.workspace.init.start", "workspace_root", workspaceRoot, "hub_dir", hubDir)

	if err := config.SaveWorkspaceConfig(workspaceRoot, cfg); err != nil {
		return nil, err
	}

	h, err := hub.Init(hubDir, force, logger, nil)
	if err != nil {
		return nil, errors.FromEngErr("Cannot initialize Federation Hub catalog", err)
	}
	_ = h.Close()

	logger.Info("bootstrap.workspace.init.success", "workspace_root", workspaceRoot, "hub_dir", hubDir)
	return &WorkspaceInfo{WorkspaceRoot: workspaceRoot, HubDir: hubDir}, nil
}

// OpenWorkspace loads an existing workspace's config and reports its hub
// directory without opening the catalog.
func OpenWorkspace(workspaceRoot string) (*WorkspaceInfo, error) {
	cfg, err := config.LoadWorkspaceConfig(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return &WorkspaceInfo{WorkspaceRoot: workspaceRoot, HubDir: filepath.Join(workspaceRoot, cfg.HubDir)}, nil
}

// InitRepo generates a manifest for repoPath, writes <repoPath>/.devac/repo.yaml
// recording its repo ID and (optional) hub directory, and, if hubDir is
// non-empty, registers the repo with that Federation Hub catalog.
//
// InitRepo is idempotent: calling it again regenerates the manifest and
// re-registers the repo, which is what 'devac register' needs.
func InitRepo(repoPath, hubDir string, logger *slog.Logger) (*RepoInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, errors.NewUserError("Cannot resolve repo path", err.Error(), "Pass an existing directory", err)
	}

	repoID := manifest.DetectRepoID(absPath)
	logger.Info("bootstrap.repo.init.start", "repo_id", repoID, "repo_path", absPath)

	m, err := manifest.New(logger).Generate(absPath)
	if err != nil {
		return nil, errors.FromEngErr("Cannot generate repo manifest", err)
	}
	if err := manifest.Save(absPath, m); err != nil {
		return nil, errors.FromEngErr("Cannot save repo manifest", err)
	}

	repoCfg := config.DefaultRepoConfig(repoID)
	if hubDir != "" {
		repoCfg.HubAddr = hubDir
	}
	if err := config.SaveRepoConfig(absPath, repoCfg); err != nil {
		return nil, err
	}

	if hubDir != "" {
		h, err := hub.Init(hubDir, false, logger, nil)
		if err != nil {
			return nil, errors.FromEngErr("Cannot open Federation Hub catalog", err)
		}
		defer func() { _ = h.Close() }()

		if err := h.Register(context.Background(), repoID, absPath); err != nil {
			return nil, errors.FromEngErr("Cannot register repo with Federation Hub", err)
		}
	}

	logger.Info("bootstrap.repo.init.success", "repo_id", repoID, "repo_path", absPath)
	return &RepoInfo{
		RepoID:       repoID,
		RepoPath:     absPath,
		ManifestPath: filepath.Join(absPath, manifest.RelPath),
	}, nil
}

// OpenRepo loads an existing repo's config and manifest.
func OpenRepo(repoPath string) (*config.RepoConfig, *manifest.Manifest, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, nil, errors.NewUserError("Cannot resolve repo path", err.Error(), "Pass an existing directory", err)
	}

	repoCfg, err := config.LoadRepoConfig(absPath)
	if err != nil {
		return nil, nil, err
	}
	m, err := manifest.Load(absPath)
	if err != nil {
		return nil, nil, errors.FromEngErr("Cannot load repo manifest", err)
	}
	return repoCfg, m, nil
}

// ListRepos walks workspaceRoot and returns the repo IDs of every registered
// repo it finds (any directory carrying a .devac/repo.yaml), skipping .devac
// and .git directories during the walk.
func ListRepos(workspaceRoot string) ([]string, error) {
	var repoIDs []string
	err := filepath.WalkDir(workspaceRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if base == config.ConfigDirName || base == ".git" {
			return filepath.SkipDir
		}
		if _, statErr := os.Stat(config.RepoConfigPath(path)); statErr == nil {
			repoCfg, loadErr := config.LoadRepoConfig(path)
			if loadErr != nil {
				return loadErr
			}
			repoIDs = append(repoIDs, repoCfg.RepoID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}
	return repoIDs, nil
}
