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

// Package config reads and writes the two YAML configuration files a devac
// workspace uses: a workspace-level config describing the Federation Hub and
// shared indexing defaults, and a per-repo config recording how one repo
// within that workspace is registered.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/devac/internal/errors"
)

const (
	// ConfigDirName is the dotfile directory every workspace and repo carries.
	ConfigDirName = ".devac"

	workspaceConfigFile = "config.yaml"
	repoConfigFile      = "repo.yaml"
	configVersion       = "1"
)

// WorkspaceConfig is the <workspace>/.devac/config.yaml file: settings shared
// by every repo registered with the workspace's Federation Hub.
type WorkspaceConfig struct {
	Version string `yaml:"version"`
	HubDir  string `yaml:"hub_dir"`

	Indexing IndexingConfig `yaml:"indexing"`
}

// IndexingConfig controls how the analysis pipeline walks a repo.
type IndexingConfig struct {
	ParserMode  string   `yaml:"parser_mode"`  // "treesitter" today; "auto" reserved for future parsers
	BatchTarget int      `yaml:"batch_target"` // files processed per pipeline batch
	MaxFileSize int64    `yaml:"max_file_size"`
	Exclude     []string `yaml:"exclude"`
}

// RepoConfig is the <repo>/.devac/repo.yaml file: identifies one repo and how
// it should be watched and registered with a hub.
type RepoConfig struct {
	Version string   `yaml:"version"`
	RepoID  string   `yaml:"repo_id"`
	HubAddr string   `yaml:"hub_addr,omitempty"` // hub directory the repo registered with; empty means standalone, no hub
	Watch   []string `yaml:"watch,omitempty"`    // extra glob patterns to watch beyond package dirs
}

// DefaultWorkspaceConfig returns sensible defaults for a freshly initialized
// workspace, mirroring the donor's DefaultConfig shape.
func DefaultWorkspaceConfig() *WorkspaceConfig {
	return &WorkspaceConfig{
		Version: configVersion,
		HubDir:  filepath.Join(ConfigDirName, "hub"),
		Indexing: IndexingConfig{
			ParserMode:  "treesitter",
			BatchTarget: 500,
			MaxFileSize: 1048576,
			Exclude: []string{
				".git/**",
				"node_modules/**",
				"vendor/**",
				"dist/**",
				"build/**",
			},
		},
	}
}

// DefaultRepoConfig returns a standalone repo config (no hub address) for the
// given repo ID.
func DefaultRepoConfig(repoID string) *RepoConfig {
	return &RepoConfig{
		Version: configVersion,
		RepoID:  repoID,
	}
}

// WorkspaceConfigPath returns <dir>/.devac/config.yaml.
func WorkspaceConfigPath(dir string) string {
	return filepath.Join(dir, ConfigDirName, workspaceConfigFile)
}

// RepoConfigPath returns <dir>/.devac/repo.yaml.
func RepoConfigPath(dir string) string {
	return filepath.Join(dir, ConfigDirName, repoConfigFile)
}

// LoadWorkspaceConfig reads and validates the workspace config at dir.
func LoadWorkspaceConfig(dir string) (*WorkspaceConfig, error) {
	path := WorkspaceConfigPath(dir)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from caller-supplied workspace dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewUserError(
				"Workspace not initialized",
				fmt.Sprintf("%s does not exist", path),
				"Run 'devac init' in this directory first",
				err,
			)
		}
		return nil, errors.NewUserError("Cannot read workspace configuration", err.Error(), "Check file permissions", err)
	}

	var cfg WorkspaceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewUserError(
			"Invalid workspace configuration",
			fmt.Sprintf("YAML parsing failed for %s: %v", path, err),
			"Edit the file to fix the syntax, or run 'devac init --force' to recreate it",
			err,
		)
	}
	if cfg.Version != configVersion {
		return nil, errors.NewUserError(
			"Unsupported workspace configuration version",
			fmt.Sprintf("config version %q is not supported (expected %q)", cfg.Version, configVersion),
			"Run 'devac init --force' to regenerate the configuration file",
			nil,
		)
	}
	return &cfg, nil
}

// SaveWorkspaceConfig writes cfg to <dir>/.devac/config.yaml, creating the
// directory if needed.
func SaveWorkspaceConfig(dir string, cfg *WorkspaceConfig) error {
	return saveYAML(WorkspaceConfigPath(dir), cfg)
}

// LoadRepoConfig reads and validates the repo config at dir.
func LoadRepoConfig(dir string) (*RepoConfig, error) {
	path := RepoConfigPath(dir)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from caller-supplied repo dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewUserError(
				"Repo not registered",
				fmt.Sprintf("%s does not exist", path),
				"Run 'devac register' in this directory first",
				err,
			)
		}
		return nil, errors.NewUserError("Cannot read repo configuration", err.Error(), "Check file permissions", err)
	}

	var cfg RepoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewUserError(
			"Invalid repo configuration",
			fmt.Sprintf("YAML parsing failed for %s: %v", path, err),
			"Edit the file to fix the syntax, or run 'devac register' to recreate it",
			err,
		)
	}
	return &cfg, nil
}

// SaveRepoConfig writes cfg to <dir>/.devac/repo.yaml, creating the directory
// if needed.
func SaveRepoConfig(dir string, cfg *RepoConfig) error {
	return saveYAML(RepoConfigPath(dir), cfg)
}

func saveYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.NewUserError("Cannot encode configuration", err.Error(), "This is a bug; please report it", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewUserError("Cannot create configuration directory", err.Error(), "Check directory permissions", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.NewUserError("Cannot write configuration file", err.Error(), "Check file permissions and available disk space", err)
	}
	return nil
}
