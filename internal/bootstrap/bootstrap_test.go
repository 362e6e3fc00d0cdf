// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/config"
)

func writeGoModule(t *testing.T, dir, module string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module "+module+"\n\ngo 1.24\n"), 0644))
}

func TestInitWorkspaceCreatesConfigAndHub(t *testing.T) {
	ws := t.TempDir()

	info, err := InitWorkspace(ws, false, nil)
	require.NoError(t, err)
	assert.Equal(t, ws, info.WorkspaceRoot)
	assert.DirExists(t, filepath.Dir(info.HubDir))
	assert.FileExists(t, config.WorkspaceConfigPath(ws))
}

func TestInitWorkspaceIsIdempotentWithoutForce(t *testing.T) {
	ws := t.TempDir()

	first, err := InitWorkspace(ws, false, nil)
	require.NoError(t, err)

	second, err := InitWorkspace(ws, false, nil)
	require.NoError(t, err)
	assert.Equal(t, first.HubDir, second.HubDir)
}

func TestInitRepoGeneratesManifestAndRepoConfig(t *testing.T) {
	ws := t.TempDir()
	wsInfo, err := InitWorkspace(ws, false, nil)
	require.NoError(t, err)

	repoDir := filepath.Join(ws, "myrepo")
	require.NoError(t, os.MkdirAll(repoDir, 0755))
	writeGoModule(t, repoDir, "example.com/myrepo")

	repoInfo, err := InitRepo(repoDir, wsInfo.HubDir, nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com/myrepo", repoInfo.RepoID)
	assert.FileExists(t, repoInfo.ManifestPath)
	assert.FileExists(t, config.RepoConfigPath(repoDir))

	repos, err := ListRepos(ws)
	require.NoError(t, err)
	assert.Contains(t, repos, "example.com/myrepo")
}

func TestInitRepoStandaloneWithoutHub(t *testing.T) {
	repoDir := t.TempDir()
	writeGoModule(t, repoDir, "example.com/standalone")

	repoInfo, err := InitRepo(repoDir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com/standalone", repoInfo.RepoID)

	repoCfg, m, err := OpenRepo(repoDir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/standalone", repoCfg.RepoID)
	assert.Empty(t, repoCfg.HubAddr)
	assert.Equal(t, "example.com/standalone", m.RepoID)
}

func TestOpenWorkspaceFailsWithoutInit(t *testing.T) {
	ws := t.TempDir()
	_, err := OpenWorkspace(ws)
	require.Error(t, err)
}

func TestOpenRepoFailsWithoutRegister(t *testing.T) {
	repoDir := t.TempDir()
	_, _, err := OpenRepo(repoDir)
	require.Error(t, err)
}
