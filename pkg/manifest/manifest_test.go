// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/devac/pkg/graph"
	"github.com/kraklabs/devac/pkg/seedstore"
)

func writeFakePackage(t *testing.T, repoDir, pkgRelPath string) {
	t.Helper()
	pkgDir := filepath.Join(repoDir, pkgRelPath)
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	store := seedstore.New(pkgDir, nil)
	require.NoError(t, store.Write(context.Background(), "", seedstore.SeedSet{
		Nodes: []graph.Node{{EntityID: "r:p:function:a", Name: "a"}},
	}))
}

func TestGenerateDiscoversPackages(t *testing.T) {
	repoDir := t.TempDir()
	writeFakePackage(t, repoDir, "pkg/a")
	writeFakePackage(t, repoDir, "pkg/b")

	gen := New(nil)
	m, err := gen.Generate(repoDir)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, m.Version)
	assert.Len(t, m.Packages, 2)
	assert.Equal(t, "pkg/a", m.Packages[0].Path)
	assert.Equal(t, "pkg/b", m.Packages[1].Path)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repoDir := t.TempDir()
	writeFakePackage(t, repoDir, "pkg/a")

	gen := New(nil)
	m, err := gen.Generate(repoDir)
	require.NoError(t, err)
	require.NoError(t, Save(repoDir, m))

	loaded, err := Load(repoDir)
	require.NoError(t, err)
	assert.Equal(t, m.RepoID, loaded.RepoID)
	assert.Len(t, loaded.Packages, 1)
}

func TestUpdateKeepsUnchangedRecomputesChanged(t *testing.T) {
	repoDir := t.TempDir()
	writeFakePackage(t, repoDir, "pkg/a")
	writeFakePackage(t, repoDir, "pkg/b")

	gen := New(nil)
	first, err := gen.Generate(repoDir)
	require.NoError(t, err)
	require.NoError(t, Save(repoDir, first))

	updated, err := gen.Update(repoDir, []string{"pkg/a"})
	require.NoError(t, err)
	assert.Len(t, updated.Packages, 2)
}

func TestValidateRejectsWrongVersion(t *testing.T) {
	m := &Manifest{Version: "1.0", RepoID: "r"}
	valid, errs, _ := Validate(m)
	assert.False(t, valid)
	assert.NotEmpty(t, errs)
}

func TestValidateRejectsDuplicatePackagePaths(t *testing.T) {
	m := &Manifest{
		Version: SchemaVersion, RepoID: "r",
		Packages: []PackageInfo{{Path: "pkg/a", SeedPath: "x"}, {Path: "pkg/a", SeedPath: "y"}},
	}
	valid, errs, _ := Validate(m)
	assert.False(t, valid)
	assert.NotEmpty(t, errs)
}

func TestLoadMissingManifestIsNotFound(t *testing.T) {
	repoDir := t.TempDir()
	_, err := Load(repoDir)
	require.Error(t, err)
}
