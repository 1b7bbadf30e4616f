package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoot_FindsNearestAssetsAncestor(t *testing.T) {
	tmp := t.TempDir()
	assetsDir := filepath.Join(tmp, "Assets")
	require.NoError(t, os.MkdirAll(assetsDir, 0o755))
	nested := filepath.Join(assetsDir, "Prefabs", "Foo")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := ResolveRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, tmp, root)
}

func TestResolveRoot_ScopeIsFile(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "Assets"), 0o755))
	file := filepath.Join(tmp, "Assets", "thing.prefab")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	root, err := ResolveRoot(file)
	require.NoError(t, err)
	assert.Equal(t, tmp, root)
}

func TestResolveRoot_NoAssetsAnywhere(t *testing.T) {
	tmp := t.TempDir()
	_, err := ResolveRoot(tmp)
	assert.ErrorIs(t, err, ErrNoProjectRoot)
}

func TestIsExcludedDir(t *testing.T) {
	assert.True(t, IsExcludedDir("Library"))
	assert.True(t, IsExcludedDir("Logs"))
	assert.True(t, IsExcludedDir("Temp"))
	assert.True(t, IsExcludedDir("obj"))
	assert.False(t, IsExcludedDir("Assets"))
}

func TestEnsureWithin_AllowsInsideRoot(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Assets"), 0o755))

	path := filepath.Join(root, "Assets", "cfg.json")
	resolved, err := EnsureWithin(root, path)
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
}

func TestEnsureWithin_RejectsEscape(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))
	outside := filepath.Join(tmp, "outside.json")

	_, err := EnsureWithin(root, outside)
	assert.Error(t, err)
}

func TestEnsureWithin_RejectsDotDotTraversal(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))

	_, err := EnsureWithin(root, filepath.Join(root, "..", "escaped.json"))
	assert.Error(t, err)
}
