package guidindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMeta(t *testing.T, root, assetRel, guid string) {
	t.Helper()
	assetPath := filepath.Join(root, assetRel)
	require.NoError(t, os.MkdirAll(filepath.Dir(assetPath), 0o755))
	require.NoError(t, os.WriteFile(assetPath, []byte("fake asset"), 0o644))
	meta := assetPath + ".meta"
	content := "fileFormatVersion: 2\nguid: " + guid + "\n"
	require.NoError(t, os.WriteFile(meta, []byte(content), 0o644))
}

func TestBuild_IndexesGUIDs(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "Assets"), 0o755))
	writeMeta(t, tmp, "Assets/Foo.prefab", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	writeMeta(t, tmp, "Assets/Bar.prefab", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	ix, err := Build(tmp, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	rec, ok := ix.Lookup("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.True(t, ok)
	assert.Equal(t, "Assets/Foo.prefab", rec.Path)
	assert.Equal(t, ".prefab", rec.Extension)
}

func TestBuild_FirstSeenWinsOnDuplicateGUID(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "Assets"), 0o755))
	// Write in a deterministic lexical order so "first seen" is predictable.
	writeMeta(t, tmp, "Assets/A.prefab", "cccccccccccccccccccccccccccccccc"[:32])
	writeMeta(t, tmp, "Assets/B.prefab", "cccccccccccccccccccccccccccccccc"[:32])

	ix, err := Build(tmp, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
	require.Len(t, ix.Duplicates, 1)
	assert.Equal(t, "Assets/A.prefab", ix.Duplicates[0].Kept)
	assert.Equal(t, []string{"Assets/B.prefab"}, ix.Duplicates[0].Ignored)
}

func TestBuild_SkipsExcludedDirs(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "Assets"), 0o755))
	writeMeta(t, tmp, "Library/cache.asset", "dddddddddddddddddddddddddddddddd")

	ix, err := Build(tmp, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
}

func TestLookupByPath(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "Assets"), 0o755))
	writeMeta(t, tmp, "Assets/Foo.prefab", "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")

	ix, err := Build(tmp, nil)
	require.NoError(t, err)

	rec, ok := ix.LookupByPath("Assets/Foo.prefab")
	require.True(t, ok)
	assert.Equal(t, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", rec.GUID)

	_, ok = ix.LookupByPath("Assets/Missing.prefab")
	assert.False(t, ok)
}

func TestIsBuiltinGUID(t *testing.T) {
	assert.True(t, IsBuiltinGUID("00000000000000001000000000000000"[:32]))
	assert.True(t, IsBuiltinGUID("f0000000000000000000000000000000"))
	assert.False(t, IsBuiltinGUID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, IsBuiltinGUID("short"))
}
