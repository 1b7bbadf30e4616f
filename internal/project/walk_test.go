package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestWalkFiles_SkipsDefaultExcludedDirs(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "Assets", "a.prefab"))
	writeFile(t, filepath.Join(tmp, "Library", "cache.bin"))
	writeFile(t, filepath.Join(tmp, "Logs", "log.txt"))

	files, err := WalkFiles(tmp, nil)
	require.NoError(t, err)

	for _, f := range files {
		assert.NotContains(t, f, string(filepath.Separator)+"Library"+string(filepath.Separator))
		assert.NotContains(t, f, string(filepath.Separator)+"Logs"+string(filepath.Separator))
	}
	assert.Contains(t, files, filepath.Join(tmp, "Assets", "a.prefab"))
}

func TestWalkFiles_HonorsExcludeGlobs(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "Assets", "keep.prefab"))
	writeFile(t, filepath.Join(tmp, "Assets", "Generated", "skip.cs"))

	files, err := WalkFiles(tmp, []string{"**/Generated/**"})
	require.NoError(t, err)

	for _, f := range files {
		assert.NotContains(t, f, "Generated")
	}
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, MatchesAny([]string{"*.meta"}, "Assets/foo.meta"))
	assert.True(t, MatchesAny([]string{"**/Generated/**"}, "Assets/Generated/x.cs"))
	assert.False(t, MatchesAny([]string{"*.meta"}, "Assets/foo.prefab"))
	assert.False(t, MatchesAny(nil, "Assets/foo.prefab"))
}
