package ignorelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsEmptySet(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLoad_SkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.txt")
	content := "# a comment\n\naaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n  \nbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.True(t, set["aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"])
}

func TestWrite_ReplaceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.txt")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	err := Write(path, []string{"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, ModeReplace)
	require.NoError(t, err)

	set, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.False(t, set["old"])
}

func TestWrite_AppendMergesAndPreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.txt")
	require.NoError(t, os.WriteFile(path, []byte("# keep me\naaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n"), 0o644))

	err := Write(path, []string{"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}, ModeAppend)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# keep me")
	assert.Contains(t, string(raw), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.Contains(t, string(raw), "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
}

func TestRoundTrip_ParseSerializeParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.txt")
	guids := []string{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "cccccccccccccccccccccccccccccccc"}

	require.NoError(t, Write(path, guids, ModeReplace))
	first, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, Write(path, keys(first), ModeReplace))
	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
