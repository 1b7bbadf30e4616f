package refscan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recinq/unitytool/internal/guidindex"
)

func TestWhereUsed_ByGUID(t *testing.T) {
	root, assets := setupProject(t)
	writeAsset(t, filepath.Join(assets, "Target.asset"), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "m_Value: 1\n")
	writeAsset(t, filepath.Join(assets, "Referrer.asset"), "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"m_Ref: {fileID: 0, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 2}\n")

	ix, err := guidindex.Build(root, nil)
	require.NoError(t, err)

	result, err := WhereUsed(ix, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", assets, nil, 0)
	require.NoError(t, err)
	require.Len(t, result.Usages, 1)
	assert.Equal(t, int64(0), result.Usages[0].FileID)
}

func TestWhereUsed_ByAssetPath(t *testing.T) {
	root, assets := setupProject(t)
	writeAsset(t, filepath.Join(assets, "Target.asset"), "cccccccccccccccccccccccccccccccc", "m_Value: 1\n")
	writeAsset(t, filepath.Join(assets, "Referrer.asset"), "dddddddddddddddddddddddddddddddd",
		"m_Ref: {fileID: 0, guid: cccccccccccccccccccccccccccccccc, type: 2}\n")

	ix, err := guidindex.Build(root, nil)
	require.NoError(t, err)

	result, err := WhereUsed(ix, "Assets/Target.asset", assets, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "cccccccccccccccccccccccccccccccc", result.GUID)
	require.Len(t, result.Usages, 1)
}

func TestWhereUsed_MaxUsagesTruncates(t *testing.T) {
	root, assets := setupProject(t)
	content := "" +
		"a: {fileID: 0, guid: eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee, type: 2}\n" +
		"b: {fileID: 0, guid: eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee, type: 2}\n"
	writeAsset(t, filepath.Join(assets, "Referrer.asset"), "ffffffffffffffffffffffffffffffff", content)

	ix, err := guidindex.Build(root, nil)
	require.NoError(t, err)

	result, err := WhereUsed(ix, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", assets, nil, 1)
	require.NoError(t, err)
	assert.Len(t, result.Usages, 1)
	assert.True(t, result.Truncated)
}

func TestWhereUsed_UnknownPathErrors(t *testing.T) {
	root, assets := setupProject(t)
	ix, err := guidindex.Build(root, nil)
	require.NoError(t, err)

	_, err = WhereUsed(ix, "Assets/Missing.asset", assets, nil, 0)
	assert.Error(t, err)
}
