package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/report"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestEmit_JSONFormatPrintsEnvelope(t *testing.T) {
	t.Setenv("UNITYTOOL_AUDIT_LOG", filepath.Join(t.TempDir(), "audit.log"))
	auditor = nil

	env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, "all clear", nil)
	out := captureStdout(t, func() {
		code := emit(env, "json", "")
		assert.Equal(t, 0, code)
	})
	assert.Contains(t, out, `"code"`)
	assert.Contains(t, out, "SER_APPLY_OK")
}

func TestEmit_TextFormatRendersHumanReadable(t *testing.T) {
	t.Setenv("UNITYTOOL_AUDIT_LOG", filepath.Join(t.TempDir(), "audit.log"))
	auditor = nil

	env := envelope.New(envelope.SeverityError, envelope.CodeMissingAsset, "broken refs", nil)
	out := captureStdout(t, func() {
		code := emit(env, "text", "")
		assert.Equal(t, 1, code)
	})
	assert.Contains(t, out, "REF001")
	assert.Contains(t, out, "broken refs")
}

func TestEmit_WritesReportFileWhenRequested(t *testing.T) {
	t.Setenv("UNITYTOOL_AUDIT_LOG", filepath.Join(t.TempDir(), "audit.log"))
	auditor = nil

	reportPath := filepath.Join(t.TempDir(), "out.json")
	env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, "ok", nil)
	captureStdout(t, func() {
		emit(env, "json", reportPath)
	})

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "SER_APPLY_OK")
}

func TestEmit_AppendsAuditEntry(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	t.Setenv("UNITYTOOL_AUDIT_LOG", auditPath)
	auditor = nil

	cmd := &cobra.Command{Use: "apply"}
	root := &cobra.Command{Use: "patch"}
	root.AddCommand(cmd)
	setAuditContext(cmd, "Assets/Foo.prefab")

	env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, "ok", nil)
	captureStdout(t, func() {
		emit(env, "json", "")
	})

	raw, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Assets/Foo.prefab")
}

func TestReportFormatMarkdown_RendersCode(t *testing.T) {
	env := envelope.New(envelope.SeverityWarning, envelope.CodeStaleOverride, "stale", nil)
	data, err := report.Render(env, report.FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("PVR001")))
}
