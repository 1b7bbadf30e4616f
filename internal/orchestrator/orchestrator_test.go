package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/plancrypto"
)

func sprintfPlan(targetPath string) string {
	return fmt.Sprintf(jsonTargetPlan, targetPath)
}

func expectationsWithBadDigest() plancrypto.Expectations {
	return plancrypto.Expectations{SHA256: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}
}

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const jsonTargetPlan = `{
  "target": "%s",
  "ops": [
    {"op": "set", "component": "Config", "path": "a.b", "value_kind": "int", "value": 7}
  ]
}`

func TestApply_SchemaErrorOnMalformedPlan(t *testing.T) {
	planPath := writePlanFile(t, `{not json`)
	out := Apply(context.Background(), ApplyRequest{PlanPath: planPath})
	assert.Equal(t, envelope.CodeSchemaError, out.Envelope.Code)
	assert.False(t, out.Envelope.Success)
}

func TestApply_DryRunReportsDiffWithoutWriting(t *testing.T) {
	targetDir := t.TempDir()
	targetPath := filepath.Join(targetDir, "cfg.json")
	require.NoError(t, os.WriteFile(targetPath, []byte(`{"a":{"b":1}}`), 0o644))

	planPath := writePlanFile(t, sprintfPlan(targetPath))
	out := Apply(context.Background(), ApplyRequest{PlanPath: planPath, DryRun: true})

	require.Equal(t, envelope.CodeOK, out.Envelope.Code)
	require.Len(t, out.Diff, 1)

	raw, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":1}}`, string(raw))
}

func TestApply_WithoutConfirmOrDryRun_RequiresConfirm(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(targetPath, []byte(`{"a":{"b":1}}`), 0o644))

	planPath := writePlanFile(t, sprintfPlan(targetPath))
	out := Apply(context.Background(), ApplyRequest{PlanPath: planPath})
	assert.Equal(t, envelope.CodeConfirmRequired, out.Envelope.Code)
	assert.False(t, out.Envelope.Success)
}

func TestApply_ConfirmedAppliesAndWrites(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(targetPath, []byte(`{"a":{"b":1}}`), 0o644))

	planPath := writePlanFile(t, sprintfPlan(targetPath))
	out := Apply(context.Background(), ApplyRequest{PlanPath: planPath, Confirm: true})
	require.Equal(t, envelope.CodeOK, out.Envelope.Code)

	raw, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":7}}`, string(raw))
}

func TestApply_EngineTargetWithoutBridgeConfigured_UnsupportedTarget(t *testing.T) {
	planPath := writePlanFile(t, `{
		"target": "Assets/Scene.unity",
		"ops": [
			{"op": "set", "component": "Transform", "path": "m_LocalPosition.x", "value_kind": "float", "value": 1.5}
		]
	}`)
	out := Apply(context.Background(), ApplyRequest{PlanPath: planPath, Confirm: true})
	assert.Equal(t, envelope.CodeUnsupportedTarget, out.Envelope.Code)
}

func TestApply_CryptoExpectationMismatch_FailsBeforeTouchingTarget(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(targetPath, []byte(`{"a":{"b":1}}`), 0o644))

	planPath := writePlanFile(t, sprintfPlan(targetPath))
	out := Apply(context.Background(), ApplyRequest{
		PlanPath:     planPath,
		Confirm:      true,
		Expectations: expectationsWithBadDigest(),
	})
	assert.Equal(t, envelope.CodeDigestMismatch, out.Envelope.Code)

	raw, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":1}}`, string(raw))
}

func TestApply_ObjectReferenceJSONValue_SurfacesAsUnsupportedValue(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(targetPath, []byte(`{"ref":null}`), 0o644))

	planPath := writePlanFile(t, fmt.Sprintf(`{
		"target": "%s",
		"ops": [
			{"op": "set", "component": "Config", "path": "ref", "value_kind": "json", "value": {"guid":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","fileID":100000}}
		]
	}`, targetPath))

	out := Apply(context.Background(), ApplyRequest{PlanPath: planPath, Confirm: true})
	assert.Equal(t, envelope.CodeUnsupportedValue, out.Envelope.Code)
}
