package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesSuccessFromSeverity(t *testing.T) {
	assert.True(t, New(SeverityInfo, CodeOK, "ok", nil).Success)
	assert.True(t, New(SeverityWarning, CodeOK, "ok", nil).Success)
	assert.False(t, New(SeverityError, CodeSchemaError, "bad", nil).Success)
	assert.False(t, New(SeverityCritical, CodeRuntimeBroken, "bad", nil).Success)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, New(SeverityInfo, CodeOK, "", nil).ExitCode())
	assert.Equal(t, 0, New(SeverityWarning, CodeOK, "", nil).ExitCode())
	assert.Equal(t, 1, New(SeverityError, CodeSchemaError, "", nil).ExitCode())
	assert.Equal(t, 1, New(SeverityCritical, CodeRuntimeBroken, "", nil).ExitCode())
}

func TestSeverityRank_Orders(t *testing.T) {
	assert.Less(t, SeverityRank(SeverityInfo), SeverityRank(SeverityWarning))
	assert.Less(t, SeverityRank(SeverityWarning), SeverityRank(SeverityError))
	assert.Less(t, SeverityRank(SeverityError), SeverityRank(SeverityCritical))
}

func TestWithDiagnostics_ReturnsCopy(t *testing.T) {
	base := New(SeverityInfo, CodeOK, "ok", nil)
	withDiags := base.WithDiagnostics([]Diagnostic{{Path: "x", Detail: "d"}})
	assert.Empty(t, base.Diagnostics)
	assert.Len(t, withDiags.Diagnostics, 1)
}

func TestMarshalIndent_RoundTrips(t *testing.T) {
	env := New(SeverityWarning, CodeStaleOverride, "stale", map[string]int{"n": 1}).
		WithDiagnostics([]Diagnostic{{Path: "p", Location: "f:1", Detail: "d", Code: CodeStaleOverride}})

	data, err := env.MarshalIndent()
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, env.Severity, decoded.Severity)
	assert.Equal(t, env.Code, decoded.Code)
	assert.Len(t, decoded.Diagnostics, 1)
}
