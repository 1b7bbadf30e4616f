package bridge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recinq/unitytool/internal/patchplan"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestNormalize_FlattensTypedValue(t *testing.T) {
	ops := []patchplan.PatchOp{
		{Op: patchplan.OpSet, Component: "Config", Path: "a.b", ValueKind: patchplan.ValueInt, Value: json.RawMessage("7")},
	}
	req, err := Normalize("Assets/cfg.json", ops)
	require.NoError(t, err)
	require.Len(t, req.Ops, 1)
	require.NotNil(t, req.Ops[0].ValueInt)
	assert.EqualValues(t, 7, *req.Ops[0].ValueInt)
	assert.Equal(t, ProtocolVersion, req.ProtocolVersion)
}

func TestCall_NoCommandConfigured_ReturnsUnsupportedTarget(t *testing.T) {
	c := New(Config{})
	_, err := c.Call(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnsupportedTarget)
}

func TestCall_ValidResponse(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
cat > "$2" <<'EOF'
{"success":true,"severity":"info","code":"OK","message":"done","data":{"protocol_version":1,"applied":1},"diagnostics":[]}
EOF
`)
	c := New(Config{CommandLine: script, Timeout: 5 * time.Second})
	resp, err := c.Call(context.Background(), Request{ProtocolVersion: ProtocolVersion, Target: "Assets/cfg.json"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Applied)
}

func TestCall_MissingResponseFile_SchemaError(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
exit 0
`)
	c := New(Config{CommandLine: script, Timeout: 5 * time.Second})
	_, err := c.Call(context.Background(), Request{ProtocolVersion: ProtocolVersion, Target: "Assets/cfg.json"})
	var schemaErr *ResponseSchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestCall_ExtraKeyInResponse_SchemaError(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
cat > "$2" <<'EOF'
{"success":true,"severity":"info","code":"OK","message":"done","data":{"protocol_version":1},"diagnostics":[],"extra":1}
EOF
`)
	c := New(Config{CommandLine: script, Timeout: 5 * time.Second})
	_, err := c.Call(context.Background(), Request{ProtocolVersion: ProtocolVersion, Target: "Assets/cfg.json"})
	var schemaErr *ResponseSchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestCall_WrongProtocolVersion_SchemaError(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
cat > "$2" <<'EOF'
{"success":true,"severity":"info","code":"OK","message":"done","data":{"protocol_version":2},"diagnostics":[]}
EOF
`)
	c := New(Config{CommandLine: script, Timeout: 5 * time.Second})
	_, err := c.Call(context.Background(), Request{ProtocolVersion: ProtocolVersion, Target: "Assets/cfg.json"})
	var schemaErr *ResponseSchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestCall_TimesOut(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
sleep 5
`)
	c := New(Config{CommandLine: script, Timeout: 100 * time.Millisecond})
	_, err := c.Call(context.Background(), Request{ProtocolVersion: ProtocolVersion, Target: "Assets/cfg.json"})
	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}
