// Package orchestrator sequences the patch-plan apply pipeline (C12):
// load/verify -> preflight refs -> preflight overrides -> dry-run ->
// confirm gate -> apply -> optional runtime classification, per §4.5
// and the fail-fast severity policy in §4.9.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/recinq/unitytool/internal/bridge"
	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/guidindex"
	"github.com/recinq/unitytool/internal/jsonbackend"
	"github.com/recinq/unitytool/internal/override"
	"github.com/recinq/unitytool/internal/patchplan"
	"github.com/recinq/unitytool/internal/plancrypto"
	"github.com/recinq/unitytool/internal/project"
	"github.com/recinq/unitytool/internal/refscan"
	"github.com/recinq/unitytool/internal/runtimelog"
)

// ApplyRequest bundles everything an `apply` invocation needs. Fields
// left at their zero value skip the corresponding optional stage.
type ApplyRequest struct {
	PlanPath string

	CryptoKey  []byte
	Expectations plancrypto.Expectations

	PreflightScope        string
	PreflightExcludeGlobs []string
	PreflightIgnoreGUIDs  map[string]bool

	DryRun  bool
	Confirm bool

	Bridge bridge.Config

	RuntimeLogPath   string
	RuntimeSeverity  runtimelog.SeverityPolicy
}

// ApplyOutcome is the full result of a pipeline run, stage by stage, so
// callers can report exactly how far the pipeline got.
type ApplyOutcome struct {
	Envelope        envelope.Envelope
	Diff            []jsonbackend.DiffEntry
	RefScan         *refscan.Result
	OverrideInspect *override.Result
	BridgeResponse  *bridge.Response
	RuntimeResult   *runtimelog.Result
}

// Apply runs the ordered, fail-fast pipeline described in §4.5. It
// returns as soon as any stage produces a failing (error/critical)
// envelope; the asset tree is left untouched until step 7 ever runs
// (the pipeline persists nothing before the apply backend is invoked).
func Apply(ctx context.Context, req ApplyRequest) ApplyOutcome {
	// 1. Load & schema-validate.
	loaded, err := patchplan.Load(req.PlanPath)
	if err != nil {
		return failEnvelope(envelope.CodeSchemaError, err)
	}
	plan := loaded.Plan

	// 2. Verify crypto expectations, if any were supplied.
	if req.Expectations.SHA256 != "" || req.Expectations.Signature != "" || req.Expectations.Attestation != nil {
		result := plancrypto.Verify(loaded.RawBytes, req.CryptoKey, req.Expectations)
		if !result.OK {
			return ApplyOutcome{Envelope: envelope.New(envelope.SeverityError, envelope.Code(result.FailedCode), result.FailedDetail, nil)}
		}
	}

	var out ApplyOutcome

	// 3. Preflight — references.
	if req.PreflightScope != "" {
		root, err := project.ResolveRoot(req.PreflightScope)
		if err != nil {
			return failEnvelope(envelope.CodeNoProjectRoot, err)
		}
		ix, err := guidindex.Build(root, req.PreflightExcludeGlobs)
		if err != nil {
			return failEnvelope(envelope.CodeSchemaError, err)
		}
		scanResult, err := refscan.Scan(ix, refscan.Options{
			Scope:        req.PreflightScope,
			ExcludeGlobs: req.PreflightExcludeGlobs,
			IgnoreGUIDs:  req.PreflightIgnoreGUIDs,
			Details:      true,
		})
		if err != nil {
			return failEnvelope(envelope.CodeSchemaError, err)
		}
		out.RefScan = scanResult
		if sev := scanResult.Severity(); sev.Fails() {
			out.Envelope = envelope.New(sev, envelope.CodeMissingAsset, "reference preflight found broken references", scanResult).
				WithDiagnostics(scanResult.Diagnostics)
			return out
		}
	}

	// 4. Preflight — overrides, only for .prefab targets.
	if strings.HasSuffix(plan.Target, ".prefab") {
		var ix *guidindex.Index
		if root, err := project.ResolveRoot(filepath.Dir(plan.Target)); err == nil {
			ix, _ = guidindex.Build(root, req.PreflightExcludeGlobs)
		}
		inspectResult, err := override.Inspect(plan.Target, ix)
		if err != nil {
			return failEnvelope(envelope.CodeSchemaError, err)
		}
		out.OverrideInspect = inspectResult
		if sev := inspectResult.Severity(); sev.Fails() {
			out.Envelope = envelope.New(sev, envelope.CodeStaleOverride, "override preflight found stale overrides", inspectResult)
			return out
		}
	}

	// 5. Dry-run: always runs. For a .json target this is a genuine
	// in-memory apply against the current file. Engine targets have no
	// local structural editor (that's the bridge's job), so the preview
	// is the planned ops themselves, one diff entry per op.
	var diff []jsonbackend.DiffEntry
	if isJSONTarget(plan.Target) {
		diff, err = jsonbackend.DryRun(plan.Target, plan.Ops)
		if err != nil {
			return jsonbackendFailEnvelope(err)
		}
	} else {
		diff = previewOps(plan.Ops)
	}
	out.Diff = diff

	// 6. Gate.
	if !req.DryRun && !req.Confirm {
		out.Envelope = envelope.New(envelope.SeverityError, envelope.CodeConfirmRequired, "apply requires --confirm unless --dry-run is set", out.Diff)
		return out
	}
	if req.DryRun {
		out.Envelope = envelope.New(envelope.SeverityInfo, envelope.CodeOK, "dry run complete", out.Diff)
		return out
	}

	// 7. Apply.
	if isJSONTarget(plan.Target) {
		appliedDiff, err := jsonbackend.Commit(plan.Target, plan.Ops)
		if err != nil {
			return jsonbackendFailEnvelope(err)
		}
		out.Diff = appliedDiff
	} else {
		if req.Bridge.CommandLine == "" {
			out.Envelope = envelope.New(envelope.SeverityError, envelope.CodeUnsupportedTarget,
				fmt.Sprintf("no bridge command configured for engine target %s", plan.Target), nil)
			return out
		}
		client := bridge.New(req.Bridge)
		wireReq, err := bridge.Normalize(plan.Target, plan.Ops)
		if err != nil {
			return failEnvelope(envelope.CodeSchemaError, err)
		}
		resp, err := client.Call(ctx, wireReq)
		if err != nil {
			return bridgeFailEnvelope(err)
		}
		out.BridgeResponse = resp
		if !resp.Success {
			out.Envelope = envelope.New(envelope.SeverityError, envelope.Code(resp.Code), resp.Message, resp.Data)
			return out
		}
	}

	// 8. Post-apply runtime classification, optional.
	if req.RuntimeLogPath != "" {
		runtimeResult, err := runtimelog.ClassifyFile(req.RuntimeLogPath, req.RuntimeSeverity)
		if err != nil {
			return failEnvelope(envelope.CodeSchemaError, err)
		}
		out.RuntimeResult = runtimeResult
		if ok, offending := runtimelog.AssertNoCriticalErrors(runtimeResult, req.RuntimeSeverity); !ok {
			out.Envelope = envelope.New(envelope.SeverityCritical, envelope.CodeRuntimeBroken,
				fmt.Sprintf("runtime log reported critical categories: %v", offending), runtimeResult)
			return out
		}
	}

	// 9. Emit envelope.
	out.Envelope = envelope.New(envelope.SeverityInfo, envelope.CodeOK, "apply complete", out.Diff)
	return out
}

// previewOps renders planned ops as diff entries without applying them,
// used for the bridge path where the actual mutation happens inside the
// external engine process and no local in-memory document exists to
// diff against.
func previewOps(ops []patchplan.PatchOp) []jsonbackend.DiffEntry {
	diff := make([]jsonbackend.DiffEntry, 0, len(ops))
	for _, op := range ops {
		var after any
		if len(op.Value) > 0 {
			after = string(op.Value)
		}
		diff = append(diff, jsonbackend.DiffEntry{Path: op.Path, Before: nil, After: after})
	}
	return diff
}

func isJSONTarget(target string) bool {
	return strings.EqualFold(filepath.Ext(target), ".json")
}

func failEnvelope(code envelope.Code, err error) ApplyOutcome {
	return ApplyOutcome{Envelope: envelope.New(envelope.SeverityError, code, err.Error(), nil)}
}

// jsonbackendFailEnvelope maps a jsonbackend error to its envelope code,
// surfacing the value_kind=json ObjectReference rejection as SER002
// rather than the generic SER001 schema-error code.
func jsonbackendFailEnvelope(err error) ApplyOutcome {
	var unsupportedErr *jsonbackend.UnsupportedValueError
	if errors.As(err, &unsupportedErr) {
		return failEnvelope(envelope.CodeUnsupportedValue, err)
	}
	return failEnvelope(envelope.CodeSchemaError, err)
}

func bridgeFailEnvelope(err error) ApplyOutcome {
	var timeoutErr *bridge.TimeoutError
	var schemaErr *bridge.ResponseSchemaError
	switch {
	case asTimeout(err, &timeoutErr):
		return ApplyOutcome{Envelope: envelope.New(envelope.SeverityError, envelope.CodeBridgeTimeout, err.Error(), nil)}
	case asSchema(err, &schemaErr):
		return ApplyOutcome{Envelope: envelope.New(envelope.SeverityError, envelope.CodeBridgeResponseSchema, err.Error(), nil)}
	case err == bridge.ErrUnsupportedTarget:
		return ApplyOutcome{Envelope: envelope.New(envelope.SeverityError, envelope.CodeUnsupportedTarget, err.Error(), nil)}
	default:
		return failEnvelope(envelope.CodeSchemaError, err)
	}
}

func asTimeout(err error, target **bridge.TimeoutError) bool {
	t, ok := err.(*bridge.TimeoutError)
	if ok {
		*target = t
	}
	return ok
}

func asSchema(err error, target **bridge.ResponseSchemaError) bool {
	t, ok := err.(*bridge.ResponseSchemaError)
	if ok {
		*target = t
	}
	return ok
}
