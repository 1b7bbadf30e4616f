package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/internal/bridge"
	"github.com/recinq/unitytool/internal/cliui"
	"github.com/recinq/unitytool/internal/config"
	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/guidindex"
	"github.com/recinq/unitytool/internal/ignorelist"
	"github.com/recinq/unitytool/internal/patchplan"
	"github.com/recinq/unitytool/internal/project"
	"github.com/recinq/unitytool/internal/refscan"
	"github.com/recinq/unitytool/internal/report"
	"github.com/recinq/unitytool/internal/runtimelog"
)

// NewValidateCmd builds the `validate` command group (refs, runtime,
// bridge-smoke).
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate reference integrity, runtime logs, and bridge wiring",
	}
	cmd.AddCommand(newValidateRefsCmd())
	cmd.AddCommand(newValidateRuntimeCmd())
	cmd.AddCommand(newValidateBridgeSmokeCmd())
	return cmd
}

func newValidateRefsCmd() *cobra.Command {
	var (
		scope          string
		details        bool
		maxDiagnostics int
		excludes       []string
		ignoreGUIDs    []string
		ignoreFile     string
	)

	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Scan a scope for broken GUID and fileID references",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, scope)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")

			root, err := project.ResolveRoot(scope)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeNoProjectRoot, err.Error(), nil), outputFormat, ""))
			}

			cfg, _ := config.Load(root)
			resolvedExcludes := config.ResolveStrings(excludes, cfg.Exclude)
			resolvedMaxDiag := config.ResolveInt(maxDiagnostics, cfg.MaxDiagnostics, 0)
			resolvedIgnoreFile := config.ResolveString(ignoreFile, cfg.IgnoreGUIDFile, "")

			ignoreSet, err := ignorelist.Load(resolvedIgnoreFile)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}
			for _, g := range ignoreGUIDs {
				ignoreSet[g] = true
			}

			ix, err := guidindex.Build(root, resolvedExcludes)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			term := cliui.Detect()
			var ticks chan cliui.ScanTick
			opts := refscan.Options{
				Scope:          scope,
				ExcludeGlobs:   resolvedExcludes,
				IgnoreGUIDs:    ignoreSet,
				Details:        details,
				MaxDiagnostics: resolvedMaxDiag,
			}
			if term.IsTTY {
				ticks = make(chan cliui.ScanTick, 16)
				opts.OnFileScanned = func(done, total int, path string) {
					ticks <- cliui.ScanTick{Done: done, Total: total, Current: path}
				}
				go func() {
					_ = cliui.RunScanProgress(context.Background(), ticks, true)
				}()
			}

			result, err := refscan.Scan(ix, opts)
			if ticks != nil {
				close(ticks)
			}
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			sev := result.Severity()
			code := envelope.CodeOK
			if sev.Fails() {
				code = envelope.CodeMissingAsset
			}
			env := envelope.New(sev, code, fmt.Sprintf("scanned %s: %d broken occurrence(s)", scope, result.BrokenOccurrences), result).
				WithDiagnostics(result.Diagnostics)
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope path to scan")
	cmd.Flags().BoolVar(&details, "details", false, "Include per-occurrence diagnostics")
	cmd.Flags().IntVar(&maxDiagnostics, "max-diagnostics", 0, "Cap the number of diagnostics returned (0 = config/default)")
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "Glob to exclude from the scan")
	cmd.Flags().StringArrayVar(&ignoreGUIDs, "ignore-guid", nil, "GUID to ignore, may be repeated")
	cmd.Flags().StringVar(&ignoreFile, "ignore-guid-file", "", "Path to a persisted ignore-guid file")
	cmd.MarkFlagRequired("scope")
	return cmd
}

func newValidateRuntimeCmd() *cobra.Command {
	var (
		scene   string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "runtime",
		Short: "Classify a runtime log for known playtest failure categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, scene)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")

			var diags []envelope.Diagnostic
			diags = append(diags,
				envelope.Diagnostic{Path: scene, Detail: "compile-check is out of scope; not run", Code: envelope.CodeRuntimeCompileSkipped},
				envelope.Diagnostic{Path: scene, Detail: "client-simulation check is out of scope; not run", Code: envelope.CodeRuntimeClientSimSkipped},
			)

			if logFile == "" {
				env := envelope.New(envelope.SeverityInfo, envelope.CodeValidateRuntimeResult, "no log file supplied; only scope checks reported", nil).
					WithDiagnostics(diags)
				return runExit(emit(env, outputFormat, ""))
			}

			result, err := runtimelog.ClassifyFile(logFile, nil)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			ok, offending := runtimelog.AssertNoCriticalErrors(result, nil)
			if !ok {
				env := envelope.New(envelope.SeverityCritical, envelope.CodeRuntimeBroken,
					fmt.Sprintf("runtime log %s reported failing categories: %v", logFile, offending), result).
					WithDiagnostics(diags)
				return runExit(emit(env, outputFormat, ""))
			}

			env := envelope.New(envelope.SeverityInfo, envelope.CodeValidateRuntimeResult,
				fmt.Sprintf("runtime log %s classified clean over %d line(s)", logFile, result.LinesRead), result).
				WithDiagnostics(diags)
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "Scene file this log pertains to")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Runtime log file to classify")
	cmd.MarkFlagRequired("scene")
	return cmd
}

func newValidateBridgeSmokeCmd() *cobra.Command {
	var (
		planPath            string
		expectFailure       bool
		expectedCode        string
		expectedApplied     int
		expectAppliedFromPlan bool
		outPath             string
	)

	cmd := &cobra.Command{
		Use:   "bridge-smoke",
		Short: "Round-trip a plan through the configured bridge and assert its response",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, planPath)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")

			loaded, err := patchplan.Load(planPath)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			bridgeCfg := bridgeConfigFromEnv()
			client := bridge.New(bridgeCfg)
			wireReq, err := bridge.Normalize(loaded.Plan.Target, loaded.Plan.Ops)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			ctx, cancel := context.WithTimeout(context.Background(), bridgeCfg.Timeout)
			defer cancel()
			resp, callErr := client.Call(ctx, wireReq)

			env := assertBridgeSmoke(resp, callErr, expectFailure, expectedCode, expectedApplied, expectAppliedFromPlan, len(loaded.Plan.Ops))
			if outPath != "" {
				_ = report.WriteFile(outPath, env, report.FormatJSON)
			}
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to round-trip through the bridge")
	cmd.Flags().BoolVar(&expectFailure, "expect-failure", false, "Assert the bridge call fails")
	cmd.Flags().StringVar(&expectedCode, "expected-code", "", "Assert the response envelope's code")
	cmd.Flags().IntVar(&expectedApplied, "expected-applied", -1, "Assert data.applied equals this value")
	cmd.Flags().BoolVar(&expectAppliedFromPlan, "expect-applied-from-plan", false, "Assert data.applied equals len(plan.ops)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the resulting envelope to this path")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func assertBridgeSmoke(resp *bridge.Response, callErr error, expectFailure bool, expectedCode string, expectedApplied int, expectAppliedFromPlan bool, planOpCount int) envelope.Envelope {
	if callErr != nil {
		if expectFailure {
			return envelope.New(envelope.SeverityInfo, envelope.CodeOK, fmt.Sprintf("bridge call failed as expected: %v", callErr), nil)
		}
		code := envelope.CodeSchemaError
		var timeoutErr *bridge.TimeoutError
		var schemaErr *bridge.ResponseSchemaError
		switch {
		case errors.As(callErr, &timeoutErr):
			code = envelope.CodeBridgeTimeout
		case errors.As(callErr, &schemaErr):
			code = envelope.CodeBridgeResponseSchema
		case errors.Is(callErr, bridge.ErrUnsupportedTarget):
			code = envelope.CodeUnsupportedTarget
		}
		return envelope.New(envelope.SeverityError, code, callErr.Error(), nil)
	}
	if expectFailure && resp.Success {
		return envelope.New(envelope.SeverityError, envelope.CodeSchemaError, "expected bridge call to fail but it succeeded", resp)
	}
	if expectedCode != "" && string(resp.Code) != expectedCode {
		return envelope.New(envelope.SeverityError, envelope.CodeSchemaError,
			fmt.Sprintf("expected response code %q, got %q", expectedCode, resp.Code), resp)
	}
	if expectedApplied >= 0 && resp.Data.Applied != expectedApplied {
		return envelope.New(envelope.SeverityError, envelope.CodeSchemaError,
			fmt.Sprintf("expected data.applied=%d, got %d", expectedApplied, resp.Data.Applied), resp)
	}
	if expectAppliedFromPlan && resp.Data.Applied != planOpCount {
		return envelope.New(envelope.SeverityError, envelope.CodeSchemaError,
			fmt.Sprintf("expected data.applied=%d (len(plan.ops)), got %d", planOpCount, resp.Data.Applied), resp)
	}
	return envelope.New(envelope.SeverityInfo, envelope.CodeOK, "bridge smoke assertions passed", resp)
}

// bridgeConfigFromEnv reads the allowlisted bridge command line and
// timeout from the environment, the same source the orchestrator's
// apply path reads from.
func bridgeConfigFromEnv() bridge.Config {
	cmdLine := envOrEmpty("UNITYTOOL_PATCH_BRIDGE")
	timeout := 60 * time.Second
	if secs := envOrEmpty("UNITYTOOL_UNITY_TIMEOUT_SEC"); secs != "" {
		if n, err := parseSeconds(secs); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return bridge.Config{CommandLine: cmdLine, Timeout: timeout}
}
