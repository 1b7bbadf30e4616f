package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/internal/cliui"
	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/orchestrator"
	"github.com/recinq/unitytool/internal/patchplan"
	"github.com/recinq/unitytool/internal/plancrypto"
	"github.com/recinq/unitytool/internal/runtimelog"
)

// NewPatchCmd builds the `patch` command group (hash, sign, attest,
// verify, apply).
func NewPatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Hash, sign, attest, verify, and apply patch plans",
	}
	cmd.AddCommand(newPatchHashCmd())
	cmd.AddCommand(newPatchSignCmd())
	cmd.AddCommand(newPatchAttestCmd())
	cmd.AddCommand(newPatchVerifyCmd())
	cmd.AddCommand(newPatchApplyCmd())
	return cmd
}

func loadPlanBytes(planPath string) ([]byte, error) {
	loaded, err := patchplan.Load(planPath)
	if err != nil {
		return nil, err
	}
	return loaded.RawBytes, nil
}

func newPatchHashCmd() *cobra.Command {
	var (
		planPath string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the SHA-256 digest of a plan's bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, planPath)
			globalFormat, _ := cmd.Root().PersistentFlags().GetString("output")
			outputFormat := resolveFormat(format, globalFormat)
			raw, err := loadPlanBytes(planPath)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}
			digest := plancrypto.Digest(raw)
			env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, digest, map[string]string{"sha256": digest})
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to hash")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json or text (defaults to --output)")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newPatchSignCmd() *cobra.Command {
	var (
		planPath  string
		keyFile   string
		keyEnvVar string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the HMAC-SHA256 signature of a plan's bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, planPath)
			globalFormat, _ := cmd.Root().PersistentFlags().GetString("output")
			outputFormat := resolveFormat(format, globalFormat)
			raw, err := loadPlanBytes(planPath)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}
			key, err := plancrypto.ResolveKey(plancrypto.KeySource{EnvVar: keyEnvVar, File: keyFile})
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}
			signature := plancrypto.Sign(raw, key)
			env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, signature, map[string]string{"signature": signature})
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to sign")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Explicit signing key file")
	cmd.Flags().StringVar(&keyEnvVar, "key-env", "", "Environment variable holding the signing key (default "+plancrypto.DefaultSigningKeyEnv+")")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json or text (defaults to --output)")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newPatchAttestCmd() *cobra.Command {
	var (
		planPath  string
		keyFile   string
		keyEnvVar string
		unsigned  bool
		outFile   string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "attest",
		Short: "Write a signed attestation document for a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, planPath)
			globalFormat, _ := cmd.Root().PersistentFlags().GetString("output")
			outputFormat := resolveFormat(format, globalFormat)
			raw, err := loadPlanBytes(planPath)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			var key []byte
			if !unsigned {
				key, err = plancrypto.ResolveKey(plancrypto.KeySource{EnvVar: keyEnvVar, File: keyFile})
				if err != nil {
					return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
				}
			}

			att := plancrypto.NewAttestation(planPath, raw, key, unsigned, time.Now())
			if outFile != "" {
				if err := att.WriteFile(outFile); err != nil {
					return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
				}
			}

			env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, fmt.Sprintf("attestation generated for %s", planPath), att)
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to attest")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Explicit signing key file")
	cmd.Flags().StringVar(&keyEnvVar, "key-env", "", "Environment variable holding the signing key")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "Omit the signature from the attestation")
	cmd.Flags().StringVar(&outFile, "out", "", "Write the attestation document to this path")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json or text (defaults to --output)")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newPatchVerifyCmd() *cobra.Command {
	var (
		planPath       string
		expectedSHA    string
		expectedSig    string
		attestationPath string
		keyFile        string
		keyEnvVar      string
		format         string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a plan's digest, signature, or attestation",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, planPath)
			globalFormat, _ := cmd.Root().PersistentFlags().GetString("output")
			outputFormat := resolveFormat(format, globalFormat)
			raw, err := loadPlanBytes(planPath)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			exp := plancrypto.Expectations{SHA256: expectedSHA, Signature: expectedSig}
			if attestationPath != "" {
				att, err := plancrypto.LoadAttestation(attestationPath)
				if err != nil {
					return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
				}
				exp.Attestation = att
			}

			var key []byte
			if exp.Signature != "" || (exp.Attestation != nil && exp.Attestation.Signature != "") {
				key, _ = plancrypto.ResolveKey(plancrypto.KeySource{EnvVar: keyEnvVar, File: keyFile})
			}

			result := plancrypto.Verify(raw, key, exp)
			if !result.OK {
				env := envelope.New(envelope.SeverityError, envelope.Code(result.FailedCode), result.FailedDetail, nil)
				return runExit(emit(env, outputFormat, ""))
			}

			env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, "plan verification passed", nil)
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to verify")
	cmd.Flags().StringVar(&expectedSHA, "plan-sha256", "", "Expected SHA-256 digest")
	cmd.Flags().StringVar(&expectedSig, "plan-signature", "", "Expected HMAC-SHA256 signature")
	cmd.Flags().StringVar(&attestationPath, "attestation-file", "", "Attestation file to verify against")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Explicit signing key file")
	cmd.Flags().StringVar(&keyEnvVar, "key-env", "", "Environment variable holding the signing key")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json or text (defaults to --output)")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newPatchApplyCmd() *cobra.Command {
	var (
		planPath        string
		dryRun          bool
		confirm         bool
		outReport       string
		expectedSHA     string
		expectedSig     string
		attestationPath string
		scope           string
		runtimeScene    string
		changeReason    string
		keyFile         string
		keyEnvVar       string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run the full gated apply pipeline for a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, planPath)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")

			term := cliui.Detect()
			if !dryRun && !confirm && term.IsTTY {
				ok, err := cliui.Confirm(fmt.Sprintf("Apply plan %s?", planPath), true)
				if err != nil {
					return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, outReport))
				}
				confirm = ok
			}

			exp := plancrypto.Expectations{SHA256: expectedSHA, Signature: expectedSig}
			if attestationPath != "" {
				att, err := plancrypto.LoadAttestation(attestationPath)
				if err != nil {
					return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, outReport))
				}
				exp.Attestation = att
			}
			var key []byte
			if exp.Signature != "" || (exp.Attestation != nil && exp.Attestation.Signature != "") {
				key, _ = plancrypto.ResolveKey(plancrypto.KeySource{EnvVar: keyEnvVar, File: keyFile})
			}

			// --runtime-scene only decides whether step 8 runs; the engine
			// writes its log to UNITYTOOL_UNITY_LOG_FILE, never to the scene
			// path itself.
			var runtimeLogPath string
			if runtimeScene != "" {
				runtimeLogPath = envOrEmpty("UNITYTOOL_UNITY_LOG_FILE")
				if runtimeLogPath == "" {
					env := envelope.New(envelope.SeverityError, envelope.CodeSchemaError,
						"--runtime-scene given but UNITYTOOL_UNITY_LOG_FILE is not set", nil)
					return runExit(emit(env, outputFormat, outReport))
				}
			}

			req := orchestrator.ApplyRequest{
				PlanPath:        planPath,
				CryptoKey:       key,
				Expectations:    exp,
				PreflightScope:  scope,
				DryRun:          dryRun,
				Confirm:         confirm,
				Bridge:          bridgeConfigFromEnv(),
				RuntimeLogPath:  runtimeLogPath,
				RuntimeSeverity: runtimelog.SeverityPolicy(runtimelog.DefaultSeverity),
			}
			_ = changeReason // recorded in the plan document itself, not a pipeline input

			ctx := context.Background()
			outcome := orchestrator.Apply(ctx, req)
			return runExit(emit(outcome.Envelope, outputFormat, outReport))
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file to apply")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute and report the diff without applying")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Authorize the apply to proceed")
	cmd.Flags().StringVar(&outReport, "out-report", "", "Write the resulting envelope to this path")
	cmd.Flags().StringVar(&expectedSHA, "plan-sha256", "", "Expected SHA-256 digest")
	cmd.Flags().StringVar(&expectedSig, "plan-signature", "", "Expected HMAC-SHA256 signature")
	cmd.Flags().StringVar(&attestationPath, "attestation-file", "", "Attestation file to verify against")
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to preflight reference-scan before applying")
	cmd.Flags().StringVar(&runtimeScene, "runtime-scene", "", "Runtime scene; when set, the log at UNITYTOOL_UNITY_LOG_FILE is classified after applying")
	cmd.Flags().StringVar(&changeReason, "change-reason", "", "Human-readable reason for the change (informational)")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Explicit signing key file")
	cmd.Flags().StringVar(&keyEnvVar, "key-env", "", "Environment variable holding the signing key")
	cmd.MarkFlagRequired("plan")
	return cmd
}
