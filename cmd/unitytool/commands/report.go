package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/report"
)

// NewReportCmd builds the `report` command group (export).
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved envelope as a report",
	}
	cmd.AddCommand(newReportExportCmd())
	return cmd
}

func newReportExportCmd() *cobra.Command {
	var (
		inputPath  string
		format     string
		outPath    string
		mdMaxUsages int
		mdOmitUsages bool
		mdMaxSteps  int
		mdOmitSteps bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a previously written envelope JSON file as Markdown or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, inputPath)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}
			var env envelope.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			// The Markdown renderer is intentionally minimal (§2
			// Non-goal: full Markdown rendering lives in an external
			// collaborator); the --md-* flags are accepted so callers
			// scripting against the full external renderer's CLI
			// surface don't need a conditional invocation, but this
			// renderer only honors the omit flags, trimming diagnostics
			// to zero rather than truncating by count.
			_ = mdMaxUsages
			_ = mdMaxSteps
			renderEnv := env
			if mdOmitUsages || mdOmitSteps {
				renderEnv.Diagnostics = nil
			}

			reportFormat := report.FormatJSON
			if format == "md" || format == "markdown" {
				reportFormat = report.FormatMarkdown
			}

			if outPath == "" {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, "report export requires --out", nil), outputFormat, ""))
			}
			if err := report.WriteFile(outPath, renderEnv, reportFormat); err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			resultEnv := envelope.New(envelope.SeverityInfo, envelope.CodeOK, fmt.Sprintf("wrote %s report to %s", reportFormat, outPath), nil)
			return runExit(emit(resultEnv, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Envelope JSON file to render")
	cmd.Flags().StringVar(&format, "format", "json", "md or json")
	cmd.Flags().StringVar(&outPath, "out", "", "Output path for the rendered report")
	cmd.Flags().IntVar(&mdMaxUsages, "md-max-usages", 0, "Accepted but not applied: this renderer does not cap entries by count")
	cmd.Flags().BoolVar(&mdOmitUsages, "md-omit-usages", false, "Drop all diagnostics from the rendered report")
	cmd.Flags().IntVar(&mdMaxSteps, "md-max-steps", 0, "Accepted but not applied: this renderer does not cap entries by count")
	cmd.Flags().BoolVar(&mdOmitSteps, "md-omit-steps", false, "Drop all diagnostics from the rendered report")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("format")
	return cmd
}
