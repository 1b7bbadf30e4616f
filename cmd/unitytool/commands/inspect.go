package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/guidindex"
	"github.com/recinq/unitytool/internal/override"
	"github.com/recinq/unitytool/internal/project"
	"github.com/recinq/unitytool/internal/refscan"
)

// NewInspectCmd builds the `inspect` command group (variant, where-used).
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect prefab variants and asset usage",
	}
	cmd.AddCommand(newInspectVariantCmd())
	cmd.AddCommand(newInspectWhereUsedCmd())
	return cmd
}

func newInspectVariantCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "variant",
		Short: "Inspect a prefab variant's Base chain and overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, path)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")
			const outReport = ""

			var ix *guidindex.Index
			if root, err := project.ResolveRoot(path); err == nil {
				ix, _ = guidindex.Build(root, nil)
			}

			result, err := override.Inspect(path, ix)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, outReport))
			}

			sev := result.Severity()
			env := envelope.New(sev, codeForOverrideSeverity(sev), "variant inspection complete", result)
			return runExit(emit(env, outputFormat, outReport))
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Path to the prefab variant file")
	cmd.MarkFlagRequired("path")
	return cmd
}

func codeForOverrideSeverity(sev envelope.Severity) envelope.Code {
	if sev.Fails() {
		return envelope.CodeStaleOverride
	}
	return envelope.CodeOK
}

func newInspectWhereUsedCmd() *cobra.Command {
	var (
		assetOrGUID string
		scope       string
		excludes    []string
		maxUsages   int
	)

	cmd := &cobra.Command{
		Use:   "where-used",
		Short: "Find every reference to an asset or GUID within a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, assetOrGUID)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")
			const outReport = ""

			root, err := project.ResolveRoot(scope)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeNoProjectRoot, err.Error(), nil), outputFormat, outReport))
			}
			ix, err := guidindex.Build(root, excludes)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, outReport))
			}

			result, err := refscan.WhereUsed(ix, assetOrGUID, scope, excludes, maxUsages)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, outReport))
			}

			msg := fmt.Sprintf("found %d usage(s) of %s", len(result.Usages), result.GUID)
			env := envelope.New(envelope.SeverityInfo, envelope.CodeOK, msg, result)
			return runExit(emit(env, outputFormat, outReport))
		},
	}
	cmd.Flags().StringVar(&assetOrGUID, "asset-or-guid", "", "Asset path or 32-hex GUID to search for")
	cmd.Flags().StringVar(&scope, "scope", "", "Scope path to search within")
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "Glob to exclude from the scope walk")
	cmd.Flags().IntVar(&maxUsages, "max-usages", 0, "Cap the number of usages reported (0 = unbounded)")
	cmd.MarkFlagRequired("asset-or-guid")
	return cmd
}
