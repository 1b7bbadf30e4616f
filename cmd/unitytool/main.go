package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/cmd/unitytool/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "unitytool",
	Short: "Auditable editing pipeline for Unity-style asset trees",
	Long: `
  unitytool — reference-integrity scanning, prefab-variant override
  inspection, and a cryptographically gated patch-plan apply pipeline
  for Unity-style game-engine asset trees.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	rootCmd.SetVersionTemplate("unitytool version {{.Version}}\n")

	rootCmd.PersistentFlags().StringP("output", "o", "auto", "Output format: auto, json, text")

	rootCmd.AddCommand(commands.NewInspectCmd())
	rootCmd.AddCommand(commands.NewValidateCmd())
	rootCmd.AddCommand(commands.NewSuggestCmd())
	rootCmd.AddCommand(commands.NewPatchCmd())
	rootCmd.AddCommand(commands.NewReportCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
