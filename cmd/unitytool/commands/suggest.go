package commands

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/internal/config"
	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/guidindex"
	"github.com/recinq/unitytool/internal/ignorelist"
	"github.com/recinq/unitytool/internal/project"
	"github.com/recinq/unitytool/internal/refscan"
)

// NewSuggestCmd builds the `suggest` command group (ignore-guids).
func NewSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest ignore-list candidates from a scan",
	}
	cmd.AddCommand(newSuggestIgnoreGUIDsCmd())
	return cmd
}

// suggestion is one candidate line, tallied from a scan's top-missing
// list, pending a --out-ignore-guid-file write.
type suggestion struct {
	GUID        string `json:"guid"`
	Occurrences int    `json:"occurrences"`
}

func newSuggestIgnoreGUIDsCmd() *cobra.Command {
	var (
		scope           string
		minOccurrences  int
		maxItems        int
		outFile         string
		outMode         string
	)

	cmd := &cobra.Command{
		Use:   "ignore-guids",
		Short: "Suggest GUIDs worth adding to an ignore-guid file, ranked by occurrence count",
		RunE: func(cmd *cobra.Command, args []string) error {
			setAuditContext(cmd, scope)
			outputFormat, _ := cmd.Root().PersistentFlags().GetString("output")

			root, err := project.ResolveRoot(scope)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeNoProjectRoot, err.Error(), nil), outputFormat, ""))
			}

			cfg, _ := config.Load(root)
			resolvedExcludes := config.ResolveStrings(nil, cfg.Exclude)

			ix, err := guidindex.Build(root, resolvedExcludes)
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			// Scan every distinct missing GUID uncapped; min-occurrences and
			// max-items filtering happens below, after the ranking, so a
			// capped scan here can't silently truncate the candidate pool.
			result, err := refscan.Scan(ix, refscan.Options{
				Scope:        scope,
				ExcludeGlobs: resolvedExcludes,
				TopN:         math.MaxInt32,
			})
			if err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			var suggestions []suggestion
			for _, gc := range result.TopMissingAssetGUIDs {
				if gc.Count < minOccurrences {
					continue
				}
				suggestions = append(suggestions, suggestion{GUID: gc.GUID, Occurrences: gc.Count})
			}
			sort.Slice(suggestions, func(i, j int) bool {
				if suggestions[i].Occurrences != suggestions[j].Occurrences {
					return suggestions[i].Occurrences > suggestions[j].Occurrences
				}
				return suggestions[i].GUID < suggestions[j].GUID
			})
			if maxItems > 0 && len(suggestions) > maxItems {
				suggestions = suggestions[:maxItems]
			}

			if outFile == "" {
				env := envelope.New(envelope.SeverityInfo, envelope.CodeOK,
					fmt.Sprintf("%d candidate(s) found; decision_required without --out-ignore-guid-file", len(suggestions)), suggestions)
				return runExit(emit(env, outputFormat, ""))
			}

			mode := ignorelist.ModeReplace
			if outMode == string(ignorelist.ModeAppend) {
				mode = ignorelist.ModeAppend
			}
			guids := make([]string, 0, len(suggestions))
			for _, s := range suggestions {
				guids = append(guids, s.GUID)
			}
			if err := ignorelist.Write(outFile, guids, mode); err != nil {
				return runExit(emit(envelope.New(envelope.SeverityError, envelope.CodeSchemaError, err.Error(), nil), outputFormat, ""))
			}

			env := envelope.New(envelope.SeverityInfo, envelope.CodeOK,
				fmt.Sprintf("wrote %d candidate(s) to %s (%s)", len(suggestions), outFile, mode), suggestions)
			return runExit(emit(env, outputFormat, ""))
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope path to scan")
	cmd.Flags().IntVar(&minOccurrences, "min-occurrences", 1, "Minimum occurrence count for a candidate")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Cap the number of candidates (0 = unbounded)")
	cmd.Flags().StringVar(&outFile, "out-ignore-guid-file", "", "Write candidates to this ignore-guid file")
	cmd.Flags().StringVar(&outMode, "out-ignore-guid-mode", "replace", "replace or append")
	cmd.MarkFlagRequired("scope")
	return cmd
}

