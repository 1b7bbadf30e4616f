// Package report renders an envelope as a report file, intentionally
// minimal per the spec's Non-goal excluding full Markdown report
// rendering (that lives in an external collaborator, per spec.md §2).
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/recinq/unitytool/internal/envelope"
)

// Format is the closed set of report output formats `report export`
// and --out-report support.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Render produces report bytes for env in the requested format.
func Render(env envelope.Envelope, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return env.MarshalIndent()
	case FormatMarkdown:
		return []byte(renderMarkdown(env)), nil
	default:
		return nil, fmt.Errorf("report: unknown format %q", format)
	}
}

func renderMarkdown(env envelope.Envelope) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", env.Code)
	fmt.Fprintf(&sb, "- **severity**: %s\n", env.Severity)
	fmt.Fprintf(&sb, "- **success**: %v\n", env.Success)
	fmt.Fprintf(&sb, "- **message**: %s\n", env.Message)

	if len(env.Diagnostics) > 0 {
		sb.WriteString("\n## Diagnostics\n\n")
		sb.WriteString("| code | path | location | detail |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, d := range env.Diagnostics {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", d.Code, d.Path, d.Location, d.Detail)
		}
	}
	return sb.String()
}

// WriteFile renders env and writes it to path.
func WriteFile(path string, env envelope.Envelope, format Format) error {
	data, err := Render(env, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
