package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recinq/unitytool/internal/auditlog"
	"github.com/recinq/unitytool/internal/cliui"
	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/report"
)

var (
	auditor      *auditlog.Logger
	auditCmdPath string
	auditTarget  string
)

// setAuditContext records the command path and target an upcoming emit()
// call should attribute its audit-trail entry to. Called once at the top
// of each verb's RunE.
func setAuditContext(cmd *cobra.Command, target string) {
	auditCmdPath = cmd.CommandPath()
	auditTarget = target
}

// emit renders env per --output (json or text, auto-detected from the
// terminal when unset), appends a redacted audit-trail entry, and
// returns the process exit code for it.
func emit(env envelope.Envelope, outputFormat string, outReport string) int {
	if auditor == nil {
		if l, err := auditlog.New(envOrEmpty("UNITYTOOL_AUDIT_LOG")); err == nil {
			auditor = l
		}
	}
	if auditor != nil {
		_ = auditor.LogOperation(auditCmdPath, auditTarget, env)
	}

	term := cliui.Detect()

	useJSON := outputFormat == "json"
	useText := outputFormat == "text"
	if !useJSON && !useText {
		useJSON = !term.IsTTY
	}

	if useJSON {
		data, err := env.MarshalIndent()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		fmt.Println(cliui.RenderEnvelope(env, term.IsTTY))
	}

	if outReport != "" {
		if err := report.WriteFile(outReport, env, report.FormatJSON); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	return env.ExitCode()
}

// runExit terminates the process with code, having already printed the
// envelope via emit. Cobra's RunE signature wants an error return, but
// the exit code taxonomy here is richer than "errored or not" in spirit
// (though always 0/1 per §6) and the envelope is the real output; os.Exit
// avoids cobra re-printing a redundant error line.
func runExit(code int) error {
	os.Exit(code)
	return nil
}
