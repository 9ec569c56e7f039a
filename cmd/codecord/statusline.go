package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tools.zach/dev/codecord/internal/gitinfo"
	"tools.zach/dev/codecord/internal/session"
	"tools.zach/dev/codecord/internal/statusline"
)

// ///////////////////////////////////////////////
// Statusline Command
// ///////////////////////////////////////////////

// The assistant invokes this once per render with a JSON document on
// stdin and displays whatever single line comes back on stdout. As a
// side effect the token counters are mirrored into the shared session
// state so the presence daemon shows live numbers between turns.
var statuslineCmd = &cobra.Command{
	Use:   "statusline",
	Short: "Render the assistant statusline from stdin JSON",
	RunE:  runStatusline,
}

func init() {
	rootCmd.AddCommand(statuslineCmd)
}

func runStatusline(cmd *cobra.Command, args []string) error {
	e, err := setupEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	in, err := statusline.Parse(os.Stdin)
	if err != nil {
		slog.Warn("failed to read statusline input", "error", err)
	}

	branch := ""
	if in.Workspace.CurrentDir != "" {
		branch = gitinfo.Branch(in.Workspace.CurrentDir)
	}

	// Mirror the counters into the state file. Apply skips states with
	// no started session, so a statusline firing before session-start
	// does not fabricate presence.
	if _, updErr := e.store.UpdateState(func(st *session.State) error {
		statusline.Apply(st, in)
		return nil
	}); updErr != nil {
		slog.Warn("failed to mirror statusline usage", "error", updErr)
	}

	fmt.Println(statusline.Render(in, branch))
	return nil
}
