package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tools.zach/dev/codecord/internal/hook"
)

// ///////////////////////////////////////////////
// Hook Commands
// ///////////////////////////////////////////////

// The assistant invokes these entry points at lifecycle moments, feeding a
// JSON payload on stdin. They must be fast and quiet: all diagnostics go
// to the log file, and malformed payloads degrade to a zero payload
// rather than a hard failure.

var sessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "Hook: register a new assistant session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(func(e *env, p *hook.Payload) error {
			return e.manager.SessionStart(p)
		})
	},
}

var toolUseCmd = &cobra.Command{
	Use:   "tool-use",
	Short: "Hook: record a tool invocation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(func(e *env, p *hook.Payload) error {
			return e.manager.ToolUse(p)
		})
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "session-end",
	Short: "Hook: unregister a closing assistant session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(func(e *env, p *hook.Payload) error {
			return e.manager.SessionEnd(p)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionStartCmd, toolUseCmd, sessionEndCmd)
}

// runHook is the shared scaffold for hook commands: bootstrap, parse
// stdin, dispatch, and log failures before propagating them.
func runHook(fn func(*env, *hook.Payload) error) error {
	e, err := setupEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "codecord: %v\n", err)
		return err
	}
	defer e.Close()

	p, err := hook.Parse(os.Stdin)
	if err != nil {
		slog.Warn("failed to read hook payload", "error", err)
		p = &hook.Payload{}
	}

	if err := fn(e, p); err != nil {
		slog.Error("hook failed", "error", err)
		return err
	}
	return nil
}
