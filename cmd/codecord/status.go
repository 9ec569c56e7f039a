package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tools.zach/dev/codecord/internal/logger"
	"tools.zach/dev/codecord/internal/pricing"
	"tools.zach/dev/codecord/internal/session"
)

// ///////////////////////////////////////////////
// Status Command
// ///////////////////////////////////////////////

var flagStatusLogLines int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and a preview of both presence views",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&flagStatusLogLines, "log-lines", 5,
		"Number of recent log lines to show (0 disables)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := setupEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	info := e.manager.Status()

	if info.Running {
		fmt.Printf("Daemon:   running (pid %d)\n", info.PID)
	} else {
		fmt.Println("Daemon:   not running")
	}
	fmt.Printf("Sessions: %d\n", info.Sessions)

	s := info.State
	if s == nil || s.SessionID == "" {
		fmt.Println("Presence: cleared (no active session)")
	} else {
		fmt.Printf("Project:  %s", s.Project)
		if s.Branch != "" {
			fmt.Printf(" (%s)", s.Branch)
		}
		fmt.Println()
		if s.Model != "" {
			fmt.Printf("Model:    %s\n", e.cfg.FormatModelName(s.Model))
		}
		fmt.Printf("Activity: %s\n", s.Activity.Verb(s.ActivityDetail))
		fmt.Printf("Tokens:   %s in, %s out, %s cache read, %s cache write\n",
			session.FormatTokens(s.Tokens.Input),
			session.FormatTokens(s.Tokens.Output),
			session.FormatTokens(s.Tokens.CacheRead),
			session.FormatTokens(s.Tokens.CacheWrite),
		)
		printPresencePreview(e, s)
	}

	if flagStatusLogLines > 0 {
		tail, tailErr := logger.ReadTail(e.dir.Log(), flagStatusLogLines)
		if tailErr == nil && tail != "" {
			fmt.Println("\nRecent log:")
			fmt.Print(tail)
		} else if tailErr != nil && !os.IsNotExist(tailErr) {
			fmt.Fprintf(os.Stderr, "warning: read log: %v\n", tailErr)
		}
	}
	return nil
}

// printPresencePreview renders both rotation phases of the presence so
// the user can see exactly what Discord would show, without waiting for
// the cycle to come around.
func printPresencePreview(e *env, s *session.State) {
	rcfg := renderConfig(e.cfg)
	table, err := pricing.Load(buildPricingSource(e.cfg), e.dir.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: pricing load used fallback: %v\n", err)
	}

	// Pick instants that land in each phase of the rotation. Phase is
	// wall-clock seconds modulo the cycle length, so Unix time 0 is
	// always in the simple phase and Unix time len(simple) in the
	// cached one.
	simpleAt := time.Unix(0, 0)
	cachedAt := time.Unix(int64(rcfg.Cycle.Simple.Seconds()), 0)

	// Preview against a copy that never reads as idle: idle rendering
	// depends on the chosen instant, not on the real clock.
	preview := *s
	preview.LastActivity = simpleAt.Unix()

	a := buildActivity(e.cfg, rcfg, table, &preview, simpleAt)
	if a == nil {
		fmt.Println("Presence: suppressed (ignored directory)")
		return
	}
	fmt.Printf("Simple:   %s | %s\n", a.Details, a.State)

	preview.LastActivity = cachedAt.Unix()
	if b := buildActivity(e.cfg, rcfg, table, &preview, cachedAt); b != nil {
		fmt.Printf("Cached:   %s | %s\n", b.Details, b.State)
	}
}
