// Package statusline renders the in-terminal status bar shown by the
// coding assistant. It reads the assistant's statusline JSON from stdin,
// produces an ANSI breadcrumb line (model, context-window progress bar,
// tokens, cost, branch), and exposes a helper to mirror the token and
// cost figures into the daemon's session state.
package statusline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tools.zach/dev/codecord/internal/session"
)

// ///////////////////////////////////////////////
// Input Schema
// ///////////////////////////////////////////////

// ModelInfo identifies the active model.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Workspace describes the directories the assistant is operating in.
type Workspace struct {
	CurrentDir string `json:"current_dir"`
	ProjectDir string `json:"project_dir"`
}

// Cost carries the assistant's pre-computed running session cost.
type Cost struct {
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// CurrentUsage holds the cache token counters of the latest request.
type CurrentUsage struct {
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// ContextWindow summarizes context-window consumption for the session.
type ContextWindow struct {
	TotalInputTokens  int64         `json:"total_input_tokens"`
	TotalOutputTokens int64         `json:"total_output_tokens"`
	UsedPercentage    float64       `json:"used_percentage"`
	CurrentUsage      *CurrentUsage `json:"current_usage"`
}

// Input is the statusline JSON document the assistant writes to stdin.
type Input struct {
	SessionID     string        `json:"session_id"`
	Model         ModelInfo     `json:"model"`
	Workspace     Workspace     `json:"workspace"`
	Cost          Cost          `json:"cost"`
	ContextWindow ContextWindow `json:"context_window"`
}

// Parse decodes a statusline document from r. An empty or malformed
// document yields a zero Input and no error so the statusline never
// breaks the host assistant's rendering.
func Parse(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("reading statusline input: %w", err)
	}
	var in Input
	if len(data) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, nil
	}
	return in, nil
}

// ///////////////////////////////////////////////
// State Mirroring
// ///////////////////////////////////////////////

// Apply copies the statusline's model and token figures onto the session
// state so the presence daemon displays live numbers between hook events.
// States with no started session are left untouched.
func Apply(st *session.State, in Input) {
	if st == nil || st.SessionStart == 0 {
		return
	}
	if in.Model.ID != "" {
		st.Model = in.Model.ID
	}
	st.Tokens.Input = in.ContextWindow.TotalInputTokens
	st.Tokens.Output = in.ContextWindow.TotalOutputTokens
	if cu := in.ContextWindow.CurrentUsage; cu != nil {
		st.Tokens.CacheRead = cu.CacheReadInputTokens
		st.Tokens.CacheWrite = cu.CacheCreationInputTokens
	}
}

// ///////////////////////////////////////////////
// ANSI Rendering
// ///////////////////////////////////////////////

// ANSI escape sequences, approximating the Apple system palette.
const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"

	ansiWhite  = "\x1b[97m"
	ansiGray   = "\x1b[90m"
	ansiBlue   = "\x1b[94m"
	ansiGreen  = "\x1b[92m"
	ansiOrange = "\x1b[93m"
	ansiRed    = "\x1b[91m"
)

// progressBarWidth is the character width of the context-window bar.
const progressBarWidth = 10

// branchMaxLen caps the branch segment so long branch names don't crowd
// out the rest of the line.
const branchMaxLen = 16

// Render builds the breadcrumb status line. Segments are joined with a
// chevron separator; empty segments are omitted. Branch comes from git,
// not from the input document, so the caller resolves it.
func Render(in Input, branch string) string {
	var parts []string

	if in.Model.DisplayName != "" {
		parts = append(parts, ansiBlue+ansiBold+in.Model.DisplayName+ansiReset)
	}

	bar := progressBar(in.ContextWindow.UsedPercentage, progressBarWidth)
	parts = append(parts, fmt.Sprintf("%s %s%.0f%%%s", bar, ansiWhite, in.ContextWindow.UsedPercentage, ansiReset))

	total := in.ContextWindow.TotalInputTokens + in.ContextWindow.TotalOutputTokens
	if total > 0 {
		parts = append(parts, ansiWhite+formatTokens(total)+" tokens"+ansiReset)
	}

	if in.Cost.TotalCostUSD > 0 {
		parts = append(parts, ansiGreen+formatCost(in.Cost.TotalCostUSD)+ansiReset)
	}

	if branch != "" {
		parts = append(parts, ansiGray+truncate(branch, branchMaxLen)+ansiReset)
	}

	chevron := ansiGray + "  ›  " + ansiReset
	return strings.Join(parts, chevron)
}

// progressBar renders a filled/empty block bar colored by usage level:
// white up to 80%, orange above, red above 95%.
func progressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent/100*float64(width) + 0.5)
	if filled > width {
		filled = width
	}

	color := ansiWhite
	switch {
	case percent > 95:
		color = ansiRed
	case percent > 80:
		color = ansiOrange
	}

	return color + strings.Repeat("█", filled) +
		ansiGray + strings.Repeat("░", width-filled) + ansiReset
}

// formatTokens abbreviates a token count for the narrow statusline:
// six-figure counts drop the decimal that the presence formatter keeps.
func formatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 100_000:
		return fmt.Sprintf("%.0fk", float64(n)/1_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// formatCost scales precision down as the amount grows, keeping the
// segment at four to five characters.
func formatCost(cost float64) string {
	switch {
	case cost >= 100:
		return fmt.Sprintf("$%.0f", cost)
	case cost >= 10:
		return fmt.Sprintf("$%.1f", cost)
	case cost >= 0.01:
		return fmt.Sprintf("$%.2f", cost)
	default:
		return fmt.Sprintf("$%.3f", cost)
	}
}

// truncate shortens s to max characters, ending with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
