package session

import (
	"fmt"
	"strings"
)

// ///////////////////////////////////////////////
// Activity Kinds
// ///////////////////////////////////////////////

// ActivityKind classifies what the assistant is currently doing. It is a
// closed set: every tool name maps to exactly one kind via [KindForTool],
// and unknown tools fall back to [KindWorking].
type ActivityKind int

const (
	// KindWorking is the default kind for unrecognized tools.
	KindWorking ActivityKind = iota
	// KindEditing covers file modification tools.
	KindEditing
	// KindWriting covers file creation tools.
	KindWriting
	// KindReading covers file read tools.
	KindReading
	// KindRunning covers shell command execution.
	KindRunning
	// KindSearching covers file-pattern (glob) search.
	KindSearching
	// KindGrepping covers content search.
	KindGrepping
	// KindBrowsing covers directory listing.
	KindBrowsing
	// KindFetching covers web page fetches.
	KindFetching
	// KindResearching covers web searches.
	KindResearching
	// KindDelegating covers subagent task dispatch.
	KindDelegating
	// KindAsking covers prompts back to the user.
	KindAsking
	// KindReviewing covers todo-list reads.
	KindReviewing
	// KindPlanning covers todo-list writes.
	KindPlanning
	// KindUsingMCP covers any MCP server tool (mcp__* prefix).
	KindUsingMCP
	// KindIdling is shown after the idle timeout elapses with no activity.
	KindIdling
)

// kindNames holds the display label for each kind, indexed by kind value.
// Labels are kept short so rendered lines fit Discord's length limit.
var kindNames = [...]string{
	KindWorking:     "Working",
	KindEditing:     "Editing",
	KindWriting:     "Writing",
	KindReading:     "Reading",
	KindRunning:     "Running",
	KindSearching:   "Searching",
	KindGrepping:    "Grepping",
	KindBrowsing:    "Browsing",
	KindFetching:    "Fetching",
	KindResearching: "Researching",
	KindDelegating:  "Delegating",
	KindAsking:      "Asking",
	KindReviewing:   "Reviewing",
	KindPlanning:    "Planning",
	KindUsingMCP:    "Using MCP",
	KindIdling:      "Idling",
}

// String returns the display label for the kind (e.g. "Editing").
// Out-of-range values render as "Working".
func (k ActivityKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindWorking]
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as
// their display label in JSON state files.
func (k ActivityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown labels
// parse as [KindWorking] so old or hand-edited state files stay readable.
func (k *ActivityKind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// ParseKind converts a display label back to its kind.
// Unknown labels return [KindWorking].
func ParseKind(label string) ActivityKind {
	for i, name := range kindNames {
		if name == label {
			return ActivityKind(i)
		}
	}
	return KindWorking
}

// ///////////////////////////////////////////////
// Tool Mapping
// ///////////////////////////////////////////////

// toolKinds maps tool names to their activity kind.
var toolKinds = map[string]ActivityKind{
	"Edit":            KindEditing,
	"MultiEdit":       KindEditing,
	"NotebookEdit":    KindEditing,
	"Write":           KindWriting,
	"Read":            KindReading,
	"NotebookRead":    KindReading,
	"Bash":            KindRunning,
	"BashOutput":      KindRunning,
	"Glob":            KindSearching,
	"Grep":            KindGrepping,
	"LS":              KindBrowsing,
	"WebFetch":        KindFetching,
	"WebSearch":       KindResearching,
	"Task":            KindDelegating,
	"AskUserQuestion": KindAsking,
	"TodoRead":        KindReviewing,
	"TodoWrite":       KindPlanning,
}

// KindForTool maps a tool name to its activity kind. MCP tools
// (mcp__server__tool) map to [KindUsingMCP]; anything else unrecognized
// maps to [KindWorking].
func KindForTool(tool string) ActivityKind {
	if strings.HasPrefix(tool, "mcp__") {
		return KindUsingMCP
	}
	if k, ok := toolKinds[tool]; ok {
		return k
	}
	return KindWorking
}

// Verb returns the activity label with its target attached when one is
// available, e.g. "Editing main.go". An empty detail yields the bare label.
func (k ActivityKind) Verb(detail string) string {
	if detail == "" {
		return k.String()
	}
	return fmt.Sprintf("%s %s", k.String(), detail)
}
