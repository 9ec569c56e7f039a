// Package session manages coding assistant session state and Discord Rich
// Presence activity construction.
//
// The package provides four core capabilities:
//
//   - State persistence: reading, writing, and migrating the JSON state file
//     that tracks per-session metadata (project, branch, model, token usage),
//     through a pluggable [Backend].
//   - Session counting: the reference count of live assistant sessions that
//     decides when the daemon starts and exits.
//   - Activity rendering: converting [State] and [RenderConfig] into a Discord
//     Rich Presence [Activity], cycling between a simple and a cached view.
//   - Change detection: monitoring the state file via [Watcher] and
//     aggregating token usage from conversation transcripts.
//
// The state file schema is versioned (see [CurrentVersion]) and migrates
// through the migrate.State registry.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"tools.zach/dev/codecord/internal/migrate"
)

// ///////////////////////////////////////////////
// State Types
// ///////////////////////////////////////////////

// CurrentVersion is the latest state file schema version.
const CurrentVersion = 1

// TokenUsage holds the aggregated token counts for a session, split by
// token class.
type TokenUsage struct {
	// Input is the number of fresh input tokens consumed.
	Input int64 `json:"input"`
	// Output is the number of output tokens produced.
	Output int64 `json:"output"`
	// CacheRead is the number of tokens served from prompt cache.
	CacheRead int64 `json:"cacheRead"`
	// CacheWrite is the number of tokens written into prompt cache.
	CacheWrite int64 `json:"cacheWrite"`
}

// Simple returns input + output tokens, the count shown in the simple view.
func (u TokenUsage) Simple() int64 {
	return u.Input + u.Output
}

// Cached returns cache read + write tokens.
func (u TokenUsage) Cached() int64 {
	return u.CacheRead + u.CacheWrite
}

// Total returns the sum across all four token classes, the count shown
// in the cached view.
func (u TokenUsage) Total() int64 {
	return u.Input + u.Output + u.CacheRead + u.CacheWrite
}

// Add accumulates another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.CacheRead += other.CacheRead
	u.CacheWrite += other.CacheWrite
}

// State represents the session state file schema. It is persisted as JSON
// and updated by hook commands whenever the assistant does something.
type State struct {
	// Version is the schema version, used for migration. See [CurrentVersion].
	Version int `json:"$version"`
	// SessionID is the unique identifier of the most recently active session.
	SessionID string `json:"sessionId"`
	// SessionStart is the Unix timestamp when the session began.
	SessionStart int64 `json:"sessionStart"`
	// LastActivity is the Unix timestamp of the most recent hook event.
	LastActivity int64 `json:"lastActivity"`
	// Project is the project name derived from the working directory.
	Project string `json:"project"`
	// Branch is the current git branch name, or empty outside a git repo.
	Branch string `json:"branch"`
	// CWD is the absolute path to the session's working directory.
	CWD string `json:"cwd"`
	// GitRemoteURL is the HTTPS URL of the git remote origin, used for the repo button.
	GitRemoteURL string `json:"gitRemoteUrl"`
	// Model is the raw model identifier (e.g. "claude-opus-4-5-20251101").
	Model string `json:"model"`
	// Activity classifies what the assistant is currently doing.
	Activity ActivityKind `json:"activity"`
	// ActivityDetail is the target of the current activity (file name, command).
	ActivityDetail string `json:"activityDetail,omitempty"`
	// Tokens is the accumulated token usage for the session.
	Tokens TokenUsage `json:"tokens"`
}

// NewState returns a fresh state at the current schema version.
func NewState() *State {
	return &State{Version: CurrentVersion}
}

// Touch records activity at t, updating LastActivity and initializing
// SessionStart on the first touch.
func (s *State) Touch(t time.Time) {
	unix := t.Unix()
	if s.SessionStart == 0 {
		s.SessionStart = unix
	}
	s.LastActivity = unix
}

// IdleSince reports whether the session has seen no activity for at
// least timeout as of now. A zero timeout disables idle detection.
func (s *State) IdleSince(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 || s.LastActivity == 0 {
		return false
	}
	return now.Unix()-s.LastActivity >= int64(timeout.Seconds())
}

// ///////////////////////////////////////////////
// Codec
// ///////////////////////////////////////////////

// DecodeState parses state file bytes, applying any registered schema
// migrations. A missing version field normalizes to 1. Future versions
// are normalized down to [CurrentVersion] so an older binary can still
// operate on the file.
func DecodeState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}

	if s.Version == 0 {
		s.Version = 1
	}

	if migrate.State.NeedsMigration(s.Version, false) {
		migrated, newVersion, err := migrate.State.Run(data, s.Version)
		if err != nil {
			return nil, fmt.Errorf("state migration failed: %w", err)
		}
		s = State{}
		if err := json.Unmarshal(migrated, &s); err != nil {
			return nil, fmt.Errorf("unmarshal migrated state: %w", err)
		}
		s.Version = newVersion
	}

	if s.Version > CurrentVersion {
		s.Version = CurrentVersion
	}

	return &s, nil
}

// EncodeState marshals s as JSON for persistence.
func EncodeState(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshalling state: %w", err)
	}
	return data, nil
}

// PeekVersion does a partial JSON parse to extract the $version field.
// Returns 1 if the field is missing (0 -> 1 normalization).
// Returns an error if the JSON is unparseable.
func PeekVersion(data []byte) (int, error) {
	var partial struct {
		Version int `json:"$version"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return 0, fmt.Errorf("peeking version: %w", err)
	}
	if partial.Version == 0 {
		return 1, nil
	}
	return partial.Version, nil
}
