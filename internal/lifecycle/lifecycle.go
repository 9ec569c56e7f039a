// Package lifecycle manages the session reference count and the daemon
// process behind it. Hook entry points call [Manager.SessionStart],
// [Manager.ToolUse], and [Manager.SessionEnd]; the daemon is spawned when
// the first session opens and torn down when the count returns to zero.
package lifecycle

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tools.zach/dev/codecord/internal/gitinfo"
	"tools.zach/dev/codecord/internal/hook"
	"tools.zach/dev/codecord/internal/paths"
	"tools.zach/dev/codecord/internal/session"
)

// ///////////////////////////////////////////////
// Manager
// ///////////////////////////////////////////////

// Manager coordinates session bookkeeping with daemon process control.
// The process-control functions are fields so tests can inject fakes.
type Manager struct {
	// Dir is the data directory holding state, count, and PID files.
	Dir paths.DataDir
	// Store persists session state and the reference count.
	Store *session.Store
	// ConversationsDir is searched for JSONL transcripts when a hook
	// payload carries no usage data.
	ConversationsDir string
	// Exe is the daemon executable; empty means the current binary.
	Exe string

	// Spawn starts a detached daemon process and returns its PID.
	Spawn func(exe string, args []string) (int, error)
	// Terminate signals the daemon process to shut down.
	Terminate func(pid int) error
	// Alive probes for a running daemon.
	Alive func(dir paths.DataDir) (bool, int)
}

// NewManager returns a Manager wired to the real platform process
// primitives.
func NewManager(dir paths.DataDir, store *session.Store, conversationsDir string) *Manager {
	return &Manager{
		Dir:              dir,
		Store:            store,
		ConversationsDir: conversationsDir,
		Spawn:            detachedSpawn,
		Terminate:        terminateProcess,
		Alive:            Probe,
	}
}

// ///////////////////////////////////////////////
// Session Hooks
// ///////////////////////////////////////////////

// SessionStart registers a newly opened session: it increments the
// reference count, overwrites the session state from the hook payload and
// git metadata, and spawns the daemon if none is running.
func (m *Manager) SessionStart(p *hook.Payload) error {
	now := time.Now()

	count, err := m.Store.IncrementSessionCount()
	if err != nil {
		return fmt.Errorf("incrementing session count: %w", err)
	}

	if _, err := m.Store.UpdateState(func(s *session.State) error {
		s.SessionID = p.SessionID
		s.CWD = p.CWD
		s.Activity = session.KindWorking
		s.ActivityDetail = ""
		s.SessionStart = 0
		s.Tokens = session.TokenUsage{}
		if p.Model.ID != "" {
			s.Model = p.Model.ID
		}
		m.applyGitInfo(s, p.CWD)
		m.applyUsage(s, p)
		s.Touch(now)
		return nil
	}); err != nil {
		return fmt.Errorf("initializing session state: %w", err)
	}

	slog.Info("session started", "session_id", p.SessionID, "sessions", count)

	if alive, pid := m.Alive(m.Dir); alive {
		slog.Debug("daemon already running", "pid", pid)
		return nil
	}
	return m.spawnDaemon()
}

// ToolUse records a tool invocation: activity kind and detail, model, and
// token counters, refreshing the last-activity timestamp.
func (m *Manager) ToolUse(p *hook.Payload) error {
	now := time.Now()

	_, err := m.Store.UpdateState(func(s *session.State) error {
		if p.SessionID != "" {
			s.SessionID = p.SessionID
		}
		if p.CWD != "" && s.CWD == "" {
			s.CWD = p.CWD
			m.applyGitInfo(s, p.CWD)
		}
		kind := session.KindForTool(p.ToolName)
		s.Activity = kind
		s.ActivityDetail = activityDetail(kind, p.ToolTarget())
		if p.Model.ID != "" {
			s.Model = p.Model.ID
		}
		m.applyUsage(s, p)
		s.Touch(now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording tool use: %w", err)
	}
	return nil
}

// SessionEnd unregisters a session. When the last session closes it
// clears the persisted state and signals the daemon to shut down.
func (m *Manager) SessionEnd(p *hook.Payload) error {
	count, err := m.Store.DecrementSessionCount()
	if err != nil {
		return fmt.Errorf("decrementing session count: %w", err)
	}
	slog.Info("session ended", "session_id", p.SessionID, "sessions", count)

	if count > 0 {
		return nil
	}
	if err := m.Store.ClearState(); err != nil {
		slog.Warn("failed to clear session state", "error", err)
	}
	m.stopDaemon()
	return nil
}

// Stop forces the session count to zero and terminates the daemon
// regardless of open sessions.
func (m *Manager) Stop() error {
	if err := m.Store.ClearState(); err != nil {
		return fmt.Errorf("clearing session state: %w", err)
	}
	m.stopDaemon()
	return nil
}

// ///////////////////////////////////////////////
// Status
// ///////////////////////////////////////////////

// Info is a point-in-time snapshot of the daemon and session bookkeeping,
// as reported by the status command.
type Info struct {
	// Running is true when a daemon holds the PID lock and its process
	// answers a liveness probe.
	Running bool
	// PID is the daemon's process ID, zero when not running.
	PID int
	// Sessions is the current reference count.
	Sessions int
	// State is the persisted session state, freshly initialized when
	// nothing is stored.
	State *session.State
}

// Status reports daemon liveness and the current session state.
func (m *Manager) Status() *Info {
	alive, pid := m.Alive(m.Dir)
	if alive && pid > 0 && !processAlive(pid) {
		// The lock is held but the process does not answer: treat as
		// not running and let the next start clean up.
		alive = false
	}

	st, err := m.Store.ReadState()
	if err != nil {
		slog.Warn("session state unreadable", "error", err)
	}
	return &Info{
		Running:  alive,
		PID:      pid,
		Sessions: m.Store.ReadSessionCount(),
		State:    st,
	}
}

// ///////////////////////////////////////////////
// Internals
// ///////////////////////////////////////////////

// spawnDaemon launches the daemon as a detached background process.
func (m *Manager) spawnDaemon() error {
	exe := m.Exe
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return fmt.Errorf("resolving executable: %w", err)
		}
	}
	pid, err := m.Spawn(exe, []string{"daemon", "--data-dir", m.Dir.Root})
	if err != nil {
		return fmt.Errorf("spawning daemon: %w", err)
	}
	slog.Info("daemon spawned", "pid", pid)
	return nil
}

// stopDaemon signals a running daemon to terminate. The daemon removes
// its own PID file on exit; a crashed daemon's stale file is cleaned up
// by the next [Probe].
func (m *Manager) stopDaemon() {
	alive, pid := m.Alive(m.Dir)
	if !alive || pid == 0 {
		return
	}
	if err := m.Terminate(pid); err != nil {
		slog.Warn("failed to signal daemon", "pid", pid, "error", err)
		return
	}
	slog.Info("daemon signaled to stop", "pid", pid)
}

// applyGitInfo fills the project, branch, and remote fields from the git
// checkout at dir. Failures leave the fields empty.
func (m *Manager) applyGitInfo(s *session.State, dir string) {
	if dir == "" {
		return
	}
	s.Project = gitinfo.ProjectName(dir)
	s.Branch = gitinfo.Branch(dir)
	s.GitRemoteURL = gitinfo.RemoteURL(dir)
}

// applyUsage copies token counters from the hook payload, or aggregates
// them from the session's JSONL transcript when the payload has none.
func (m *Manager) applyUsage(s *session.State, p *hook.Payload) {
	if p.Usage != nil {
		s.Tokens = session.TokenUsage{
			Input:      p.Usage.Input,
			Output:     p.Usage.Output,
			CacheRead:  p.Usage.CacheRead,
			CacheWrite: p.Usage.CacheWrite,
		}
		return
	}
	if m.ConversationsDir == "" {
		return
	}
	path, err := session.FindTranscript(m.ConversationsDir, p.SessionID)
	if err != nil {
		slog.Debug("no transcript found", "session_id", p.SessionID, "error", err)
		return
	}
	data, err := session.ParseTranscript(path)
	if err != nil {
		slog.Debug("failed to parse transcript", "path", path, "error", err)
		return
	}
	s.Tokens = data.Tokens
	if s.Model == "" {
		s.Model = data.Model
	}
}

// maxDetailLen caps the activity detail so rendered lines stay well
// inside Discord's field limit.
const maxDetailLen = 40

// activityDetail derives a short human target from the tool input: file
// base names for file tools, the command word for shell runs, the host
// for fetches, the pattern for searches.
func activityDetail(kind session.ActivityKind, target string) string {
	if target == "" {
		return ""
	}
	switch kind {
	case session.KindEditing, session.KindWriting, session.KindReading:
		return trimDetail(filepath.Base(filepath.FromSlash(target)))
	case session.KindRunning:
		fields := strings.Fields(target)
		if len(fields) == 0 {
			return ""
		}
		return trimDetail(fields[0])
	case session.KindFetching:
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			return trimDetail(u.Host)
		}
		return ""
	case session.KindSearching, session.KindGrepping, session.KindResearching:
		return trimDetail(target)
	default:
		return ""
	}
}

// trimDetail truncates s to maxDetailLen runes with an ellipsis.
func trimDetail(s string) string {
	r := []rune(s)
	if len(r) <= maxDetailLen {
		return s
	}
	return string(r[:maxDetailLen-1]) + "…"
}
