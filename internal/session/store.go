package session

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"tools.zach/dev/codecord/internal/atomicfile"
	"tools.zach/dev/codecord/internal/lockfile"
	"tools.zach/dev/codecord/internal/paths"
)

// ///////////////////////////////////////////////
// Backend
// ///////////////////////////////////////////////

// Backend abstracts the persistence layer underneath [Store]. Names are
// bare file names within the data directory (e.g. "state.json"), never
// paths. Read returns an error satisfying errors.Is(err, fs.ErrNotExist)
// for missing entries.
type Backend interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Remove(name string) error
	// Lock acquires the store-wide mutual exclusion used for
	// read-modify-write sequences. The returned func releases it.
	Lock() (release func(), err error)
}

// FSBackend persists entries as files in a data directory, using atomic
// writes and an advisory lock file for cross-process exclusion.
type FSBackend struct {
	dir paths.DataDir
}

// NewFSBackend creates a filesystem backend rooted at the data directory,
// creating the directory if needed.
func NewFSBackend(dir paths.DataDir) (*FSBackend, error) {
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FSBackend{dir: dir}, nil
}

func (b *FSBackend) Read(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.dir.Root, name))
}

func (b *FSBackend) Write(name string, data []byte) error {
	return atomicfile.Write(filepath.Join(b.dir.Root, name), data, 0o600)
}

func (b *FSBackend) Remove(name string) error {
	err := os.Remove(filepath.Join(b.dir.Root, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *FSBackend) Lock() (func(), error) {
	return lockfile.Acquire(b.dir.Lock())
}

// MemBackend is an in-memory [Backend] for tests. It is safe for
// concurrent use within a single process.
type MemBackend struct {
	mu      sync.Mutex
	lockMu  sync.Mutex
	entries map[string][]byte
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{entries: make(map[string][]byte)}
}

func (b *MemBackend) Read(name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("mem: %s: %w", name, fs.ErrNotExist)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (b *MemBackend) Write(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.entries[name] = cp
	return nil
}

func (b *MemBackend) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, name)
	return nil
}

func (b *MemBackend) Lock() (func(), error) {
	b.lockMu.Lock()
	return b.lockMu.Unlock, nil
}

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store provides typed access to the session state document and the
// session reference count on top of a [Backend]. Writes replace the
// whole document; concurrent writers are serialized by [Backend.Lock]
// where mutation requires a read-modify-write cycle.
type Store struct {
	backend Backend
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// ReadState reads and decodes the current state document.
// A missing file yields a fresh state. A corrupted file is backed up to
// state.json.corrupted and replaced with a fresh state; the fresh state
// is returned together with an error describing the corruption.
func (st *Store) ReadState() (*State, error) {
	data, err := st.backend.Read(paths.StateFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	s, err := DecodeState(data)
	if err != nil {
		return st.recoverCorrupted(data, err)
	}
	return s, nil
}

// recoverCorrupted backs up a corrupted state document and installs a fresh one.
func (st *Store) recoverCorrupted(data []byte, parseErr error) (*State, error) {
	slog.Warn("corrupted state file, backing up", "error", parseErr)

	backupName := paths.StateFile + ".corrupted"
	if wErr := st.backend.Write(backupName, data); wErr != nil {
		slog.Warn("failed to write corruption backup", "name", backupName, "error", wErr)
	}

	fresh := NewState()
	if wErr := st.WriteState(fresh); wErr != nil {
		slog.Warn("failed to save fresh state", "error", wErr)
	}

	return fresh, fmt.Errorf("corrupted state file (backed up to %s): %w", backupName, parseErr)
}

// WriteState encodes and persists s, replacing the whole document.
func (st *Store) WriteState(s *State) error {
	s.Version = CurrentVersion
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	return st.backend.Write(paths.StateFile, data)
}

// UpdateState applies fn to the current state under the store lock and
// persists the result. The whole read-modify-write cycle is atomic with
// respect to other processes using the same backend.
func (st *Store) UpdateState(fn func(*State) error) (*State, error) {
	release, err := st.backend.Lock()
	if err != nil {
		return nil, fmt.Errorf("locking store: %w", err)
	}
	defer release()

	s, err := st.ReadState()
	if err != nil {
		// Corruption was already recovered; continue with the fresh state.
		slog.Warn("updating from recovered state", "error", err)
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := st.WriteState(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ClearState removes the state document and session count.
func (st *Store) ClearState() error {
	if err := st.backend.Remove(paths.StateFile); err != nil {
		return fmt.Errorf("removing state: %w", err)
	}
	if err := st.backend.Remove(paths.RefCountFile); err != nil {
		return fmt.Errorf("removing session count: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Session Counting
// ///////////////////////////////////////////////

// ReadSessionCount returns the number of live assistant sessions.
// Missing or unparseable files count as zero.
func (st *Store) ReadSessionCount() int {
	data, err := st.backend.Read(paths.RefCountFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read session count", "error", err)
		}
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		slog.Warn("invalid session count, treating as zero", "raw", string(data))
		return 0
	}
	return n
}

// writeSessionCount persists the session count.
func (st *Store) writeSessionCount(n int) error {
	return st.backend.Write(paths.RefCountFile, []byte(strconv.Itoa(n)))
}

// IncrementSessionCount bumps the session count by one under the store
// lock and returns the new value.
func (st *Store) IncrementSessionCount() (int, error) {
	release, err := st.backend.Lock()
	if err != nil {
		return 0, fmt.Errorf("locking store: %w", err)
	}
	defer release()

	n := st.ReadSessionCount() + 1
	if err := st.writeSessionCount(n); err != nil {
		return 0, err
	}
	return n, nil
}

// DecrementSessionCount lowers the session count by one under the store
// lock, clamping at zero, and returns the new value. Decrementing an
// already-zero count logs a warning; it happens when an end hook fires
// for a session whose start hook never ran.
func (st *Store) DecrementSessionCount() (int, error) {
	release, err := st.backend.Lock()
	if err != nil {
		return 0, fmt.Errorf("locking store: %w", err)
	}
	defer release()

	n := st.ReadSessionCount()
	if n == 0 {
		slog.Warn("session count already zero, ignoring decrement")
		return 0, st.writeSessionCount(0)
	}
	n--
	if err := st.writeSessionCount(n); err != nil {
		return 0, err
	}
	return n, nil
}
