// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile          = "daemon.pid"
	StateFile        = "state.json"
	RefCountFile     = "sessions.count"
	LockFile         = "state.lock"
	ConfigFile       = "config.toml"
	LogFile          = "daemon.log"
	PricingCacheFile = "pricing-cache.json"
)

// Binary and install constants.
const (
	BinaryName = "codecord"
	DataDirRel = ".codecord" // relative to $HOME
)

// Remote-fetched file paths (relative to repo root).
const (
	ReleaseManifest = ".release-manifest.json"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Default returns the data directory under the user's home directory
// (~/.codecord).
func Default() (DataDir, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{}, fmt.Errorf("resolving home directory: %w", err)
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}, nil
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// State returns the full path to the session state file.
func (d DataDir) State() string { return filepath.Join(d.Root, StateFile) }

// RefCount returns the full path to the session reference count file.
func (d DataDir) RefCount() string { return filepath.Join(d.Root, RefCountFile) }

// Lock returns the full path to the advisory lock file guarding state
// and reference count read-modify-write cycles.
func (d DataDir) Lock() string { return filepath.Join(d.Root, LockFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// PricingCache returns the full path to the pricing cache file.
func (d DataDir) PricingCache() string { return filepath.Join(d.Root, PricingCacheFile) }
