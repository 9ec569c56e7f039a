package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"

	rootpkg "tools.zach/dev/codecord"
	"tools.zach/dev/codecord/internal/config"
	"tools.zach/dev/codecord/internal/lifecycle"
	"tools.zach/dev/codecord/internal/logger"
	"tools.zach/dev/codecord/internal/paths"
	"tools.zach/dev/codecord/internal/session"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Root Command
// ///////////////////////////////////////////////

var flagDataDir string

var rootCmd = &cobra.Command{
	Use:   paths.BinaryName,
	Short: "Discord Rich Presence for your coding assistant",
	Long: "Codecord mirrors a coding assistant's activity (file action, project,\n" +
		"branch, model, token usage, cost) into Discord Rich Presence. Hook\n" +
		"commands are invoked by the assistant; a background daemon renders\n" +
		"the shared session state into presence updates.",
	SilenceUsage: true,
}

// Execute runs the command tree; it is the sole entry point from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", defaultDataDir(),
		"Data directory for config, state, and logs")
	rootCmd.Version = resolveVersion()
}

// defaultDataDir returns the platform default directory for codecord data,
// typically ~/.codecord. Falls back to ./.codecord if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Shared Bootstrap
// ///////////////////////////////////////////////

// env bundles the pieces every command needs: resolved paths, loaded
// config, the state store, and the lifecycle manager.
type env struct {
	dir     paths.DataDir
	cfg     *config.Config
	store   *session.Store
	manager *lifecycle.Manager

	logCloser io.Closer
}

// setupEnv prepares the data directory, seeds the default config on first
// run, loads config, and routes slog to the shared rotating log file.
// Callers must Close the returned env.
func setupEnv() (*env, error) {
	dir := paths.DataDir{Root: flagDataDir}
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(dir.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dir.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dir.Root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, logCloser, err := logger.NewLogger(dir.Log(), logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	backend, err := session.NewFSBackend(dir)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("init state backend: %w", err)
	}
	store := session.NewStore(backend)

	return &env{
		dir:       dir,
		cfg:       cfg,
		store:     store,
		manager:   lifecycle.NewManager(dir, store, cfg.ConversationsPath()),
		logCloser: logCloser,
	}, nil
}

func (e *env) Close() {
	if e.logCloser != nil {
		e.logCloser.Close()
	}
}
