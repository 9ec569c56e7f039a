// Package config provides configuration loading and defaults for the Codecord daemon.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package handles Discord presence settings, display formatting,
// privacy controls, and daemon behavior with sensible defaults.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/codecord/internal/atomicfile"
	"tools.zach/dev/codecord/internal/migrate"
	"tools.zach/dev/codecord/internal/paths"
)

// DefaultDiscordAppID is the official Codecord Discord application ID.
const DefaultDiscordAppID = "1472319454909173911"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Discord holds Discord connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Display holds presence display settings.
	Display DisplayConfig `toml:"display"`
	// Privacy holds privacy and project-hiding settings.
	Privacy PrivacyConfig `toml:"privacy"`
	// Behavior holds daemon behavior and idle settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Pricing holds model pricing data source settings.
	Pricing PricingConfig `toml:"pricing"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the Discord application ID for Rich Presence.
	AppID string `toml:"app_id"`
}

// DisplayConfig holds presence display settings.
type DisplayConfig struct {
	// Details is the format string for the top line (supports {activity}, {project}, {branch}).
	Details string `toml:"details"`
	// DetailsNoBranch is the details template used when no git branch is available.
	DetailsNoBranch string `toml:"details_no_branch"`
	// StateSimple is the state template for the simple view (supports {model}, {tokens}, {cost}).
	StateSimple string `toml:"state_simple"`
	// StateCached is the state template for the cached view.
	StateCached string `toml:"state_cached"`
	// Assets holds Discord Rich Presence asset settings.
	Assets AssetsConfig `toml:"assets"`
	// Buttons holds Discord Rich Presence button settings.
	Buttons ButtonsConfig `toml:"buttons"`
	// Format holds formatting preferences for model names and branches.
	Format FormatConfig `toml:"format"`
	// Cycle holds the view rotation durations.
	Cycle CycleConfig `toml:"cycle"`
}

// AssetsConfig holds Discord Rich Presence asset settings.
type AssetsConfig struct {
	// LargeImage is the key for the large image asset in Discord.
	LargeImage string `toml:"large_image"`
	// LargeText is the tooltip text for the large image.
	LargeText string `toml:"large_text"`
	// ShowModelIcon enables the small image overlay showing the active model family.
	ShowModelIcon bool `toml:"show_model_icon"`
}

// ButtonsConfig holds Discord Rich Presence button settings.
type ButtonsConfig struct {
	// ShowRepoButton enables the auto-detected repository button.
	ShowRepoButton bool `toml:"show_repo_button"`
	// RepoButtonLabel is the label text for the repository button.
	RepoButtonLabel string `toml:"repo_button_label"`
}

// FormatConfig holds formatting preferences for model names and branches.
type FormatConfig struct {
	// ModelName controls model name formatting: "short", "full", or "raw".
	ModelName string `toml:"model_name"`
	// Branch controls branch display: "show", "hide", or "hide_default".
	Branch string `toml:"branch"`
	// DefaultBranches lists branches hidden when Branch is "hide_default".
	DefaultBranches []string `toml:"default_branches"`
}

// CycleConfig holds the durations of the two rotating presence views.
type CycleConfig struct {
	// SimpleSeconds is how long the simple view (input+output tokens) is shown.
	SimpleSeconds int `toml:"simple_seconds"`
	// CachedSeconds is how long the cached view (total usage including cache traffic) is shown.
	CachedSeconds int `toml:"cached_seconds"`
}

// PrivacyOverride applies privacy settings to projects matching a glob pattern.
type PrivacyOverride struct {
	// Pattern is a glob pattern matched against the project's working directory.
	Pattern string `toml:"pattern"`
	// HideProjectName replaces the project name with HiddenText when true.
	HideProjectName bool `toml:"hide_project_name"`
	// HiddenText is the replacement text shown when HideProjectName is true.
	HiddenText string `toml:"hidden_text"`
}

// PrivacyConfig holds privacy settings for hiding project names and suppressing presence.
type PrivacyConfig struct {
	// HideProjectName replaces all project names with HiddenProjectText.
	HideProjectName bool `toml:"hide_project_name"`
	// HiddenProjectText is the generic text shown when HideProjectName is true.
	HiddenProjectText string `toml:"hidden_project_text"`
	// Ignore is a list of glob patterns for directories where presence is suppressed.
	Ignore []string `toml:"ignore"`
	// Overrides provides per-project privacy settings matched by glob pattern.
	Overrides []PrivacyOverride `toml:"overrides"`
}

// BehaviorConfig holds daemon behavior settings.
type BehaviorConfig struct {
	// TickIntervalSeconds is how often the daemon re-evaluates the presence.
	TickIntervalSeconds int `toml:"tick_interval_seconds"`
	// IdleTimeoutSeconds is the inactivity duration before the activity shows as idling.
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`
	// ReconnectIntervalSeconds is the Discord reconnect interval.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// ConversationsDir is where the assistant writes conversation transcripts,
	// used to aggregate token usage. Supports a leading ~.
	ConversationsDir string `toml:"conversations_dir"`
	// ShowBranch enables git branch display in the details line.
	ShowBranch bool `toml:"show_branch"`
}

// PricingConfig holds settings for where and how pricing data is loaded.
type PricingConfig struct {
	// Source selects the pricing data source: "builtin", "url", or "file".
	Source string `toml:"source"`
	// Format selects the response parser: "litellm" or "codecord".
	Format string `toml:"format"`
	// URL is a custom pricing endpoint (overrides the format's default URL).
	URL string `toml:"url,omitempty"`
	// File is the local file path for source "file".
	File string `toml:"file,omitempty"`
	// Models holds inline per-model rate overrides in dollars per million tokens.
	Models map[string]PricingModelConfig `toml:"models,omitempty"`
}

// PricingModelConfig holds per-model rates in dollars per million tokens.
type PricingModelConfig struct {
	// InputPerMTok is the cost per million input tokens in USD.
	InputPerMTok float64 `toml:"input_per_mtok"`
	// OutputPerMTok is the cost per million output tokens in USD.
	OutputPerMTok float64 `toml:"output_per_mtok"`
	// CacheReadPerMTok is the cost per million cache-read tokens in USD.
	CacheReadPerMTok float64 `toml:"cache_read_per_mtok"`
	// CacheWritePerMTok is the cost per million cache-write tokens in USD.
	CacheWritePerMTok float64 `toml:"cache_write_per_mtok"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Discord: DiscordConfig{
			AppID: DefaultDiscordAppID,
		},
		Display: DisplayConfig{
			Details:         "{activity} on {project} ({branch})",
			DetailsNoBranch: "{activity} on {project}",
			StateSimple:     "{model} • {tokens} tokens • {cost}",
			StateCached:     "{model} • {tokens} cached • {cost}",
			Assets: AssetsConfig{
				LargeImage:    "app_icon",
				LargeText:     "Codecord",
				ShowModelIcon: true,
			},
			Buttons: ButtonsConfig{
				ShowRepoButton:  true,
				RepoButtonLabel: "View Repository",
			},
			Format: FormatConfig{
				ModelName:       "short",
				Branch:          "show",
				DefaultBranches: []string{"main", "master"},
			},
			Cycle: CycleConfig{
				SimpleSeconds: 5,
				CachedSeconds: 3,
			},
		},
		Privacy: PrivacyConfig{
			HideProjectName:   false,
			HiddenProjectText: "a project",
			Ignore:            []string{},
		},
		Behavior: BehaviorConfig{
			TickIntervalSeconds:      1,
			IdleTimeoutSeconds:       300,
			ReconnectIntervalSeconds: 15,
			ConversationsDir:         "~/.claude/projects",
			ShowBranch:               true,
		},
		Pricing: PricingConfig{
			Source: "builtin",
			Format: "codecord",
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating config.default.toml.
// For this project all defaults are good examples.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	// Apply migrations if needed
	shouldMigrate := version != migrate.Config.CurrentVersion
	if shouldMigrate {
		// Write backup before migration
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	// Auto-apply dev transforms
	if migrate.Config.HasDev() {
		var devErr error
		data, devErr = migrate.Config.RunDev(data)
		if devErr != nil {
			return nil, fmt.Errorf("apply dev transforms: %w", devErr)
		}
		shouldMigrate = true
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Re-save after migration
	if shouldMigrate {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Behavior.TickIntervalSeconds <= 0 {
		return fmt.Errorf("tick_interval_seconds must be > 0, got %d", c.Behavior.TickIntervalSeconds)
	}

	if c.Behavior.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("idle_timeout_seconds must be >= 0, got %d", c.Behavior.IdleTimeoutSeconds)
	}

	if c.Behavior.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be > 0, got %d", c.Behavior.ReconnectIntervalSeconds)
	}

	if c.Display.Cycle.SimpleSeconds <= 0 {
		return fmt.Errorf("cycle.simple_seconds must be > 0, got %d", c.Display.Cycle.SimpleSeconds)
	}

	if c.Display.Cycle.CachedSeconds < 0 {
		return fmt.Errorf("cycle.cached_seconds must be >= 0, got %d", c.Display.Cycle.CachedSeconds)
	}

	switch c.Pricing.Source {
	case "builtin", "url", "file":
	default:
		return fmt.Errorf("invalid pricing.source %q: must be builtin, url, or file", c.Pricing.Source)
	}

	switch c.Pricing.Format {
	case "litellm", "codecord":
	default:
		return fmt.Errorf("invalid pricing.format %q: must be litellm or codecord", c.Pricing.Format)
	}

	switch c.Display.Format.Branch {
	case "show", "hide", "hide_default":
	default:
		return fmt.Errorf("invalid format.branch %q: must be show, hide, or hide_default", c.Display.Format.Branch)
	}

	switch c.Display.Format.ModelName {
	case "short", "full", "raw":
	default:
		return fmt.Errorf("invalid format.model_name %q: must be short, full, or raw", c.Display.Format.ModelName)
	}

	return nil
}

// ///////////////////////////////////////////////
// Formatting Helpers
// ///////////////////////////////////////////////

// ConversationsPath expands the configured conversations directory,
// resolving a leading ~ against the user's home directory.
func (c *Config) ConversationsPath() string {
	dir := c.Behavior.ConversationsDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return dir
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/"))
	}
	return dir
}

// dateSegmentRegex matches a trailing release-date segment in full model
// IDs, e.g. the "-20251101" in "claude-opus-4-5-20251101".
var dateSegmentRegex = regexp.MustCompile(`-\d{8}$`)

// FormatModelName formats a model ID according to the given style.
func FormatModelName(modelID, format string) string {
	switch format {
	case "raw":
		return modelID
	case "full":
		return formatModelFull(modelID)
	default: // "short"
		return formatModelShort(modelID)
	}
}

// FormatModelName is a convenience method that calls the package-level
// [FormatModelName] with the receiver's configured model name format.
func (c *Config) FormatModelName(modelID string) string {
	return FormatModelName(modelID, c.Display.Format.ModelName)
}

// formatModelShort strips the release date and known family prefixes,
// title-cases words, and normalizes version separators.
// "claude-opus-4-5-20251101" -> "Opus 4.5", "gpt-4o" -> "4o"
func formatModelShort(id string) string {
	name := dateSegmentRegex.ReplaceAllString(id, "")
	for _, prefix := range []string{"claude-", "gpt-", "gemini-", "o1-", "o3-"} {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	return titleCaseModel(name)
}

// formatModelFull strips the release date and title-cases the full model name.
// "claude-opus-4-5-20251101" -> "Claude Opus 4.5"
func formatModelFull(id string) string {
	return titleCaseModel(dateSegmentRegex.ReplaceAllString(id, ""))
}

// titleCaseModel converts a hyphenated model ID into a display name.
// Hyphens between digits become dots (version separator), others become spaces.
func titleCaseModel(s string) string {
	parts := strings.Split(s, "-")
	var result []string
	for i, p := range parts {
		if p == "" {
			continue
		}
		// If this part and the previous part are both numeric, join with dot
		if i > 0 && isNumeric(parts[i-1]) && isNumeric(p) {
			last := result[len(result)-1]
			result[len(result)-1] = last + "." + p
			continue
		}
		// Title case the first letter
		result = append(result, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(result, " ")
}

// isNumeric reports whether s consists entirely of ASCII digits.
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// IsIgnored reports whether cwd matches any of the configured ignore patterns.
func (c *Config) IsIgnored(cwd string) bool {
	for _, pattern := range c.Privacy.Ignore {
		matched, err := doublestar.Match(pattern, cwd)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ProjectName returns the display name for a project, respecting privacy settings.
// Per-project overrides are checked first, then the global setting.
func (c *Config) ProjectName(realName, cwd string) string {
	for _, o := range c.Privacy.Overrides {
		matched, err := doublestar.Match(o.Pattern, cwd)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", o.Pattern, "error", err)
			continue
		}
		if matched && o.HideProjectName {
			return o.HiddenText
		}
	}
	if c.Privacy.HideProjectName {
		return c.Privacy.HiddenProjectText
	}
	return realName
}

// FormatBranch applies the configured branch display format.
// Returns empty string when the branch should be hidden (triggering details_no_branch template).
func (c *Config) FormatBranch(branch string) string {
	if !c.Behavior.ShowBranch {
		return ""
	}
	switch c.Display.Format.Branch {
	case "hide":
		return ""
	case "hide_default":
		for _, def := range c.Display.Format.DefaultBranches {
			if branch == def {
				return ""
			}
		}
		return branch
	default: // "show"
		return branch
	}
}
