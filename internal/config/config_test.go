package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tools.zach/dev/codecord/internal/paths"
)

// ///////////////////////////////////////////////
// Defaults & Validation
// ///////////////////////////////////////////////

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig failed validation: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Discord.AppID == "" {
		t.Error("default Discord app ID is empty")
	}
	if cfg.Display.Cycle.SimpleSeconds != 5 || cfg.Display.Cycle.CachedSeconds != 3 {
		t.Errorf("default cycle = %+v, want 5s/3s", cfg.Display.Cycle)
	}
	if cfg.Behavior.IdleTimeoutSeconds != 300 {
		t.Errorf("default idle timeout = %d, want 300", cfg.Behavior.IdleTimeoutSeconds)
	}
	if cfg.Behavior.TickIntervalSeconds != 1 {
		t.Errorf("default tick interval = %d, want 1", cfg.Behavior.TickIntervalSeconds)
	}
	if cfg.Pricing.Source != "builtin" {
		t.Errorf("default pricing source = %q, want builtin", cfg.Pricing.Source)
	}
	if !strings.Contains(cfg.Display.StateSimple, "{tokens}") {
		t.Errorf("state_simple template missing {tokens}: %q", cfg.Display.StateSimple)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"zero tick interval", func(c *Config) { c.Behavior.TickIntervalSeconds = 0 }},
		{"negative idle timeout", func(c *Config) { c.Behavior.IdleTimeoutSeconds = -1 }},
		{"zero reconnect interval", func(c *Config) { c.Behavior.ReconnectIntervalSeconds = 0 }},
		{"zero simple seconds", func(c *Config) { c.Display.Cycle.SimpleSeconds = 0 }},
		{"negative cached seconds", func(c *Config) { c.Display.Cycle.CachedSeconds = -1 }},
		{"bad pricing source", func(c *Config) { c.Pricing.Source = "dns" }},
		{"bad pricing format", func(c *Config) { c.Pricing.Format = "openrouter" }},
		{"bad branch format", func(c *Config) { c.Display.Format.Branch = "maybe" }},
		{"bad model name format", func(c *Config) { c.Display.Format.ModelName = "fancy" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAllowsZeroCachedSeconds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display.Cycle.CachedSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("cached_seconds = 0 should validate: %v", err)
	}
}

// ///////////////////////////////////////////////
// Loading & Saving
// ///////////////////////////////////////////////

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.AppID != DefaultDiscordAppID {
		t.Errorf("AppID = %q, want default", cfg.Discord.AppID)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	body := `
version = 1

[behavior]
idle_timeout_seconds = 600
`
	if err := os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Behavior.IdleTimeoutSeconds != 600 {
		t.Errorf("idle timeout = %d, want 600", cfg.Behavior.IdleTimeoutSeconds)
	}
	// Untouched fields keep their defaults.
	if cfg.Display.Cycle.SimpleSeconds != 5 {
		t.Errorf("simple_seconds = %d, want default 5", cfg.Display.Cycle.SimpleSeconds)
	}
	if cfg.Behavior.TickIntervalSeconds != 1 {
		t.Errorf("tick interval = %d, want default 1", cfg.Behavior.TickIntervalSeconds)
	}
}

func TestLoadInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	body := `
version = 1

[log]
level = "chatty"
`
	if err := os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)

	cfg := DefaultConfig()
	cfg.Privacy.HideProjectName = true
	cfg.Privacy.HiddenProjectText = "something secret"
	cfg.Pricing.Models = map[string]PricingModelConfig{
		"my-model": {InputPerMTok: 2, OutputPerMTok: 8, CacheReadPerMTok: 0.2, CacheWritePerMTok: 2.5},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Privacy.HideProjectName || got.Privacy.HiddenProjectText != "something secret" {
		t.Errorf("privacy settings lost in round trip: %+v", got.Privacy)
	}
	if got.Pricing.Models["my-model"].CacheWritePerMTok != 2.5 {
		t.Errorf("pricing override lost in round trip: %+v", got.Pricing.Models)
	}
}

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"explicit version", "version = 3", 3},
		{"missing version", `[log]` + "\n" + `level = "info"`, 1},
		{"zero version", "version = 0", 1},
		{"invalid toml", "{{{{", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeekVersion([]byte(tt.body)); got != tt.want {
				t.Errorf("PeekVersion = %d, want %d", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Formatting Helpers
// ///////////////////////////////////////////////

func TestFormatModelName(t *testing.T) {
	tests := []struct {
		id     string
		format string
		want   string
	}{
		{"claude-opus-4-5", "short", "Opus 4.5"},
		{"claude-opus-4-5-20251101", "short", "Opus 4.5"},
		{"claude-sonnet-4-5", "short", "Sonnet 4.5"},
		{"claude-haiku-4-5-20251001", "short", "Haiku 4.5"},
		{"claude-opus-4-20250514", "short", "Opus 4"},
		{"claude-opus-4-5-20251101", "full", "Claude Opus 4.5"},
		{"claude-opus-4-5-20251101", "raw", "claude-opus-4-5-20251101"},
		{"gpt-4o", "short", "4o"},
	}

	for _, tt := range tests {
		if got := FormatModelName(tt.id, tt.format); got != tt.want {
			t.Errorf("FormatModelName(%q, %q) = %q, want %q", tt.id, tt.format, got, tt.want)
		}
	}
}

func TestConversationsPathExpandsTilde(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Behavior.ConversationsDir = "~/.claude/projects"

	got := cfg.ConversationsPath()
	if strings.HasPrefix(got, "~") {
		t.Errorf("tilde not expanded: %q", got)
	}
	if !strings.HasSuffix(got, filepath.Join(".claude", "projects")) {
		t.Errorf("ConversationsPath = %q", got)
	}
}

func TestConversationsPathAbsolutePassthrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Behavior.ConversationsDir = "/var/lib/transcripts"
	if got := cfg.ConversationsPath(); got != "/var/lib/transcripts" {
		t.Errorf("ConversationsPath = %q", got)
	}
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

func TestIsIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Privacy.Ignore = []string{"/home/zach/secret/*", "/work/**"}

	tests := []struct {
		cwd  string
		want bool
	}{
		{"/home/zach/secret/project", true},
		{"/work/a/b/c", true},
		{"/home/zach/public/project", false},
	}

	for _, tt := range tests {
		if got := cfg.IsIgnored(tt.cwd); got != tt.want {
			t.Errorf("IsIgnored(%q) = %v, want %v", tt.cwd, got, tt.want)
		}
	}
}

func TestProjectNameGlobalHide(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Privacy.HideProjectName = true
	cfg.Privacy.HiddenProjectText = "a project"

	if got := cfg.ProjectName("codecord", "/home/zach/codecord"); got != "a project" {
		t.Errorf("ProjectName = %q, want hidden text", got)
	}
}

func TestProjectNameOverrideWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Privacy.Overrides = []PrivacyOverride{
		{Pattern: "*/work/*", HideProjectName: true, HiddenText: "a work project"},
	}

	if got := cfg.ProjectName("internal-tool", "/home/zach/work/internal-tool"); got != "a work project" {
		t.Errorf("ProjectName override = %q", got)
	}
	if got := cfg.ProjectName("codecord", "/home/zach/oss/codecord"); got != "codecord" {
		t.Errorf("ProjectName non-matching = %q", got)
	}
}

func TestFormatBranch(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		showBranch bool
		branch     string
		want       string
	}{
		{"show", "show", true, "feature/x", "feature/x"},
		{"hide", "hide", true, "feature/x", ""},
		{"hide_default hides main", "hide_default", true, "main", ""},
		{"hide_default keeps feature", "hide_default", true, "feature/x", "feature/x"},
		{"show_branch off wins", "show", false, "feature/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Display.Format.Branch = tt.mode
			cfg.Behavior.ShowBranch = tt.showBranch
			if got := cfg.FormatBranch(tt.branch); got != tt.want {
				t.Errorf("FormatBranch(%q) = %q, want %q", tt.branch, got, tt.want)
			}
		})
	}
}
