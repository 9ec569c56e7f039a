package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "display.format.model_name")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.app_id": {
		Comment: "Application ID for Discord Rich Presence.\nOverride with your own Discord app if you want custom images.",
	},

	// ── Display ──────────────────────────────────────────────────
	"display.details": {
		Comment: "Format strings for the presence card.\nAvailable variables: {activity}, {project}, {branch}, {model}, {tokens}, {cost}\n\ndetails = top line, state_simple/state_cached = bottom line",
	},
	"display.details_no_branch": {
		Comment: "What to show when there's no git branch",
	},
	"display.state_simple": {
		Comment: "Bottom line during the simple phase of the cycle ({tokens} = input + output)",
	},
	"display.state_cached": {
		Comment: "Bottom line during the cached phase ({tokens} = all classes including cache reads/writes)",
	},

	// ── Assets ───────────────────────────────────────────────────
	"display.assets.large_image": {
		Comment: "Discord image keys (must match assets uploaded to your Discord app)",
	},
	"display.assets.large_text": {},
	"display.assets.show_model_icon": {
		Comment: "Small image shows the active model family.\nUpload icons named \"opus\", \"sonnet\", \"haiku\" to your Discord app's Rich Presence assets.\nThe daemon automatically sets small_image based on the current model.\nSet to false to disable the small image overlay entirely.",
	},

	// ── Buttons ──────────────────────────────────────────────────
	"display.buttons.show_repo_button": {
		Comment: "Auto-detect git remote URL and show a \"View Repository\" button on the card.\nOnly works when the project CWD has a git remote configured.",
	},
	"display.buttons.repo_button_label": {},

	// ── Format ───────────────────────────────────────────────────
	"display.format.model_name": {
		Comment: "How to format the model name. Options: \"short\", \"full\", \"raw\"\n  short: \"Opus 4.5\"  (strip \"claude-\" prefix and release date, title case)\n  full:  \"Claude Opus 4.5\"\n  raw:   \"claude-opus-4-5-20251101\"  (exact model ID)",
		Alternatives: []string{
			`model_name = "full"`,
			`model_name = "raw"`,
		},
	},
	"display.format.branch": {
		Comment: "Branch display format. Options: \"show\", \"hide\", \"hide_default\"\n  show: show branch name as-is\n  hide: never show branch\n  hide_default: hide branches listed in default_branches",
		Alternatives: []string{
			`branch = "hide"`,
			`branch = "hide_default"`,
		},
	},
	"display.format.default_branches": {
		Comment: "Branches hidden when branch format is \"hide_default\".",
	},

	// ── Cycle ────────────────────────────────────────────────────
	"display.cycle.simple_seconds": {
		Comment: "The bottom line rotates between two views on a fixed cycle:\nsimple (input + output tokens) and cached (all classes including cache traffic).\nsimple_seconds + cached_seconds is the full cycle length.\nSet cached_seconds = 0 to always show the simple view.",
	},
	"display.cycle.cached_seconds": {},

	// ── Privacy ──────────────────────────────────────────────────
	"privacy.hide_project_name": {
		Comment: "Replace project name with generic text in the presence card.",
	},
	"privacy.hidden_project_text": {
		Comment: "Text shown instead of the real project name when hide_project_name is true.",
	},
	"privacy.ignore": {
		Comment: "Directories to completely ignore — no presence shown when working in these.\nAbsolute paths. Glob patterns supported.",
		Alternatives: []string{
			`ignore = [`,
			`  "/home/zach/work/secret-project",`,
			`  "/home/zach/company/*",`,
			`]`,
		},
	},
	"privacy.overrides": {
		Comment: "Per-project privacy overrides. Each entry matches a glob pattern against the CWD.\n[[privacy.overrides]]\npattern = \"*/work/*\"\nhide_project_name = true\nhidden_text = \"a work project\"",
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.tick_interval_seconds": {
		Comment: "How often the daemon re-evaluates the presence (seconds).",
	},
	"behavior.idle_timeout_seconds": {
		Comment: "Seconds of inactivity before the activity line shows as idling.\nThe session timer keeps running; presence resumes on the next hook fire.",
	},
	"behavior.reconnect_interval_seconds": {
		Comment: "Discord reconnect interval (seconds)",
	},
	"behavior.conversations_dir": {
		Comment: "Where the assistant writes conversation transcripts (JSONL files).\nUsed to aggregate token usage per session. Supports a leading ~.",
	},
	"behavior.show_branch": {
		Comment: "Show git branch in details line",
	},

	// ── Pricing ─────────────────────────────────────────────────
	"pricing.source": {
		Comment: "Where to get model pricing data. Options: \"builtin\", \"url\", \"file\"\n  builtin: static table shipped with the binary (default)\n  url: fetch from a remote endpoint\n  file: read from a local JSON file",
		Alternatives: []string{
			`source = "url"`,
			`source = "file"`,
		},
	},
	"pricing.format": {
		Comment: "How to parse the pricing data. Options: \"litellm\", \"codecord\"\nlitellm has a default URL when source = \"url\":\n  litellm  -> https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json\n  codecord -> (no default, url or file required)",
		Alternatives: []string{
			`format = "litellm"`,
		},
	},
	"pricing.url": {
		Comment: "Custom URL (overrides the format's default URL).",
		Alternatives: []string{
			`url = "https://my-proxy.internal/pricing.json"`,
		},
	},
	"pricing.file": {
		Comment: "Local file path (for source = \"file\").",
		Alternatives: []string{
			`file = "/path/to/pricing.json"`,
		},
	},
	"pricing.models": {
		Comment: "Per-model rate overrides in dollars per million tokens.\nApplied on top of whatever the source provides.\n[pricing.models.claude-opus-4-5]\ninput_per_mtok = 5.0\noutput_per_mtok = 25.0\ncache_read_per_mtok = 0.5\ncache_write_per_mtok = 6.25",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "warn"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},
}
