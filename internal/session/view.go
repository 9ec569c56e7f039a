package session

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tools.zach/dev/codecord/internal/config"
	"tools.zach/dev/codecord/internal/discord"
)

// ///////////////////////////////////////////////
// View Cycle
// ///////////////////////////////////////////////

// View identifies which phase of the rotation the presence is showing.
type View int

const (
	// ViewSimple shows input + output tokens and their cost.
	ViewSimple View = iota
	// ViewCached shows the total across all four token classes and the
	// full cost including cache traffic.
	ViewCached
)

// CycleTiming holds the durations of the two rotating views.
type CycleTiming struct {
	// Simple is how long the simple view is shown per cycle.
	Simple time.Duration
	// Cached is how long the cached view is shown per cycle.
	// Zero disables the cached view entirely.
	Cached time.Duration
}

// ViewAt returns the view shown at the given instant. The rotation is
// derived from wall-clock seconds modulo the cycle length, so every
// observer (daemon ticks, status command) agrees on the current view
// without shared state.
func (c CycleTiming) ViewAt(now time.Time) View {
	simple := int64(c.Simple.Seconds())
	cached := int64(c.Cached.Seconds())
	if simple <= 0 || cached <= 0 {
		return ViewSimple
	}
	if now.Unix()%(simple+cached) < simple {
		return ViewSimple
	}
	return ViewCached
}

// ///////////////////////////////////////////////
// Render Config
// ///////////////////////////////////////////////

// RenderConfig captures the configuration fields needed for rendering a
// Discord Rich Presence activity. Fields are typically populated from
// the user's TOML configuration via [config.Config].
type RenderConfig struct {
	// DetailsFormat is the template for the details line
	// (e.g. "{activity} on {project} ({branch})").
	DetailsFormat string
	// DetailsNoBranchFormat is the details template used when the branch is empty.
	DetailsNoBranchFormat string
	// StateSimpleFormat is the state template for the simple view.
	StateSimpleFormat string
	// StateCachedFormat is the state template for the cached view.
	StateCachedFormat string

	// ModelFormat controls model name display: "short", "full", or "raw".
	ModelFormat string

	// LargeImage is the Discord asset key for the large activity image.
	LargeImage string
	// LargeText is the hover text for the large activity image.
	LargeText string
	// ShowModelIcon enables the small image overlay showing the model family icon.
	ShowModelIcon bool

	// ShowRepoButton enables a clickable button linking to the git remote URL.
	ShowRepoButton bool
	// RepoButtonLabel is the text displayed on the repository button.
	RepoButtonLabel string

	// IdleTimeout is the inactivity duration after which the activity
	// renders as idling. Zero disables idle detection.
	IdleTimeout time.Duration

	// Cycle controls the simple/cached view rotation.
	Cycle CycleTiming
}

// CostPair holds the dollar cost figure for each view.
type CostPair struct {
	// Simple is the cost of input + output tokens only.
	Simple float64
	// Full is the cost across all four token classes, shown in the
	// cached view.
	Full float64
}

// ///////////////////////////////////////////////
// Rendering
// ///////////////////////////////////////////////

// Render constructs a Discord activity from state at the given instant.
// Returns nil when the state carries no session, which clears the presence.
func Render(s *State, cfg RenderConfig, costs CostPair, now time.Time) *discord.Activity {
	if s == nil || s.SessionID == "" {
		return nil
	}

	kind := s.Activity
	detail := s.ActivityDetail
	if s.IdleSince(now, cfg.IdleTimeout) {
		kind = KindIdling
		detail = ""
	}

	activity := kind.Verb(detail)

	detailsTmpl := cfg.DetailsFormat
	if s.Branch == "" {
		detailsTmpl = cfg.DetailsNoBranchFormat
	}
	details := applyTemplate(detailsTmpl, templateVars{
		Activity: activity,
		Project:  s.Project,
		Branch:   s.Branch,
	})

	var stateTmpl string
	var tokens int64
	var cost float64
	switch cfg.Cycle.ViewAt(now) {
	case ViewCached:
		stateTmpl = cfg.StateCachedFormat
		tokens = s.Tokens.Total()
		cost = costs.Full
	default:
		stateTmpl = cfg.StateSimpleFormat
		tokens = s.Tokens.Simple()
		cost = costs.Simple
	}
	state := applyTemplate(stateTmpl, templateVars{
		Model:  config.FormatModelName(s.Model, cfg.ModelFormat),
		Tokens: FormatTokens(tokens),
		Cost:   FormatCost(cost),
	})

	a := &discord.Activity{
		Details: details,
		State:   state,
		Timestamps: &discord.Timestamps{
			Start: s.SessionStart,
		},
		Assets: &discord.Assets{
			LargeImage: cfg.LargeImage,
			LargeText:  cfg.LargeText,
		},
	}

	if cfg.ShowRepoButton && s.GitRemoteURL != "" {
		a.Buttons = append(a.Buttons, discord.Button{
			Label: cfg.RepoButtonLabel,
			URL:   s.GitRemoteURL,
		})
	}

	if cfg.ShowModelIcon && s.Model != "" {
		a.Assets.SmallImage = modelFamily(s.Model)
		a.Assets.SmallText = config.FormatModelName(s.Model, cfg.ModelFormat)
	}

	return a
}

// ///////////////////////////////////////////////
// Templating
// ///////////////////////////////////////////////

// templateVars holds the variables available in format strings. Each
// field maps to a {name} placeholder.
type templateVars struct {
	Activity string
	Project  string
	Branch   string
	Model    string
	Tokens   string
	Cost     string
}

// discordMaxLen is the maximum character length for Discord activity
// Details and State fields.
const discordMaxLen = 128

// applyTemplate renders a template string by replacing {name}
// placeholders with values from vars, truncated to Discord's limit.
func applyTemplate(tmpl string, vars templateVars) string {
	r := strings.NewReplacer(
		"{activity}", vars.Activity,
		"{project}", vars.Project,
		"{branch}", vars.Branch,
		"{model}", vars.Model,
		"{tokens}", vars.Tokens,
		"{cost}", vars.Cost,
	)
	s := r.Replace(tmpl)

	if runes := []rune(s); len(runes) > discordMaxLen {
		s = string(runes[:discordMaxLen-1]) + "…"
	}
	return s
}

// ///////////////////////////////////////////////
// Formatting
// ///////////////////////////////////////////////

// FormatTokens formats a token count in abbreviated lowercase form:
// 22900 -> "22.9k", 1200000 -> "1.2M", 500 -> "500".
func FormatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatCost formats a dollar amount rounded up to the next cent:
// 0.1725 -> "$0.18". Rounding up keeps the displayed figure honest as a
// running total that only ever grows.
func FormatCost(cost float64) string {
	cents := int64(math.Ceil(cost*100 - 1e-9))
	if cents < 0 {
		cents = 0
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// modelFamilies is the ordered list of known model family names, used as
// Discord asset keys for the small image.
var modelFamilies = []string{"opus", "sonnet", "haiku"}

// modelFamily derives the family name from a model ID by stripping the
// vendor prefix and matching against known families. Unknown models
// return "default".
func modelFamily(model string) string {
	stripped := strings.TrimPrefix(model, "claude-")
	for _, family := range modelFamilies {
		if strings.HasPrefix(stripped, family) {
			return family
		}
	}
	return "default"
}
