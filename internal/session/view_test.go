package session

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"tools.zach/dev/codecord/internal/discord"
)

// testRenderConfig returns a RenderConfig matching the shipped defaults.
func testRenderConfig() RenderConfig {
	return RenderConfig{
		DetailsFormat:         "{activity} on {project} ({branch})",
		DetailsNoBranchFormat: "{activity} on {project}",
		StateSimpleFormat:     "{model} • {tokens} tokens • {cost}",
		StateCachedFormat:     "{model} • {tokens} cached • {cost}",
		ModelFormat:           "short",
		LargeImage:            "app_icon",
		LargeText:             "Codecord",
		ShowModelIcon:         true,
		ShowRepoButton:        true,
		RepoButtonLabel:       "View Repository",
		IdleTimeout:           300 * time.Second,
		Cycle: CycleTiming{
			Simple: 5 * time.Second,
			Cached: 3 * time.Second,
		},
	}
}

func testState() *State {
	s := NewState()
	s.SessionID = "abc-123"
	s.SessionStart = 1000
	s.LastActivity = 2000
	s.Project = "codecord"
	s.Branch = "main"
	s.CWD = "/home/zach/codecord"
	s.GitRemoteURL = "https://github.com/zach/codecord"
	s.Model = "claude-opus-4-5-20251101"
	s.Activity = KindEditing
	s.ActivityDetail = "view.go"
	s.Tokens = TokenUsage{Input: 10_000, Output: 12_900, CacheRead: 100_000, CacheWrite: 8_000}
	return s
}

// ///////////////////////////////////////////////
// View Cycle
// ///////////////////////////////////////////////

func TestViewAtCycle(t *testing.T) {
	c := CycleTiming{Simple: 5 * time.Second, Cached: 3 * time.Second}

	tests := []struct {
		unix int64
		want View
	}{
		{0, ViewSimple},
		{4, ViewSimple},
		{5, ViewCached},
		{7, ViewCached},
		{8, ViewSimple},
		{12, ViewSimple},
		{13, ViewCached},
		{16, ViewSimple},
	}

	for _, tt := range tests {
		if got := c.ViewAt(time.Unix(tt.unix, 0)); got != tt.want {
			t.Errorf("ViewAt(%d) = %v, want %v", tt.unix, got, tt.want)
		}
	}
}

func TestViewAtZeroCachedAlwaysSimple(t *testing.T) {
	c := CycleTiming{Simple: 5 * time.Second}
	for unix := int64(0); unix < 20; unix++ {
		if got := c.ViewAt(time.Unix(unix, 0)); got != ViewSimple {
			t.Fatalf("ViewAt(%d) = %v, want ViewSimple", unix, got)
		}
	}
}

// ///////////////////////////////////////////////
// Formatting
// ///////////////////////////////////////////////

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		tokens int64
		want   string
	}{
		{0, "0"},
		{500, "500"},
		{999, "999"},
		{1000, "1.0k"},
		{22_900, "22.9k"},
		{999_949, "999.9k"},
		{1_200_000, "1.2M"},
		{15_000_000, "15.0M"},
	}

	for _, tt := range tests {
		if got := FormatTokens(tt.tokens); got != tt.want {
			t.Errorf("FormatTokens(%d) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestFormatCostRoundsUpToCent(t *testing.T) {
	tests := []struct {
		cost float64
		want string
	}{
		{0, "$0.00"},
		{0.1725, "$0.18"},
		{0.17, "$0.17"},
		{0.171, "$0.18"},
		{1.999, "$2.00"},
		{2, "$2.00"},
		{12.3456, "$12.35"},
	}

	for _, tt := range tests {
		if got := FormatCost(tt.cost); got != tt.want {
			t.Errorf("FormatCost(%v) = %q, want %q", tt.cost, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// Rendering
// ///////////////////////////////////////////////

func TestRenderSimpleView(t *testing.T) {
	// Unix 2001 % 8 = 1 < 5, so the simple view is active.
	now := time.Unix(2001, 0)
	a := Render(testState(), testRenderConfig(), CostPair{Simple: 0.1725, Full: 0.2725}, now)
	if a == nil {
		t.Fatal("Render returned nil")
	}

	if a.Details != "Editing view.go on codecord (main)" {
		t.Errorf("Details = %q", a.Details)
	}
	if a.State != "Opus 4.5 • 22.9k tokens • $0.18" {
		t.Errorf("State = %q", a.State)
	}
	if a.Timestamps.Start != 1000 {
		t.Errorf("Timestamps.Start = %d", a.Timestamps.Start)
	}
}

func TestRenderCachedView(t *testing.T) {
	// Unix 2006 % 8 = 6 >= 5, so the cached view is active.
	now := time.Unix(2006, 0)
	a := Render(testState(), testRenderConfig(), CostPair{Simple: 0.1725, Full: 0.2725}, now)
	if a == nil {
		t.Fatal("Render returned nil")
	}

	// All four token classes: 10,000 + 12,900 + 100,000 + 8,000.
	if a.State != "Opus 4.5 • 130.9k cached • $0.28" {
		t.Errorf("State = %q", a.State)
	}
}

func TestRenderIdleSubstitution(t *testing.T) {
	s := testState()
	s.LastActivity = 2000
	// 400 seconds past last activity, beyond the 300s timeout.
	// Unix 2400 % 8 = 0, simple view.
	now := time.Unix(2400, 0)

	a := Render(s, testRenderConfig(), CostPair{Simple: 0.1725}, now)
	if a == nil {
		t.Fatal("Render returned nil")
	}
	if a.Details != "Idling on codecord (main)" {
		t.Errorf("Details = %q", a.Details)
	}
	// The session timer keeps running from the original start.
	if a.Timestamps.Start != 1000 {
		t.Errorf("Timestamps.Start = %d", a.Timestamps.Start)
	}
	// Token and cost display stays intact while idling.
	if !strings.Contains(a.State, "22.9k tokens") {
		t.Errorf("State = %q", a.State)
	}
}

func TestRenderNoBranch(t *testing.T) {
	s := testState()
	s.Branch = ""
	a := Render(s, testRenderConfig(), CostPair{}, time.Unix(2001, 0))
	if a.Details != "Editing view.go on codecord" {
		t.Errorf("Details = %q", a.Details)
	}
}

func TestRenderNoSessionClearsPresence(t *testing.T) {
	if a := Render(NewState(), testRenderConfig(), CostPair{}, time.Now()); a != nil {
		t.Errorf("expected nil activity for empty state, got %+v", a)
	}
	if a := Render(nil, testRenderConfig(), CostPair{}, time.Now()); a != nil {
		t.Errorf("expected nil activity for nil state, got %+v", a)
	}
}

func TestRenderRepoButton(t *testing.T) {
	a := Render(testState(), testRenderConfig(), CostPair{}, time.Unix(2001, 0))
	if len(a.Buttons) != 1 {
		t.Fatalf("Buttons = %+v", a.Buttons)
	}
	if a.Buttons[0].Label != "View Repository" || a.Buttons[0].URL != "https://github.com/zach/codecord" {
		t.Errorf("Button = %+v", a.Buttons[0])
	}

	s := testState()
	s.GitRemoteURL = ""
	a = Render(s, testRenderConfig(), CostPair{}, time.Unix(2001, 0))
	if len(a.Buttons) != 0 {
		t.Errorf("expected no buttons without remote, got %+v", a.Buttons)
	}
}

func TestRenderModelIcon(t *testing.T) {
	a := Render(testState(), testRenderConfig(), CostPair{}, time.Unix(2001, 0))
	if a.Assets.SmallImage != "opus" {
		t.Errorf("SmallImage = %q", a.Assets.SmallImage)
	}
	if a.Assets.SmallText != "Opus 4.5" {
		t.Errorf("SmallText = %q", a.Assets.SmallText)
	}

	cfg := testRenderConfig()
	cfg.ShowModelIcon = false
	a = Render(testState(), cfg, CostPair{}, time.Unix(2001, 0))
	if a.Assets.SmallImage != "" {
		t.Errorf("SmallImage with icon disabled = %q", a.Assets.SmallImage)
	}
}

func TestRenderTruncatesLongLines(t *testing.T) {
	s := testState()
	s.Project = strings.Repeat("x", 200)
	a := Render(s, testRenderConfig(), CostPair{}, time.Unix(2001, 0))
	if got := len([]rune(a.Details)); got > discordMaxLen {
		t.Errorf("Details rune length = %d, want <= %d", got, discordMaxLen)
	}
	if !strings.HasSuffix(a.Details, "…") {
		t.Errorf("truncated line missing ellipsis: %q", a.Details)
	}
}

func TestRenderTruncationKeepsValidUTF8(t *testing.T) {
	s := testState()
	// Multi-byte project name straddling the cut point must not be
	// split mid-rune.
	s.Project = strings.Repeat("é", 200)
	a := Render(s, testRenderConfig(), CostPair{}, time.Unix(2001, 0))
	if !utf8.ValidString(a.Details) {
		t.Errorf("Details is not valid UTF-8: %q", a.Details)
	}
	if got := len([]rune(a.Details)); got != discordMaxLen {
		t.Errorf("Details rune length = %d, want %d", got, discordMaxLen)
	}
}

func TestModelFamily(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-opus-4-5-20251101", "opus"},
		{"claude-sonnet-4-5", "sonnet"},
		{"claude-haiku-4-5", "haiku"},
		{"gpt-4o", "default"},
		{"", "default"},
	}

	for _, tt := range tests {
		if got := modelFamily(tt.model); got != tt.want {
			t.Errorf("modelFamily(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestActivityHash(t *testing.T) {
	a1 := Render(testState(), testRenderConfig(), CostPair{Simple: 0.1725}, time.Unix(2001, 0))
	a2 := Render(testState(), testRenderConfig(), CostPair{Simple: 0.1725}, time.Unix(2002, 0))
	if a1.Hash() != a2.Hash() {
		t.Error("identical activities should hash equal")
	}

	s := testState()
	s.Tokens.Input += 1000
	a3 := Render(s, testRenderConfig(), CostPair{Simple: 0.1725}, time.Unix(2001, 0))
	if a1.Hash() == a3.Hash() {
		t.Error("different activities should hash differently")
	}

	var nilActivity *discord.Activity
	if nilActivity.Hash() != "" {
		t.Error("nil activity should hash to empty string")
	}
}
