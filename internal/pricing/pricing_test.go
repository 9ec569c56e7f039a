package pricing

import (
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ///////////////////////////////////////////////
// RateFor
// ///////////////////////////////////////////////

func TestRateForExactMatch(t *testing.T) {
	tbl := Builtin()
	r := tbl.RateFor("claude-opus-4-5")
	if r.InputPerMTok != 5 || r.OutputPerMTok != 25 {
		t.Errorf("opus-4-5 rate = %+v", r)
	}
	if r.CacheReadPerMTok != 0.50 || r.CacheWritePerMTok != 6.25 {
		t.Errorf("opus-4-5 cache rates = %+v", r)
	}
}

func TestRateForStripsDateSuffix(t *testing.T) {
	tbl := Builtin()
	r := tbl.RateFor("claude-opus-4-5-20251101")
	if r.InputPerMTok != 5 {
		t.Errorf("dated model ID should resolve to base rate, got %+v", r)
	}
}

func TestRateForPrefixMatch(t *testing.T) {
	tbl := &Table{Models: map[string]Rate{
		"claude-opus":     {InputPerMTok: 1},
		"claude-opus-4-5": {InputPerMTok: 5},
	}}
	// Longest matching prefix wins.
	r := tbl.RateFor("claude-opus-4-5-experimental")
	if r.InputPerMTok != 5 {
		t.Errorf("prefix match = %+v, want longest key", r)
	}
}

func TestRateForOpus4NotShadowedByOpus45(t *testing.T) {
	tbl := Builtin()
	r := tbl.RateFor("claude-opus-4-20250514")
	if r.InputPerMTok != 15 {
		t.Errorf("claude-opus-4 rate = %+v, want input 15", r)
	}
}

func TestRateForUnknownModel(t *testing.T) {
	tbl := Builtin()
	r := tbl.RateFor("totally-unknown-model")
	if !r.IsZero() {
		t.Errorf("unknown model rate = %+v, want zero", r)
	}
}

func TestRateForNilTable(t *testing.T) {
	var tbl *Table
	if r := tbl.RateFor("claude-opus-4-5"); !r.IsZero() {
		t.Errorf("nil table rate = %+v, want zero", r)
	}
}

// ///////////////////////////////////////////////
// Cost
// ///////////////////////////////////////////////

func TestSimpleCost(t *testing.T) {
	tbl := Builtin()
	// 10,000 input at $5/MTok + 4,900 output at $25/MTok = $0.1725.
	got := tbl.SimpleCost("claude-opus-4-5", 10_000, 4_900)
	if !almostEqual(got, 0.1725) {
		t.Errorf("SimpleCost = %v, want 0.1725", got)
	}
}

func TestCostIncludesCacheTraffic(t *testing.T) {
	tbl := Builtin()
	// Simple portion 0.1725, plus 100k cache reads at $0.50/MTok = 0.05
	// and 8k cache writes at $6.25/MTok = 0.05.
	got := tbl.Cost("claude-opus-4-5", 10_000, 4_900, 100_000, 8_000)
	if !almostEqual(got, 0.2725) {
		t.Errorf("Cost = %v, want 0.2725", got)
	}
}

func TestCostUnknownModelIsZero(t *testing.T) {
	tbl := Builtin()
	if got := tbl.Cost("mystery-model", 1_000_000, 1_000_000, 0, 0); got != 0 {
		t.Errorf("Cost for unknown model = %v, want 0", got)
	}
}

func TestCostZeroTokens(t *testing.T) {
	tbl := Builtin()
	if got := tbl.Cost("claude-sonnet-4-5", 0, 0, 0, 0); got != 0 {
		t.Errorf("Cost with zero tokens = %v, want 0", got)
	}
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoadBuiltin(t *testing.T) {
	tbl, err := Load(SourceConfig{Source: "builtin"}, t.TempDir())
	if err != nil {
		t.Fatalf("Load builtin: %v", err)
	}
	if len(tbl.Models) != 4 {
		t.Errorf("builtin table has %d models, want 4", len(tbl.Models))
	}
}

func TestLoadEmptySourceDefaultsToBuiltin(t *testing.T) {
	tbl, err := Load(SourceConfig{}, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.RateFor("claude-haiku-4-5").InputPerMTok != 1 {
		t.Error("empty source should serve the builtin table")
	}
}

func TestLoadModelsOverrideWins(t *testing.T) {
	tbl, err := Load(SourceConfig{
		Source: "builtin",
		Models: map[string]Rate{
			"claude-opus-4-5": {InputPerMTok: 99},
			"my-local-model":  {InputPerMTok: 0.5, OutputPerMTok: 1},
		},
	}, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.RateFor("claude-opus-4-5").InputPerMTok != 99 {
		t.Error("config override should replace builtin rate")
	}
	if tbl.RateFor("my-local-model").OutputPerMTok != 1 {
		t.Error("config-only model should be added to the table")
	}
}

func TestLoadFromFileCodecordFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.json")
	body := `{"models": {"claude-opus-4-5": {"input_per_mtok": 5, "output_per_mtok": 25, "cache_read_per_mtok": 0.5, "cache_write_per_mtok": 6.25}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(SourceConfig{Source: "file", Format: "codecord", File: path}, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r := tbl.RateFor("claude-opus-4-5"); r.CacheWritePerMTok != 6.25 {
		t.Errorf("loaded rate = %+v", r)
	}
}

func TestLoadFromFileLiteLLMFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "litellm.json")
	body := `{
		"claude-opus-4-5": {
			"input_cost_per_token": 0.000005,
			"output_cost_per_token": 0.000025,
			"cache_read_input_token_cost": 0.0000005,
			"cache_creation_input_token_cost": 0.00000625
		},
		"free-model": {"input_cost_per_token": 0, "output_cost_per_token": 0}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(SourceConfig{Source: "file", Format: "litellm", File: path}, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := tbl.RateFor("claude-opus-4-5")
	if !almostEqual(r.InputPerMTok, 5) || !almostEqual(r.OutputPerMTok, 25) {
		t.Errorf("per-token prices not scaled to per-MTok: %+v", r)
	}
	if !almostEqual(r.CacheReadPerMTok, 0.5) || !almostEqual(r.CacheWritePerMTok, 6.25) {
		t.Errorf("cache prices not scaled: %+v", r)
	}
	if _, ok := tbl.Models["free-model"]; ok {
		t.Error("zero-priced models should be skipped")
	}
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": {"claude-sonnet-4-5": {"input_per_mtok": 3, "output_per_mtok": 15}}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tbl, err := Load(SourceConfig{Source: "url", Format: "codecord", URL: srv.URL}, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.RateFor("claude-sonnet-4-5").OutputPerMTok != 15 {
		t.Errorf("fetched table = %+v", tbl.Models)
	}

	// A successful fetch should have primed the cache.
	cached, err := ReadCache(dir)
	if err != nil {
		t.Fatalf("ReadCache after fetch: %v", err)
	}
	if cached.RateFor("claude-sonnet-4-5").InputPerMTok != 3 {
		t.Errorf("cached table = %+v", cached.Models)
	}
}

func TestLoadFallsBackToCache(t *testing.T) {
	dir := t.TempDir()
	if err := WriteCache(dir, &Table{Models: map[string]Rate{
		"claude-haiku-4-5": {InputPerMTok: 1, OutputPerMTok: 5},
	}}); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tbl, err := Load(SourceConfig{Source: "url", Format: "codecord", URL: srv.URL}, dir)
	if err == nil {
		t.Error("fallback load should report a non-nil error")
	}
	if tbl.RateFor("claude-haiku-4-5").OutputPerMTok != 5 {
		t.Errorf("expected cached table, got %+v", tbl.Models)
	}
}

func TestLoadFallsBackToBuiltinWhenNoCache(t *testing.T) {
	tbl, err := Load(SourceConfig{Source: "file", Format: "codecord", File: "/nonexistent/prices.json"}, t.TempDir())
	if err == nil {
		t.Error("fallback load should report a non-nil error")
	}
	if tbl.RateFor("claude-opus-4").InputPerMTok != 15 {
		t.Errorf("expected builtin table, got %+v", tbl.Models)
	}
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	orig := &Table{Models: map[string]Rate{
		"claude-opus-4-5": {InputPerMTok: 5, OutputPerMTok: 25, CacheReadPerMTok: 0.5, CacheWritePerMTok: 6.25},
	}}
	if err := WriteCache(dir, orig); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}
	got, err := ReadCache(dir)
	if err != nil {
		t.Fatalf("ReadCache: %v", err)
	}
	if got.Models["claude-opus-4-5"] != orig.Models["claude-opus-4-5"] {
		t.Errorf("round trip mismatch: %+v", got.Models)
	}
}

func TestReadCacheMissing(t *testing.T) {
	if _, err := ReadCache(t.TempDir()); err == nil {
		t.Error("expected error for missing cache")
	}
}

func TestWriteCacheNil(t *testing.T) {
	if err := WriteCache(t.TempDir(), nil); err == nil {
		t.Error("expected error for nil table")
	}
}
