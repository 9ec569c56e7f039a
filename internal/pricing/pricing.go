// Package pricing resolves per-token costs for models.
//
// Rates are expressed in dollars per million tokens across four token
// classes: input, output, cache read, and cache write. Pricing data can
// come from three source types: the built-in static table, a remote URL
// (LiteLLM or codecord format), or a local file. For URL and file
// sources, a double-fallback strategy applies: primary source, then
// on-disk cache, then the built-in table, so session cost display keeps
// working offline.
//
// [Load] is the main entry point. It accepts a [SourceConfig] that
// describes the pricing source and returns a [Table] ready for use with
// [Table.Cost].
package pricing

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/codecord/internal/atomicfile"
	"tools.zach/dev/codecord/internal/paths"
)

// httpClient is a lazily-initialized retryablehttp client shared across all
// pricing fetches. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it on
// first call.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 10 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// formatDefaultURLs maps format names to their default pricing endpoints.
var formatDefaultURLs = map[string]string{
	"litellm": "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json",
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Rate holds per-model prices in dollars per million tokens.
type Rate struct {
	InputPerMTok      float64 `json:"input_per_mtok"`
	OutputPerMTok     float64 `json:"output_per_mtok"`
	CacheReadPerMTok  float64 `json:"cache_read_per_mtok"`
	CacheWritePerMTok float64 `json:"cache_write_per_mtok"`
}

// IsZero reports whether every price in the rate is zero.
func (r Rate) IsZero() bool {
	return r == Rate{}
}

// Table maps model identifiers to their rates.
type Table struct {
	Models map[string]Rate `json:"models"`
}

// SourceConfig describes where and how to load pricing data.
// Built from config.PricingConfig at startup.
type SourceConfig struct {
	Source string // "builtin", "url", "file"
	Format string // "litellm", "codecord"
	URL    string // custom URL (overrides format default)
	File   string // local file path (for source = "file")

	// Models overrides or extends whatever the source provides.
	Models map[string]Rate
}

// ///////////////////////////////////////////////
// Builtin Table
// ///////////////////////////////////////////////

// Builtin returns the static pricing table shipped with the binary.
// Values match Anthropic's published API prices.
func Builtin() *Table {
	return &Table{Models: map[string]Rate{
		"claude-opus-4-5": {
			InputPerMTok:      5,
			OutputPerMTok:     25,
			CacheReadPerMTok:  0.50,
			CacheWritePerMTok: 6.25,
		},
		"claude-sonnet-4-5": {
			InputPerMTok:      3,
			OutputPerMTok:     15,
			CacheReadPerMTok:  0.30,
			CacheWritePerMTok: 3.75,
		},
		"claude-haiku-4-5": {
			InputPerMTok:      1,
			OutputPerMTok:     5,
			CacheReadPerMTok:  0.10,
			CacheWritePerMTok: 1.25,
		},
		"claude-opus-4": {
			InputPerMTok:      15,
			OutputPerMTok:     75,
			CacheReadPerMTok:  1.50,
			CacheWritePerMTok: 18.75,
		},
	}}
}

// ///////////////////////////////////////////////
// Lookup & Cost
// ///////////////////////////////////////////////

// dateSuffixRegex matches a trailing release-date segment in full model
// IDs, e.g. the "-20251101" in "claude-opus-4-5-20251101".
var dateSuffixRegex = regexp.MustCompile(`-\d{8}$`)

// RateFor resolves the rate for a model identifier. Resolution order:
// exact match, match with any trailing release date stripped, then the
// longest table key the model ID starts with. Unknown models get a zero
// rate so cost display degrades to $0.00 instead of failing.
func (t *Table) RateFor(model string) Rate {
	if t == nil || model == "" {
		return Rate{}
	}
	if r, ok := t.Models[model]; ok {
		return r
	}
	if stripped := dateSuffixRegex.ReplaceAllString(model, ""); stripped != model {
		if r, ok := t.Models[stripped]; ok {
			return r
		}
	}
	var bestKey string
	for key := range t.Models {
		if strings.HasPrefix(model, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return t.Models[bestKey]
	}
	return Rate{}
}

// Cost computes the dollar cost for a model across all four token
// classes. Token counts are raw; rates are per million tokens.
func (t *Table) Cost(model string, input, output, cacheRead, cacheWrite int64) float64 {
	r := t.RateFor(model)
	return (float64(input)*r.InputPerMTok +
		float64(output)*r.OutputPerMTok +
		float64(cacheRead)*r.CacheReadPerMTok +
		float64(cacheWrite)*r.CacheWritePerMTok) / 1e6
}

// SimpleCost computes the cost of input and output tokens only,
// ignoring cache traffic. Used for the simple status view.
func (t *Table) SimpleCost(model string, input, output int64) float64 {
	r := t.RateFor(model)
	return (float64(input)*r.InputPerMTok + float64(output)*r.OutputPerMTok) / 1e6
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Load retrieves a pricing table based on the source config.
//
// For "url" and "file" sources, uses double fallback: primary -> cache
// -> builtin. The "builtin" source returns the static table directly.
// Per-model overrides from src.Models are applied last and always win.
//
// The returned error is non-nil when the table came from a fallback;
// the table itself is always usable.
func Load(src SourceConfig, cacheDir string) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch src.Source {
	case "", "builtin":
		t = Builtin()
	case "file":
		t, err = loadWithFallback(cacheDir, func() (*Table, error) {
			return loadFromFile(src.File, src.Format)
		})
	case "url":
		url := src.URL
		if url == "" {
			url = formatDefaultURLs[src.Format]
		}
		if url == "" {
			t, err = Builtin(), fmt.Errorf("no URL configured and format %q has no default URL", src.Format)
			break
		}
		format := src.Format
		t, err = loadWithFallback(cacheDir, func() (*Table, error) {
			return loadFromURL(url, format)
		})
	default:
		t, err = Builtin(), fmt.Errorf("unknown pricing source %q, using builtin table", src.Source)
	}

	if len(src.Models) > 0 {
		if t.Models == nil {
			t.Models = make(map[string]Rate, len(src.Models))
		}
		for id, r := range src.Models {
			t.Models[id] = r
		}
	}
	return t, err
}

// loadWithFallback attempts the primary fetch, then the on-disk cache,
// then the builtin table. The table is never nil.
func loadWithFallback(cacheDir string, primary func() (*Table, error)) (*Table, error) {
	t, err := primary()
	if err == nil {
		if len(t.Models) == 0 {
			return Builtin(), fmt.Errorf("primary pricing source returned no models, using builtin table")
		}
		if cacheErr := WriteCache(cacheDir, t); cacheErr != nil {
			slog.Warn("failed to write pricing cache", "error", cacheErr)
		}
		return t, nil
	}
	slog.Warn("failed to load pricing from primary source, trying cache", "error", err)

	t, cacheErr := ReadCache(cacheDir)
	if cacheErr == nil && len(t.Models) > 0 {
		return t, fmt.Errorf("using cached pricing: primary load failed: %w", err)
	}

	return Builtin(), fmt.Errorf("using builtin pricing: primary: %w; cache: %w", err, cacheErr)
}

// loadFromURL downloads pricing data from the given URL and parses it.
func loadFromURL(url, format string) (*Table, error) {
	const maxResponseBytes = 10 << 20 // 10 MiB

	client := getHTTPClient()

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, maxResponseBytes)
	}

	return parseBody(body, format)
}

// loadFromFile reads pricing data from a local file and parses it.
func loadFromFile(path, format string) (*Table, error) {
	if path == "" {
		return nil, fmt.Errorf("pricing source is \"file\" but no file path configured")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file %s: %w", path, err)
	}
	return parseBody(body, format)
}

// parseBody dispatches to the appropriate format adapter.
func parseBody(body []byte, format string) (*Table, error) {
	switch format {
	case "litellm":
		return parseLiteLLM(body)
	default: // "codecord"
		return parseCodecord(body)
	}
}

// ///////////////////////////////////////////////
// Format Adapters
// ///////////////////////////////////////////////

// liteLLMModel represents a single entry in LiteLLM's flat model pricing map.
// Upstream prices are per single token, so they are scaled by 1e6 here.
type liteLLMModel struct {
	InputCostPerToken      float64 `json:"input_cost_per_token"`
	OutputCostPerToken     float64 `json:"output_cost_per_token"`
	CacheReadCostPerToken  float64 `json:"cache_read_input_token_cost"`
	CacheWriteCostPerToken float64 `json:"cache_creation_input_token_cost"`
}

// parseLiteLLM parses LiteLLM's flat model pricing map.
// Includes all models with non-zero pricing.
func parseLiteLLM(body []byte) (*Table, error) {
	var raw map[string]liteLLMModel
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing litellm response: %w", err)
	}

	t := &Table{Models: make(map[string]Rate)}
	for id, m := range raw {
		if m.InputCostPerToken == 0 && m.OutputCostPerToken == 0 {
			continue
		}
		t.Models[id] = Rate{
			InputPerMTok:      m.InputCostPerToken * 1e6,
			OutputPerMTok:     m.OutputCostPerToken * 1e6,
			CacheReadPerMTok:  m.CacheReadCostPerToken * 1e6,
			CacheWritePerMTok: m.CacheWriteCostPerToken * 1e6,
		}
	}
	return t, nil
}

// parseCodecord parses our canonical format: {"models": {"model-id": {...}}}.
// Rates are already per million tokens, so no transformation is needed.
func parseCodecord(body []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("parsing codecord pricing: %w", err)
	}
	return &t, nil
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

// WriteCache writes a pricing table to the cache file in the given directory.
func WriteCache(cacheDir string, t *Table) error {
	if t == nil {
		return fmt.Errorf("pricing table is nil")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("creating pricing cache directory: %w", err)
	}
	path := filepath.Join(cacheDir, paths.PricingCacheFile)
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshalling pricing table: %w", err)
	}
	return atomicfile.Write(path, b, 0o644)
}

// ReadCache reads a pricing table from the cache file in the given directory.
func ReadCache(cacheDir string) (*Table, error) {
	path := filepath.Join(cacheDir, paths.PricingCacheFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing cache: %w", err)
	}
	var t Table
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parsing pricing cache: %w", err)
	}
	return &t, nil
}
