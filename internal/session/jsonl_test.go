package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleTranscript = `{"type":"user","message":{"content":"hello"}}
{"type":"assistant","message":{"model":"claude-opus-4-5-20251101","usage":{"input_tokens":100,"output_tokens":50,"cache_read_input_tokens":2000,"cache_creation_input_tokens":300}}}
{"type":"user","message":{"content":"again"}}
{"type":"assistant","message":{"model":"claude-opus-4-5-20251101","usage":{"input_tokens":200,"output_tokens":150,"cache_read_input_tokens":4000,"cache_creation_input_tokens":100}}}
not json at all
{"type":"assistant","message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":10,"output_tokens":5}}}
`

func writeTranscript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseTranscript(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "session.jsonl", sampleTranscript)

	data, err := ParseTranscript(path)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}

	want := TokenUsage{Input: 310, Output: 205, CacheRead: 6000, CacheWrite: 400}
	if data.Tokens != want {
		t.Errorf("Tokens = %+v, want %+v", data.Tokens, want)
	}
	if data.Turns != 3 {
		t.Errorf("Turns = %d, want 3", data.Turns)
	}
	// The most recent assistant entry decides the model.
	if data.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q", data.Model)
	}
}

func TestParseTranscriptIgnoresNonAssistantUsage(t *testing.T) {
	body := `{"type":"user","message":{"usage":{"input_tokens":999999}}}
{"type":"assistant","message":{"model":"m","usage":{"input_tokens":1,"output_tokens":2}}}
`
	path := writeTranscript(t, t.TempDir(), "s.jsonl", body)
	data, err := ParseTranscript(path)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if data.Tokens.Input != 1 {
		t.Errorf("non-assistant usage counted: %+v", data.Tokens)
	}
}

func TestParseTranscriptMissing(t *testing.T) {
	if _, err := ParseTranscript(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseTranscriptEmpty(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "empty.jsonl", "")
	data, err := ParseTranscript(path)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if data.Tokens.Total() != 0 || data.Turns != 0 {
		t.Errorf("empty transcript aggregated = %+v", data)
	}
}

// ///////////////////////////////////////////////
// Incremental Parsing
// ///////////////////////////////////////////////

func TestTranscriptCacheIncremental(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "s.jsonl",
		`{"type":"assistant","message":{"model":"m","usage":{"input_tokens":100,"output_tokens":50}}}`+"\n")

	cache := NewTranscriptCache(path)
	data, err := cache.Parse()
	if err != nil {
		t.Fatalf("first Parse: %v", err)
	}
	if data.Tokens.Input != 100 {
		t.Errorf("first parse tokens = %+v", data.Tokens)
	}

	// Append another turn and re-parse; counts accumulate.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"type":"assistant","message":{"model":"m","usage":{"input_tokens":30,"output_tokens":20}}}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err = cache.Parse()
	if err != nil {
		t.Fatalf("second Parse: %v", err)
	}
	if data.Tokens.Input != 130 || data.Tokens.Output != 70 {
		t.Errorf("incremental tokens = %+v", data.Tokens)
	}
	if data.Turns != 2 {
		t.Errorf("Turns = %d, want 2", data.Turns)
	}
}

func TestTranscriptCacheUnchangedFile(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "s.jsonl",
		`{"type":"assistant","message":{"model":"m","usage":{"input_tokens":5,"output_tokens":5}}}`+"\n")

	cache := NewTranscriptCache(path)
	first, err := cache.Parse()
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if first.Tokens != second.Tokens || first.Turns != second.Turns {
		t.Errorf("unchanged file re-aggregated: %+v vs %+v", first, second)
	}
}

func TestTranscriptCacheTruncationResets(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "s.jsonl", sampleTranscript)

	cache := NewTranscriptCache(path)
	if _, err := cache.Parse(); err != nil {
		t.Fatal(err)
	}

	// Replace with a shorter file, as after transcript rotation.
	writeTranscript(t, dir, "s.jsonl",
		`{"type":"assistant","message":{"model":"m","usage":{"input_tokens":7,"output_tokens":3}}}`+"\n")

	data, err := cache.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if data.Tokens.Input != 7 || data.Turns != 1 {
		t.Errorf("after truncation = %+v", data)
	}
}

// ///////////////////////////////////////////////
// Discovery
// ///////////////////////////////////////////////

func TestFindTranscriptBySessionID(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, filepath.Join("-home-zach-codecord", "aaa.jsonl"), "")
	want := writeTranscript(t, dir, filepath.Join("-home-zach-other", "bbb.jsonl"), "")

	got, err := FindTranscript(dir, "bbb")
	if err != nil {
		t.Fatalf("FindTranscript: %v", err)
	}
	if got != want {
		t.Errorf("FindTranscript = %q, want %q", got, want)
	}
}

func TestFindTranscriptFallsBackToLatest(t *testing.T) {
	dir := t.TempDir()
	old := writeTranscript(t, dir, filepath.Join("p1", "old.jsonl"), "")
	latest := writeTranscript(t, dir, filepath.Join("p2", "new.jsonl"), "")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := FindTranscript(dir, "missing-session")
	if err != nil {
		t.Fatalf("FindTranscript: %v", err)
	}
	if got != latest {
		t.Errorf("FindTranscript = %q, want %q", got, latest)
	}
}

func TestFindTranscriptEmptyDir(t *testing.T) {
	if _, err := FindTranscript(t.TempDir(), "any"); err == nil {
		t.Error("expected error for empty conversations dir")
	}
}
