package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// ///////////////////////////////////////////////
// Transcript Types
// ///////////////////////////////////////////////

// TranscriptData holds aggregated data parsed from a JSONL conversation
// transcript.
type TranscriptData struct {
	Model  string
	Tokens TokenUsage
	// Turns is the number of assistant messages in the transcript.
	Turns int64
}

// transcriptEntry represents a single line in a JSONL transcript.
// Only the fields needed for token aggregation and model detection are decoded.
type transcriptEntry struct {
	// Type is the entry kind (e.g. "assistant", "user").
	Type string `json:"type"`
	// Message holds the model and usage for assistant entries.
	Message struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// accumulate folds a single entry into the aggregate. Only assistant
// entries carry usage; everything else is ignored.
func (d *TranscriptData) accumulate(entry *transcriptEntry) {
	if entry.Type != "assistant" {
		return
	}
	d.Turns++
	d.Tokens.Add(TokenUsage{
		Input:      entry.Message.Usage.InputTokens,
		Output:     entry.Message.Usage.OutputTokens,
		CacheRead:  entry.Message.Usage.CacheReadInputTokens,
		CacheWrite: entry.Message.Usage.CacheCreationInputTokens,
	})
	if entry.Message.Model != "" {
		d.Model = entry.Message.Model
	}
}

// ///////////////////////////////////////////////
// Transcript Parsing
// ///////////////////////////////////////////////

// ParseTranscript reads a JSONL transcript, aggregates token counts
// across assistant turns, and extracts the latest model.
// Malformed lines are silently skipped.
func ParseTranscript(path string) (*TranscriptData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	data := &TranscriptData{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry transcriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		data.accumulate(&entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}

	return data, nil
}

// ///////////////////////////////////////////////
// Incremental Parsing
// ///////////////////////////////////////////////

// TranscriptCache tracks parse state for incremental transcript parsing.
// It stores the last known file size and accumulated data so that
// subsequent calls to [TranscriptCache.Parse] only scan new entries.
type TranscriptCache struct {
	mu       sync.Mutex
	path     string
	lastSize int64
	lastData TranscriptData
}

// NewTranscriptCache creates a cache for incremental parsing of the given
// transcript file.
func NewTranscriptCache(path string) *TranscriptCache {
	return &TranscriptCache{path: path}
}

// Path returns the transcript file this cache is bound to.
func (c *TranscriptCache) Path() string {
	return c.path
}

// Parse reads only the new portion of the transcript since the last
// call. If the file has shrunk (truncation/rotation), it falls back to a
// full scan.
func (c *TranscriptCache) Parse() (*TranscriptData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat transcript: %w", err)
	}

	currentSize := info.Size()

	// If the file shrunk, reset and do a full scan.
	if currentSize < c.lastSize {
		c.lastSize = 0
		c.lastData = TranscriptData{}
	}

	// If unchanged, return cached data.
	if currentSize == c.lastSize {
		result := c.lastData
		return &result, nil
	}

	// Seek to where we left off.
	if c.lastSize > 0 {
		if _, err := f.Seek(c.lastSize, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking transcript: %w", err)
		}
	}

	data := c.lastData
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry transcriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		data.accumulate(&entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}

	c.lastSize = currentSize
	c.lastData = data

	result := data
	return &result, nil
}

// ///////////////////////////////////////////////
// Transcript Discovery
// ///////////////////////////////////////////////

// FindTranscript locates the transcript for a session under the
// conversations directory. The assistant nests transcripts one level per
// project, so the file is searched recursively by session ID; when the
// ID yields nothing, the most recently modified transcript is returned.
func FindTranscript(conversationsDir, sessionID string) (string, error) {
	if sessionID != "" {
		pattern := filepath.Join(conversationsDir, "**", sessionID+".jsonl")
		matches, err := doublestar.FilepathGlob(pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return findLatestTranscript(conversationsDir)
}

// findLatestTranscript finds the most recently modified .jsonl file
// anywhere under dir.
func findLatestTranscript(dir string) (string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.jsonl"))
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", dir, err)
	}

	var latest string
	var latestTime int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if t := info.ModTime().UnixNano(); t > latestTime {
			latestTime = t
			latest = m
		}
	}

	if latest == "" {
		return "", fmt.Errorf("no transcripts found in %s", dir)
	}
	return latest, nil
}
