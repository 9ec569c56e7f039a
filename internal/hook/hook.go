// Package hook parses the JSON payloads that the coding assistant passes
// to hook commands on stdin.
//
// Payloads vary by event: SessionStart carries session_id and cwd,
// PostToolUse adds tool_name and tool_input, and some events include
// token usage. Parsing is deliberately lenient; unknown fields are
// ignored and missing fields zero out, so hook commands never fail a
// user's session over a payload shape change.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Usage holds token counts from an assistant turn.
type Usage struct {
	Input      int64 `json:"input_tokens"`
	Output     int64 `json:"output_tokens"`
	CacheRead  int64 `json:"cache_read_input_tokens"`
	CacheWrite int64 `json:"cache_creation_input_tokens"`
}

// Payload is a hook event payload. Fields not present in a given event
// are left at their zero values.
type Payload struct {
	SessionID     string         `json:"session_id"`
	CWD           string         `json:"cwd"`
	HookEventName string         `json:"hook_event_name"`
	ToolName      string         `json:"tool_name"`
	ToolInput     map[string]any `json:"tool_input"`
	Model         struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"model"`
	Usage *Usage `json:"usage"`
}

// ///////////////////////////////////////////////
// Parsing
// ///////////////////////////////////////////////

// Parse reads a hook payload from r. An empty body yields a zero
// Payload rather than an error; malformed JSON is reported.
func Parse(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading hook payload: %w", err)
	}
	p := &Payload{}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing hook payload: %w", err)
	}
	return p, nil
}

// ToolTarget extracts the most descriptive target string from the tool
// input, preferring a file path, then a command, glob pattern, URL, or
// search query. Returns "" when nothing usable is present.
func (p *Payload) ToolTarget() string {
	if p.ToolInput == nil {
		return ""
	}
	for _, key := range []string{"file_path", "command", "pattern", "url", "query"} {
		if v, ok := p.ToolInput[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
