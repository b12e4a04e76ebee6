// Package mcplog records MCP tool calls as JSON lines.
package mcplog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// maxInlineString is the longest string argument stored verbatim. Longer
// values (stylesheets, mostly) are replaced by their length.
const maxInlineString = 64

// Entry is one JSONL line written per tool call.
type Entry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	ToolError     bool           `json:"tool_error"`
	Error         *string        `json:"error"`
}

// Logger appends entries to a writer. It is safe for concurrent use.
type Logger struct {
	mutex  sync.Mutex
	closer io.Closer
	enc    *json.Encoder
}

// Open opens (or creates) path for appending, creating parent directories.
// An empty path returns a nil Logger, which callers treat as disabled.
func Open(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{closer: f, enc: json.NewEncoder(f)}, nil
}

// New returns a Logger writing to w. Close does not close w.
func New(w io.Writer) *Logger {
	return &Logger{enc: json.NewEncoder(w)}
}

// Write appends a single entry. A nil Logger discards it.
func (l *Logger) Write(entry Entry) error {
	if l == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.enc.Encode(entry)
}

// Close closes the log file, if the Logger owns one.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.closer.Close()
}

// SanitizeParams returns a copy of args that is safe to log. Long strings
// become a "<key>_len" entry and lists become a "<key>_count" entry, so
// stylesheets and token lists never end up in the log file.
func SanitizeParams(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			if len(val) > maxInlineString {
				out[k+"_len"] = len(val)
				continue
			}
			out[k] = val
		case []any:
			out[k+"_count"] = len(val)
		case []string:
			out[k+"_count"] = len(val)
		default:
			out[k] = v
		}
	}
	return out
}

// ResponseBytes returns the serialized length of a result's content, or 0
// for a nil result.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// Now is the clock used for entry timestamps; tests replace it.
var Now = time.Now
