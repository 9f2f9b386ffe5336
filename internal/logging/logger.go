// Package logging provides leveled logging and diagnostics for grag.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A Sink for structured diagnostics records (.grag/diagnostics.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for per-call logging.
// At this level, every patched attention call is reported.
const LevelTrace = slog.LevelDebug - 4

// DiagnosticsFile is the JSONL file name written by DiagnosticsLog.
const DiagnosticsFile = "diagnostics.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Sink receives structured diagnostics records. Formatting and storage are
// the sink's concern; callers only name the event and its fields.
type Sink interface {
	Record(event string, fields map[string]any)
}

// DiagnosticsLog writes diagnostics records to a JSONL file.
// It is safe for concurrent use. A nil DiagnosticsLog is safe to use;
// all methods are no-ops on nil receiver.
type DiagnosticsLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewDiagnosticsLog creates a diagnostics log writing to dir/diagnostics.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDiagnosticsLog(dir string, level string) *DiagnosticsLog {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, DiagnosticsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &DiagnosticsLog{file: f}
}

// Record writes one event as a single JSONL line.
// "event" and "time" fields are added automatically. The caller's map is
// not mutated. Safe to call on nil receiver.
func (dl *DiagnosticsLog) Record(event string, fields map[string]any) {
	if dl == nil {
		return
	}

	// Copy to avoid mutating caller's map
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_, _ = dl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (dl *DiagnosticsLog) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.file != nil {
		dl.file.Close()
		dl.file = nil
	}
}

// Entry is one record held by a Buffer.
type Entry struct {
	Event  string
	Fields map[string]any
}

// Buffer is an in-memory Sink. It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// Record implements Sink.
func (b *Buffer) Record(event string, fields map[string]any) {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{Event: event, Fields: copied})
}

// Entries returns a snapshot of the recorded entries.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Events returns the recorded entries with the given event name.
func (b *Buffer) Events(event string) []Entry {
	var out []Entry
	for _, e := range b.Entries() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Tee fans records out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Record(event string, fields map[string]any) {
	for _, s := range t {
		if s != nil {
			s.Record(event, fields)
		}
	}
}
