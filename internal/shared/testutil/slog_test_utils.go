package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// LogRecord is one captured slog record with its attributes flattened.
// Grouped keys are joined with a dot ("store.rows").
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Attr returns the attribute value for key and whether it was set
func (r LogRecord) Attr(key string) (any, bool) {
	v, ok := r.Attrs[key]
	return v, ok
}

type sink struct {
	mu      sync.Mutex
	records []LogRecord
}

// BufferedSlogHandler records every log call in memory and mirrors it to t.Log.
// Handlers derived with With/WithGroup write to the same sink.
type BufferedSlogHandler struct {
	sink   *sink
	prefix string
	attrs  map[string]any
	t      *testing.T
}

// NewBufferedSlogHandler creates an empty handler. t may be nil.
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{sink: &sink{}, attrs: map[string]any{}, t: t}
}

// NewTestLogger returns a logger backed by a fresh BufferedSlogHandler
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: make(map[string]any, len(h.attrs)+r.NumAttrs())}
	for k, v := range h.attrs {
		rec.Attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[h.prefix+a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, rec)
	h.sink.mu.Unlock()

	if h.t != nil {
		h.t.Logf("%s %s %v", r.Level, r.Message, rec.Attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.derive(h.prefix)
	for _, a := range attrs {
		next.attrs[h.prefix+a.Key] = a.Value.Any()
	}
	return next
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	return h.derive(h.prefix + name + ".")
}

func (h *BufferedSlogHandler) derive(prefix string) *BufferedSlogHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &BufferedSlogHandler{sink: h.sink, prefix: prefix, attrs: attrs, t: h.t}
}

// Records returns a copy of everything captured so far
func (h *BufferedSlogHandler) Records() []LogRecord {
	return h.filter(func(LogRecord) bool { return true })
}

// RecordsAt returns the records logged at exactly level
func (h *BufferedSlogHandler) RecordsAt(level slog.Level) []LogRecord {
	return h.filter(func(r LogRecord) bool { return r.Level == level })
}

func (h *BufferedSlogHandler) filter(keep func(LogRecord) bool) []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	var out []LogRecord
	for _, r := range h.sink.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ContainsMessage reports whether any record's message contains substr
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	return len(h.filter(func(r LogRecord) bool { return strings.Contains(r.Message, substr) })) > 0
}

// ContainsAttr reports whether any record carries key=value
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	return len(h.filter(func(r LogRecord) bool {
		v, ok := r.Attr(key)
		return ok && v == value
	})) > 0
}

// Clear drops the captured records
func (h *BufferedSlogHandler) Clear() {
	h.sink.mu.Lock()
	h.sink.records = nil
	h.sink.mu.Unlock()
}

// Count returns the number of captured records
func (h *BufferedSlogHandler) Count() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return len(h.sink.records)
}

// AssertLogContains fails t unless a record at level has a message containing substr
func AssertLogContains(t *testing.T, h *BufferedSlogHandler, level slog.Level, substr string) bool {
	t.Helper()
	for _, r := range h.RecordsAt(level) {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return assert.Failf(t, "log message not found", "level %s, message %q, captured: %s", level, substr, h.summary())
}

// AssertLogAttr fails t unless some record carries key=value
func AssertLogAttr(t *testing.T, h *BufferedSlogHandler, key string, value any) bool {
	t.Helper()
	if h.ContainsAttr(key, value) {
		return true
	}
	return assert.Failf(t, "log attribute not found", "%s=%v, captured: %s", key, value, h.summary())
}

// AssertNoErrors fails t for every error-level record
func AssertNoErrors(t *testing.T, h *BufferedSlogHandler) bool {
	t.Helper()
	ok := true
	for _, r := range h.RecordsAt(slog.LevelError) {
		ok = assert.Failf(t, "unexpected error log", "%s %v", r.Message, r.Attrs)
	}
	return ok
}

func (h *BufferedSlogHandler) summary() string {
	var b strings.Builder
	for _, r := range h.Records() {
		b.WriteString("\n  ")
		b.WriteString(r.Level.String())
		b.WriteString(" ")
		b.WriteString(r.Message)
	}
	return b.String()
}
