// Package testutil holds test doubles shared by the pool, tx and orm tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a debug-level logger that writes to t.Log, so pool
// and transaction events only show up for failing tests or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// LogRecorder captures structured log events for assertions. Every event is
// also echoed to t.Log.
type LogRecorder struct {
	Logger *slog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogRecorder returns a recorder whose Logger emits JSON at debug level.
func NewLogRecorder(t testing.TB) *LogRecorder {
	t.Helper()
	r := &LogRecorder{}
	r.Logger = slog.New(slog.NewJSONHandler(recorderWriter{r: r, t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return r
}

type recorderWriter struct {
	r *LogRecorder
	t testing.TB
}

func (w recorderWriter) Write(p []byte) (int, error) {
	w.r.mu.Lock()
	w.r.buf.Write(p)
	w.r.mu.Unlock()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// String returns the raw JSON lines written so far.
func (r *LogRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Events returns the decoded events with the given message.
func (r *LogRecorder) Events(msg string) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(r.String(), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev[slog.MessageKey] == msg {
			out = append(out, ev)
		}
	}
	return out
}
