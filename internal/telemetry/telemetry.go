// Package telemetry appends opt-in JSONL events describing chat turns.
// Events carry counts and timings only, never message text.
package telemetry

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsDirName is created inside the conversation directory. The leading dot
// keeps it out of conversation listings.
const EventsDirName = ".telemetry"

const eventsFile = "events.jsonl"

var (
	mu      sync.Mutex
	enabled bool
	dir     string
)

// Configure enables or disables emission. Events are written to
// <baseDir>/.telemetry/events.jsonl. It is called once at startup.
func Configure(baseDir string, on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
	dir = filepath.Join(baseDir, EventsDirName)
}

// Enabled reports whether Emit writes anything.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// EventsPath returns the file events are appended to.
func EventsPath() string {
	mu.Lock()
	defer mu.Unlock()
	return filepath.Join(dir, eventsFile)
}

// Emit writes a single JSON line when telemetry is enabled.
// It augments fields with RFC3339Nano time and the event name.
// Failures are logged and otherwise ignored.
func Emit(name string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}

	// Make a shallow copy so callers' maps aren't mutated.
	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		slog.Warn("telemetry: marshal", "event", name, "error", err)
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("telemetry: mkdir", "dir", dir, "error", err)
		return
	}

	path := filepath.Join(dir, eventsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("telemetry: open", "path", path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		slog.Warn("telemetry: write", "path", path, "error", err)
	}
}
