package telemetry_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/rye/internal/metrics"
	"github.com/petasbytes/rye/internal/telemetry"
)

// configure points telemetry at a fresh directory for the duration of t.
func configure(t *testing.T, on bool) string {
	t.Helper()
	base := t.TempDir()
	telemetry.Configure(base, on)
	t.Cleanup(func() { telemetry.Configure("", false) })
	return base
}

func readEvents(t *testing.T) []map[string]any {
	t.Helper()
	f, err := os.Open(telemetry.EventsPath())
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	s := bufio.NewScanner(f)
	for s.Scan() {
		txt := strings.TrimSpace(s.Text())
		if txt == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(txt), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", txt, err)
		}
		out = append(out, m)
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestEmit_Disabled_WritesNothing(t *testing.T) {
	base := configure(t, false)
	telemetry.Emit("test_event", map[string]any{"foo": "bar"})
	if _, err := os.Stat(filepath.Join(base, telemetry.EventsDirName)); !os.IsNotExist(err) {
		t.Fatalf("expected no telemetry dir, stat err=%v", err)
	}
}

func TestEmit_HappyPath(t *testing.T) {
	base := configure(t, true)

	telemetry.Emit("test_event", map[string]any{"foo": "bar", "num": 42})

	if got, want := telemetry.EventsPath(), filepath.Join(base, ".telemetry", "events.jsonl"); got != want {
		t.Fatalf("events path: got %s want %s", got, want)
	}
	events := readEvents(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 line, got %d", len(events))
	}
	event := events[0]
	if event["event"] != "test_event" {
		t.Errorf("expected event=test_event, got %v", event["event"])
	}
	if event["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %v", event["foo"])
	}
	if event["num"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected num=42, got %v", event["num"])
	}
	timeStr, ok := event["time"].(string)
	if !ok {
		t.Fatal("expected time field as string")
	}
	if _, err := time.Parse(time.RFC3339Nano, timeStr); err != nil {
		t.Errorf("time field not valid RFC3339Nano: %v", err)
	}
}

func TestEmit_MultipleEmissionsAppend(t *testing.T) {
	configure(t, true)

	telemetry.Emit("event1", map[string]any{"id": 1})
	telemetry.Emit("event2", map[string]any{"id": 2})
	telemetry.Emit("event3", map[string]any{"id": 3})

	events := readEvents(t)
	if len(events) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(events))
	}
	for i, want := range []string{"event1", "event2", "event3"} {
		if events[i]["event"] != want {
			t.Errorf("line %d: expected event=%s, got %v", i+1, want, events[i]["event"])
		}
	}
}

func TestEmit_MapIsolation(t *testing.T) {
	configure(t, true)

	fields := map[string]any{"key": "value"}
	telemetry.Emit("test", fields)

	if len(fields) != 1 || fields["key"] != "value" {
		t.Errorf("caller map mutated: %+v", fields)
	}
}

func TestEmit_UnwritableDirDoesNotPanic(t *testing.T) {
	base := configure(t, true)
	if err := os.Mkdir(filepath.Join(base, telemetry.EventsDirName), 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(filepath.Join(base, telemetry.EventsDirName), 0o755) // cleanup

	telemetry.Emit("test", map[string]any{"foo": "bar"})
}

func TestEmitTurn_CarriesIDsAndMetrics(t *testing.T) {
	configure(t, true)

	ctx := telemetry.WithTurnID(context.Background(), "turn-xyz")
	ctx = telemetry.WithConversationID(ctx, "abc123")
	tr := metrics.NewTurn("anthropic", "hello  world\nthis is\tgo")
	tr.AddDelta(5 * time.Millisecond)
	tr.AddFlush("blank")

	telemetry.EmitTurn(ctx, telemetry.EventTurnCompleted, tr, map[string]any{"persisted": true})

	events := readEvents(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e["event"] != telemetry.EventTurnCompleted || e["turn_id"] != "turn-xyz" || e["conversation_id"] != "abc123" {
		t.Fatalf("unexpected envelope: %+v", e)
	}
	if e["persisted"] != true || e["deltas"] != float64(1) || e["flushes"] != float64(1) {
		t.Fatalf("unexpected fields: %+v", e)
	}
	user, ok := e["user"].(map[string]any)
	if !ok {
		t.Fatalf("missing user features: %+v", e)
	}
	want := metrics.CountFeatures("hello  world\nthis is\tgo")
	if user["words"] != float64(want.Words) || user["lines"] != float64(want.Lines) {
		t.Fatalf("user features: got %+v want %+v", user, want)
	}
	// Only counts are recorded, never the text itself.
	raw, _ := json.Marshal(e)
	if strings.Contains(string(raw), "hello") {
		t.Fatalf("event leaked message text: %s", raw)
	}
}

func TestEmitContext_WithoutIDs(t *testing.T) {
	configure(t, true)
	telemetry.EmitContext(context.Background(), telemetry.EventTitleGenerated, map[string]any{"ok": true})
	e := readEvents(t)[0]
	if _, ok := e["turn_id"]; ok {
		t.Fatalf("unexpected turn_id: %+v", e)
	}
}
