package metrics

import (
	"time"
)

// Turn aggregates what one chat turn produced, for telemetry. It never holds
// message text, only counts derived from it.
type Turn struct {
	Provider string
	User     Features
	Reply    Features
	// Deltas is the number of non-empty text deltas received.
	Deltas int
	// Flushes counts rendered fragments by boundary reason.
	Flushes map[string]int
	// Window describes the history actually sent.
	WindowMessages int
	WindowTokens   int
	SkippedGroups  int

	FirstDelta time.Duration
	Duration   time.Duration
}

// NewTurn starts a Turn for the given user input.
func NewTurn(provider, user string) *Turn {
	return &Turn{Provider: provider, User: CountFeatures(user), Flushes: map[string]int{}}
}

// AddDelta records a received delta; elapsed is the time since the turn started.
func (t *Turn) AddDelta(elapsed time.Duration) {
	if t.Deltas == 0 {
		t.FirstDelta = elapsed
	}
	t.Deltas++
}

// AddFlush records one rendered fragment.
func (t *Turn) AddFlush(reason string) {
	t.Flushes[reason]++
}

// FlushCount returns the total number of rendered fragments.
func (t *Turn) FlushCount() int {
	n := 0
	for _, c := range t.Flushes {
		n += c
	}
	return n
}

// Fields flattens the turn into telemetry event fields.
func (t *Turn) Fields() map[string]any {
	return map[string]any{
		"provider":         t.Provider,
		"features_version": "3",
		"user":             t.User.fields(),
		"reply":            t.Reply.fields(),
		"deltas":           t.Deltas,
		"flushes":          t.FlushCount(),
		"flush_reasons":    t.Flushes,
		"window_messages":  t.WindowMessages,
		"window_tokens":    t.WindowTokens,
		"skipped_groups":   t.SkippedGroups,
		"first_delta_ms":   t.FirstDelta.Milliseconds(),
		"duration_ms":      t.Duration.Milliseconds(),
	}
}
