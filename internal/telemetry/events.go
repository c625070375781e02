package telemetry

import (
	"context"

	"github.com/petasbytes/rye/internal/metrics"
)

const (
	EventTurnCompleted       = "turn_completed"
	EventTurnFailed          = "turn_failed"
	EventTitleGenerated      = "title_generated"
	EventConversationRenamed = "conversation_renamed"
)

// EmitTurn emits a turn event with the turn's metrics. extra fields override
// metric fields of the same name.
func EmitTurn(ctx context.Context, name string, t *metrics.Turn, extra map[string]any) {
	if !Enabled() {
		return
	}
	fields := map[string]any{}
	if t != nil {
		fields = t.Fields()
	}
	for k, v := range extra {
		fields[k] = v
	}
	EmitContext(ctx, name, fields)
}

// EmitContext emits an event tagged with the turn and conversation ids
// carried by ctx.
func EmitContext(ctx context.Context, name string, fields map[string]any) {
	if !Enabled() {
		return
	}
	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	if id, ok := TurnIDFromContext(ctx); ok {
		m["turn_id"] = id
	}
	if id, ok := ConversationIDFromContext(ctx); ok {
		m["conversation_id"] = id
	}
	Emit(name, m)
}
