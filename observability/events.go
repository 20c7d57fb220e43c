package observability

import (
	"log/slog"

	"duostake/core/events"
	"duostake/core/types"
)

// payloadEvent is implemented by event payloads that can render a
// broadcastable attribute map.
type payloadEvent interface {
	Event() *types.Event
}

// LogEmitter forwards engine events to structured logs. It is the default
// sink for single-process deployments without an external event bus.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the events.Emitter interface.
func (l LogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{slog.String("event", evt.EventType())}
	if payload, ok := evt.(payloadEvent); ok {
		if rendered := payload.Event(); rendered != nil {
			for key, value := range rendered.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	logger.Info("staking event", args...)
}
