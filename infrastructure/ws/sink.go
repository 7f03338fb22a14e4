package ws

import (
	"context"

	"chat-relay/domain/event"
)

// SessionSink bridges the engine to one live websocket session.
// The fanout pushes events here; the session's write pump drains them.
type SessionSink struct {
	Events chan event.DomainEvent
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the fanout and never blocks. Dropping on a full
// buffer is the only backpressure for a slow client; the fanout's per-sink
// timeout only matters for the permanent sinks.
func (s *SessionSink) Consume(_ context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
	default:
	}
	return nil
}
