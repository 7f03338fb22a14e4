package sink

import (
	"context"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Timeline holds a simple local timeline of delivered records.
// Mainly useful as an observability projection and in tests.
type Timeline struct {
	Owner    string
	Messages []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{
		Messages: nil,
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		t.Messages = append(t.Messages, evt.Record)
		return nil
	}
	return nil
}
