package sink

import (
	"context"
	"log/slog"

	"chat-relay/domain/event"
	"chat-relay/search"
)

// SearchSink feeds delivered text messages into the full-text index.
type SearchSink struct {
	index *search.Index
	log   *slog.Logger
}

func NewSearchSink(index *search.Index, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		if err := s.index.Add(evt.Record); err != nil {
			s.log.Error("Index add failed", "message_id", evt.Record.ID, "error", err)
			return err
		}
		return nil
	default:
		return nil
	}
}
