// Package sink contains the permanent event consumers fed by the fanout:
// persistence, search indexing and in-memory projections.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// DiskSink appends every delivered message to the history store.
// Persistence is best-effort by contract: an append failure is returned to
// the fanout, which logs it; it never reaches the delivery path.
type DiskSink struct {
	history contract.HistoryStore
	log     *slog.Logger
}

func NewDiskSink(history contract.HistoryStore, log *slog.Logger) DiskSink {
	return DiskSink{history: history, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		if err := d.history.Append(evt.Record); err != nil {
			d.log.Error("Message append failed",
				"conversation", evt.Record.Conversation(), "error", err)
			return fmt.Errorf("%w: %v", errors.ErrPersistenceFailure, err)
		}
		return nil
	default:
		return nil
	}
}
