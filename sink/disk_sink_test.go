package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

type memoryStore struct {
	records []domain.Message
	failing bool
}

func (m *memoryStore) Append(record domain.Message) error {
	if m.failing {
		return fmt.Errorf("disk full")
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryStore) Recent(key domain.ConversationKey, limit int) ([]domain.Message, error) {
	return m.records, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDiskSink_Appends_Delivered_Messages_Only(t *testing.T) {
	req := require.New(t)
	store := &memoryStore{}
	diskSink := NewDiskSink(store, discardLogger())
	ctx := context.Background()

	// Delivered messages are appended
	record := domain.Message{Sender: "alice", Body: "hi", Scope: domain.ScopePublic}
	req.NoError(diskSink.Consume(ctx, event.MessageDelivered{Record: record}))
	req.Len(store.records, 1)

	// Ephemeral events are not
	req.NoError(diskSink.Consume(ctx, event.PresenceChanged{Online: []string{"alice"}}))
	req.NoError(diskSink.Consume(ctx, event.TypingChanged{Key: domain.PublicConversation}))
	req.Len(store.records, 1)
}

func TestDiskSink_Append_Failure_Is_Wrapped(t *testing.T) {
	req := require.New(t)
	diskSink := NewDiskSink(&memoryStore{failing: true}, discardLogger())

	err := diskSink.Consume(context.Background(),
		event.MessageDelivered{Record: domain.Message{Sender: "alice"}})

	req.ErrorIs(err, errors.ErrPersistenceFailure)
}

func TestTimeline_Collects_Delivered_Records(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.MessageDelivered{Record: domain.Message{Body: "one"}}))
	req.NoError(timeline.Consume(ctx, event.PresenceChanged{}))
	req.NoError(timeline.Consume(ctx, event.MessageDelivered{Record: domain.Message{Body: "two"}}))

	req.Len(timeline.Messages, 2)
	req.Equal("one", timeline.Messages[0].Body)
	req.Equal("two", timeline.Messages[1].Body)
}
