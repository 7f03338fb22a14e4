package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

func TestSessionSink_Buffers_Events(t *testing.T) {
	req := require.New(t)
	sessionSink := NewSessionSink(2)
	ctx := context.Background()

	req.NoError(sessionSink.Consume(ctx, event.PresenceChanged{Online: []string{"alice"}}))
	req.NoError(sessionSink.Consume(ctx, event.TypingChanged{Key: domain.PublicConversation}))
	req.Len(sessionSink.Events, 2)
}

func TestSessionSink_Full_Buffer_Drops_Without_Blocking(t *testing.T) {
	req := require.New(t)
	sessionSink := NewSessionSink(1)
	ctx := context.Background()

	req.NoError(sessionSink.Consume(ctx, event.PresenceChanged{}))

	// A slow client must not stall the fanout
	req.NoError(sessionSink.Consume(ctx, event.PresenceChanged{}))
	req.Len(sessionSink.Events, 1)
}

func TestSessionSink_Ignores_Cancelled_Context(t *testing.T) {
	req := require.New(t)
	sessionSink := NewSessionSink(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Consume enqueues or drops; it never reports the caller's context
	req.NoError(sessionSink.Consume(ctx, event.PresenceChanged{}))
	req.Len(sessionSink.Events, 1)
}
