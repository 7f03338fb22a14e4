package event

import (
	"time"

	"chat-relay/domain"
)

// DomainEvent is anything the engine pushes to sinks: delivered messages,
// presence changes, typing sets, replays and targeted errors.
type DomainEvent interface {
	Conversation() domain.ConversationKey
}

// MessageDelivered carries one routed record to every sink in its delivery set.
type MessageDelivered struct {
	Record domain.Message
}

func (e MessageDelivered) Conversation() domain.ConversationKey {
	return e.Record.Conversation()
}

// PresenceChanged broadcasts the full current online-username set.
type PresenceChanged struct {
	Online []string
	At     time.Time
}

func (e PresenceChanged) Conversation() domain.ConversationKey {
	return domain.PublicConversation
}

// TypingChanged carries the complete typing set of one conversation.
type TypingChanged struct {
	Key    domain.ConversationKey
	Typing []string
}

func (e TypingChanged) Conversation() domain.ConversationKey { return e.Key }

// HistoryReplayed is pushed to a single joining connection.
type HistoryReplayed struct {
	Key     domain.ConversationKey
	Records []domain.Message
}

func (e HistoryReplayed) Conversation() domain.ConversationKey { return e.Key }

// UnreadChanged informs one viewer that a counter moved.
type UnreadChanged struct {
	Key      domain.ConversationKey
	Username string
	Count    int
}

func (e UnreadChanged) Conversation() domain.ConversationKey { return e.Key }

// ErrorRaised is a targeted, structured failure pushed back to the sender only.
type ErrorRaised struct {
	Code   string
	Reason string
}

func (e ErrorRaised) Conversation() domain.ConversationKey { return "" }
