// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

type Scope string

const (
	ScopePublic Scope = "public"
	ScopeRoom   Scope = "room"
	ScopeDirect Scope = "direct"
)

// Message represents an immutable chat record.
// Body is opaque to the core: text for KindText, an encoded blob for KindImage.
type Message struct {
	ID        uuid.UUID
	Sender    string
	Body      string
	Kind      Kind
	Scope     Scope
	Room      RoomID // set when Scope == ScopeRoom
	Recipient string // set when Scope == ScopeDirect
	Language  string // ISO 639-3 tag, empty for image payloads
	CreatedAt time.Time
}

// Conversation derives the history/unread bookkeeping key for this record.
func (m Message) Conversation() ConversationKey {
	return KeyFor(m.Room, m.Sender, m.Recipient)
}
