package ws

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/search"
)

var validate = validator.New()

// InboundFrame is the envelope every client frame arrives in.
type InboundFrame struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads. Usernames and room ids exclude the '|' pair separator and
// the ':' storage-key delimiter, so a conversation key can never collide with
// another conversation's prefix. 0x7C is '|', which cannot appear raw in a
// validator tag.
type RegisterPayload struct {
	Username string `json:"username" validate:"required,min=2,max=32,alphanum"`
}

type RoomPayload struct {
	Room string `json:"room" validate:"required,max=64,excludesall=0x7C:"`
}

type MessagePayload struct {
	Message   string `json:"message" validate:"required"`
	Room      string `json:"room" validate:"omitempty,max=64,excludesall=0x7C:"`
	Recipient string `json:"recipient" validate:"omitempty,max=32,alphanum"`
	Type      string `json:"type" validate:"omitempty,oneof=text image"`
}

type TypingPayload struct {
	Room      string `json:"room" validate:"omitempty,max=64,excludesall=0x7C:"`
	Recipient string `json:"recipient" validate:"omitempty,max=32,alphanum"`
	IsTyping  bool   `json:"isTyping"`
}

type ConversationPayload struct {
	Room      string `json:"room" validate:"omitempty,max=64,excludesall=0x7C:"`
	Recipient string `json:"recipient" validate:"omitempty,max=32,alphanum"`
}

type SearchPayload struct {
	Query string `json:"query" validate:"required,max=256"`
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// Outbound frames, one struct per "type" tag.
type messageFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Room      string `json:"room,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type activeUsersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type historyFrame struct {
	Type         string         `json:"type"`
	Conversation string         `json:"conversation"`
	Messages     []messageFrame `json:"messages"`
}

type typingFrame struct {
	Type         string   `json:"type"`
	Conversation string   `json:"conversation"`
	Users        []string `json:"users"`
}

type unreadFrame struct {
	Type         string `json:"type"`
	Conversation string `json:"conversation"`
	Count        int    `json:"count"`
}

type errorFrame struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type searchHitFrame struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Message      string `json:"message"`
	Conversation string `json:"conversation"`
	Language     string `json:"language,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

type searchResultsFrame struct {
	Type string           `json:"type"`
	Hits []searchHitFrame `json:"hits"`
}

func toMessageFrame(record domain.Message) messageFrame {
	return messageFrame{
		Type:      "message",
		ID:        record.ID.String(),
		Username:  record.Sender,
		Message:   record.Body,
		Kind:      string(record.Kind),
		Room:      string(record.Room),
		Recipient: record.Recipient,
		Timestamp: record.CreatedAt.UnixMilli(),
	}
}

func toSearchResultsFrame(hits []search.Hit) searchResultsFrame {
	return searchResultsFrame{
		Type: "searchResults",
		Hits: lo.Map(hits, func(hit search.Hit, _ int) searchHitFrame {
			return searchHitFrame{
				ID:           hit.ID,
				Username:     hit.Sender,
				Message:      hit.Body,
				Conversation: hit.Conversation,
				Language:     hit.Language,
				Timestamp:    hit.At.UnixMilli(),
			}
		}),
	}
}

// encodeEvent converts an engine event to its wire frame.
// Diagnostic events have no client representation and return false.
func encodeEvent(e event.DomainEvent) ([]byte, bool) {
	var frame any
	switch evt := e.(type) {
	case event.MessageDelivered:
		frame = toMessageFrame(evt.Record)
	case event.PresenceChanged:
		frame = activeUsersFrame{Type: "activeUsers", Users: evt.Online}
	case event.HistoryReplayed:
		frame = historyFrame{
			Type:         "messageHistory",
			Conversation: string(evt.Key),
			Messages: lo.Map(evt.Records, func(record domain.Message, _ int) messageFrame {
				return toMessageFrame(record)
			}),
		}
	case event.TypingChanged:
		frame = typingFrame{Type: "typing", Conversation: string(evt.Key), Users: evt.Typing}
	case event.UnreadChanged:
		frame = unreadFrame{Type: "unread", Conversation: string(evt.Key), Count: evt.Count}
	case event.ErrorRaised:
		frame = errorFrame{Type: "error", Code: evt.Code, Reason: evt.Reason}
	default:
		return nil, false
	}

	bytes, err := json.Marshal(frame)
	if err != nil {
		return nil, false
	}
	return bytes, true
}
