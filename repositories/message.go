//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
)

type IMessageRepository interface {
	Append(record domain.Message) error
	Recent(key domain.ConversationKey, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskMessage is the stored shape of a record, JSON-encoded in BadgerDB.
type DiskMessage struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	Scope     string    `json:"scope"`
	Room      string    `json:"room,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Language  string    `json:"language,omitempty"`
	At        int64     `json:"at"` // unix nanoseconds
}

// Append persists a record in BadgerDB.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// The conversation segment must not contain ':', or it would bleed into
// another conversation's prefix space; the transport edge keeps ':' out of
// room ids and usernames are alphanumeric, so every key honors this.
func (m MessageRepository) Append(record domain.Message) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		record.Conversation(),
		record.CreatedAt.UnixNano(),
		record.ID,
	)
	bytes, err := json.Marshal(fromRecord(record))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// Recent retrieves up to limit records for a conversation using a reverse
// prefix scan, then flips the order so callers get oldest-first (newest-last),
// ready for display. The padded timestamp in the key keeps the scan sorted.
func (m MessageRepository) Recent(key domain.ConversationKey, limit int) ([]domain.Message, error) {
	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", key))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this conversation,
		// then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(byteMessages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.Message, 0, len(byteMessages))
	// Reverse scan yielded newest-first; walk backwards to return oldest-first.
	for i := len(byteMessages) - 1; i >= 0; i-- {
		var dm DiskMessage
		if err = json.Unmarshal(byteMessages[i], &dm); err != nil {
			return nil, err
		}
		records = append(records, toRecord(dm))
	}
	return records, nil
}

// All streams every stored record, oldest-first across conversations.
// Used by the search index warm-up and the viewer CLI.
func (m MessageRepository) All() ([]domain.Message, error) {
	var records []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var dm DiskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				records = append(records, toRecord(dm))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

func fromRecord(record domain.Message) DiskMessage {
	return DiskMessage{
		ID:        record.ID,
		Sender:    record.Sender,
		Body:      record.Body,
		Kind:      string(record.Kind),
		Scope:     string(record.Scope),
		Room:      string(record.Room),
		Recipient: record.Recipient,
		Language:  record.Language,
		At:        record.CreatedAt.UnixNano(),
	}
}

func toRecord(dm DiskMessage) domain.Message {
	return domain.Message{
		ID:        dm.ID,
		Sender:    dm.Sender,
		Body:      dm.Body,
		Kind:      domain.Kind(dm.Kind),
		Scope:     domain.Scope(dm.Scope),
		Room:      domain.RoomID(dm.Room),
		Recipient: dm.Recipient,
		Language:  dm.Language,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}
}
