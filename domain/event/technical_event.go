package event

import "chat-relay/domain"

// PersistenceFailed surfaces a storage append failure as a diagnostic.
// Delivery has already happened when this is emitted; it never blocks routing.
// It rides the deliveries channel with no targets, so only permanent sinks
// ever see it.
type PersistenceFailed struct {
	Key    domain.ConversationKey
	Reason string
}

func (e PersistenceFailed) Conversation() domain.ConversationKey { return e.Key }
