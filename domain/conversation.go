package domain

// ConversationKey is the canonical identifier of a conversation: the room id
// for room traffic, the normalized participant pair for direct traffic, and
// PublicConversation for broadcasts. History storage and unread counters must
// agree on this derivation, so it lives in one place.
type ConversationKey string

const PublicConversation ConversationKey = "general"

// DirectKey normalizes a DM pair to a canonical order so that both
// participants derive the same key regardless of who is sending.
func DirectKey(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey(a + "|" + b)
}

// KeyFor resolves the conversation key with the router precedence:
// room if present, else the participant pair, else the public conversation.
func KeyFor(room RoomID, sender, recipient string) ConversationKey {
	if room != "" {
		return ConversationKey(room)
	}
	if recipient != "" {
		return DirectKey(sender, recipient)
	}
	return PublicConversation
}
