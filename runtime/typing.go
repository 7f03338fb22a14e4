package runtime

import (
	"sort"
	"time"

	"chat-relay/domain"
)

// TypingState tracks who is currently typing in each conversation.
// Entries are ephemeral: cleared on explicit stop, on message send, on
// disconnect, and swept once they exceed the configured TTL so a lost stop
// event cannot leave a stuck indicator.
type TypingState struct {
	byKey map[domain.ConversationKey]map[string]time.Time
}

func NewTypingState() *TypingState {
	return &TypingState{byKey: make(map[domain.ConversationKey]map[string]time.Time)}
}

// Set records or refreshes a typing flag. Returns true when the visible
// typing set for the conversation changed.
func (t *TypingState) Set(key domain.ConversationKey, username string, isTyping bool, now time.Time) bool {
	if !isTyping {
		return t.Clear(key, username)
	}
	users, ok := t.byKey[key]
	if !ok {
		users = make(map[string]time.Time)
		t.byKey[key] = users
	}
	_, present := users[username]
	users[username] = now
	return !present
}

// Clear removes one user from one conversation. Returns true if present.
func (t *TypingState) Clear(key domain.ConversationKey, username string) bool {
	users, ok := t.byKey[key]
	if !ok {
		return false
	}
	if _, present := users[username]; !present {
		return false
	}
	delete(users, username)
	if len(users) == 0 {
		delete(t.byKey, key)
	}
	return true
}

// ClearUser removes the user from every conversation, returning the keys
// whose typing set changed. Called on disconnect.
func (t *TypingState) ClearUser(username string) []domain.ConversationKey {
	var affected []domain.ConversationKey
	for key := range t.byKey {
		if t.Clear(key, username) {
			affected = append(affected, key)
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i] < affected[j] })
	return affected
}

// Active returns the sorted typing set for a conversation.
func (t *TypingState) Active(key domain.ConversationKey) []string {
	users, ok := t.byKey[key]
	if !ok {
		return nil
	}
	active := make([]string, 0, len(users))
	for username := range users {
		active = append(active, username)
	}
	sort.Strings(active)
	return active
}

// Sweep drops entries not refreshed within ttl and returns the affected keys.
func (t *TypingState) Sweep(now time.Time, ttl time.Duration) []domain.ConversationKey {
	var affected []domain.ConversationKey
	for key, users := range t.byKey {
		changed := false
		for username, at := range users {
			if now.Sub(at) > ttl {
				delete(users, username)
				changed = true
			}
		}
		if len(users) == 0 {
			delete(t.byKey, key)
		}
		if changed {
			affected = append(affected, key)
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i] < affected[j] })
	return affected
}
