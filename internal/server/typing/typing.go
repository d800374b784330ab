// Package typing tracks who is currently typing in which conversation.
// The state is advisory UI state: in-memory only, lost on restart.
package typing

import (
	"sync"

	"github.com/venturelink/messenger/internal/server/models"
)

type conversationTypers struct {
	conversation models.Conversation
	typers       map[string]struct{} // identity keys
}

type Tracker struct {
	mu            sync.Mutex
	conversations map[string]*conversationTypers // conversation key -> typers
}

func NewTracker() *Tracker {
	return &Tracker{conversations: make(map[string]*conversationTypers)}
}

// Set flags or unflags the identity as typing in the conversation. Returns
// whether the state actually changed.
func (t *Tracker) Set(conversation models.Conversation, identity models.Identity, isTyping bool) bool {
	key := conversation.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	ct, ok := t.conversations[key]
	if !ok {
		if !isTyping {
			return false
		}
		ct = &conversationTypers{
			conversation: conversation,
			typers:       make(map[string]struct{}),
		}
		t.conversations[key] = ct
	}

	if isTyping {
		if _, exists := ct.typers[identity.Key()]; exists {
			return false
		}
		ct.typers[identity.Key()] = struct{}{}
		return true
	}

	if _, exists := ct.typers[identity.Key()]; !exists {
		return false
	}
	delete(ct.typers, identity.Key())
	if len(ct.typers) == 0 {
		delete(t.conversations, key)
	}
	return true
}

// IsAnyoneTyping reports whether anyone other than the excluded identity is
// typing in the conversation.
func (t *Tracker) IsAnyoneTyping(conversation models.Conversation, excluding models.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ct, ok := t.conversations[conversation.Key()]
	if !ok {
		return false
	}
	for key := range ct.typers {
		if key != excluding.Key() {
			return true
		}
	}
	return false
}

// ClearIdentity removes the identity's typing flags everywhere and returns
// the conversations that were affected, so the peers can be told the typing
// stopped. Called when an identity's last connection goes away: a lost
// "typing=false" must not leave a stale flag behind.
func (t *Tracker) ClearIdentity(identity models.Identity) []models.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var affected []models.Conversation
	for key, ct := range t.conversations {
		if _, exists := ct.typers[identity.Key()]; !exists {
			continue
		}
		delete(ct.typers, identity.Key())
		affected = append(affected, ct.conversation)
		if len(ct.typers) == 0 {
			delete(t.conversations, key)
		}
	}
	return affected
}
