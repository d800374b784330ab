package models

import "fmt"

// ActorType distinguishes the two user kinds of the surrounding marketplace.
type ActorType string

const (
	ActorDeveloper    ActorType = "developer"
	ActorEntrepreneur ActorType = "entrepreneur"
)

// Valid reports whether t is one of the known actor types.
func (t ActorType) Valid() bool {
	return t == ActorDeveloper || t == ActorEntrepreneur
}

// Identity is an opaque (type, id) pair referring to a marketplace user.
// Accounts themselves are owned by the surrounding platform.
type Identity struct {
	Type ActorType `json:"type"`
	ID   int64     `json:"id"`
}

// Valid reports whether the identity refers to a plausible user.
func (i Identity) Valid() bool {
	return i.Type.Valid() && i.ID > 0
}

// Key is the canonical "{type}_{id}" form used for session and room lookups.
func (i Identity) Key() string {
	return fmt.Sprintf("%s_%d", i.Type, i.ID)
}

// Conversation is the unordered pair of two identities. NewConversation
// normalizes the order so both orderings map to the same value.
type Conversation struct {
	A Identity
	B Identity
}

func NewConversation(a, b Identity) Conversation {
	if a.Key() > b.Key() {
		a, b = b, a
	}
	return Conversation{A: a, B: b}
}

// Key uniquely identifies the conversation regardless of who sent first.
func (c Conversation) Key() string {
	return c.A.Key() + ":" + c.B.Key()
}

// Other returns the participant that is not the given identity.
func (c Conversation) Other(self Identity) Identity {
	if c.A == self {
		return c.B
	}
	return c.A
}
