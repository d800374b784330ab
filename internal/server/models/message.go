package models

import "time"

// Message is the durable unit of conversation. The body is stored encrypted;
// plaintext never reaches the repository layer. A message is immutable once
// created except for the one-way IsRead transition.
type Message struct {
	ID         int64
	Sender     Identity
	Receiver   Identity
	Ciphertext string
	IsRead     bool
	CreatedAt  time.Time
}

// PlainMessage is a message with its body decrypted, as delivered over the
// wire or returned from history queries. Undecipherable marks rows whose
// stored ciphertext could not be decoded; the body then holds a placeholder.
type PlainMessage struct {
	ID             int64     `json:"id"`
	SenderType     ActorType `json:"senderType"`
	SenderID       int64     `json:"senderId"`
	ReceiverType   ActorType `json:"receiverType"`
	ReceiverID     int64     `json:"receiverId"`
	Body           string    `json:"body"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
	Undecipherable bool      `json:"undecipherable,omitempty"`
}

// Sender returns the sender as an Identity.
func (m PlainMessage) Sender() Identity {
	return Identity{Type: m.SenderType, ID: m.SenderID}
}

// Receiver returns the receiver as an Identity.
func (m PlainMessage) Receiver() Identity {
	return Identity{Type: m.ReceiverType, ID: m.ReceiverID}
}

// Peer is a conversation counterparty as listed on dashboards: who, when the
// last message was exchanged and how many of their messages are still unread.
type Peer struct {
	Identity      Identity  `json:"identity"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}
