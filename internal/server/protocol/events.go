// Package protocol defines the named events and payloads carried over a
// client's persistent connection, both inbound and outbound.
package protocol

import (
	"encoding/json"

	"github.com/venturelink/messenger/internal/server/models"
)

// Inbound events.
const (
	EventJoin       = "join"
	EventSend       = "send"
	EventTyping     = "typing"
	EventMarkAsRead = "markAsRead"
)

// Outbound events.
const (
	EventNewMessage       = "newMessage"
	EventMessageDelivered = "messageDelivered"
	EventMessageError     = "messageError"
	EventMessageRead      = "messageRead"
	EventUserTyping       = "userTyping"
	EventUserOnline       = "userOnline"
)

// Envelope is the frame exchanged over the socket: an event name plus its
// payload, encoded as JSON.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals the payload into an Envelope.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// JoinPayload registers the connection under its identity's room.
type JoinPayload struct {
	Type models.ActorType `json:"type"`
	ID   int64            `json:"id"`
}

// SendPayload carries an outgoing chat message. ClientTempID is an optional
// client-side correlation id echoed back in the delivery ack.
type SendPayload struct {
	SenderType   models.ActorType `json:"senderType"`
	SenderID     int64            `json:"senderId"`
	ReceiverType models.ActorType `json:"receiverType"`
	ReceiverID   int64            `json:"receiverId"`
	Body         string           `json:"body"`
	ClientTempID string           `json:"clientTempId,omitempty"`
}

func (p SendPayload) Sender() models.Identity {
	return models.Identity{Type: p.SenderType, ID: p.SenderID}
}

func (p SendPayload) Receiver() models.Identity {
	return models.Identity{Type: p.ReceiverType, ID: p.ReceiverID}
}

// TypingPayload flags the sender as typing (or not) toward the receiver.
type TypingPayload struct {
	SenderType   models.ActorType `json:"senderType"`
	SenderID     int64            `json:"senderId"`
	ReceiverType models.ActorType `json:"receiverType"`
	ReceiverID   int64            `json:"receiverId"`
	IsTyping     bool             `json:"isTyping"`
}

func (p TypingPayload) Sender() models.Identity {
	return models.Identity{Type: p.SenderType, ID: p.SenderID}
}

func (p TypingPayload) Receiver() models.Identity {
	return models.Identity{Type: p.ReceiverType, ID: p.ReceiverID}
}

// MarkAsReadPayload reports that the receiver has read a message.
type MarkAsReadPayload struct {
	MessageID    int64            `json:"messageId"`
	ReceiverType models.ActorType `json:"receiverType"`
	ReceiverID   int64            `json:"receiverId"`
}

func (p MarkAsReadPayload) Receiver() models.Identity {
	return models.Identity{Type: p.ReceiverType, ID: p.ReceiverID}
}

// NewMessagePayload is the delivered message, decrypted, with the
// store-assigned id and timestamp. ClientTempID is present only on the
// copies delivered to the sender's own connections.
type NewMessagePayload struct {
	models.PlainMessage
	ClientTempID string `json:"clientTempId,omitempty"`
}

// MessageDeliveredPayload acknowledges a successful send to its originator.
type MessageDeliveredPayload struct {
	ClientTempID string `json:"clientTempId,omitempty"`
	ID           int64  `json:"id"`
}

// MessageErrorPayload reports a failed event to its originator only.
type MessageErrorPayload struct {
	Error string `json:"error"`
}

// MessageReadPayload notifies the original sender of a read receipt.
type MessageReadPayload struct {
	MessageID int64 `json:"messageId"`
}

// UserTypingPayload is relayed to the receiver's room.
type UserTypingPayload struct {
	SenderType models.ActorType `json:"senderType"`
	SenderID   int64            `json:"senderId"`
	IsTyping   bool             `json:"isTyping"`
}

// UserOnlinePayload is broadcast to every live connection on presence
// transitions.
type UserOnlinePayload struct {
	Type   models.ActorType `json:"type"`
	ID     int64            `json:"id"`
	Online bool             `json:"online"`
}
