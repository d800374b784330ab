// Package relay orchestrates the realtime message flow: it sits between the
// transport layer and the message service, enforcing the persist-before-
// deliver rule and fanning events out to the right connections.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/venturelink/messenger/internal/common"
	"github.com/venturelink/messenger/internal/logging"
	"github.com/venturelink/messenger/internal/server/metrics"
	"github.com/venturelink/messenger/internal/server/models"
	"github.com/venturelink/messenger/internal/server/protocol"
	"github.com/venturelink/messenger/internal/server/registry"
	"github.com/venturelink/messenger/internal/server/services"
	"github.com/venturelink/messenger/internal/server/typing"
)

// Relay routes inbound client events. Every failure is reported to the
// originating connection only; peers never see another client's errors.
type Relay struct {
	svc            *services.MessageService
	reg            *registry.Registry
	typers         *typing.Tracker
	metrics        metrics.Collector
	logger         logging.Logger
	persistTimeout time.Duration
}

func New(svc *services.MessageService, reg *registry.Registry, typers *typing.Tracker, collector metrics.Collector, logger logging.Logger, persistTimeout time.Duration) *Relay {
	return &Relay{
		svc:            svc,
		reg:            reg,
		typers:         typers,
		metrics:        collector,
		logger:         logger.With("module", "relay"),
		persistTimeout: persistTimeout,
	}
}

// Send persists the message and only then fans it out. When persistence
// fails the receiver sees nothing; the sender gets a messageError and must
// retry.
func (r *Relay) Send(ctx context.Context, sender models.Identity, origin registry.Conn, p protocol.SendPayload) {
	if p.Sender() != sender {
		r.fail(origin, "sender does not match the authenticated identity", "identity_mismatch")
		return
	}
	receiver := p.Receiver()
	if !receiver.Valid() {
		r.fail(origin, "invalid receiver", "invalid_receiver")
		return
	}
	if receiver == sender {
		r.fail(origin, "cannot message yourself", "self_message")
		return
	}
	if p.Body == "" {
		r.fail(origin, "empty message body", "empty_body")
		return
	}

	persistCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	m, err := r.svc.Store(persistCtx, sender, receiver, p.Body)
	if err != nil {
		r.logger.Error(ctx, "message persistence failed", "sender", sender.Key(), "receiver", receiver.Key(), "error", err)
		r.fail(origin, "message could not be saved", "persist")
		return
	}
	r.metrics.MessageSent()

	plain := models.PlainMessage{
		ID:           m.ID,
		SenderType:   m.Sender.Type,
		SenderID:     m.Sender.ID,
		ReceiverType: m.Receiver.Type,
		ReceiverID:   m.Receiver.ID,
		Body:         p.Body,
		IsRead:       m.IsRead,
		CreatedAt:    m.CreatedAt,
	}

	r.deliver(r.reg.Lookup(receiver.Key()), protocol.EventNewMessage,
		protocol.NewMessagePayload{PlainMessage: plain})

	// The sender's own connections get the message too, so other open
	// devices stay in sync. Only they receive the correlation id.
	r.deliver(r.reg.Lookup(sender.Key()), protocol.EventNewMessage,
		protocol.NewMessagePayload{PlainMessage: plain, ClientTempID: p.ClientTempID})

	if !origin.Deliver(protocol.EventMessageDelivered, protocol.MessageDeliveredPayload{
		ClientTempID: p.ClientTempID,
		ID:           m.ID,
	}) {
		r.logger.Warn(ctx, "delivery ack dropped", "conn", origin.ID())
	}
}

// MarkRead flips the read flag on behalf of the receiver and notifies the
// original sender, but only when this call actually performed the
// transition. Repeated marks stay silent.
func (r *Relay) MarkRead(ctx context.Context, receiver models.Identity, origin registry.Conn, p protocol.MarkAsReadPayload) {
	if p.Receiver() != receiver {
		r.fail(origin, "receiver does not match the authenticated identity", "identity_mismatch")
		return
	}

	persistCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	sender, transitioned, err := r.svc.MarkRead(persistCtx, p.MessageID, receiver)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			r.fail(origin, "message not found", "not_found")
			return
		}
		r.logger.Error(ctx, "mark read failed", "message_id", p.MessageID, "error", err)
		r.fail(origin, "message could not be marked as read", "persist")
		return
	}
	if !transitioned {
		return
	}

	r.deliver(r.reg.Lookup(sender.Key()), protocol.EventMessageRead,
		protocol.MessageReadPayload{MessageID: p.MessageID})
}

// Typing relays a typing flag to the receiver's connections. Repeating the
// current state is dropped instead of relayed.
func (r *Relay) Typing(sender models.Identity, origin registry.Conn, p protocol.TypingPayload) {
	if p.Sender() != sender {
		r.fail(origin, "sender does not match the authenticated identity", "identity_mismatch")
		return
	}
	receiver := p.Receiver()
	if !receiver.Valid() {
		r.fail(origin, "invalid receiver", "invalid_receiver")
		return
	}

	conversation := models.NewConversation(sender, receiver)
	if !r.typers.Set(conversation, sender, p.IsTyping) {
		return
	}
	// Suppress the stop notification while someone else still types toward
	// the receiver.
	if !p.IsTyping && r.typers.IsAnyoneTyping(conversation, receiver) {
		return
	}

	r.deliver(r.reg.Lookup(receiver.Key()), protocol.EventUserTyping, protocol.UserTypingPayload{
		SenderType: sender.Type,
		SenderID:   sender.ID,
		IsTyping:   p.IsTyping,
	})
}

// Disconnected clears the identity's typing flags after its last connection
// went away and tells the affected peers the typing stopped. A connection
// that dies mid-keystroke must not leave a spinner behind.
func (r *Relay) Disconnected(identity models.Identity) {
	for _, conversation := range r.typers.ClearIdentity(identity) {
		other := conversation.Other(identity)
		r.deliver(r.reg.Lookup(other.Key()), protocol.EventUserTyping, protocol.UserTypingPayload{
			SenderType: identity.Type,
			SenderID:   identity.ID,
			IsTyping:   false,
		})
	}
}

// PresenceChanged broadcasts an online/offline transition to every live
// connection. Wired as the registry's presence listener.
func (r *Relay) PresenceChanged(identity models.Identity, online bool) {
	r.metrics.PresenceBroadcast()
	r.deliver(r.reg.Conns(), protocol.EventUserOnline, protocol.UserOnlinePayload{
		Type:   identity.Type,
		ID:     identity.ID,
		Online: online,
	})
}

func (r *Relay) deliver(conns []registry.Conn, event string, payload any) {
	for _, c := range conns {
		if !c.Deliver(event, payload) {
			r.logger.Warn(context.Background(), "event dropped, connection buffer full", "event", event, "conn", c.ID())
		}
	}
}

func (r *Relay) fail(origin registry.Conn, message, reason string) {
	r.metrics.MessageFailed(reason)
	if !origin.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: message}) {
		r.logger.Warn(context.Background(), "error event dropped", "conn", origin.ID())
	}
}
