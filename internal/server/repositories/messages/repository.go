// Package messages provides the PostgreSQL-backed conversation store: an
// append-only log of encrypted messages between two identities.
package messages

import (
	"context"

	"github.com/venturelink/messenger/internal/server/models"
)

// Repository is the durable message store. Append is the only path that
// creates a message; rows are never deleted and only the is_read flag is
// ever updated, one way.
type Repository interface {
	// Append persists the message and fills in the store-assigned ID and
	// CreatedAt. It must complete before any delivery is attempted.
	Append(ctx context.Context, m *models.Message) error

	// FetchBetween returns every message exchanged between the two
	// identities in either direction, ascending by creation time.
	FetchBetween(ctx context.Context, a, b models.Identity) ([]*models.Message, error)

	// MarkRead flips is_read for the given message, scoped to its receiver
	// so one party cannot mark another's messages. It is idempotent:
	// marking an already-read message is a no-op, not an error. Returns the
	// original sender and whether the row actually transitioned.
	MarkRead(ctx context.Context, id int64, receiver models.Identity) (models.Identity, bool, error)

	// ListPeers returns the distinct counterparties that have exchanged at
	// least one message with self, most recent conversation first.
	ListPeers(ctx context.Context, self models.Identity) ([]*models.Peer, error)
}
