package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/venturelink/messenger/internal/common"
	"github.com/venturelink/messenger/internal/dbx"
	"github.com/venturelink/messenger/internal/server/models"
)

// PostgresRepository implements the conversation store over *sql.DB.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, m *models.Message) error {

	query :=
		`INSERT INTO messages (sender_type, sender_id, receiver_type, receiver_id, content)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, created_at
         `

	err := r.db.QueryRowContext(ctx, query,
		m.Sender.Type, m.Sender.ID, m.Receiver.Type, m.Receiver.ID, m.Ciphertext,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FetchBetween(ctx context.Context, a, b models.Identity) ([]*models.Message, error) {

	query :=
		`SELECT id, sender_type, sender_id, receiver_type, receiver_id, content, is_read, created_at
         FROM messages
         WHERE (sender_type = $1 AND sender_id = $2 AND receiver_type = $3 AND receiver_id = $4)
            OR (sender_type = $3 AND sender_id = $4 AND receiver_type = $1 AND receiver_id = $2)
         ORDER BY created_at, id
         `

	rows, err := r.db.QueryContext(ctx, query, a.Type, a.ID, b.Type, b.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID, &m.Sender.Type, &m.Sender.ID, &m.Receiver.Type, &m.Receiver.ID,
			&m.Ciphertext, &m.IsRead, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead runs in a transaction so the transition check and the fallback
// lookup observe the same row state.
func (r *PostgresRepository) MarkRead(ctx context.Context, id int64, receiver models.Identity) (models.Identity, bool, error) {

	var sender models.Identity
	transitioned := false

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {

		update :=
			`UPDATE messages SET is_read = TRUE
             WHERE id = $1 AND receiver_type = $2 AND receiver_id = $3 AND NOT is_read
             RETURNING sender_type, sender_id
             `

		err := tx.QueryRowContext(ctx, update, id, receiver.Type, receiver.ID).Scan(&sender.Type, &sender.ID)
		if err == nil {
			transitioned = true
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("db error: %w", err)
		}

		// already read, or no such message for this receiver
		err = tx.QueryRowContext(ctx,
			`SELECT sender_type, sender_id FROM messages
             WHERE id = $1 AND receiver_type = $2 AND receiver_id = $3`,
			id, receiver.Type, receiver.ID,
		).Scan(&sender.Type, &sender.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})

	if err != nil {
		return models.Identity{}, false, err
	}
	return sender, transitioned, nil
}

func (r *PostgresRepository) ListPeers(ctx context.Context, self models.Identity) ([]*models.Peer, error) {

	query :=
		`SELECT peer_type, peer_id,
                MAX(created_at) AS last_message_at,
                COUNT(*) FILTER (WHERE unread) AS unread_count
         FROM (
             SELECT receiver_type AS peer_type, receiver_id AS peer_id, created_at, FALSE AS unread
             FROM messages WHERE sender_type = $1 AND sender_id = $2
             UNION ALL
             SELECT sender_type, sender_id, created_at, NOT is_read
             FROM messages WHERE receiver_type = $1 AND receiver_id = $2
         ) pairs
         GROUP BY peer_type, peer_id
         ORDER BY last_message_at DESC
         `

	rows, err := r.db.QueryContext(ctx, query, self.Type, self.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Peer
	for rows.Next() {
		var p models.Peer
		if err := rows.Scan(&p.Identity.Type, &p.Identity.ID, &p.LastMessageAt, &p.UnreadCount); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
