package messages

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/venturelink/messenger/internal/common"
	"github.com/venturelink/messenger/internal/server/models"
)

// InMemoryRepository implements Repository over a slice, mirroring the
// Postgres semantics (assigned ids, second-resolution timestamps, one-way
// read transition). Used in tests and local development.
type InMemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.Message

	// AppendErr, when set, makes the next Append fail with it. Lets tests
	// verify that nothing is delivered when persistence fails.
	AppendErr error
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Append(ctx context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.AppendErr != nil {
		err := r.AppendErr
		r.AppendErr = nil
		return err
	}

	m.ID = r.nextID
	r.nextID++
	m.CreatedAt = time.Now().UTC().Truncate(time.Second)
	m.IsRead = false

	stored := *m
	r.rows = append(r.rows, &stored)
	return nil
}

func (r *InMemoryRepository) FetchBetween(ctx context.Context, a, b models.Identity) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Message
	for _, m := range r.rows {
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			copied := *m
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *InMemoryRepository) MarkRead(ctx context.Context, id int64, receiver models.Identity) (models.Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.rows {
		if m.ID == id && m.Receiver == receiver {
			if m.IsRead {
				return m.Sender, false, nil
			}
			m.IsRead = true
			return m.Sender, true, nil
		}
	}
	return models.Identity{}, false, common.ErrorNotFound
}

func (r *InMemoryRepository) ListPeers(ctx context.Context, self models.Identity) ([]*models.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey := make(map[string]*models.Peer)
	for _, m := range r.rows {
		var peer models.Identity
		unread := false
		switch {
		case m.Sender == self:
			peer = m.Receiver
		case m.Receiver == self:
			peer = m.Sender
			unread = !m.IsRead
		default:
			continue
		}

		p, ok := byKey[peer.Key()]
		if !ok {
			p = &models.Peer{Identity: peer}
			byKey[peer.Key()] = p
		}
		if m.CreatedAt.After(p.LastMessageAt) {
			p.LastMessageAt = m.CreatedAt
		}
		if unread {
			p.UnreadCount++
		}
	}

	result := make([]*models.Peer, 0, len(byKey))
	for _, p := range byKey {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastMessageAt.After(result[j].LastMessageAt)
	})
	return result, nil
}
