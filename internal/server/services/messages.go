// Package services contains the application services sitting between the
// transport layers and the repositories.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/venturelink/messenger/internal/cipherx"
	"github.com/venturelink/messenger/internal/common"
	"github.com/venturelink/messenger/internal/logging"
	"github.com/venturelink/messenger/internal/server/models"
	"github.com/venturelink/messenger/internal/server/repositories/messages"
)

// MessageService owns the plaintext/ciphertext boundary: bodies are
// encrypted right before they reach the repository and decrypted right
// before they leave it. Ciphertext never crosses this package outward,
// plaintext never crosses it inward to storage.
type MessageService struct {
	repo   messages.Repository
	cipher *cipherx.Cipher
	logger logging.Logger
}

func NewMessageService(repo messages.Repository, cipher *cipherx.Cipher, logger logging.Logger) *MessageService {
	return &MessageService{
		repo:   repo,
		cipher: cipher,
		logger: logger.With("module", "message_service"),
	}
}

// Store encrypts and durably persists a message body. The returned message
// carries the store-assigned id and timestamp.
func (s *MessageService) Store(ctx context.Context, sender, receiver models.Identity, body string) (*models.Message, error) {

	ciphertext, err := s.cipher.Encrypt(body)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	m := &models.Message{
		Sender:     sender,
		Receiver:   receiver,
		Ciphertext: ciphertext,
	}

	if err := s.repo.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append: %w", err)
	}

	return m, nil
}

// History returns the decrypted conversation between two identities,
// ascending by creation time. A row whose ciphertext cannot be decoded
// degrades to an unreadable-message placeholder instead of failing the
// whole query.
func (s *MessageService) History(ctx context.Context, a, b models.Identity) ([]models.PlainMessage, error) {

	stored, err := s.repo.FetchBetween(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	result := make([]models.PlainMessage, 0, len(stored))
	for _, m := range stored {
		plain := models.PlainMessage{
			ID:           m.ID,
			SenderType:   m.Sender.Type,
			SenderID:     m.Sender.ID,
			ReceiverType: m.Receiver.Type,
			ReceiverID:   m.Receiver.ID,
			IsRead:       m.IsRead,
			CreatedAt:    m.CreatedAt,
		}

		body, err := s.cipher.Decrypt(m.Ciphertext)
		if err != nil {
			if !errors.Is(err, common.ErrMalformedCiphertext) {
				return nil, fmt.Errorf("decrypt message %d: %w", m.ID, err)
			}
			s.logger.Warn(ctx, "undecipherable message in history", "message_id", m.ID)
			plain.Undecipherable = true
		} else {
			plain.Body = body
		}

		result = append(result, plain)
	}

	return result, nil
}

// MarkRead flips the read flag. Idempotent: the bool result reports whether
// this call performed the transition, so callers can decide whether to
// notify the sender.
func (s *MessageService) MarkRead(ctx context.Context, id int64, receiver models.Identity) (models.Identity, bool, error) {
	sender, transitioned, err := s.repo.MarkRead(ctx, id, receiver)
	if err != nil {
		return models.Identity{}, false, fmt.Errorf("mark read: %w", err)
	}
	return sender, transitioned, nil
}

// Peers lists the identity's conversation counterparties.
func (s *MessageService) Peers(ctx context.Context, self models.Identity) ([]*models.Peer, error) {
	peers, err := s.repo.ListPeers(ctx, self)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	return peers, nil
}
