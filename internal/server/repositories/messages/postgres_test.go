package messages

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/venturelink/messenger/internal/common"
	"github.com/venturelink/messenger/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	dev = models.Identity{Type: models.ActorDeveloper, ID: 1}
	ent = models.Identity{Type: models.ActorEntrepreneur, ID: 2}
)

func TestAppend_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created)
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+messages`).
		WithArgs("developer", int64(1), "entrepreneur", int64(2), "aabb:ccdd").
		WillReturnRows(rows)

	m := &models.Message{Sender: dev, Receiver: ent, Ciphertext: "aabb:ccdd"}
	if err := repo.Append(context.Background(), m); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if m.ID != 7 || !m.CreatedAt.Equal(created) {
		t.Fatalf("unexpected message after append: %+v", m)
	}
}

func TestAppend_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+messages`).
		WillReturnError(errors.New("db down"))

	err := repo.Append(context.Background(), &models.Message{Sender: dev, Receiver: ent, Ciphertext: "x:y"})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestFetchBetween_ReturnsBothDirections(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cols := []string{"id", "sender_type", "sender_id", "receiver_type", "receiver_id", "content", "is_read", "created_at"}
	now := time.Now().Truncate(time.Second)
	rows := sqlmock.NewRows(cols).
		AddRow(int64(1), "developer", int64(1), "entrepreneur", int64(2), "c1", false, now).
		AddRow(int64(2), "entrepreneur", int64(2), "developer", int64(1), "c2", true, now.Add(time.Second))

	mock.ExpectQuery(`(?s)^\s*SELECT\s+id,\s*sender_type`).
		WithArgs("developer", int64(1), "entrepreneur", int64(2)).
		WillReturnRows(rows)

	got, err := repo.FetchBetween(context.Background(), dev, ent)
	if err != nil {
		t.Fatalf("FetchBetween error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Sender != dev || got[1].Sender != ent {
		t.Fatalf("unexpected senders: %+v, %+v", got[0], got[1])
	}
}

func TestMarkRead_Transitions(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^\s*UPDATE\s+messages\s+SET\s+is_read`).
		WithArgs(int64(5), "entrepreneur", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"sender_type", "sender_id"}).AddRow("developer", int64(1)))
	mock.ExpectCommit()

	sender, transitioned, err := repo.MarkRead(context.Background(), 5, ent)
	if err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	if !transitioned {
		t.Fatalf("expected transition")
	}
	if sender != dev {
		t.Fatalf("unexpected sender: %v", sender)
	}
}

func TestMarkRead_AlreadyRead_NoOp(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^\s*UPDATE\s+messages\s+SET\s+is_read`).
		WithArgs(int64(5), "entrepreneur", int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`(?s)^\s*SELECT\s+sender_type,\s*sender_id\s+FROM\s+messages`).
		WithArgs(int64(5), "entrepreneur", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"sender_type", "sender_id"}).AddRow("developer", int64(1)))
	mock.ExpectCommit()

	sender, transitioned, err := repo.MarkRead(context.Background(), 5, ent)
	if err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	if transitioned {
		t.Fatalf("expected no transition on already-read message")
	}
	if sender != dev {
		t.Fatalf("unexpected sender: %v", sender)
	}
}

func TestMarkRead_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^\s*UPDATE\s+messages\s+SET\s+is_read`).
		WithArgs(int64(404), "entrepreneur", int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`(?s)^\s*SELECT\s+sender_type,\s*sender_id\s+FROM\s+messages`).
		WithArgs(int64(404), "entrepreneur", int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.MarkRead(context.Background(), 404, ent)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected common.ErrorNotFound, got %v", err)
	}
}

func TestListPeers(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().Truncate(time.Second)
	rows := sqlmock.NewRows([]string{"peer_type", "peer_id", "last_message_at", "unread_count"}).
		AddRow("entrepreneur", int64(2), now, 3).
		AddRow("entrepreneur", int64(9), now.Add(-time.Hour), 0)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+peer_type,\s*peer_id`).
		WithArgs("developer", int64(1)).
		WillReturnRows(rows)

	got, err := repo.ListPeers(context.Background(), dev)
	if err != nil {
		t.Fatalf("ListPeers error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(got))
	}
	if got[0].UnreadCount != 3 || got[0].Identity.ID != 2 {
		t.Fatalf("unexpected first peer: %+v", got[0])
	}
}
