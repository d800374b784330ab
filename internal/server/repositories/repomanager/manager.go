// Package repomanager wires repositories to a shared database handle and
// owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/venturelink/messenger/internal/server/repositories/messages"
)

type RepositoryManager interface {
	Conn() *sql.DB
	Messages() messages.Repository
	RunMigrations(ctx context.Context) error
	Close() error
}
