package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDriver records transaction outcomes so WithTx behavior can be verified
// without a real database.
type fakeDriver struct {
	mu         sync.Mutex
	commits    int
	rollbacks  int
	failBegin  bool
	beginError error
}

type fakeConn struct{ d *fakeDriver }
type fakeTx struct{ d *fakeDriver }

func (d *fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{d: d}, nil }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) {
	if c.d.failBegin {
		return nil, c.d.beginError
	}
	return &fakeTx{d: c.d}, nil
}

func (tx *fakeTx) Commit() error {
	tx.d.mu.Lock()
	defer tx.d.mu.Unlock()
	tx.d.commits++
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.d.mu.Lock()
	defer tx.d.mu.Unlock()
	tx.d.rollbacks++
	return nil
}

var registerOnce sync.Once
var sharedDriver = &fakeDriver{}

func setupDB(t *testing.T) (*sql.DB, *fakeDriver) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("dbx_fake", sharedDriver) })
	sharedDriver.mu.Lock()
	sharedDriver.commits = 0
	sharedDriver.rollbacks = 0
	sharedDriver.failBegin = false
	sharedDriver.mu.Unlock()

	db, err := sql.Open("dbx_fake", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, sharedDriver
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, d := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, d.commits)
	require.Equal(t, 0, d.rollbacks)
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db, d := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, d.commits)
	require.Equal(t, 1, d.rollbacks)
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db, d := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, d.commits)
		require.Equal(t, 1, d.rollbacks)
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db, d := setupDB(t)
	d.failBegin = true
	d.beginError = errors.New("begin refused")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err)
}
