package shared

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
)

type recordingExecer struct {
	sql  []string
	args [][]any
	tag  string
	err  error
}

func (e *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	e.args = append(e.args, args)
	if e.err != nil {
		return pgconn.CommandTag{}, e.err
	}
	if e.tag != "" {
		return pgconn.NewCommandTag(e.tag), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type recordingTx struct {
	pgx.Tx
	execer recordingExecer
}

func (t *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.execer.Exec(ctx, sql, args...)
}

func TestAuditLoggerFillsActorFromContext(t *testing.T) {
	execer := &recordingExecer{}
	logger := NewAuditLogger(execer)
	ctx := ContextWithActor(context.Background(), Actor{UserID: 9})

	err := logger.Record(ctx, AuditLog{Action: "ORDER_STATUS", Entity: "orders", EntityID: "5", Meta: map[string]any{"to": "confirmed"}})
	require.NoError(t, err)
	require.Len(t, execer.args, 1)
	require.Equal(t, int64(9), execer.args[0][0])
	require.Equal(t, "ORDER_STATUS", execer.args[0][1])
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	logger := NewAuditLogger(&recordingExecer{})
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "X"}))

	var nilLogger *AuditLogger
	require.ErrorIs(t, nilLogger.Record(context.Background(), AuditLog{Action: "X", Entity: "e", EntityID: "1"}), ErrStoreUnavailable)
}

func TestIdempotencyConflict(t *testing.T) {
	execer := &recordingExecer{err: &pgconn.PgError{Code: "23505"}}
	store := NewIdempotencyStore(execer)
	err := store.CheckAndInsert(context.Background(), "k", "inventory")
	require.ErrorIs(t, err, ErrIdempotencyConflict)

	store = NewIdempotencyStore(&recordingExecer{})
	require.NoError(t, store.CheckAndInsert(context.Background(), "k", "inventory"))
	require.Error(t, store.CheckAndInsert(context.Background(), "", "inventory"))

	store = NewIdempotencyStore(&recordingExecer{tag: "INSERT 0 0"})
	require.ErrorIs(t, store.CheckAndInsert(context.Background(), "k", "inventory"), ErrIdempotencyConflict)
}

func TestIdempotencyJoinsContextTransaction(t *testing.T) {
	pool := &recordingExecer{}
	tx := &recordingTx{}
	store := NewIdempotencyStore(pool)
	ctx := db.ContextWithTx(context.Background(), tx)

	require.NoError(t, store.CheckAndInsert(ctx, "k", "inventory"))
	require.NoError(t, store.Delete(ctx, "k"))
	require.Empty(t, pool.sql)
	require.Len(t, tx.execer.sql, 2)
	require.Contains(t, tx.execer.sql[0], "ON CONFLICT")
}

func TestIdempotencyKeyIsStable(t *testing.T) {
	require.Equal(t, IdempotencyKey("order", "12", "fulfil"), IdempotencyKey("order", "12", "fulfil"))
	require.NotEqual(t, IdempotencyKey("order", "12"), IdempotencyKey("order", "13"))
}

func TestApprovalRefDeterministic(t *testing.T) {
	require.Equal(t, ApprovalRef("PR", 4), ApprovalRef("PR", 4))
	require.NotEqual(t, ApprovalRef("PR", 4), ApprovalRef("PR", 5))
}
