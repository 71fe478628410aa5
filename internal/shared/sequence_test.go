package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type seqRow struct {
	seq int64
	err error
}

func (r seqRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.seq
	return nil
}

type sequenceQuerier struct {
	seq  map[string]int64
	args [][]any
	err  error
}

func (q *sequenceQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = append(q.args, args)
	if q.err != nil {
		return seqRow{err: q.err}
	}
	key := args[0].(string) + "/" + args[1].(string)
	q.seq[key]++
	return seqRow{seq: q.seq[key]}
}

func TestNextDocumentNumberPerTypeAndMonth(t *testing.T) {
	q := &sequenceQuerier{seq: map[string]int64{}}
	ctx := context.Background()
	oct := time.Date(2024, time.October, 3, 0, 0, 0, 0, time.UTC)

	first, err := NextDocumentNumber(ctx, q, "so", oct)
	require.NoError(t, err)
	second, err := NextDocumentNumber(ctx, q, "SO", oct)
	require.NoError(t, err)
	other, err := NextDocumentNumber(ctx, q, "QT", oct)
	require.NoError(t, err)
	nov, err := NextDocumentNumber(ctx, q, "SO", oct.AddDate(0, 1, 0))
	require.NoError(t, err)

	require.Equal(t, "SO-2410-0001", first)
	require.Equal(t, "SO-2410-0002", second)
	require.Equal(t, "QT-2410-0001", other)
	require.Equal(t, "SO-2411-0001", nov)
	require.Equal(t, []any{"SO", "202410"}, q.args[0])
}

func TestNextDocumentNumberErrors(t *testing.T) {
	_, err := NextDocumentNumber(context.Background(), &sequenceQuerier{}, " ", time.Now())
	require.Error(t, err)

	boom := errors.New("boom")
	_, err = NextDocumentNumber(context.Background(), &sequenceQuerier{err: boom}, "PR", time.Now())
	require.ErrorIs(t, err, boom)
}
