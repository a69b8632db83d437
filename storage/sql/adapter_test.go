package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/types"
)

type mockTx struct {
	pgx.Tx // unused methods panic

	execFn func(context.Context, string, ...any) (pgconn.CommandTag, error)

	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.execFn(ctx, sql, args...)
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true

	return m.commitErr
}

func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}

	return nil
}

type mockDB struct {
	tx       *mockTx
	beginErr error
}

func (m *mockDB) Begin(_ context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}

	return m.tx, nil
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func testRecord() *types.RateRecord {
	return &types.RateRecord{
		CurrencyCode:    types.CurrencyUSD,
		CurrencyName:    "美元",
		MiddleRate:      decimal.NewNullDecimal(decimal.RequireFromString("710.8200")),
		PublicationTime: time.Date(2026, time.January, 10, 2, 30, 0, 0, time.UTC),
	}
}

func TestStorage_Batch(t *testing.T) {
	t.Parallel()

	t.Run("begin failure", func(t *testing.T) {
		t.Parallel()

		s := NewStorage(&mockDB{beginErr: errors.New("connection refused")})

		err := s.Batch(context.Background(), func(_ storage.Writer) error {
			t.Fatal("batch should not run")

			return nil
		})

		assert.ErrorIs(t, err, storage.ErrUnavailable)
	})

	t.Run("commit on success", func(t *testing.T) {
		t.Parallel()

		var (
			tx = &mockTx{
				execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag("INSERT 0 1"), nil
				},
			}

			s = NewStorage(&mockDB{tx: tx})
		)

		err := s.Batch(context.Background(), func(w storage.Writer) error {
			inserted, err := w.InsertIfAbsent(context.Background(), testRecord())
			require.NoError(t, err)
			assert.True(t, inserted)

			return nil
		})

		require.NoError(t, err)
		assert.True(t, tx.committed)
		assert.False(t, tx.rolledBack)
	})

	t.Run("rollback on failure", func(t *testing.T) {
		t.Parallel()

		var (
			errFailed = errors.New("failed")
			tx        = &mockTx{}
			s         = NewStorage(&mockDB{tx: tx})
		)

		err := s.Batch(context.Background(), func(_ storage.Writer) error {
			return errFailed
		})

		assert.ErrorIs(t, err, errFailed)
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	})

	t.Run("commit failure", func(t *testing.T) {
		t.Parallel()

		var (
			tx = &mockTx{commitErr: errors.New("conn closed")}
			s  = NewStorage(&mockDB{tx: tx})
		)

		err := s.Batch(context.Background(), func(_ storage.Writer) error {
			return nil
		})

		assert.ErrorIs(t, err, storage.ErrUnavailable)
	})
}

func TestStorage_InsertIfAbsent(t *testing.T) {
	t.Parallel()

	t.Run("conflict is not inserted", func(t *testing.T) {
		t.Parallel()

		tx := &mockTx{
			execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("INSERT 0 0"), nil
			},
		}

		inserted, err := NewStorage(&mockDB{tx: tx}).InsertIfAbsent(context.Background(), testRecord())

		require.NoError(t, err)
		assert.False(t, inserted)
		assert.True(t, tx.committed)
	})

	t.Run("absent rates are passed as NULL", func(t *testing.T) {
		t.Parallel()

		var capturedArgs []any

		tx := &mockTx{
			execFn: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
				capturedArgs = args

				return pgconn.NewCommandTag("INSERT 0 1"), nil
			},
		}

		_, err := NewStorage(&mockDB{tx: tx}).InsertIfAbsent(context.Background(), testRecord())
		require.NoError(t, err)

		require.Len(t, capturedArgs, 9)

		buying, ok := capturedArgs[2].(decimal.NullDecimal)
		require.True(t, ok)
		assert.False(t, buying.Valid)

		middle, ok := capturedArgs[6].(decimal.NullDecimal)
		require.True(t, ok)
		assert.True(t, middle.Valid)
	})

	t.Run("exec failure", func(t *testing.T) {
		t.Parallel()

		tx := &mockTx{
			execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("disk full")
			},
		}

		_, err := NewStorage(&mockDB{tx: tx}).InsertIfAbsent(context.Background(), testRecord())

		assert.ErrorIs(t, err, storage.ErrUnavailable)
		assert.False(t, tx.committed)
	})
}

func TestSchema_Embedded(t *testing.T) {
	t.Parallel()

	content, err := SchemaFS.ReadFile("schema/001_rate_records.sql")
	require.NoError(t, err)

	assert.Contains(t, string(content), "UNIQUE (currency_code, publication_time)")
}
