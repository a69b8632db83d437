package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/types"
)

const (
	insertRecordQuery = `
INSERT INTO rate_records (currency_code, currency_name,
                          buying_rate, cash_buying_rate,
                          selling_rate, cash_selling_rate,
                          middle_rate, publication_time, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (currency_code, publication_time) DO NOTHING`

	selectColumns = `
SELECT currency_code, currency_name,
       buying_rate, cash_buying_rate,
       selling_rate, cash_selling_rate,
       middle_rate, publication_time, ingested_at
FROM rate_records`

	rangeQuery = selectColumns + `
WHERE currency_code = $1
  AND publication_time >= $2
  AND publication_time <= $3
ORDER BY publication_time ASC`

	latestQuery = selectColumns + `
WHERE currency_code = $1
ORDER BY publication_time DESC
LIMIT $2`
)

// DB is the subset of the pgx pool used by the storage
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// execer is implemented by both pgx.Tx and the pool
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Storage struct {
	db  DB
	now func() time.Time
}

func NewStorage(db DB) *Storage {
	return &Storage{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *Storage) InsertIfAbsent(ctx context.Context, r *types.RateRecord) (bool, error) {
	var inserted bool

	err := s.Batch(ctx, func(w storage.Writer) error {
		var err error

		inserted, err = w.InsertIfAbsent(ctx, r)

		return err
	})

	return inserted, err
}

// Batch runs fn within a single transaction
func (s *Storage) Batch(ctx context.Context, fn func(storage.Writer) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: unable to begin transaction: %w", storage.ErrUnavailable, err)
	}

	defer func() {
		// No-op if the transaction was committed
		_ = tx.Rollback(context.Background()) //nolint:errcheck // Fine to ignore
	}()

	if err = fn(&batch{tx: tx, now: s.now}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: unable to commit transaction: %w", storage.ErrUnavailable, err)
	}

	return nil
}

func (s *Storage) Range(
	ctx context.Context,
	currency types.Currency,
	from, to time.Time,
) ([]*types.RateRecord, error) {
	rows, err := s.db.Query(ctx, rangeQuery, currency.String(), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: unable to fetch records: %w", storage.ErrUnavailable, err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to scan records: %w", storage.ErrUnavailable, err)
	}

	return records, nil
}

func (s *Storage) LatestN(
	ctx context.Context,
	currency types.Currency,
	n int,
) ([]*types.RateRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, latestQuery, currency.String(), n)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to fetch records: %w", storage.ErrUnavailable, err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to scan records: %w", storage.ErrUnavailable, err)
	}

	return records, nil
}

// batch is a transaction-bound writer
type batch struct {
	tx  execer
	now func() time.Time
}

func (b *batch) InsertIfAbsent(ctx context.Context, r *types.RateRecord) (bool, error) {
	tag, err := b.tx.Exec(
		ctx,
		insertRecordQuery,
		r.CurrencyCode.String(),
		r.CurrencyName,
		r.BuyingRate,
		r.CashBuyingRate,
		r.SellingRate,
		r.CashSellingRate,
		r.MiddleRate,
		r.PublicationTime.UTC(),
		b.now(),
	)
	if err != nil {
		return false, fmt.Errorf(
			"%w: unable to insert record %s@%s: %w",
			storage.ErrUnavailable,
			r.CurrencyCode,
			r.PublicationTime.UTC().Format(time.RFC3339),
			err,
		)
	}

	// Conflicting rows are skipped, and report 0 affected rows
	return tag.RowsAffected() == 1, nil
}

// scanRecord parses a single postgres row to the common Go type
func scanRecord(row pgx.CollectableRow) (*types.RateRecord, error) {
	var (
		r        types.RateRecord
		currency string
	)

	if err := row.Scan(
		&currency,
		&r.CurrencyName,
		&r.BuyingRate,
		&r.CashBuyingRate,
		&r.SellingRate,
		&r.CashSellingRate,
		&r.MiddleRate,
		&r.PublicationTime,
		&r.IngestedAt,
	); err != nil {
		return nil, err
	}

	r.CurrencyCode = types.Currency(currency)
	r.PublicationTime = r.PublicationTime.UTC()
	r.IngestedAt = r.IngestedAt.UTC()

	return &r, nil
}
