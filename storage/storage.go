package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sig-0/bocrates/storage/types"
)

// ErrUnavailable is returned when the persistence layer can't serve a request
var ErrUnavailable = errors.New("storage unavailable")

// Writer stages record inserts within a single batch
type Writer interface {
	// InsertIfAbsent stages the record, unless a record with the
	// same natural key is already stored (or staged).
	// Returns true if the record is new
	InsertIfAbsent(context.Context, *types.RateRecord) (bool, error)
}

// Storage is an append-only abstraction over quotation records
type Storage interface {
	Writer

	// Batch executes fn with a batch writer. Staged records become visible
	// together once fn returns nil, or not at all if it returns an error
	Batch(ctx context.Context, fn func(Writer) error) error

	// Range fetches the records for the currency, with a publication time
	// within [from, to], ordered ascending
	Range(ctx context.Context, currency types.Currency, from, to time.Time) ([]*types.RateRecord, error)

	// LatestN fetches at most n records for the currency, most recent first
	LatestN(ctx context.Context, currency types.Currency, n int) ([]*types.RateRecord, error)
}
