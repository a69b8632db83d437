package mock

import (
	"context"
	"time"

	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/types"
)

type (
	InsertIfAbsentDelegate func(context.Context, *types.RateRecord) (bool, error)
	BatchDelegate          func(context.Context, func(storage.Writer) error) error
	RangeDelegate          func(context.Context, types.Currency, time.Time, time.Time) ([]*types.RateRecord, error)
	LatestNDelegate        func(context.Context, types.Currency, int) ([]*types.RateRecord, error)
)

type Storage struct {
	InsertIfAbsentFn InsertIfAbsentDelegate
	BatchFn          BatchDelegate
	RangeFn          RangeDelegate
	LatestNFn        LatestNDelegate
}

func (m *Storage) InsertIfAbsent(ctx context.Context, r *types.RateRecord) (bool, error) {
	if m.InsertIfAbsentFn != nil {
		return m.InsertIfAbsentFn(ctx, r)
	}

	return false, nil
}

// Batch runs fn directly against the mock, if no delegate is set
func (m *Storage) Batch(ctx context.Context, fn func(storage.Writer) error) error {
	if m.BatchFn != nil {
		return m.BatchFn(ctx, fn)
	}

	return fn(m)
}

func (m *Storage) Range(
	ctx context.Context,
	currency types.Currency,
	from, to time.Time,
) ([]*types.RateRecord, error) {
	if m.RangeFn != nil {
		return m.RangeFn(ctx, currency, from, to)
	}

	return nil, nil
}

func (m *Storage) LatestN(
	ctx context.Context,
	currency types.Currency,
	n int,
) ([]*types.RateRecord, error) {
	if m.LatestNFn != nil {
		return m.LatestNFn(ctx, currency, n)
	}

	return nil, nil
}
