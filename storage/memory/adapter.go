package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/types"
)

// Storage is an in-memory record store.
// Writers are serialized with each other, readers never block on a staged batch
type Storage struct {
	keys   map[types.RecordKey]struct{}
	series map[types.Currency][]types.RateRecord // ascending by publication time

	mu      sync.RWMutex
	batchMu sync.Mutex

	now func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		keys:   make(map[types.RecordKey]struct{}),
		series: make(map[types.Currency][]types.RateRecord),
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

func (s *Storage) Batch(ctx context.Context, fn func(storage.Writer) error) error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	b := &batch{
		s:      s,
		staged: make(map[types.RecordKey]types.RateRecord),
	}

	if err := fn(b); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.commit(b)

	return nil
}

// commit publishes all staged records under a single write lock
func (s *Storage) commit(b *batch) {
	if len(b.order) == 0 {
		return
	}

	ingestedAt := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[types.Currency]struct{})

	for _, k := range b.order {
		elem := b.staged[k]
		elem.IngestedAt = ingestedAt

		s.keys[k] = struct{}{}
		s.series[elem.CurrencyCode] = append(s.series[elem.CurrencyCode], elem)

		touched[elem.CurrencyCode] = struct{}{}
	}

	for c := range touched {
		series := s.series[c]

		sort.SliceStable(series, func(i, j int) bool {
			return series[i].PublicationTime.Before(series[j].PublicationTime)
		})
	}
}

func (s *Storage) Range(
	_ context.Context,
	currency types.Currency,
	from, to time.Time,
) ([]*types.RateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[currency]

	// First record at or after from
	start := sort.Search(len(series), func(i int) bool {
		return !series[i].PublicationTime.Before(from)
	})

	out := make([]*types.RateRecord, 0)

	for i := start; i < len(series); i++ {
		if series[i].PublicationTime.After(to) {
			break
		}

		cp := series[i]
		out = append(out, &cp)
	}

	return out, nil
}

func (s *Storage) LatestN(
	_ context.Context,
	currency types.Currency,
	n int,
) ([]*types.RateRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[currency]
	out := make([]*types.RateRecord, 0, min(n, len(series)))

	for i := len(series) - 1; i >= 0 && len(out) < n; i-- {
		cp := series[i]
		out = append(out, &cp)
	}

	return out, nil
}

// batch stages records until the batch is committed
type batch struct {
	s      *Storage
	staged map[types.RecordKey]types.RateRecord
	order  []types.RecordKey
}

func (b *batch) InsertIfAbsent(_ context.Context, r *types.RateRecord) (bool, error) {
	k := r.Key()

	if _, ok := b.staged[k]; ok {
		return false, nil
	}

	b.s.mu.RLock()
	_, exists := b.s.keys[k]
	b.s.mu.RUnlock()

	if exists {
		return false, nil
	}

	elem := *r
	elem.PublicationTime = elem.PublicationTime.UTC()

	b.staged[k] = elem
	b.order = append(b.order, k)

	return true, nil
}
