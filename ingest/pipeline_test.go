package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/bocrates/provider/currencies"
	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/memory"
	"github.com/sig-0/bocrates/storage/mock"
	"github.com/sig-0/bocrates/storage/types"
)

const testProviderName = "test-provider"

var publishedAt = time.Date(2026, time.January, 10, 2, 30, 0, 0, time.UTC)

func testRecord(currency types.Currency, middle string) *types.RateRecord {
	return &types.RateRecord{
		CurrencyCode:    currency,
		CurrencyName:    currency.String(),
		MiddleRate:      decimal.NewNullDecimal(decimal.RequireFromString(middle)),
		PublicationTime: publishedAt,
	}
}

func staticProvider(result *types.FetchResult) *mockProvider {
	return &mockProvider{
		nameFn: func() string {
			return testProviderName
		},
		fetchFn: func(_ context.Context) (*types.FetchResult, error) {
			return result, nil
		},
	}
}

// failingStorage fails the nth staged insert of a batch
type failingStorage struct {
	*memory.Storage

	failAt int
}

type failingWriter struct {
	w      storage.Writer
	calls  int
	failAt int
}

func (f *failingWriter) InsertIfAbsent(ctx context.Context, r *types.RateRecord) (bool, error) {
	f.calls++
	if f.calls == f.failAt {
		return false, storage.ErrUnavailable
	}

	return f.w.InsertIfAbsent(ctx, r)
}

func (s *failingStorage) Batch(ctx context.Context, fn func(storage.Writer) error) error {
	return s.Storage.Batch(ctx, func(w storage.Writer) error {
		return fn(&failingWriter{w: w, failAt: s.failAt})
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	t.Run("stores fetched records", func(t *testing.T) {
		t.Parallel()

		var (
			store    = memory.NewStorage()
			provider = staticProvider(&types.FetchResult{
				Records: []*types.RateRecord{
					testRecord(currencies.USD, "711.40"),
					testRecord(currencies.JPY, "4.8648"),
				},
				Skipped: 1,
			})

			p = NewPipeline(provider, store)
		)

		assert.Equal(t, StateIdle, p.State())

		report, err := p.Run(context.Background())
		require.NoError(t, err)
		require.NotNil(t, report)

		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, testProviderName, report.Source)
		assert.Equal(t, 2, report.Fetched)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 2, report.Inserted)
		assert.Zero(t, report.Duplicates)
		assert.False(t, report.FinishedAt.Before(report.StartedAt))

		assert.Equal(t, StateDone, p.State())

		records, err := store.LatestN(context.Background(), currencies.USD, 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("rerun is idempotent", func(t *testing.T) {
		t.Parallel()

		var (
			store    = memory.NewStorage()
			provider = staticProvider(&types.FetchResult{
				Records: []*types.RateRecord{
					testRecord(currencies.USD, "711.40"),
				},
			})

			p = NewPipeline(provider, store)
		)

		_, err := p.Run(context.Background())
		require.NoError(t, err)

		report, err := p.Run(context.Background())
		require.NoError(t, err)

		assert.Zero(t, report.Inserted)
		assert.Equal(t, 1, report.Duplicates)

		records, err := store.LatestN(context.Background(), currencies.USD, 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("fetch failure", func(t *testing.T) {
		t.Parallel()

		var (
			errFetch = errors.New("connection reset")
			called   bool

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				fetchFn: func(_ context.Context) (*types.FetchResult, error) {
					return nil, errFetch
				},
			}

			store = &mock.Storage{
				BatchFn: func(_ context.Context, _ func(storage.Writer) error) error {
					called = true

					return nil
				},
			}

			p = NewPipeline(provider, store)
		)

		report, err := p.Run(context.Background())

		assert.Nil(t, report)
		assert.ErrorIs(t, err, errFetch)

		var runErr *RunError

		require.ErrorAs(t, err, &runErr)
		assert.Equal(t, StageFetch, runErr.Stage)
		assert.NotEmpty(t, runErr.RunID)

		assert.False(t, called)
		assert.Equal(t, StateFailed, p.State())
	})

	t.Run("storage failure aborts the batch", func(t *testing.T) {
		t.Parallel()

		var (
			store = &failingStorage{
				Storage: memory.NewStorage(),
				failAt:  2,
			}

			provider = staticProvider(&types.FetchResult{
				Records: []*types.RateRecord{
					testRecord(currencies.USD, "711.40"),
					testRecord(currencies.JPY, "4.8648"),
					testRecord(currencies.SGD, "541.20"),
				},
			})

			p = NewPipeline(provider, store)
		)

		report, err := p.Run(context.Background())

		assert.Nil(t, report)
		assert.ErrorIs(t, err, storage.ErrUnavailable)

		var runErr *RunError

		require.ErrorAs(t, err, &runErr)
		assert.Equal(t, StagePersist, runErr.Stage)
		assert.Equal(t, StateFailed, p.State())

		// The first, successfully staged record is not visible
		records, err := store.LatestN(context.Background(), currencies.USD, 10)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("degraded records are skipped by default", func(t *testing.T) {
		t.Parallel()

		degraded := testRecord(currencies.SGD, "541.20")
		degraded.PublicationTime = time.Time{}

		var (
			store    = memory.NewStorage()
			provider = staticProvider(&types.FetchResult{
				Records:  []*types.RateRecord{testRecord(currencies.USD, "711.40")},
				Degraded: []*types.RateRecord{degraded},
				Skipped:  1,
			})
		)

		report, err := NewPipeline(provider, store).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Fetched)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 1, report.Degraded)
		assert.Equal(t, 1, report.Inserted)

		records, err := store.LatestN(context.Background(), currencies.SGD, 10)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("ingestion time fallback", func(t *testing.T) {
		t.Parallel()

		degraded := testRecord(currencies.SGD, "541.20")
		degraded.PublicationTime = time.Time{}

		var (
			store    = memory.NewStorage()
			provider = staticProvider(&types.FetchResult{
				Degraded: []*types.RateRecord{degraded},
				Skipped:  1,
			})

			runAt = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

			p = NewPipeline(provider, store, WithIngestTimeFallback())
		)

		p.now = func() time.Time {
			return runAt
		}

		report, err := p.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Fetched)
		assert.Zero(t, report.Skipped)
		assert.Equal(t, 1, report.Degraded)
		assert.Equal(t, 1, report.Inserted)

		records, err := store.LatestN(context.Background(), currencies.SGD, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)

		assert.Equal(t, runAt, records[0].PublicationTime)

		// The fetched record is left untouched
		assert.True(t, degraded.PublicationTime.IsZero())
	})

	t.Run("concurrent runs are coalesced", func(t *testing.T) {
		t.Parallel()

		var (
			fetchCount atomic.Int32
			started    = make(chan struct{})
			release    = make(chan struct{})

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				fetchFn: func(_ context.Context) (*types.FetchResult, error) {
					if fetchCount.Add(1) == 1 {
						close(started)
					}

					<-release

					return &types.FetchResult{
						Records: []*types.RateRecord{testRecord(currencies.USD, "711.40")},
					}, nil
				},
			}

			p = NewPipeline(provider, memory.NewStorage())

			reports = make([]string, 2)
			wg      sync.WaitGroup
		)

		run := func(i int) {
			defer wg.Done()

			report, err := p.Run(context.Background())
			if assert.NoError(t, err) {
				reports[i] = report.RunID
			}
		}

		wg.Add(1)

		go run(0)

		<-started

		wg.Add(1)

		go run(1)

		// Give the second caller time to join the in-progress run
		time.Sleep(100 * time.Millisecond)
		close(release)

		wg.Wait()

		assert.Equal(t, int32(1), fetchCount.Load())
		assert.Equal(t, reports[0], reports[1])
	})
}

func TestPipeline_Notify(t *testing.T) {
	t.Parallel()

	t.Run("new records", func(t *testing.T) {
		t.Parallel()

		var (
			notified *types.IngestionReport

			notifier = &mockNotifier{
				notifyFn: func(_ context.Context, report *types.IngestionReport) error {
					notified = report

					return nil
				},
			}

			provider = staticProvider(&types.FetchResult{
				Records: []*types.RateRecord{testRecord(currencies.USD, "711.40")},
			})
		)

		report, err := NewPipeline(
			provider,
			memory.NewStorage(),
			WithNotifier(notifier),
		).Run(context.Background())
		require.NoError(t, err)

		require.NotNil(t, notified)
		assert.Equal(t, report.RunID, notified.RunID)
	})

	t.Run("nothing new", func(t *testing.T) {
		t.Parallel()

		var (
			calls atomic.Int32

			notifier = &mockNotifier{
				notifyFn: func(_ context.Context, _ *types.IngestionReport) error {
					calls.Add(1)

					return nil
				},
			}

			provider = staticProvider(&types.FetchResult{
				Records: []*types.RateRecord{testRecord(currencies.USD, "711.40")},
			})

			p = NewPipeline(provider, memory.NewStorage(), WithNotifier(notifier))
		)

		_, err := p.Run(context.Background())
		require.NoError(t, err)

		_, err = p.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("notifier failure is not a run failure", func(t *testing.T) {
		t.Parallel()

		var (
			notifier = &mockNotifier{
				notifyFn: func(_ context.Context, _ *types.IngestionReport) error {
					return errors.New("broker down")
				},
			}

			provider = staticProvider(&types.FetchResult{
				Records: []*types.RateRecord{testRecord(currencies.USD, "711.40")},
			})
		)

		report, err := NewPipeline(
			provider,
			memory.NewStorage(),
			WithNotifier(notifier),
		).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, report.Inserted)
	})
}
