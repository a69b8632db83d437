package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/singleflight"

	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/types"
)

// State is the pipeline run state
type State int32

const (
	StateIdle State = iota
	StateFetching
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage is the run stage a failure occurred in
type Stage string

const (
	StageFetch   Stage = "fetch"
	StagePersist Stage = "persist"
)

// RunError is a classified run failure
type RunError struct {
	Err   error
	RunID string
	Stage Stage
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ingestion run %s failed during %s: %s", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Pipeline fetches quotations from a single provider, and persists
// the ones not yet stored, as a single batch
type Pipeline struct {
	provider Provider
	storage  storage.Storage
	notifier Notifier
	logger   *slog.Logger

	now func() time.Time

	group singleflight.Group
	state atomic.Int32

	ingestTimeFallback bool
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(provider Provider, storage storage.Storage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		provider: provider,
		storage:  storage,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}

	// Apply the options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the name of the pipeline's provider
func (p *Pipeline) Name() string {
	return p.provider.Name()
}

// State returns the current (or last) run state
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Run executes a single ingestion run [BLOCKING].
// Calls made while a run is in progress wait for it, and share its outcome
func (p *Pipeline) Run(ctx context.Context) (*types.IngestionReport, error) {
	v, err, shared := p.group.Do("run", func() (any, error) {
		return p.run(ctx)
	})

	if shared {
		p.logger.Debug(
			"joined in-progress ingestion run",
			"source", p.provider.Name(),
		)
	}

	if err != nil {
		return nil, err
	}

	report, _ := v.(*types.IngestionReport)

	return report, nil
}

func (p *Pipeline) run(ctx context.Context) (*types.IngestionReport, error) {
	report := &types.IngestionReport{
		RunID:     xid.New().String(),
		Source:    p.provider.Name(),
		StartedAt: p.now(),
	}

	logger := p.logger.With(
		"run_id", report.RunID,
		"source", report.Source,
	)

	fail := func(stage Stage, err error) error {
		p.state.Store(int32(StateFailed))

		logger.Error(
			"ingestion run failed",
			"stage", stage,
			"err", err,
		)

		return &RunError{
			Err:   err,
			RunID: report.RunID,
			Stage: stage,
		}
	}

	// Fetch the latest quotations
	p.state.Store(int32(StateFetching))

	result, err := p.provider.Fetch(ctx)
	if err != nil {
		return nil, fail(StageFetch, err)
	}

	records := result.Records
	report.Skipped = result.Skipped
	report.Degraded = len(result.Degraded)

	for _, d := range result.Degraded {
		if !p.ingestTimeFallback {
			logger.Warn(
				"skipped record with bad publication time",
				"currency", d.CurrencyCode,
			)

			continue
		}

		stamped := *d
		stamped.PublicationTime = report.StartedAt

		logger.Warn(
			"substituted ingestion time for bad publication time",
			"currency", d.CurrencyCode,
			"publication_time", stamped.PublicationTime.Format(time.RFC3339),
		)

		records = append(records, &stamped)
		report.Skipped--
	}

	report.Fetched = len(records)

	// Persist the new quotations
	p.state.Store(int32(StatePersisting))

	var inserted, duplicates int

	err = p.storage.Batch(ctx, func(w storage.Writer) error {
		for _, r := range records {
			ok, err := w.InsertIfAbsent(ctx, r)
			if err != nil {
				logger.Error(
					"unable to save rate record",
					"currency", r.CurrencyCode,
					"publication_time", r.PublicationTime.Format(time.RFC3339),
					"err", err,
				)

				return err
			}

			if !ok {
				duplicates++

				continue
			}

			inserted++
		}

		return nil
	})
	if err != nil {
		return nil, fail(StagePersist, err)
	}

	report.Inserted = inserted
	report.Duplicates = duplicates
	report.FinishedAt = p.now()

	p.state.Store(int32(StateDone))

	logger.Info(
		"ingestion run complete",
		"fetched", report.Fetched,
		"skipped", report.Skipped,
		"degraded", report.Degraded,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
	)

	p.notify(ctx, logger, report)

	return report, nil
}

// notify publishes the report, if anything new was stored
func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, report *types.IngestionReport) {
	if p.notifier == nil || report.Inserted == 0 {
		return
	}

	if err := p.notifier.Notify(ctx, report); err != nil {
		logger.Warn(
			"unable to publish ingestion report",
			"err", err,
		)
	}
}
