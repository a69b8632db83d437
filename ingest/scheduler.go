package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/bocrates/storage/types"
)

var (
	errInvalidJob      = errors.New("invalid job")
	errInvalidInterval = errors.New("invalid interval")
)

// Job is a periodically triggered ingestion
type Job interface {
	// Name returns the human-readable name of the job
	Name() string

	// Interval returns the interval at which the job should be triggered
	Interval() time.Duration

	// Run executes a single run of the job
	Run(context.Context) (*types.IngestionReport, error)
}

// intervalJob triggers a pipeline at a fixed interval
type intervalJob struct {
	*Pipeline

	interval time.Duration
}

func (j *intervalJob) Interval() time.Duration {
	return j.interval
}

// Every wraps the pipeline into a job triggered at the given interval
func Every(p *Pipeline, interval time.Duration) Job {
	return &intervalJob{
		Pipeline: p,
		interval: interval,
	}
}

// Scheduler is the periodic trigger for registered jobs.
// A job is never run concurrently with itself
type Scheduler struct {
	logger *slog.Logger

	registeredJobs sync.Map

	q             iq.Queue[scheduledRun]
	queryInterval time.Duration
	qMux          sync.Mutex
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		q:             iq.NewQueue[scheduledRun](),
		queryInterval: time.Second, // every second
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register registers a new job with the scheduler.
// The job is immediately queued up for execution
func (s *Scheduler) Register(j Job) error {
	if j == nil || j.Name() == "" {
		return errInvalidJob
	}

	if j.Interval() <= 0 {
		return errInvalidInterval
	}

	// Register the job
	id := xid.New()
	s.registeredJobs.Store(id, j)

	s.logger.Info(
		"registered new job",
		"name", j.Name(),
		"interval", j.Interval().String(),
	)

	// Schedule the first run
	s.scheduleRun(
		time.Now().UTC(),
		id,
		j,
	)

	return nil
}

// Start starts the scheduler service loop [BLOCKING]
func (s *Scheduler) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, 100)

	// Start a listener for monitoring jobs
	ticker := time.NewTicker(s.queryInterval)
	defer ticker.Stop()

	// handleDue triggers all jobs that are due
	handleDue := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				next := s.nextRun()
				if next == nil {
					return // nothing to trigger anymore
				}

				s.logger.Info(
					"triggering ingestion",
					"name", next.job.Name(),
				)

				// Spawn worker
				info := &workerInfo{
					job:   next.job,
					jobID: next.jobID,
					resCh: collectorCh,
				}

				go handleJob(ctx, info)
			}
		}
	}

	// Trigger the first set of due jobs (on boot)
	handleDue()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler service shut down")

			return nil
		case <-ticker.C:
			handleDue()
		case response := <-collectorCh:
			now := time.Now().UTC()

			jRaw, ok := s.registeredJobs.Load(response.jobID)
			if !ok {
				s.logger.Error(
					"unable to load registered job",
					"id", response.jobID.String(),
				)

				continue
			}

			j, _ := jRaw.(Job)

			if response.error != nil {
				// The next trigger is the retry
				s.logger.Error(
					"ingestion run failed",
					"id", response.jobID.String(),
					"name", j.Name(),
					"next_run", now.Add(j.Interval()).Format(time.RFC3339),
					"err", response.error,
				)
			} else if response.report != nil {
				s.logger.Info(
					"ingestion run succeeded",
					"name", j.Name(),
					"run_id", response.report.RunID,
					"inserted", response.report.Inserted,
					"duplicates", response.report.Duplicates,
					"skipped", response.report.Skipped,
				)
			}

			// Schedule the next run for this job
			s.scheduleRun(
				now.Add(j.Interval()),
				response.jobID,
				j,
			)
		}
	}
}

// scheduleRun schedules a new job run
func (s *Scheduler) scheduleRun(
	at time.Time,
	jobID xid.ID,
	j Job,
) {
	s.qMux.Lock()
	defer s.qMux.Unlock()

	s.q.Push(scheduledRun{
		at:    at,
		jobID: jobID,
		job:   j,
	})
}

// nextRun fetches the next due run, as of the moment of calling
func (s *Scheduler) nextRun() *scheduledRun {
	s.qMux.Lock()
	defer s.qMux.Unlock()

	now := time.Now().UTC()

	// Check if anything needs to be triggered
	if s.q.Len() == 0 {
		return nil // nothing to trigger, all jobs are running
	}

	// Check if the top element is due
	if s.q.Index(0).at.After(now) {
		return nil // nothing to trigger, earliest run is in the future
	}

	// Grab the next run
	return s.q.PopFront()
}
