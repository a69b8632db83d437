package ingest

import (
	"log/slog"
	"time"
)

type Option func(s *Scheduler)

// WithLogger specifies the logger for the scheduler
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithQueryInterval specifies query interval for the scheduler's jobs.
// Defaults to 1s.
// Jobs are triggered at most this late after being due
func WithQueryInterval(q time.Duration) Option {
	return func(s *Scheduler) {
		s.queryInterval = q
	}
}

type PipelineOption func(p *Pipeline)

// WithPipelineLogger specifies the logger for the pipeline
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithNotifier specifies the notifier for runs that stored new records
func WithNotifier(n Notifier) PipelineOption {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithIngestTimeFallback stores records with an unparseable publication time,
// using the run start time instead. Records are skipped otherwise
func WithIngestTimeFallback() PipelineOption {
	return func(p *Pipeline) {
		p.ingestTimeFallback = true
	}
}
