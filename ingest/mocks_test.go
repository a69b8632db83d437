package ingest

import (
	"context"
	"time"

	"github.com/sig-0/bocrates/storage/types"
)

type (
	nameDelegate     func() string
	intervalDelegate func() time.Duration
	fetchDelegate    func(context.Context) (*types.FetchResult, error)
	runDelegate      func(context.Context) (*types.IngestionReport, error)
	notifyDelegate   func(context.Context, *types.IngestionReport) error
)

type mockProvider struct {
	nameFn  nameDelegate
	fetchFn fetchDelegate
}

func (m *mockProvider) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockProvider) Fetch(ctx context.Context) (*types.FetchResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return &types.FetchResult{}, nil
}

type mockJob struct {
	nameFn     nameDelegate
	intervalFn intervalDelegate
	runFn      runDelegate
}

func (m *mockJob) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockJob) Interval() time.Duration {
	if m.intervalFn != nil {
		return m.intervalFn()
	}

	return 0
}

func (m *mockJob) Run(ctx context.Context) (*types.IngestionReport, error) {
	if m.runFn != nil {
		return m.runFn(ctx)
	}

	return nil, nil
}

type mockNotifier struct {
	notifyFn notifyDelegate
}

func (m *mockNotifier) Notify(ctx context.Context, report *types.IngestionReport) error {
	if m.notifyFn != nil {
		return m.notifyFn(ctx, report)
	}

	return nil
}
