package ingest

import (
	"context"

	"github.com/sig-0/bocrates/storage/types"
)

// Provider is a single quotation source
type Provider interface {
	// Name returns the human-readable name of the provider
	Name() string

	// Fetch is the provider's single retrieval, yielding the parsed quotations
	Fetch(context.Context) (*types.FetchResult, error)
}

// Notifier is notified of completed runs that stored new records
type Notifier interface {
	Notify(context.Context, *types.IngestionReport) error
}
