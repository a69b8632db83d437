package trend

import (
	"github.com/shopspring/decimal"

	"github.com/sig-0/bocrates/storage/types"
)

const (
	changePlaces  = 4
	percentPlaces = 2
)

var hundred = decimal.NewFromInt(100)

// Status is the outcome of a summary computation
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
	StatusIncompleteData   Status = "incomplete_data"
)

// Direction is the sign of the latest change
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Summary is the short-term trend of a single currency
type Summary struct {
	Currency   types.Currency
	Direction  Direction
	Suggestion string

	// Current is the latest effective rate, unrounded
	Current decimal.Decimal

	// Change and Percent are rounded to 4 and 2 places
	Change  decimal.Decimal
	Percent decimal.Decimal
}

// Result wraps the summary, which is only set for StatusOK
type Result struct {
	Summary  *Summary
	Currency types.Currency
	Status   Status
}

// Analyzer computes trend summaries out of stored records
type Analyzer struct {
	majors map[types.Currency]struct{}
	cfg    Config
}

// New creates a new trend analyzer
func New(cfg Config) *Analyzer {
	majors := make(map[types.Currency]struct{}, len(cfg.Majors))
	for _, c := range cfg.Majors {
		majors[c] = struct{}{}
	}

	return &Analyzer{
		majors: majors,
		cfg:    cfg,
	}
}

// Summarize computes the currency trend from its latest records, most recent first.
// Only the first two records are considered
func (a *Analyzer) Summarize(currency types.Currency, latest []*types.RateRecord) Result {
	if len(latest) < 2 || latest[0] == nil || latest[1] == nil {
		return Result{
			Currency: currency,
			Status:   StatusInsufficientData,
		}
	}

	var (
		current  = latest[0].EffectiveRate()
		previous = latest[1].EffectiveRate()
	)

	if !current.Valid || !previous.Valid || previous.Decimal.IsZero() {
		return Result{
			Currency: currency,
			Status:   StatusIncompleteData,
		}
	}

	var (
		diff    = current.Decimal.Sub(previous.Decimal)
		percent = diff.Mul(hundred).Div(previous.Decimal)
	)

	direction := DirectionDown
	if diff.IsPositive() {
		direction = DirectionUp
	}

	return Result{
		Currency: currency,
		Status:   StatusOK,
		Summary: &Summary{
			Currency:   currency,
			Direction:  direction,
			Suggestion: a.suggest(currency, percent),
			Current:    current.Decimal,
			Change:     diff.Round(changePlaces),
			Percent:    percent.Round(percentPlaces),
		},
	}
}

// suggest classifies the unrounded percent change
func (a *Analyzer) suggest(currency types.Currency, percent decimal.Decimal) string {
	if _, ok := a.majors[currency]; !ok {
		return a.cfg.Messages.Watch
	}

	switch {
	case percent.GreaterThan(a.cfg.RiseThreshold):
		return a.cfg.Messages.Rising
	case percent.LessThan(a.cfg.DropThreshold):
		return a.cfg.Messages.Dropping
	default:
		return a.cfg.Messages.Stable
	}
}
