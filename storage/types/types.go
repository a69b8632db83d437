package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyJPY Currency = "JPY"
	CurrencyTHB Currency = "THB"
	CurrencyMYR Currency = "MYR"
	CurrencySGD Currency = "SGD"
	CurrencyPHP Currency = "PHP"

	// CurrencyCNY is the base currency all quotations are expressed in
	CurrencyCNY Currency = "CNY"
)

func (c Currency) String() string {
	return string(c)
}

// RateRecord is a single published quotation for one currency,
// at one publication time. Rate fields that the source omits are not valid
type RateRecord struct {
	PublicationTime time.Time           `json:"publication_time"`
	IngestedAt      time.Time           `json:"ingested_at"`
	CurrencyCode    Currency            `json:"currency_code"`
	CurrencyName    string              `json:"currency_name"`
	BuyingRate      decimal.NullDecimal `json:"buying_rate"`
	CashBuyingRate  decimal.NullDecimal `json:"cash_buying_rate"`
	SellingRate     decimal.NullDecimal `json:"selling_rate"`
	CashSellingRate decimal.NullDecimal `json:"cash_selling_rate"`
	MiddleRate      decimal.NullDecimal `json:"middle_rate"`
}

// Key returns the natural key of the record
func (r *RateRecord) Key() RecordKey {
	return RecordKey{
		Currency:        r.CurrencyCode,
		PublicationTime: r.PublicationTime.UTC().UnixNano(),
	}
}

// EffectiveRate returns the middle rate if present, the buying rate otherwise
func (r *RateRecord) EffectiveRate() decimal.NullDecimal {
	if r.MiddleRate.Valid {
		return r.MiddleRate
	}

	return r.BuyingRate
}

// HasRates returns true if at least one rate field is present
func (r *RateRecord) HasRates() bool {
	return r.BuyingRate.Valid ||
		r.CashBuyingRate.Valid ||
		r.SellingRate.Valid ||
		r.CashSellingRate.Valid ||
		r.MiddleRate.Valid
}

// RecordKey is the (currency, publication time) uniqueness constraint
type RecordKey struct {
	Currency        Currency
	PublicationTime int64 // unix nanos, UTC
}

// FetchResult is a single provider retrieval outcome
type FetchResult struct {
	// Records are the valid, tracked quotations
	Records []*RateRecord

	// Degraded are rows that parsed fully except for the publication time.
	// They are included in Skipped
	Degraded []*RateRecord

	// Skipped is the number of malformed rows
	Skipped int
}

// IngestionReport is the outcome of a single completed ingestion run
type IngestionReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Fetched    int       `json:"fetched"`
	Skipped    int       `json:"skipped"`
	Degraded   int       `json:"degraded"`
	Inserted   int       `json:"inserted"`
	Duplicates int       `json:"duplicates"`
}
