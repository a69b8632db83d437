package boc

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/bocrates/storage/types"
)

// Column layout of the quotation table
const (
	colName = iota
	colBuying
	colCashBuying
	colSelling
	colCashSelling
	colMiddle
	colDate
	colTime

	minColumns
)

var (
	// ErrUntracked signals the row's currency is not tracked.
	// It is not a failure, and the row is dropped silently
	ErrUntracked = errors.New("currency not tracked")

	// ErrMalformedRow is returned for rows that can't form a valid record
	ErrMalformedRow = errors.New("malformed row")

	// ErrBadTimestamp is returned when the publication time can't be parsed
	ErrBadTimestamp = errors.New("bad publication timestamp")
)

// RowError is a row-level parse failure
type RowError struct {
	// Record is the otherwise valid record, for ErrBadTimestamp failures.
	// Its publication time is zero
	Record *types.RateRecord

	Err error
}

func (e *RowError) Error() string {
	return e.Err.Error()
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Parser converts raw quotation rows into rate records
type Parser struct {
	names    map[string]types.Currency
	location *time.Location
	layout   string
}

// NewParser creates a new row parser.
// The layout is applied to the joined "<date> <time>" cells, in the given location
func NewParser(
	names map[string]types.Currency,
	layout string,
	location *time.Location,
) *Parser {
	return &Parser{
		names:    names,
		layout:   layout,
		location: location,
	}
}

// Parse parses a single row into a record
func (p *Parser) Parse(row RawRow) (*types.RateRecord, error) {
	name, ok := row.Cell(colName)
	if !ok {
		return nil, &RowError{Err: fmt.Errorf("%w: empty row", ErrMalformedRow)}
	}

	code, ok := p.names[name]
	if !ok {
		return nil, ErrUntracked
	}

	if err := row.Require(minColumns); err != nil {
		return nil, &RowError{Err: fmt.Errorf("%s: %w", code, err)}
	}

	record := &types.RateRecord{
		CurrencyCode:    code,
		CurrencyName:    name,
		BuyingRate:      parseRate(row, colBuying),
		CashBuyingRate:  parseRate(row, colCashBuying),
		SellingRate:     parseRate(row, colSelling),
		CashSellingRate: parseRate(row, colCashSelling),
		MiddleRate:      parseRate(row, colMiddle),
	}

	if !record.HasRates() {
		return nil, &RowError{Err: fmt.Errorf("%w: %s has no rates", ErrMalformedRow, code)}
	}

	var (
		date, _ = row.Cell(colDate)
		tm, _   = row.Cell(colTime)
		raw     = date + " " + tm
	)

	publishedAt, err := time.ParseInLocation(p.layout, raw, p.location)
	if err != nil {
		return nil, &RowError{
			Record: record,
			Err:    fmt.Errorf("%w: %s %q: %w", ErrBadTimestamp, code, raw, err),
		}
	}

	record.PublicationTime = publishedAt.UTC()

	return record, nil
}

// parseRate parses the rate cell. Blank, "-" and non-numeric cells are absent
func parseRate(row RawRow, col int) decimal.NullDecimal {
	v, ok := row.Cell(col)
	if !ok || v == "" || v == "-" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}
	}

	return decimal.NewNullDecimal(d)
}
