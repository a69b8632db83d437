package boc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/bocrates/provider/currencies"
)

var testLocation = time.FixedZone("CST", 8*60*60)

func newTestParser() *Parser {
	return NewParser(currencies.PublishedNames(), DefaultTimeLayout, testLocation)
}

func TestRawRow(t *testing.T) {
	t.Parallel()

	row := NewRawRow("  美元 ", "710.82\n")

	assert.Equal(t, 2, row.Len())

	v, ok := row.Cell(0)
	require.True(t, ok)
	assert.Equal(t, "美元", v)

	v, ok = row.Cell(1)
	require.True(t, ok)
	assert.Equal(t, "710.82", v)

	_, ok = row.Cell(2)
	assert.False(t, ok)

	_, ok = row.Cell(-1)
	assert.False(t, ok)

	assert.NoError(t, row.Require(2))
	assert.ErrorIs(t, row.Require(3), ErrMalformedRow)
}

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	t.Run("valid row", func(t *testing.T) {
		t.Parallel()

		record, err := newTestParser().Parse(NewRawRow(
			"美元", "710.82", "705.04", "713.81", "713.81", "711.40", "2026.01.10", "10:30:00",
		))

		require.NoError(t, err)
		require.NotNil(t, record)

		assert.Equal(t, currencies.USD, record.CurrencyCode)
		assert.Equal(t, "美元", record.CurrencyName)
		assert.True(t, decimal.RequireFromString("710.82").Equal(record.BuyingRate.Decimal))
		assert.True(t, decimal.RequireFromString("711.40").Equal(record.MiddleRate.Decimal))

		// 10:30 CST is 02:30 UTC
		assert.Equal(t, time.Date(2026, time.January, 10, 2, 30, 0, 0, time.UTC), record.PublicationTime)
		assert.True(t, record.IngestedAt.IsZero())
	})

	t.Run("untracked currency", func(t *testing.T) {
		t.Parallel()

		_, err := newTestParser().Parse(NewRawRow(
			"阿联酋迪拉姆", "193.40", "", "194.92", "", "193.53", "2026.01.10", "10:30:00",
		))

		assert.ErrorIs(t, err, ErrUntracked)
		assert.NotErrorIs(t, err, ErrMalformedRow)
	})

	t.Run("short row", func(t *testing.T) {
		t.Parallel()

		_, err := newTestParser().Parse(NewRawRow("日元", "4.5", "4.4"))

		assert.ErrorIs(t, err, ErrMalformedRow)
	})

	t.Run("empty row", func(t *testing.T) {
		t.Parallel()

		_, err := newTestParser().Parse(NewRawRow())

		assert.ErrorIs(t, err, ErrMalformedRow)
	})

	t.Run("dash is absent, zero is zero", func(t *testing.T) {
		t.Parallel()

		record, err := newTestParser().Parse(NewRawRow(
			"泰国铢", "-", "0.00", "", "abc", "20.12", "2026.01.10", "10:30:00",
		))

		require.NoError(t, err)

		assert.False(t, record.BuyingRate.Valid)

		require.True(t, record.CashBuyingRate.Valid)
		assert.True(t, record.CashBuyingRate.Decimal.IsZero())

		assert.False(t, record.SellingRate.Valid)
		assert.False(t, record.CashSellingRate.Valid)
		assert.True(t, record.MiddleRate.Valid)
	})

	t.Run("no rates", func(t *testing.T) {
		t.Parallel()

		_, err := newTestParser().Parse(NewRawRow(
			"林吉特", "-", "-", "-", "-", "-", "2026.01.10", "10:30:00",
		))

		assert.ErrorIs(t, err, ErrMalformedRow)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		t.Parallel()

		_, err := newTestParser().Parse(NewRawRow(
			"新加坡元", "540.10", "523.40", "543.90", "546.30", "541.20", "2026-01-10", "10:30",
		))

		require.ErrorIs(t, err, ErrBadTimestamp)

		var rowErr *RowError

		require.ErrorAs(t, err, &rowErr)
		require.NotNil(t, rowErr.Record)

		assert.Equal(t, currencies.SGD, rowErr.Record.CurrencyCode)
		assert.True(t, rowErr.Record.PublicationTime.IsZero())
	})
}
