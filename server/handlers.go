package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sig-0/bocrates/provider/currencies"
	"github.com/sig-0/bocrates/storage/types"
	"github.com/sig-0/bocrates/trend"
)

const dateLayout = "2006-01-02"

var (
	errUnableToFetchHistory = errors.New("unable to fetch history")
	errUnableToFetchSummary = errors.New("unable to fetch summary")

	errInvalidDate  = errors.New("invalid date (must be YYYY-MM-DD)")
	errInvalidRange = errors.New("invalid range (from is after to)")
)

// History returns the effective rate history of a single currency, oldest first
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	var (
		currencyParam = r.URL.Query().Get("currency")
		fromParam     = r.URL.Query().Get("from")
		toParam       = r.URL.Query().Get("to")
	)

	// Parse the currency (defaults to USD)
	currency, err := s.parseCurrency(currencyParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	// Parse the range (defaults to everything up to now)
	from, to, err := s.parseRange(fromParam, toParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	records, err := s.storage.Range(r.Context(), currency, from, to)
	if err != nil {
		s.logger.Error(
			"unable to fetch history",
			"currency", currency,
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchHistory,
		)

		return
	}

	points := make([]HistoryPoint, 0, len(records))

	for _, record := range records {
		rate := record.EffectiveRate()
		if !rate.Valid {
			continue
		}

		points = append(points, HistoryPoint{
			Date: record.PublicationTime.In(s.location).Format(dateLayout),
			Rate: json.Number(rate.Decimal.String()),
		})
	}

	writeJSON(w, http.StatusOK, points)
}

// Summary returns the short-term trend of every supported currency
func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	entries := make([]any, 0, len(s.supported))

	for _, currency := range s.supported {
		latest, err := s.storage.LatestN(r.Context(), currency, 2)
		if err != nil {
			s.logger.Error(
				"unable to fetch latest records",
				"currency", currency,
				"err", err,
			)

			writeError(
				w,
				http.StatusInternalServerError,
				errUnableToFetchSummary,
			)

			return
		}

		entries = append(entries, summaryEntry(s.analyzer.Summarize(currency, latest)))
	}

	writeJSON(w, http.StatusOK, entries)
}

func summaryEntry(result trend.Result) any {
	switch result.Status {
	case trend.StatusInsufficientData:
		return fmt.Sprintf("%s: Not enough data for trend analysis.", result.Currency)
	case trend.StatusIncompleteData:
		return fmt.Sprintf("%s: Data incomplete.", result.Currency)
	default:
		summary := result.Summary

		return SummaryEntry{
			Currency:   summary.Currency.String(),
			Trend:      string(summary.Direction),
			Suggestion: summary.Suggestion,
			Current:    json.Number(summary.Current.String()),
			Change:     json.Number(summary.Change.String()),
			Percent:    json.Number(summary.Percent.String()),
		}
	}
}

func (s *Server) parseCurrency(v string) (types.Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(v))
	if code == "" {
		code = currencies.USD.String()
	}

	for _, c := range s.supported {
		if c.String() == code {
			return c, nil
		}
	}

	return "", fmt.Errorf("unsupported currency %q", code)
}

// parseRange parses the inclusive date range, in the source time zone
func (s *Server) parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	var (
		from time.Time
		to   = time.Now().UTC()
	)

	if v := strings.TrimSpace(fromRaw); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, s.location)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDate
		}

		from = d.UTC()
	}

	if v := strings.TrimSpace(toRaw); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, s.location)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDate
		}

		// The whole day is included
		to = d.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errInvalidRange
	}

	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
