package server

import "encoding/json"

// HistoryPoint is a single effective rate observation
type HistoryPoint struct {
	Date string      `json:"date"`
	Rate json.Number `json:"rate"`
}

// SummaryEntry is the trend summary of a single currency.
// Summary responses mix entries with plain status messages
type SummaryEntry struct {
	Currency   string      `json:"currency"`
	Trend      string      `json:"trend"`
	Suggestion string      `json:"suggestion"`
	Current    json.Number `json:"current"`
	Change     json.Number `json:"change"`
	Percent    json.Number `json:"percent"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
