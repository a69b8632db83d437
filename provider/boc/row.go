package boc

import (
	"fmt"
	"strings"
)

// RawRow is a single published table row, as an ordered list of cells
type RawRow struct {
	cells []string
}

// NewRawRow creates a new row from the given cell texts.
// Cells are trimmed of surrounding whitespace
func NewRawRow(cells ...string) RawRow {
	trimmed := make([]string, len(cells))

	for i, c := range cells {
		trimmed[i] = strings.TrimSpace(c)
	}

	return RawRow{
		cells: trimmed,
	}
}

// Len returns the number of cells in the row
func (r RawRow) Len() int {
	return len(r.cells)
}

// Cell returns the cell at the given index, if present
func (r RawRow) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r.cells) {
		return "", false
	}

	return r.cells[i], true
}

// Require verifies the row has at least n cells
func (r RawRow) Require(n int) error {
	if len(r.cells) < n {
		return fmt.Errorf("%w: expected at least %d cells, got %d", ErrMalformedRow, n, len(r.cells))
	}

	return nil
}
