// =============================================================================
// Facturas Loader - Record Layout
// =============================================================================
//
// The header record is fixed-width. Instead of scattering byte offsets through
// the parser, every column range lives in a Layout value. The default layout
// matches the production file format:
//
//   | Field          | Columns (0-indexed, inclusive) |
//   |----------------|--------------------------------|
//   | marker ("H")   | 0                              |
//   | invoice number | 4-8                            |
//   | client id      | 10-12                          |
//   | date           | 15-22 (YYYYMMDD)               |
//   | currency       | 23-end of line                 |
//
// A different layout can be loaded from YAML (see config.LoadLayout); this is
// the one place a column-width change needs to happen.
//
// =============================================================================

package ticketparser

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
)

// Record markers: the mandatory first byte of every line.
const (
	HeaderMarker  byte = 'H'
	ItemMarker    byte = 'I'
	TrailerMarker byte = 'T'
)

// OpenEnd marks a column that runs to the end of the line.
const OpenEnd = -1

// =============================================================================
// COLUMN RANGE
// =============================================================================

// Column is an inclusive byte range within a fixed-width line.
type Column struct {
	// Start is the first byte of the field (0-indexed).
	Start int `yaml:"start"`

	// End is the last byte of the field, inclusive.
	// OpenEnd (-1) means "to the end of the line".
	End int `yaml:"end"`
}

// Width returns the field width, or OpenEnd for open-ended columns.
func (c Column) Width() int {
	if c.End == OpenEnd {
		return OpenEnd
	}
	return c.End - c.Start + 1
}

// MinLineLength is the shortest line that can hold this column.
func (c Column) MinLineLength() int {
	if c.End == OpenEnd {
		return c.Start
	}
	return c.End + 1
}

// Slice extracts the column from a line. ok is false when the line is too
// short to contain the whole range.
func (c Column) Slice(line string) (field string, ok bool) {
	if len(line) < c.MinLineLength() {
		return "", false
	}
	if c.End == OpenEnd {
		return line[c.Start:], true
	}
	return line[c.Start : c.End+1], true
}

// String renders the range the way the format documentation does ("4-8").
func (c Column) String() string {
	if c.End == OpenEnd {
		return fmt.Sprintf("%d-end", c.Start)
	}
	return fmt.Sprintf("%d-%d", c.Start, c.End)
}

// =============================================================================
// HEADER LAYOUT
// =============================================================================

// Layout is the column-range table of the header record.
type Layout struct {
	InvoiceNumber Column `yaml:"invoice_number"`
	ClientID      Column `yaml:"client_id"`
	Date          Column `yaml:"date"`
	Currency      Column `yaml:"currency"`
}

// DefaultLayout returns the production header layout.
func DefaultLayout() Layout {
	return Layout{
		InvoiceNumber: Column{Start: 4, End: 8},
		ClientID:      Column{Start: 10, End: 12},
		Date:          Column{Start: 15, End: 22},
		Currency:      Column{Start: 23, End: OpenEnd},
	}
}

// namedColumn pairs a column with its field name for error reporting.
type namedColumn struct {
	name string
	col  Column
}

func (l Layout) columns() []namedColumn {
	return []namedColumn{
		{"invoice_number", l.InvoiceNumber},
		{"client_id", l.ClientID},
		{"date", l.Date},
		{"currency", l.Currency},
	}
}

// Validate checks that the table is usable:
//   - no column overlaps the marker byte
//   - every closed range has End >= Start
//   - the date column is exactly 8 bytes wide (YYYYMMDD)
//   - ranges do not overlap
//   - only the last column may be open-ended
func (l Layout) Validate() error {
	cols := l.columns()

	for _, nc := range cols {
		if nc.col.Start < 1 {
			return errors.Newf("column %s starts at %d: byte 0 is reserved for the record marker", nc.name, nc.col.Start)
		}
		if nc.col.End != OpenEnd && nc.col.End < nc.col.Start {
			return errors.Newf("column %s has end %d before start %d", nc.name, nc.col.End, nc.col.Start)
		}
	}

	if l.Date.Width() != 8 {
		return errors.Newf("column date must be 8 bytes wide (YYYYMMDD), got %s", l.Date)
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].col.Start < cols[j].col.Start })
	for i := 0; i < len(cols)-1; i++ {
		cur, next := cols[i], cols[i+1]
		if cur.col.End == OpenEnd {
			return errors.Newf("column %s is open-ended but is followed by column %s", cur.name, next.name)
		}
		if cur.col.End >= next.col.Start {
			return errors.Newf("column %s (%s) overlaps column %s (%s)", cur.name, cur.col, next.name, next.col)
		}
	}

	return nil
}

// MinLineLength is the shortest header line that holds every column.
func (l Layout) MinLineLength() int {
	min := 1
	for _, nc := range l.columns() {
		if n := nc.col.MinLineLength(); n > min {
			min = n
		}
	}
	return min
}
