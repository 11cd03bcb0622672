// =============================================================================
// Facturas Loader - Shared Types
// =============================================================================
//
// This package contains the types shared by the parser, the validator, the
// sinks and the report writers. Keeping them here avoids import cycles:
//   - ticketparser produces a Ticket
//   - validation consumes a Ticket
//   - sink, xmlwriter and xlsxreport render a Ticket
//
// =============================================================================

package types

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is the denomination of an invoice.
// The set is closed: a header with any other code is rejected.
type Currency string

const (
	CurrencyMXN Currency = "MXN"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Currencies lists every accepted currency code.
var Currencies = []Currency{CurrencyMXN, CurrencyUSD, CurrencyEUR}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// Lower returns the lowercase code, as stored in the database enum.
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}

// =============================================================================
// TICKET STRUCTURE
// =============================================================================

// Ticket is one input file's worth of invoices.
// Facturas holds one slot per chunk, in input order. A chunk that failed to
// parse keeps its slot with Err set.
type Ticket struct {
	Facturas []Slot
}

// Slot is the outcome of parsing one chunk.
// Exactly one of Factura and Err is non-nil.
type Slot struct {
	Factura *Factura
	Err     *ParseError
}

// OK reports whether the chunk parsed successfully.
func (s Slot) OK() bool {
	return s.Err == nil && s.Factura != nil
}

// Succeeded returns the successfully parsed invoices in input order.
func (t Ticket) Succeeded() []*Factura {
	facturas := make([]*Factura, 0, len(t.Facturas))
	for _, slot := range t.Facturas {
		if slot.OK() {
			facturas = append(facturas, slot.Factura)
		}
	}
	return facturas
}

// Failed returns the parse errors in input order.
func (t Ticket) Failed() []*ParseError {
	var errs []*ParseError
	for _, slot := range t.Facturas {
		if !slot.OK() {
			errs = append(errs, slot.Err)
		}
	}
	return errs
}

// Len returns the number of slots.
func (t Ticket) Len() int {
	return len(t.Facturas)
}

// =============================================================================
// FACTURA STRUCTURE
// =============================================================================

// Factura is a single invoice: a header, its items and a trailer.
type Factura struct {
	Header  Header
	Items   []Item
	Trailer Trailer
}

// ItemsSum folds the net value of every item, in order, starting from zero.
// The addition is float32 so the result compares exactly against the
// trailer's declared total.
func (f *Factura) ItemsSum() float32 {
	var sum float32
	for _, item := range f.Items {
		sum += item.NetValue
	}
	return sum
}

// Header carries the invoice metadata.
type Header struct {
	// InvoiceNumber is the invoice id (columns 4-8).
	InvoiceNumber int32

	// ClientID is the client id (columns 10-12).
	ClientID int32

	// Date is the invoice date (columns 15-22, YYYYMMDD), at UTC midnight.
	Date time.Time

	// Currency is the denomination (columns 23 to end of line).
	Currency Currency
}

// Item is one line item.
type Item struct {
	ID       string
	Age      uint32
	Quantity uint32
	NetValue float32
}

// Trailer is the invoice footer.
type Trailer struct {
	ItemCount  uint32
	TotalValue float32
}

// =============================================================================
// NUMBER FORMATTING
// =============================================================================

// FormatAmount renders a float32 with the shortest representation that
// round-trips, always keeping a decimal point ("10.0", "10.5").
func FormatAmount(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
