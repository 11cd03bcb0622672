// =============================================================================
// Facturas Loader - Record Parsers
// =============================================================================
//
// Four parsers turn lines into records:
//   - ParseHeader  : fixed-width header line ("H ...")
//   - ParseItem    : space-separated item line ("I<id> <age> <qty> <net>")
//   - ParseTrailer : space-separated trailer line ("T <count> <total>")
//   - ParseFactura : the lines of one chunk, header first, trailer last
//
// Every parser returns a *types.ParseError on failure. Inside a Factura the
// first failing line aborts the whole invoice; the error is propagated, not
// collected.
//
// =============================================================================

package ticketparser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

const (
	itemFields    = 4
	trailerFields = 3
	minChunkLines = 2
)

// =============================================================================
// PARSER
// =============================================================================

// Parser decodes ticket text using a header layout.
// A Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	layout Layout
}

// New creates a Parser for the given layout.
// The layout is assumed valid; call Layout.Validate on user-supplied tables.
func New(layout Layout) *Parser {
	return &Parser{layout: layout}
}

// Default returns a Parser using DefaultLayout.
func Default() *Parser {
	return New(DefaultLayout())
}

// Layout returns the parser's column table.
func (p *Parser) Layout() Layout {
	return p.layout
}

// =============================================================================
// MARKER CHECK
// =============================================================================

// describeFirstByte renders the first byte of a line for error messages.
func describeFirstByte(line string) string {
	if line == "" {
		return "end of line"
	}
	return strconv.QuoteRuneToASCII(rune(line[0]))
}

// checkMarker verifies the mandatory first byte of a record line.
func checkMarker(line string, marker byte, kind types.ErrorKind, record string) *types.ParseError {
	if line != "" && line[0] == marker {
		return nil
	}
	return types.NewParseError(kind, string(marker), describeFirstByte(line)+" in "+record)
}

// =============================================================================
// HEADER
// =============================================================================

// ParseHeader decodes a fixed-width header line.
//
// PARAMETERS:
//   - line: A single line whose first byte must be 'H'.
//
// RETURNS:
//   - The decoded Header.
//   - HeaderError when the marker is wrong or the line is too short for the
//     layout; otherwise the first failing field's error. The date is decoded
//     before the numeric fields.
func (p *Parser) ParseHeader(line string) (types.Header, *types.ParseError) {
	if err := checkMarker(line, HeaderMarker, types.KindHeaderError, "Header"); err != nil {
		return types.Header{}, err
	}

	if min := p.layout.MinLineLength(); len(line) < min {
		return types.Header{}, types.NewParseError(
			types.KindHeaderError,
			fmt.Sprintf("at least %d bytes", min),
			fmt.Sprintf("%d in Header", len(line)),
		)
	}

	// MinLineLength guarantees every slice below succeeds.
	rawDate, _ := p.layout.Date.Slice(line)
	rawNumber, _ := p.layout.InvoiceNumber.Slice(line)
	rawClient, _ := p.layout.ClientID.Slice(line)
	rawCurrency, _ := p.layout.Currency.Slice(line)

	date, err := decodeDate(rawDate)
	if err != nil {
		return types.Header{}, err
	}
	number, err := decodeInt32(rawNumber)
	if err != nil {
		return types.Header{}, err
	}
	client, err := decodeInt32(rawClient)
	if err != nil {
		return types.Header{}, err
	}
	currency, err := decodeCurrency(rawCurrency)
	if err != nil {
		return types.Header{}, err
	}

	return types.Header{
		InvoiceNumber: number,
		ClientID:      client,
		Date:          date,
		Currency:      currency,
	}, nil
}

// =============================================================================
// ITEM
// =============================================================================

// ParseItem decodes an item line: "I<id> <age> <quantity> <net value>".
// Tokens are separated by exactly one space; a doubled space yields an empty
// token and therefore a wrong token count or a decode failure.
func (p *Parser) ParseItem(line string) (types.Item, *types.ParseError) {
	if err := checkMarker(line, ItemMarker, types.KindItemError, "Item"); err != nil {
		return types.Item{}, err
	}

	parts := strings.Split(line, " ")
	if len(parts) != itemFields {
		return types.Item{}, types.NewParseError(
			types.KindItemError,
			fmt.Sprintf("%d arguments", itemFields),
			fmt.Sprintf("%d in Item", len(parts)),
		)
	}

	id := parts[0][1:]
	if !utf8.ValidString(id) {
		return types.Item{}, types.NewParseError(
			types.KindItemError,
			"UTF-8 id",
			strconv.QuoteToASCII(id)+" in Item",
		)
	}

	age, err := decodeUint32(parts[1])
	if err != nil {
		return types.Item{}, err
	}
	quantity, err := decodeUint32(parts[2])
	if err != nil {
		return types.Item{}, err
	}
	net, err := decodeFloat32(parts[3])
	if err != nil {
		return types.Item{}, err
	}

	return types.Item{
		ID:       id,
		Age:      age,
		Quantity: quantity,
		NetValue: net,
	}, nil
}

// =============================================================================
// TRAILER
// =============================================================================

// ParseTrailer decodes a trailer line: "T <item count> <total value>".
func (p *Parser) ParseTrailer(line string) (types.Trailer, *types.ParseError) {
	if err := checkMarker(line, TrailerMarker, types.KindTrailerError, "Trailer"); err != nil {
		return types.Trailer{}, err
	}

	parts := strings.Split(line, " ")
	if len(parts) != trailerFields {
		return types.Trailer{}, types.NewParseError(
			types.KindTrailerError,
			fmt.Sprintf("%d arguments", trailerFields),
			fmt.Sprintf("%d in Trailer", len(parts)),
		)
	}

	count, err := decodeUint32(parts[1])
	if err != nil {
		return types.Trailer{}, err
	}
	total, err := decodeFloat32(parts[2])
	if err != nil {
		return types.Trailer{}, err
	}

	return types.Trailer{ItemCount: count, TotalValue: total}, nil
}

// =============================================================================
// FACTURA
// =============================================================================

// ParseFactura decodes the lines of one chunk into an invoice.
//
// PARAMETERS:
//   - lines: The chunk, header line first and trailer line last.
//
// RETURNS:
//   - The decoded Factura. With exactly two lines the item list is empty.
//   - FacturaError when fewer than two lines are given; otherwise the first
//     error among header, items (in order) and trailer.
func (p *Parser) ParseFactura(lines []string) (*types.Factura, *types.ParseError) {
	if len(lines) < minChunkLines {
		return nil, types.NewParseError(
			types.KindFacturaError,
			fmt.Sprintf("at least %d lines", minChunkLines),
			fmt.Sprintf("%d in Factura", len(lines)),
		)
	}

	header, err := p.ParseHeader(lines[0])
	if err != nil {
		return nil, err
	}

	interior := lines[1 : len(lines)-1]
	items := make([]types.Item, 0, len(interior))
	for _, line := range interior {
		item, err := p.ParseItem(line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	trailer, err := p.ParseTrailer(lines[len(lines)-1])
	if err != nil {
		return nil, err
	}

	return &types.Factura{
		Header:  header,
		Items:   items,
		Trailer: trailer,
	}, nil
}

// Package-level helpers using the default layout.

// ParseHeader decodes a header line with DefaultLayout.
func ParseHeader(line string) (types.Header, *types.ParseError) {
	return Default().ParseHeader(line)
}

// ParseItem decodes an item line.
func ParseItem(line string) (types.Item, *types.ParseError) {
	return Default().ParseItem(line)
}

// ParseTrailer decodes a trailer line.
func ParseTrailer(line string) (types.Trailer, *types.ParseError) {
	return Default().ParseTrailer(line)
}

// ParseFactura decodes one chunk with DefaultLayout.
func ParseFactura(lines []string) (*types.Factura, *types.ParseError) {
	return Default().ParseFactura(lines)
}
