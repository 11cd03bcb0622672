// =============================================================================
// Facturas Loader - Ticket Splitter & Assembler
// =============================================================================
//
// A ticket file is a sequence of invoices. Each invoice ends with a trailer
// line, so the splitter declares a chunk boundary at every line whose first
// byte is 'T'. Chunks are parsed independently: one malformed invoice never
// blocks the invoices that follow it.
//
// TRAILING LINES:
//   Lines after the last trailer never reach a boundary. Blank trailing lines
//   are ignored (a file normally ends with a newline). Anything else becomes
//   one extra slot carrying a FacturaError, so a truncated file never loses
//   an invoice silently.
//
// =============================================================================

package ticketparser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// =============================================================================
// SPLITTER
// =============================================================================

// Chunks is the result of splitting a ticket text.
type Chunks struct {
	// Complete holds every chunk terminated by a trailer line.
	Complete [][]string

	// Trailing holds the non-blank lines after the last trailer, if any.
	Trailing []string
}

// splitLines splits on '\n' and drops a trailing '\r' from each line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Split scans the lines of text in order and cuts a chunk after every
// trailer line.
//
// PARAMETERS:
//   - text: The raw ticket text.
//
// RETURNS:
//   - The complete chunks in input order, plus the unterminated tail.
func Split(text string) Chunks {
	lines := splitLines(text)

	var chunks Chunks
	prev := 0
	for i, line := range lines {
		if line != "" && line[0] == TrailerMarker {
			chunks.Complete = append(chunks.Complete, lines[prev:i+1])
			prev = i + 1
		}
	}

	tail := lines[prev:]
	for len(tail) > 0 && strings.TrimSpace(tail[len(tail)-1]) == "" {
		tail = tail[:len(tail)-1]
	}
	if len(tail) > 0 {
		chunks.Trailing = tail
	}

	return chunks
}

// unterminated builds the slot reported for lines after the last trailer.
func unterminated(lines []string) types.Slot {
	return types.Slot{Err: types.NewParseError(
		types.KindFacturaError,
		"trailer",
		fmt.Sprintf("end of input after %d lines in Factura", len(lines)),
	)}
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// parseSlot parses one chunk into a ticket slot.
func (p *Parser) parseSlot(lines []string) types.Slot {
	factura, err := p.ParseFactura(lines)
	if err != nil {
		return types.Slot{Err: err}
	}
	return types.Slot{Factura: factura}
}

// ParseTicket splits text into chunks and parses each one.
//
// PARAMETERS:
//   - text: The raw ticket text.
//
// RETURNS:
//   - A Ticket with one slot per chunk, in encounter order. Parsing never
//     fails as a whole; failures are recorded in their slot.
func (p *Parser) ParseTicket(text string) types.Ticket {
	chunks := Split(text)

	slots := make([]types.Slot, 0, len(chunks.Complete)+1)
	for _, chunk := range chunks.Complete {
		slots = append(slots, p.parseSlot(chunk))
	}
	if chunks.Trailing != nil {
		slots = append(slots, unterminated(chunks.Trailing))
	}

	return types.Ticket{Facturas: slots}
}

// ParseTicketConcurrent is ParseTicket on a bounded pool of workers.
// Chunks carry no shared state, so each worker writes its result at the
// chunk's index and the output order matches ParseTicket exactly.
//
// PARAMETERS:
//   - ctx: Cancels outstanding work; the context error is returned.
//   - text: The raw ticket text.
//   - workers: Pool size. Values below 2 fall back to ParseTicket.
func (p *Parser) ParseTicketConcurrent(ctx context.Context, text string, workers int) (types.Ticket, error) {
	if workers < 2 {
		return p.ParseTicket(text), ctx.Err()
	}

	chunks := Split(text)
	slots := make([]types.Slot, len(chunks.Complete))

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = p.parseSlot(chunks.Complete[i])
			}
		}()
	}

	var cancelled error
feed:
	for i := range chunks.Complete {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return types.Ticket{}, cancelled
	}

	if chunks.Trailing != nil {
		slots = append(slots, unterminated(chunks.Trailing))
	}
	return types.Ticket{Facturas: slots}, nil
}

// ParseTicket parses text with DefaultLayout.
func ParseTicket(text string) types.Ticket {
	return Default().ParseTicket(text)
}
