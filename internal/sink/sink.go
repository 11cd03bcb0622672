// =============================================================================
// Facturas Loader - Persistence Sinks
// =============================================================================
//
// A Sink stores parsed tickets. Two drivers are provided:
//   - postgres : pgx connection pool, enum-typed columns
//   - sqlite   : embedded database file, CHECK-constrained columns
//
// STORAGE MODEL:
//   - A successful slot becomes one header row, one trailer row and one item
//     row per item, written in a single transaction. Storing an invoice
//     number that already exists replaces the previous rows.
//   - A failed slot becomes one logs row (kind, message, timestamp).
//
// Both drivers share the statement builders below; only the SQL dialect
// differs.
//
// =============================================================================

package sink

import (
	"context"
	"embed"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

//go:embed schema/*.sql
var schemas embed.FS

// Sink persists tickets and error logs.
type Sink interface {
	// Init creates the schema. With reset, existing tables are dropped first.
	Init(ctx context.Context, reset bool) error

	// Store writes every slot of ticket.
	Store(ctx context.Context, ticket types.Ticket) (Stats, error)

	// LogErrors writes one logs row per error.
	LogErrors(ctx context.Context, errs []error) error

	Close() error
}

// Stats counts the rows written by one Store call.
type Stats struct {
	Facturas int
	Items    int
	Logs     int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Facturas += other.Facturas
	s.Items += other.Items
	s.Logs += other.Logs
}

// Open connects to the sink named by driver.
//
// PARAMETERS:
//   - driver: "postgres" or "sqlite".
//   - url: Connection string (postgres) or database file path (sqlite).
//   - logger: May be nil.
//
// RETURNS:
//   - The connected Sink.
//   - An error marked with errors.ErrDBConnection when the database cannot be
//     reached.
func Open(ctx context.Context, driver, url string, logger *zap.Logger) (Sink, error) {
	switch driver {
	case "postgres":
		pg, err := OpenPostgres(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := OpenSQLite(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, errors.Newf("unknown sink driver %q", driver)
	}
}

// =============================================================================
// LOG ENTRIES
// =============================================================================

// LogEntry is one row of the logs table.
type LogEntry struct {
	Kind    types.ErrorKind
	Message string
	Date    time.Time
}

// entriesForTicket builds a log entry for every failed slot.
func entriesForTicket(ticket types.Ticket, now time.Time) []LogEntry {
	var entries []LogEntry
	for _, err := range ticket.Failed() {
		entries = append(entries, LogEntry{Kind: err.Kind, Message: err.Message, Date: now})
	}
	return entries
}

// entriesForErrors converts errors to log entries. Errors outside the
// taxonomy are returned separately.
func entriesForErrors(errs []error, now time.Time) ([]LogEntry, []error) {
	var entries []LogEntry
	var unknown []error

	for _, err := range errs {
		kind, ok := errors.KindOf(err)
		if !ok {
			unknown = append(unknown, err)
			continue
		}

		message := err.Error()
		var parseErr *types.ParseError
		var validationErr *types.ValidationError
		switch {
		case errors.As(err, &parseErr):
			message = parseErr.Message
		case errors.As(err, &validationErr):
			message = validationErr.Error()
		}

		entries = append(entries, LogEntry{Kind: kind, Message: message, Date: now})
	}
	return entries, unknown
}

// =============================================================================
// STATEMENT BUILDERS
// =============================================================================

// statement is one parameterised SQL statement.
type statement struct {
	sql  string
	args []any
}

// dialect holds the driver-specific SQL for every write.
type dialect struct {
	deleteHeader  string
	insertHeader  string
	insertTrailer string
	insertItem    string
	insertLog     string

	// date renders a calendar date for the header table.
	date func(time.Time) any
	// timestamp renders a log timestamp.
	timestamp func(time.Time) any
}

// invoiceStatements returns the statements that store f, in execution order.
func (d dialect) invoiceStatements(f *types.Factura) []statement {
	h := f.Header
	stmts := make([]statement, 0, 3+len(f.Items))

	stmts = append(stmts,
		statement{d.deleteHeader, []any{h.InvoiceNumber}},
		statement{d.insertHeader, []any{h.InvoiceNumber, h.ClientID, d.date(h.Date), h.Currency.Lower()}},
		statement{d.insertTrailer, []any{h.InvoiceNumber, int64(f.Trailer.ItemCount), f.Trailer.TotalValue}},
	)
	for _, item := range f.Items {
		stmts = append(stmts, statement{
			d.insertItem,
			[]any{item.ID, h.InvoiceNumber, int64(item.Quantity), int64(item.Age), item.NetValue},
		})
	}
	return stmts
}

// logStatement returns the statement that stores one log entry. Messages
// quote raw input, so invalid UTF-8 is replaced before it reaches a TEXT
// column.
func (d dialect) logStatement(e LogEntry) statement {
	message := strings.ToValidUTF8(e.Message, "\uFFFD")
	return statement{d.insertLog, []any{e.Kind.String(), message, d.timestamp(e.Date)}}
}

// schemaFor reads the embedded create or drop script of a driver.
func schemaFor(driver string, drop bool) (string, error) {
	name := "schema/" + driver + ".sql"
	if drop {
		name = "schema/" + driver + "_drop.sql"
	}
	data, err := schemas.ReadFile(name)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", name)
	}
	return string(data), nil
}
