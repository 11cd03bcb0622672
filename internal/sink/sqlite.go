package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// SQLiteBusyTimeoutMS is how long a writer waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

var sqliteDialect = dialect{
	deleteHeader:  "DELETE FROM header WHERE id_factura = ?",
	insertHeader:  "INSERT INTO header (id_factura, id_cliente, fecha, denominacion) VALUES (?, ?, ?, ?)",
	insertTrailer: "INSERT INTO trailer (id_factura, numero_items, total) VALUES (?, ?, ?)",
	insertItem:    "INSERT INTO item (id_item, id_factura, cantidad, antiguedad, valor_neto) VALUES (?, ?, ?, ?, ?)",
	insertLog:     "INSERT INTO logs (log_type, message, date) VALUES (?, ?, ?)",
	date:          func(t time.Time) any { return t.Format("2006-01-02") },
	timestamp:     func(t time.Time) any { return t.UTC().Format(time.RFC3339) },
}

// SQLite stores tickets in an embedded database file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens the database at path with WAL mode and foreign keys.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	logger = logging.OrNop(logger)
	logger.Debug("opening database", zap.String("path", path))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// foreign_keys is per connection; keep a single one.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", SQLiteBusyTimeoutMS),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Mark(errors.Wrapf(err, "failed to apply %q", pragma), errors.ErrDBConnection)
		}
	}

	logger.Info("database opened",
		zap.String("path", path),
		zap.Bool("wal_mode", true),
		zap.Bool("foreign_keys", true),
	)
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// DB exposes the handle for inspection.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Init creates the tables. With reset they are dropped first.
func (s *SQLite) Init(ctx context.Context, reset bool) error {
	if reset {
		drop, err := schemaFor("sqlite", true)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, drop); err != nil {
			return errors.Wrap(err, "drop schema")
		}
		s.logger.Warn("dropped existing schema")
	}

	create, err := schemaFor("sqlite", false)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return errors.Wrap(err, "create schema")
	}
	s.logger.Info("schema ready")
	return nil
}

// Store writes each invoice in its own transaction and the failed slots to
// logs.
func (s *SQLite) Store(ctx context.Context, ticket types.Ticket) (Stats, error) {
	var stats Stats

	for _, factura := range ticket.Succeeded() {
		if err := s.execTx(ctx, sqliteDialect.invoiceStatements(factura)); err != nil {
			return stats, errors.Wrapf(err, "store invoice %d", factura.Header.InvoiceNumber)
		}
		stats.Facturas++
		stats.Items += len(factura.Items)
	}

	entries := entriesForTicket(ticket, s.now())
	if err := s.writeLogs(ctx, entries); err != nil {
		return stats, err
	}
	stats.Logs = len(entries)

	s.logger.Debug("ticket stored",
		zap.Int("facturas", stats.Facturas),
		zap.Int("items", stats.Items),
		zap.Int("logs", stats.Logs),
	)
	return stats, nil
}

// LogErrors writes errs to the logs table.
func (s *SQLite) LogErrors(ctx context.Context, errs []error) error {
	entries, unknown := entriesForErrors(errs, s.now())
	for _, err := range unknown {
		s.logger.Warn("skipping unclassified error", zap.Error(err))
	}
	return s.writeLogs(ctx, entries)
}

func (s *SQLite) writeLogs(ctx context.Context, entries []LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmts := make([]statement, 0, len(entries))
	for _, e := range entries {
		stmts = append(stmts, sqliteDialect.logStatement(e))
	}
	if err := s.execTx(ctx, stmts); err != nil {
		return errors.Wrap(err, "write logs")
	}
	return nil
}

// execTx runs stmts in one transaction.
func (s *SQLite) execTx(ctx context.Context, stmts []statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.sql, stmt.args...); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "exec")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
