package sink

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

var postgresDialect = dialect{
	deleteHeader:  "DELETE FROM header WHERE id_factura = $1",
	insertHeader:  "INSERT INTO header (id_factura, id_cliente, fecha, denominacion) VALUES ($1, $2, $3, $4::currencies)",
	insertTrailer: "INSERT INTO trailer (id_factura, numero_items, total) VALUES ($1, $2, $3)",
	insertItem:    "INSERT INTO item (id_item, id_factura, cantidad, antiguedad, valor_neto) VALUES ($1, $2, $3, $4, $5)",
	insertLog:     "INSERT INTO logs (log_type, message, date) VALUES ($1::parser_error, $2, $3)",
	date:          func(t time.Time) any { return t },
	timestamp:     func(t time.Time) any { return t.UTC() },
}

// Postgres stores tickets through a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// OpenPostgres parses connString, creates the pool and pings the server.
func OpenPostgres(ctx context.Context, connString string, logger *zap.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse database config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unable to create connection pool"), errors.ErrDBConnection)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Mark(errors.Wrap(err, "unable to ping database"), errors.ErrDBConnection)
	}

	logger = logging.OrNop(logger)
	logger.Info("connected to postgres", zap.String("host", config.ConnConfig.Host), zap.String("database", config.ConnConfig.Database))

	return &Postgres{pool: pool, logger: logger, now: time.Now}, nil
}

// Init creates the enums and tables. With reset they are dropped first.
func (p *Postgres) Init(ctx context.Context, reset bool) error {
	if reset {
		drop, err := schemaFor("postgres", true)
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, drop); err != nil {
			return errors.Wrap(err, "drop schema")
		}
		p.logger.Warn("dropped existing schema")
	}

	create, err := schemaFor("postgres", false)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, create); err != nil {
		return errors.Wrap(err, "create schema")
	}
	p.logger.Info("schema ready")
	return nil
}

// Store writes each invoice in its own transaction and the failed slots to
// logs. It stops at the first database error; invoices already committed
// stay committed.
func (p *Postgres) Store(ctx context.Context, ticket types.Ticket) (Stats, error) {
	var stats Stats

	for i, factura := range ticket.Succeeded() {
		batch := invoiceBatch(factura)
		err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return stats, errors.Wrapf(err, "store invoice %d (#%d)", factura.Header.InvoiceNumber, i)
		}
		stats.Facturas++
		stats.Items += len(factura.Items)
	}

	entries := entriesForTicket(ticket, p.now())
	if err := p.writeLogs(ctx, entries); err != nil {
		return stats, err
	}
	stats.Logs = len(entries)

	p.logger.Debug("ticket stored",
		zap.Int("facturas", stats.Facturas),
		zap.Int("items", stats.Items),
		zap.Int("logs", stats.Logs),
	)
	return stats, nil
}

// LogErrors writes errs to the logs table. Errors outside the taxonomy are
// skipped with a warning.
func (p *Postgres) LogErrors(ctx context.Context, errs []error) error {
	entries, unknown := entriesForErrors(errs, p.now())
	for _, err := range unknown {
		p.logger.Warn("skipping unclassified error", zap.Error(err))
	}
	return p.writeLogs(ctx, entries)
}

func (p *Postgres) writeLogs(ctx context.Context, entries []LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := p.pool.SendBatch(ctx, logBatch(entries)).Close(); err != nil {
		return errors.Wrap(err, "write logs")
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// invoiceBatch queues the statements that store f.
func invoiceBatch(f *types.Factura) *pgx.Batch {
	return toBatch(postgresDialect.invoiceStatements(f))
}

// logBatch queues one insert per entry.
func logBatch(entries []LogEntry) *pgx.Batch {
	stmts := make([]statement, 0, len(entries))
	for _, e := range entries {
		stmts = append(stmts, postgresDialect.logStatement(e))
	}
	return toBatch(stmts)
}

func toBatch(stmts []statement) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, s := range stmts {
		batch.Queue(s.sql, s.args...)
	}
	return batch
}
