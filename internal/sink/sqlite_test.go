package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "facturas.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	s.now = func() time.Time { return fixedNow }
	require.NoError(t, s.Init(context.Background(), false))
	return s
}

func countRows(t *testing.T, s *SQLite, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpenSQLitePragmas(t *testing.T) {
	s := openTestSQLite(t)

	var journalMode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, s.DB().QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
}

func TestOpenSQLiteInvalidPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "/invalid/nonexistent/path/db.sqlite", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDBConnection))
}

func TestSQLiteStore(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	stats, err := s.Store(ctx, testTicket())
	require.NoError(t, err)
	assert.Equal(t, Stats{Facturas: 2, Items: 3, Logs: 1}, stats)

	assert.Equal(t, 2, countRows(t, s, "header"))
	assert.Equal(t, 2, countRows(t, s, "trailer"))
	assert.Equal(t, 3, countRows(t, s, "item"))
	assert.Equal(t, 1, countRows(t, s, "logs"))

	var fecha, denominacion string
	var cliente int
	require.NoError(t, s.DB().QueryRow(
		"SELECT id_cliente, fecha, denominacion FROM header WHERE id_factura = 2",
	).Scan(&cliente, &fecha, &denominacion))
	assert.Equal(t, 10, cliente)
	assert.Equal(t, "2023-01-15", fecha)
	assert.Equal(t, "usd", denominacion)

	var total float64
	var numero int
	require.NoError(t, s.DB().QueryRow(
		"SELECT numero_items, total FROM trailer WHERE id_factura = 2",
	).Scan(&numero, &total))
	assert.Equal(t, 2, numero)
	assert.InDelta(t, 4.0, total, 1e-6)

	var logType, message, date string
	require.NoError(t, s.DB().QueryRow("SELECT log_type, message, date FROM logs").Scan(&logType, &message, &date))
	assert.Equal(t, "CurrencyError", logType)
	assert.Equal(t, "Expected Currency found XYZ", message)
	assert.Equal(t, "2024-03-01T12:30:00Z", date)
}

func TestSQLiteStoreReplacesInvoice(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, err := s.Store(ctx, testTicket())
	require.NoError(t, err)

	again := types.Ticket{Facturas: []types.Slot{
		{Factura: testFactura(2, types.Item{ID: "Z", Age: 1, Quantity: 1, NetValue: 9.0})},
	}}
	stats, err := s.Store(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, Stats{Facturas: 1, Items: 1}, stats)

	assert.Equal(t, 2, countRows(t, s, "header"))
	assert.Equal(t, 2, countRows(t, s, "item"))

	var id string
	require.NoError(t, s.DB().QueryRow("SELECT id_item FROM item WHERE id_factura = 2").Scan(&id))
	assert.Equal(t, "Z", id)
}

func TestSQLiteLogErrors(t *testing.T) {
	s := openTestSQLite(t)

	err := s.LogErrors(context.Background(), []error{
		&types.ValidationError{Kind: types.KindNotSameItems, InvoiceNumber: 4, Message: "Expected 2 found 1"},
		errors.New("not classified"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, s, "logs"))

	require.NoError(t, s.LogErrors(context.Background(), nil))
	assert.Equal(t, 1, countRows(t, s, "logs"))
}

func TestSQLiteInitReset(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, err := s.Store(ctx, testTicket())
	require.NoError(t, err)

	require.NoError(t, s.Init(ctx, false))
	assert.Equal(t, 2, countRows(t, s, "header"))

	require.NoError(t, s.Init(ctx, true))
	assert.Equal(t, 0, countRows(t, s, "header"))
	assert.Equal(t, 0, countRows(t, s, "logs"))
}

func TestSQLiteOpenThroughSinkOpen(t *testing.T) {
	sk, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "x.db"), nil)
	require.NoError(t, err)
	defer sk.Close()

	require.NoError(t, sk.Init(context.Background(), false))
	stats, err := sk.Store(context.Background(), types.Ticket{})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
