package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ginjaninja78/facturas-loader/internal/config"
	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/sink"
	"github.com/ginjaninja78/facturas-loader/internal/xlsxreport"
	"github.com/ginjaninja78/facturas-loader/pkg/utils"
)

// Header lines follow the default column table.
const (
	validInvoices = "H   00001 010  20230101USD\n" +
		"I1 5 2 10.0\n" +
		"T 1 10.0\n" +
		"H   00002 011  20230102MXN\n" +
		"IA 1 1 2.5\n" +
		"T 1 2.5"

	badCurrency = "H   00004 010  20230101XYZ\n" +
		"T 0 0.0"

	badTotal = "H   00003 012  20230103EUR\n" +
		"IB 1 1 1.0\n" +
		"T 1 99.0"
)

func testConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	root := t.TempDir()
	cfg := &config.MainConfig{
		InputDir:         filepath.Join(root, "input"),
		OutputDir:        filepath.Join(root, "output"),
		InputArchiveDir:  filepath.Join(root, "input_archive"),
		OutputArchiveDir: filepath.Join(root, "output_archive"),
		FilePattern:      "*.in",
		OutputNameFormat: "{original}",
		WriteXML:         true,
		MaxConcurrency:   2,
	}
	require.NoError(t, cfg.EnsureDirs())
	return cfg
}

func openSink(t *testing.T) *sink.SQLite {
	t.Helper()
	s, err := sink.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "facturas.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Init(context.Background(), false))
	return s
}

func writeTicket(t *testing.T, cfg *config.MainConfig, name string, chunks ...string) string {
	t.Helper()
	path := filepath.Join(cfg.InputDir, name)
	require.NoError(t, os.WriteFile(path, []byte("\n"+strings.Join(chunks, "\n")+"\n\n"), 0644))
	return path
}

func countRows(t *testing.T, s *sink.SQLite, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRunLoadsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.WriteXLSX = true
	s := openSink(t)
	path := writeTicket(t, cfg, "march.in", validInvoices, badCurrency)

	result := New(path, cfg, s, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.TicketID)

	assert.Equal(t, 3, result.Stats.Facturas)
	assert.Equal(t, 1, result.Stats.ParseErrors)
	assert.Equal(t, 0, result.Stats.ValidationErrors)
	assert.Equal(t, sink.Stats{Facturas: 2, Items: 2, Logs: 1}, result.Stats.Stored)
	assert.Positive(t, result.Stats.ProcessingTime)

	assert.Equal(t, 2, countRows(t, s, "header"))
	assert.Equal(t, 1, countRows(t, s, "logs"))

	require.Len(t, result.Reports, 2)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "march.xml"), result.Reports[0])
	xmlDoc, err := os.ReadFile(result.Reports[0])
	require.NoError(t, err)
	assert.Contains(t, string(xmlDoc), `source="march.in"`)
	assert.Contains(t, string(xmlDoc), `kind="CurrencyError"`)

	report, err := xlsxreport.Read(result.Reports[1])
	require.NoError(t, err)
	assert.Len(t, report.Facturas, 2)
	assert.Len(t, report.Errors, 1)

	assert.Equal(t, filepath.Join(cfg.InputArchiveDir, "march.in"), result.ArchivePath)
	assert.False(t, utils.FileExists(path))
	assert.True(t, utils.FileExists(filepath.Join(cfg.OutputArchiveDir, "march.xml")))
	assert.NotEmpty(t, result.ErrorLog)
}

func TestRunMissingFile(t *testing.T) {
	cfg := testConfig(t)
	s := openSink(t)

	result := New(filepath.Join(cfg.InputDir, "missing.in"), cfg, s, nil).Run(context.Background())
	assert.False(t, result.Success)
	require.Error(t, result.Error)
	assert.True(t, errors.Is(result.Error, errors.ErrInvalidPath))
	assert.Nil(t, result.Outcome)

	var logType string
	require.NoError(t, s.DB().QueryRow("SELECT log_type FROM logs").Scan(&logType))
	assert.Equal(t, "InvalidPath", logType)
}

func TestRunValidationFailureRejectsFile(t *testing.T) {
	cfg := testConfig(t)
	s := openSink(t)
	path := writeTicket(t, cfg, "bad.in", validInvoices, badTotal)

	result := New(path, cfg, s, nil).Run(context.Background())
	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Error, errors.ErrValidationFailed))
	assert.Equal(t, 1, result.Stats.ValidationErrors)

	assert.Equal(t, 0, countRows(t, s, "header"))
	assert.Equal(t, 1, countRows(t, s, "logs"))

	assert.True(t, utils.FileExists(path), "rejected file stays in the input directory")
	assert.Empty(t, result.Reports)
	assert.NotEmpty(t, result.ErrorLog)
}

func TestRunContinueOnError(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContinueOnError = true
	s := openSink(t)
	path := writeTicket(t, cfg, "mixed.in", validInvoices, badTotal)

	result := New(path, cfg, s, nil).Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	assert.Equal(t, 2, result.Stats.Stored.Facturas)
	assert.Equal(t, 1, result.Stats.Stored.Logs)
	assert.Equal(t, 2, countRows(t, s, "header"))

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM header WHERE id_factura = 3").Scan(&n))
	assert.Equal(t, 0, n)

	var logType string
	require.NoError(t, s.DB().QueryRow("SELECT log_type FROM logs").Scan(&logType))
	assert.Equal(t, "ItemSumNotEqual", logType)
}

func TestRunDryRun(t *testing.T) {
	cfg := testConfig(t)
	s := openSink(t)
	path := writeTicket(t, cfg, "dry.in", validInvoices)

	result := New(path, cfg, s, nil, WithDryRun(true)).Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Stats.Facturas)

	assert.Equal(t, 0, countRows(t, s, "header"))
	assert.Empty(t, result.Reports)
	assert.True(t, utils.FileExists(path))
}

func TestRunDryRunReportsValidationFailure(t *testing.T) {
	cfg := testConfig(t)
	path := writeTicket(t, cfg, "dry.in", badTotal)

	result := New(path, cfg, nil, nil, WithDryRun(true)).Run(context.Background())
	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Error, errors.ErrValidationFailed))
}

func TestRunWithoutSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.WriteXML = false
	path := writeTicket(t, cfg, "nosink.in", validInvoices)

	result := New(path, cfg, nil, nil).Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, sink.Stats{}, result.Stats.Stored)
	assert.Empty(t, result.Reports)
	assert.Empty(t, result.ErrorLog)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	path := writeTicket(t, cfg, "cancel.in", validInvoices)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := New(path, cfg, nil, nil).Run(ctx)
	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Error, context.Canceled))
}

func TestValidate(t *testing.T) {
	cfg := testConfig(t)
	path := writeTicket(t, cfg, "check.in", validInvoices, badCurrency, badTotal)

	outcome, err := Validate(context.Background(), path, nil, 1, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Failed())
	assert.Len(t, outcome.ParseErrors(), 1)
	assert.Len(t, outcome.Validation.Errors, 1)
	assert.Equal(t, 3, outcome.Validation.Errors[0].Slot)
	assert.True(t, utils.FileExists(path))

	_, err = Validate(context.Background(), filepath.Join(cfg.InputDir, "nope.in"), nil, 1, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidPath))
}
