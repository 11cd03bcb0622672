package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/facturas-loader/internal/ticketparser"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "*.in", cfg.FilePattern)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "{original}_{timestamp}", cfg.OutputNameFormat)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.True(t, cfg.WriteXML)
	assert.False(t, cfg.WriteXLSX)
	assert.False(t, cfg.ContinueOnError)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMainConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input_dir: /data/in
file_pattern: "*.txt"
max_concurrency: 8
continue_on_error: true
write_xlsx: true
database:
  driver: postgres
  url: postgres://loader@localhost/facturas
server:
  port: 9090
`), 0644))

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/in", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "*.txt", cfg.FilePattern)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.True(t, cfg.ContinueOnError)
	assert.True(t, cfg.WriteXLSX)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://loader@localhost/facturas", cfg.Database.URL)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadMainConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./input", cfg.InputDir)
}

func TestLoadMainConfigEnvOverride(t *testing.T) {
	t.Setenv("FACTURAS_DATABASE_URL", "/tmp/override.db")
	t.Setenv("FACTURAS_MAX_CONCURRENCY", "2")

	cfg, err := LoadMainConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.URL)
	assert.Equal(t, 2, cfg.MaxConcurrency)
}

func TestValidate(t *testing.T) {
	base := func() MainConfig {
		v := viper.New()
		SetDefaults(v)
		cfg, err := LoadWithViper(v)
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *MainConfig)
		wantErr string
	}{
		{"zero concurrency", func(c *MainConfig) { c.MaxConcurrency = 0 }, "max_concurrency"},
		{"unknown driver", func(c *MainConfig) { c.Database.Driver = "mysql" }, "unsupported database.driver"},
		{"bad log format", func(c *MainConfig) { c.LogFormat = "xml" }, "log_format"},
		{"bad port", func(c *MainConfig) { c.Server.Port = 70000 }, "server.port"},
		{"empty pattern", func(c *MainConfig) { c.FilePattern = "" }, "file_pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := MainConfig{
		InputDir:         filepath.Join(root, "in"),
		OutputDir:        filepath.Join(root, "out"),
		InputArchiveDir:  filepath.Join(root, "archive", "in"),
		OutputArchiveDir: filepath.Join(root, "archive", "out"),
	}

	require.NoError(t, cfg.EnsureDirs())
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoadLayout(t *testing.T) {
	layout, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, ticketparser.DefaultLayout(), layout)

	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
header:
  invoice_number: {start: 1, end: 3}
  client_id: {start: 4, end: 5}
  date: {start: 6, end: 13}
  currency: {start: 14, end: -1}
`), 0644))

	layout, err = LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, ticketparser.Column{Start: 1, End: 3}, layout.InvoiceNumber)
	assert.Equal(t, ticketparser.Column{Start: 14, End: ticketparser.OpenEnd}, layout.Currency)
}

func TestLoadLayoutRejectsInvalid(t *testing.T) {
	_, err := ParseLayout([]byte(`
header:
  invoice_number: {start: 4, end: 8}
  client_id: {start: 8, end: 12}
  date: {start: 15, end: 22}
  currency: {start: 23, end: -1}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")

	_, err = LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMarshalLayoutRoundTrip(t *testing.T) {
	data, err := MarshalLayout(ticketparser.DefaultLayout())
	require.NoError(t, err)

	layout, err := ParseLayout(data)
	require.NoError(t, err)
	assert.Equal(t, ticketparser.DefaultLayout(), layout)
}
