// =============================================================================
// Facturas Loader - Configuration Module
// =============================================================================
//
// This module loads and validates the application configuration.
//
// CONFIGURATION SOURCES (lowest to highest precedence):
//   1. Built-in defaults (SetDefaults)
//   2. The main config file (config.yaml)
//   3. Environment variables with the FACTURAS_ prefix
//      (FACTURAS_DATABASE_URL overrides database.url)
//
// The optional header layout file is a separate YAML document loaded with
// LoadLayout; see layout.go.
//
// =============================================================================

package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FACTURAS"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for ticket files.
	// Default: "./input"
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	// OutputDir receives the XML and XLSX reports.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// InputArchiveDir receives ticket files once they are loaded.
	// Default: "./input_archive"
	InputArchiveDir string `mapstructure:"input_archive_dir" yaml:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every report.
	// Default: "./output_archive"
	OutputArchiveDir string `mapstructure:"output_archive_dir" yaml:"output_archive_dir"`

	// FilePattern selects ticket files inside InputDir.
	// Default: "*.in"
	FilePattern string `mapstructure:"file_pattern" yaml:"file_pattern"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat is "console" or "json".
	// Default: "console"
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the base name of report files.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {original}  - Input file name without extension
	// Default: "{original}_{timestamp}"
	OutputNameFormat string `mapstructure:"output_name_format" yaml:"output_name_format"`

	// WriteXML enables the XML export.
	// Default: true
	WriteXML bool `mapstructure:"write_xml" yaml:"write_xml"`

	// WriteXLSX enables the XLSX report.
	// Default: false
	WriteXLSX bool `mapstructure:"write_xlsx" yaml:"write_xlsx"`

	// LayoutFile is an optional YAML header layout. Empty means the default.
	LayoutFile string `mapstructure:"layout_file" yaml:"layout_file"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the workers used to parse and validate one file.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// ContinueOnError persists the consistent invoices of a file even when
	// other invoices fail validation. When false the whole file is rejected.
	// Default: false
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// DatabaseConfig selects and addresses the sink.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// URL is a postgres connection string or a sqlite file path.
	URL string `mapstructure:"url" yaml:"url"`
}

// ServerConfig configures the HTTP intake.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// =============================================================================
// VIPER WIRING
// =============================================================================

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("input_archive_dir", "./input_archive")
	v.SetDefault("output_archive_dir", "./output_archive")
	v.SetDefault("file_pattern", "*.in")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("output_name_format", "{original}_{timestamp}")
	v.SetDefault("write_xml", true)
	v.SetDefault("write_xlsx", false)
	v.SetDefault("layout_file", "")

	v.SetDefault("max_concurrency", 4)
	v.SetDefault("continue_on_error", false)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.url", "facturas.db")
	v.SetDefault("server.port", 8080)
}

// NewViper returns a viper instance with defaults and environment binding.
// configPath may be empty; otherwise the file must exist.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if configPath == "" {
		return v, nil
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return v, nil
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*MainConfig, error) {
	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &config, nil
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file
//     at the default path is not an error; defaults and environment apply.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or a value is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = ""
		}
	}

	v, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks value ranges. It does not touch the filesystem.
func (c *MainConfig) Validate() error {
	if c.MaxConcurrency < 1 {
		return errors.Newf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.WithHint(
			errors.Newf("unsupported database.driver %q", c.Database.Driver),
			"use postgres or sqlite",
		)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.Newf("log_format must be console or json, got %q", c.LogFormat)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port out of range: %d", c.Server.Port)
	}

	if c.FilePattern == "" {
		return errors.New("file_pattern must not be empty")
	}

	return nil
}

// EnsureDirs creates every working directory that does not exist yet.
func (c *MainConfig) EnsureDirs() error {
	dirs := []string{
		c.InputDir,
		c.OutputDir,
		c.InputArchiveDir,
		c.OutputArchiveDir,
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", dir)
			}
		}
	}

	return nil
}
