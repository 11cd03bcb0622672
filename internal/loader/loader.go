// =============================================================================
// Facturas Loader - Loader Module
// =============================================================================
//
// This module orchestrates the load of a single ticket file, from reading
// the file to archiving it.
//
// LOAD PIPELINE:
//   1. Read the ticket file
//   2. Parse it into invoice slots
//   3. Validate every parsed invoice
//   4. Persist accepted invoices and log failures to the sink
//   5. Write the XML and XLSX reports
//   6. Write the error log
//   7. Archive the ticket file and the reports
//
// CONCURRENCY:
//   Each file can be loaded in its own goroutine. Within one file, parsing
//   and validation use up to max_concurrency workers.
//
// =============================================================================

package loader

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/config"
	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/metrics"
	"github.com/ginjaninja78/facturas-loader/internal/sink"
	"github.com/ginjaninja78/facturas-loader/internal/ticketparser"
	"github.com/ginjaninja78/facturas-loader/internal/xlsxreport"
	"github.com/ginjaninja78/facturas-loader/internal/xmlwriter"
	"github.com/ginjaninja78/facturas-loader/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of loading a single file.
type Result struct {
	// FilePath is the path to the ticket file that was loaded.
	FilePath string

	// TicketID identifies this load in logs and reports.
	TicketID string

	// Reports lists the XML/XLSX reports written to the output directory.
	Reports []string

	// ErrorLog is the path of the error log, if one was written.
	ErrorLog string

	// ArchivePath is where the ticket file was moved, if it was archived.
	ArchivePath string

	// Success indicates whether the file was loaded. Parse failures of
	// single invoices do not fail the file.
	Success bool

	// Error contains the error if the load failed.
	Error error

	// Outcome is the pipeline output; nil when the file could not be parsed.
	Outcome *Outcome

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the load.
type ProcessingStats struct {
	// Facturas is the number of slots found in the file.
	Facturas int

	// ParseErrors is the number of slots that failed to parse.
	ParseErrors int

	// ValidationErrors is the number of validation violations.
	ValidationErrors int

	// Stored counts the rows written to the sink.
	Stored sink.Stats

	// ProcessingTime is the time taken to load the file.
	ProcessingTime time.Duration
}

// =============================================================================
// LOADER STRUCTURE
// =============================================================================

// Loader handles the load of one ticket file.
type Loader struct {
	path   string
	cfg    *config.MainConfig
	sink   sink.Sink
	parser *ticketparser.Parser
	files  *utils.FileManager
	dryRun bool
	logger *zap.Logger
}

// Option customises a Loader.
type Option func(*Loader)

// WithParser sets the record parser (for a custom header layout).
func WithParser(p *ticketparser.Parser) Option {
	return func(l *Loader) { l.parser = p }
}

// WithFileManager replaces the file manager built from the configuration.
func WithFileManager(fm *utils.FileManager) Option {
	return func(l *Loader) { l.files = fm }
}

// WithDryRun parses and validates without persisting, writing reports or
// archiving.
func WithDryRun(dryRun bool) Option {
	return func(l *Loader) { l.dryRun = dryRun }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Loader instance.
//
// PARAMETERS:
//   - path: The ticket file to load.
//   - cfg: The main application configuration.
//   - sk: The persistence sink. May be nil (nothing is persisted).
//   - logger: May be nil.
func New(path string, cfg *config.MainConfig, sk sink.Sink, logger *zap.Logger, opts ...Option) *Loader {
	l := &Loader{
		path:   path,
		cfg:    cfg,
		sink:   sk,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.parser == nil {
		l.parser = ticketparser.Default()
	}
	if l.files == nil {
		l.files = utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	}
	return l
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the load pipeline for the file.
//
// RETURNS:
//   - A Result struct containing the outcome of the load. Run never panics
//     on bad input; every failure ends up in Result.Error.
func (l *Loader) Run(ctx context.Context) (result Result) {
	timer := metrics.NewTimer()
	result = Result{
		FilePath: l.path,
		TicketID: uuid.New().String(),
	}
	logger := l.logger.With(zap.String("file", l.path), zap.String("ticket_id", result.TicketID))

	defer func() {
		result.Stats.ProcessingTime = timer.Duration()
		metrics.RecordFile(result.Success, result.Stats.ProcessingTime)
	}()

	logger.Info("loading ticket file")

	// =========================================================================
	// STEP 1: READ THE TICKET FILE
	// =========================================================================

	data, err := os.ReadFile(l.path)
	if err != nil {
		result.Error = errors.Mark(
			errors.Wrapf(err, "failed to read ticket file %s", l.path),
			errors.ErrInvalidPath,
		)
		logger.Error("cannot read ticket file", zap.Error(err))
		if l.sink != nil && !l.dryRun {
			if logErr := l.sink.LogErrors(ctx, []error{result.Error}); logErr != nil {
				logger.Warn("failed to log read error", zap.Error(logErr))
			}
		}
		return result
	}

	// =========================================================================
	// STEPS 2-4: PARSE, VALIDATE, PERSIST
	// =========================================================================

	pipeline := NewPipeline(l.parser, l.sink, l.cfg.MaxConcurrency, l.cfg.ContinueOnError, logger)
	outcome, err := pipeline.Load(ctx, string(data), !l.dryRun)
	result.Outcome = outcome
	if outcome != nil {
		result.Stats.Facturas = outcome.Ticket.Len()
		result.Stats.ParseErrors = len(outcome.ParseErrors())
		result.Stats.ValidationErrors = len(outcome.Validation.Errors)
		result.Stats.Stored = outcome.Stored
	}
	if err != nil {
		result.Error = err
		logger.Error("ticket rejected", zap.Error(err))
		if outcome != nil && !l.dryRun {
			result.ErrorLog = l.writeErrorLog(outcome, logger)
		}
		return result
	}

	logger.Info("ticket parsed",
		zap.Int("facturas", result.Stats.Facturas),
		zap.Int("parse_errors", result.Stats.ParseErrors),
		zap.Int("validation_errors", result.Stats.ValidationErrors),
		zap.Int("stored", result.Stats.Stored.Facturas),
	)

	if l.dryRun {
		if !outcome.Validation.IsValid && !l.cfg.ContinueOnError {
			result.Error = errors.Mark(
				errors.Newf("validation failed with %d errors", result.Stats.ValidationErrors),
				errors.ErrValidationFailed,
			)
			return result
		}
		result.Success = true
		return result
	}

	// =========================================================================
	// STEP 5: WRITE REPORTS
	// =========================================================================

	reports, err := l.writeReports(result.TicketID, outcome)
	result.Reports = reports
	if err != nil {
		result.Error = errors.Wrap(err, "failed to write reports")
		logger.Error("report generation failed", zap.Error(err))
		return result
	}

	// =========================================================================
	// STEP 6: WRITE ERROR LOG
	// =========================================================================

	result.ErrorLog = l.writeErrorLog(outcome, logger)

	// =========================================================================
	// STEP 7: ARCHIVE FILES
	// =========================================================================
	// Archival failures are logged but do not fail the load; the data is
	// already persisted.

	if archived, err := l.files.ArchiveInputFile(l.path); err != nil {
		logger.Warn("failed to archive ticket file", zap.Error(err))
	} else {
		result.ArchivePath = archived
	}
	for _, report := range reports {
		if _, err := l.files.ArchiveOutputFile(report); err != nil {
			logger.Warn("failed to archive report", zap.String("report", report), zap.Error(err))
		}
	}

	result.Success = true
	logger.Info("ticket file loaded", zap.Duration("elapsed", timer.Duration()))
	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeReports writes the enabled reports and returns their paths.
func (l *Loader) writeReports(ticketID string, outcome *Outcome) ([]string, error) {
	var reports []string

	if l.cfg.WriteXML {
		opts := xmlwriter.DefaultGenerateOptions()
		opts.ValidationErrors = outcome.Validation.Errors
		opts.RootAttributes["id"] = ticketID
		opts.RootAttributes["source"] = filepath.Base(l.path)

		doc, err := xmlwriter.Generate(outcome.Ticket, opts)
		if err != nil {
			return reports, err
		}
		path := l.files.OutputPath(l.cfg.OutputNameFormat, l.path, ".xml")
		if err := os.WriteFile(path, doc, 0644); err != nil {
			return reports, errors.Wrapf(err, "failed to write %s", path)
		}
		reports = append(reports, path)
	}

	if l.cfg.WriteXLSX {
		path := l.files.OutputPath(l.cfg.OutputNameFormat, l.path, ".xlsx")
		if err := xlsxreport.Write(path, outcome.Ticket, outcome.Validation.Errors); err != nil {
			return reports, err
		}
		reports = append(reports, path)
	}

	return reports, nil
}

// writeErrorLog writes the parse and validation failures of the file, if
// any. Failures to write are only logged.
func (l *Loader) writeErrorLog(outcome *Outcome, logger *zap.Logger) string {
	entries := errorLogEntries(outcome, time.Now())
	path, err := l.files.WriteErrorLog(l.path, entries)
	if err != nil {
		logger.Warn("failed to write error log", zap.Error(err))
		return ""
	}
	return path
}

func errorLogEntries(outcome *Outcome, now time.Time) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry
	for i, slot := range outcome.Ticket.Facturas {
		if slot.OK() {
			continue
		}
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp: now,
			Kind:      slot.Err.Kind.String(),
			Message:   slot.Err.Message,
			Slot:      i,
		})
	}
	if outcome.Validation != nil {
		for _, v := range outcome.Validation.Errors {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:     now,
				Kind:          v.Kind.String(),
				Message:       v.Message,
				Slot:          v.Slot,
				InvoiceNumber: v.InvoiceNumber,
			})
		}
	}
	return entries
}

// Validate parses and validates a file without side effects.
func Validate(ctx context.Context, path string, parser *ticketparser.Parser, workers int, logger *zap.Logger) (*Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read ticket file %s", path), errors.ErrInvalidPath)
	}
	return NewPipeline(parser, nil, workers, false, logger).Load(ctx, string(data), false)
}
