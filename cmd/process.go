// =============================================================================
// Facturas Loader - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command of the loader.
//
// COMMAND USAGE:
//   facturas process [flags]
//
// FLAGS:
//   --dry-run                  : Parse and validate only; nothing is stored,
//                                written or archived
//   --single                   : Process only a single file (specify with --file)
//   --file                     : Path to a specific file to process
//   --skip-validation-failures : Store the consistent invoices of a ticket even
//                                when others fail validation
//
// PROCESSING PIPELINE:
//   1. Discover ticket files in the input directory
//   2. Open the database
//   3. For each file (concurrently, up to max_concurrency files):
//      a. Parse the ticket into invoices
//      b. Validate every invoice
//      c. Store accepted invoices and log failures
//      d. Write reports and archive the ticket
//   4. Write the summary report
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/loader"
	"github.com/ginjaninja78/facturas-loader/internal/sink"
	"github.com/ginjaninja78/facturas-loader/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun                 bool
	singleFile             bool
	filePath               string
	skipValidationFailures bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Load ticket files into the database",
	Long: `The process command scans the input directory for ticket files, parses
every invoice, checks it for consistency and stores the accepted invoices.

Files are processed concurrently. Each file is loaded independently, and
errors in one file do not affect the others. Inside a file, an invoice that
fails to parse is logged and the remaining invoices are still loaded.

On success:
  - Reports are placed in the output directory
  - The ticket file is moved to the input archive
  - A summary report is generated

On error:
  - An error log is created in the output directory
  - The ticket file remains in the input directory
  - Processing continues for other files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Parse and validate without storing, writing reports or archiving",
	)

	processCmd.Flags().BoolVar(
		&singleFile,
		"single",
		false,
		"Process only a single file (use with --file)",
	)

	processCmd.Flags().StringVar(
		&filePath,
		"file",
		"",
		"Path to a specific file to process",
	)

	processCmd.Flags().BoolVar(
		&skipValidationFailures,
		"skip-validation-failures",
		false,
		"Store consistent invoices even when other invoices of the ticket fail validation",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()
	cfg := *appConfig
	if skipValidationFailures {
		cfg.ContinueOnError = true
	}

	fmt.Println("=== Facturas Loader ===")

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)

	var inputFiles []string
	switch {
	case filePath != "":
		inputFiles = []string{filePath}
	case singleFile:
		return errors.Mark(errors.New("--single requires --file"), errors.ErrInvalidArguments)
	default:
		found, err := files.DiscoverInputFiles(cfg.FilePattern)
		if err != nil {
			return errors.Wrap(err, "failed to discover input files")
		}
		inputFiles = found
	}

	if len(inputFiles) == 0 {
		fmt.Printf("No files matching %s found in %s.\n", cfg.FilePattern, cfg.InputDir)
		return nil
	}
	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	parser, err := newParser()
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: OPEN THE DATABASE
	// =========================================================================

	var sk sink.Sink
	if !dryRun {
		sk, err = openSink(ctx)
		if err != nil {
			return err
		}
		defer sk.Close()
		if err := sk.Init(ctx, false); err != nil {
			return errors.Wrap(err, "failed to initialise schema")
		}
	} else {
		fmt.Println("Dry run: nothing will be stored, written or archived.")
	}

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	fmt.Println("Processing files...")

	var wg sync.WaitGroup
	results := make(chan loader.Result, len(inputFiles))
	sem := make(chan struct{}, cfg.MaxConcurrency)

	for _, file := range inputFiles {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			l := loader.New(path, &cfg, sk, logger,
				loader.WithParser(parser),
				loader.WithFileManager(files),
				loader.WithDryRun(dryRun),
			)
			results <- l.Run(ctx)
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 4: COLLECT RESULTS AND WRITE SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{StartTime: startTime, TotalFiles: len(inputFiles)}

	for result := range results {
		name := filepath.Base(result.FilePath)
		summary.Facturas += result.Stats.Facturas
		summary.ParseErrors += result.Stats.ParseErrors
		summary.ValidationErrors += result.Stats.ValidationErrors
		summary.StoredFacturas += result.Stats.Stored.Facturas
		summary.StoredItems += result.Stats.Stored.Items

		if result.Success {
			summary.SuccessfulFiles++
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   result.FilePath,
				ArchivePath: result.ArchivePath,
				Reports:     result.Reports,
				Facturas:    result.Stats.Facturas,
				Stored:      result.Stats.Stored.Facturas,
				ProcessTime: result.Stats.ProcessingTime,
			})
			fmt.Printf("  ✓ %s: %d invoice(s), %d stored, %d parse error(s)\n",
				name, result.Stats.Facturas, result.Stats.Stored.Facturas, result.Stats.ParseErrors)
			continue
		}

		summary.FailedFiles++
		kind, _ := errors.KindOf(result.Error)
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: result.Error.Error(),
			ErrorKind:    kind.String(),
		})
		fmt.Printf("  ✗ %s: %v\n", name, result.Error)
	}
	summary.EndTime = time.Now()

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:       %d\n", summary.TotalFiles)
	fmt.Printf("Successful:        %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:            %d\n", summary.FailedFiles)
	fmt.Printf("Invoices stored:   %d\n", summary.StoredFacturas)
	fmt.Printf("Time elapsed:      %s\n", summary.EndTime.Sub(startTime))

	if !dryRun {
		if path, err := files.WriteSummaryLog(summary); err != nil {
			logger.Warn("failed to write summary", zap.Error(err))
		} else {
			fmt.Printf("Summary written to %s\n", path)
		}
	}

	if summary.FailedFiles > 0 {
		return errors.Newf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}
