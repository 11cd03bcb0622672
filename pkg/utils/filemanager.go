// =============================================================================
// Facturas Loader - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a load run:
//   - Ticket file discovery
//   - File archival (moving loaded tickets, copying reports)
//   - Report file naming
//   - Error log and run summary generation
//
// ARCHIVAL STRATEGY:
//   - Ticket files are moved to input_archive once they are loaded
//   - Reports are copied to output_archive and stay in the output directory
//   - Rejected ticket files remain in the input directory
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the loader.
type FileManager struct {
	// InputDir is scanned for ticket files.
	InputDir string

	// OutputDir receives reports and logs.
	OutputDir string

	// InputArchiveDir receives loaded ticket files.
	InputArchiveDir string

	// OutputArchiveDir receives copies of reports.
	OutputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2024/01/15/ticket.in
	UseTimestampSubdirs bool

	// ArchiveOnSuccess enables archival. When false the archive calls
	// return the original path untouched.
	ArchiveOnSuccess bool

	// Now is the clock used for names and subdirectories.
	Now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
		Now:              time.Now,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for files matching the pattern.
//
// PARAMETERS:
//   - pattern: A glob pattern (e.g., "*.in"). If empty, defaults to "*.in".
//
// RETURNS:
//   - The matching regular files, sorted by name.
//   - An error if the pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.in"
	}

	files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan input directory")
	}

	var result []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			continue
		}
		result = append(result, file)
	}
	sort.Strings(result)

	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a ticket file to the input archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.archivePath(fm.InputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", errors.Wrap(err, "failed to create archive directory")
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", errors.Wrap(err, "failed to copy file to archive")
		}
		if err := os.Remove(filePath); err != nil {
			return "", errors.Wrap(err, "failed to remove original file")
		}
	}

	return archivePath, nil
}

// ArchiveOutputFile copies a report to the output archive directory. The
// report stays in the output directory.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.archivePath(fm.OutputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", errors.Wrap(err, "failed to create archive directory")
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", errors.Wrap(err, "failed to copy file to archive")
	}

	return archivePath, nil
}

// archivePath places name under archiveDir, below YYYY/MM/DD when dated
// subdirectories are on.
func (fm *FileManager) archivePath(archiveDir, filePath string) string {
	dir := archiveDir
	if fm.UseTimestampSubdirs {
		dir = filepath.Join(dir, filepath.FromSlash(fm.now().Format("2006/01/02")))
	}
	return filepath.Join(dir, filepath.Base(filePath))
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// OutputFileName builds a report file name.
//
// PARAMETERS:
//   - format: The name format. Placeholders:
//       {uuid}      - A random UUID
//       {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//       {date}      - Current date (YYYYMMDD)
//       {time}      - Current time (HHMMSS)
//       {original}  - Input file name without extension
//   - inputPath: The ticket file the report belongs to.
//   - ext: The extension to enforce, with its dot (".xml", ".xlsx").
//
// EXAMPLE:
//   format: "{original}_{timestamp}", inputPath: "input/march.in", ext: ".xml"
//   output: "march_20240115_143022.xml"
func (fm *FileManager) OutputFileName(format, inputPath, ext string) string {
	now := fm.now()
	base := filepath.Base(inputPath)
	original := strings.TrimSuffix(base, filepath.Ext(base))

	replacer := strings.NewReplacer(
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
		"{original}", original,
	)
	result := replacer.Replace(format)
	if result == "" {
		result = original
	}

	if !strings.HasSuffix(strings.ToLower(result), ext) {
		result += ext
	}
	return result
}

// OutputPath joins OutputFileName onto the output directory.
func (fm *FileManager) OutputPath(format, inputPath, ext string) string {
	return filepath.Join(fm.OutputDir, fm.OutputFileName(format, inputPath, ext))
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry is one parse or validation failure of a ticket file.
type ErrorLogEntry struct {
	Timestamp     time.Time
	Kind          string
	Message       string
	Slot          int
	InvoiceNumber int32
}

// WriteErrorLog writes error entries of one ticket file to a text log in the
// output directory.
//
// RETURNS:
//   - The path to the error log, or "" when there are no entries.
//   - An error if writing fails.
func (fm *FileManager) WriteErrorLog(inputPath string, entries []ErrorLogEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := fm.OutputPath("error_log_{original}_{timestamp}", inputPath, ".txt")

	file, err := os.Create(logPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to create error log")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Facturas Loader - Error Log\n"+
		"File: %s\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		filepath.Base(inputPath),
		fm.now().Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:  %s\n"+
			"  Kind:       %s\n"+
			"  Message:    %s\n"+
			"  Slot:       %d\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Kind,
			entry.Message,
			entry.Slot+1)
		if entry.InvoiceNumber > 0 {
			fmt.Fprintf(writer, "  Invoice:    %d\n", entry.InvoiceNumber)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", errors.Wrap(err, "failed to flush error log")
	}
	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	SuccessfulFiles  int
	FailedFiles      int
	Facturas         int
	ParseErrors      int
	ValidationErrors int
	StoredFacturas   int
	StoredItems      int
	ProcessedFiles   []ProcessedFileInfo
	FailedFilesList  []FailedFileInfo
}

// ProcessedFileInfo describes a loaded ticket file.
type ProcessedFileInfo struct {
	InputFile   string
	ArchivePath string
	Reports     []string
	Facturas    int
	Stored      int
	ProcessTime time.Duration
}

// FailedFileInfo describes a rejected ticket file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorKind    string
}

// WriteSummaryLog writes a processing summary to the output directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary ProcessingSummary) (string, error) {
	summaryPath := filepath.Join(fm.OutputDir,
		fmt.Sprintf("processing_summary_%s.txt", fm.now().Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to create summary file")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Facturas Loader - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:        %s\n"+
		"  End Time:          %s\n"+
		"  Duration:          %s\n\n"+
		"Statistics:\n"+
		"  Total Files:       %d\n"+
		"  Successful:        %d\n"+
		"  Failed:            %d\n"+
		"  Facturas:          %d\n"+
		"  Parse Errors:      %d\n"+
		"  Validation Errors: %d\n"+
		"  Stored Facturas:   %d\n"+
		"  Stored Items:      %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.Facturas,
		summary.ParseErrors,
		summary.ValidationErrors,
		summary.StoredFacturas,
		summary.StoredItems)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			if pf.ArchivePath != "" {
				fmt.Fprintf(writer, "  Archived:     %s\n", pf.ArchivePath)
			}
			for _, report := range pf.Reports {
				fmt.Fprintf(writer, "  Report:       %s\n", report)
			}
			fmt.Fprintf(writer, "  Facturas:     %d\n", pf.Facturas)
			fmt.Fprintf(writer, "  Stored:       %d\n", pf.Stored)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			if ff.ErrorKind != "" {
				fmt.Fprintf(writer, "  Kind:  %s\n", ff.ErrorKind)
			}
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", errors.Wrap(err, "failed to flush summary file")
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies src to dst and syncs dst to disk.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copy %s", src)
	}
	return out.Sync()
}

// FileExists reports whether path can be stat'ed.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
