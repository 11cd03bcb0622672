// =============================================================================
// Facturas Loader - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   facturas validate <ticket file> [flags]
//   facturas validate --file <ticket file> [flags]
//
// Parses and validates a ticket without touching the database or moving
// files, then prints one line per invoice. Exits non-zero when any invoice
// failed to parse or validate.
//
// FLAGS:
//   --xlsx <path> : Also write the XLSX report to path and print its
//                   row counts
//   --xml         : Print the XML rendering instead of the text report
//   --schema      : Print the XSD of the XML rendering and exit
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/loader"
	"github.com/ginjaninja78/facturas-loader/internal/types"
	"github.com/ginjaninja78/facturas-loader/internal/xlsxreport"
	"github.com/ginjaninja78/facturas-loader/internal/xmlwriter"
)

var (
	validateFile   string
	validateXLSX   string
	validateXML    bool
	validateSchema bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [ticket file]",
	Short: "Check a ticket file without loading it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateSchema {
			_, err := os.Stdout.Write(xmlwriter.GenerateXSD())
			return err
		}

		path := validateFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.WithHint(
				errors.Mark(errors.New("no ticket file given"), errors.ErrInvalidArguments),
				"pass the file as an argument or with --file",
			)
		}

		parser, err := newParser()
		if err != nil {
			return err
		}

		outcome, err := loader.Validate(cmd.Context(), path, parser, appConfig.MaxConcurrency, logger)
		if err != nil {
			return err
		}

		if validateXLSX != "" {
			if err := xlsxreport.Write(validateXLSX, outcome.Ticket, outcome.Validation.Errors); err != nil {
				return err
			}
			report, err := xlsxreport.Read(validateXLSX)
			if err != nil {
				return errors.Wrap(err, "failed to read back XLSX report")
			}
			fmt.Fprintf(os.Stderr, "XLSX report written to %s: %s\n", validateXLSX, report.Summary())
		}

		if validateXML {
			opts := xmlwriter.DefaultGenerateOptions()
			opts.ValidationErrors = outcome.Validation.Errors
			doc, err := xmlwriter.Generate(outcome.Ticket, opts)
			if err != nil {
				return err
			}
			os.Stdout.Write(doc)
		} else {
			printOutcome(path, outcome)
		}

		if outcome.Failed() {
			return errors.Mark(
				errors.Newf("%d invoice(s) failed to parse, %d validation error(s)",
					len(outcome.ParseErrors()), len(outcome.Validation.Errors)),
				errors.ErrValidationFailed,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "Path to the ticket file")
	validateCmd.Flags().StringVar(&validateXLSX, "xlsx", "", "Write the XLSX report to this path")
	validateCmd.Flags().BoolVar(&validateXML, "xml", false, "Print the XML rendering of the ticket")
	validateCmd.Flags().BoolVar(&validateSchema, "schema", false, "Print the XSD of the XML rendering")
}

func printOutcome(path string, outcome *loader.Outcome) {
	fmt.Printf("=== %s ===\n", path)

	byslot := make(map[int][]*types.ValidationError)
	for _, v := range outcome.Validation.Errors {
		byslot[v.Slot] = append(byslot[v.Slot], v)
	}

	for i, slot := range outcome.Ticket.Facturas {
		if !slot.OK() {
			fmt.Printf("  ✗ #%d %s: %s\n", i+1, slot.Err.Kind, slot.Err.Message)
			continue
		}
		h := slot.Factura.Header
		if errs := byslot[i]; len(errs) > 0 {
			for _, v := range errs {
				fmt.Printf("  ✗ #%d invoice %d: %s: %s\n", i+1, h.InvoiceNumber, v.Kind, v.Message)
			}
			continue
		}
		fmt.Printf("  ✓ #%d invoice %d client %d %s %s total %s\n",
			i+1, h.InvoiceNumber, h.ClientID, h.Date.Format("2006-01-02"), h.Currency,
			types.FormatAmount(slot.Factura.Trailer.TotalValue))
	}

	fmt.Printf("\nInvoices: %d  Parse errors: %d  Validation errors: %d\n",
		outcome.Ticket.Len(), len(outcome.ParseErrors()), len(outcome.Validation.Errors))
}
