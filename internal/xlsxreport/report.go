// =============================================================================
// Facturas Loader - XLSX Report
// =============================================================================
//
// This module writes a workbook summarising one loaded ticket, and reads it
// back. The workbook has three sheets:
//
//   | Sheet    | One row per                | Columns                                         |
//   |----------|----------------------------|-------------------------------------------------|
//   | Facturas | successfully parsed invoice| Slot, Invoice, Client, Date, Currency, Items,   |
//   |          |                            | Declared Total, Computed Total, Status          |
//   | Items    | item of a parsed invoice   | Slot, Invoice, Item, Age, Quantity, Net Value   |
//   | Errors   | parse or validation error  | Slot, Stage, Kind, Message                      |
//
// Row 1 of every sheet is the header; data starts on row 2.
//
// =============================================================================

package xlsxreport

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// Sheet names.
const (
	SheetFacturas = "Facturas"
	SheetItems    = "Items"
	SheetErrors   = "Errors"
)

// Status values of the Facturas sheet.
const (
	StatusValid    = "valid"
	StatusRejected = "rejected"
)

// Error stages.
const (
	StageParse      = "parse"
	StageValidation = "validation"
)

var (
	facturaHeader = []any{"Slot", "Invoice", "Client", "Date", "Currency", "Items", "Declared Total", "Computed Total", "Status"}
	itemHeader    = []any{"Slot", "Invoice", "Item", "Age", "Quantity", "Net Value"}
	errorHeader   = []any{"Slot", "Stage", "Kind", "Message"}
)

// =============================================================================
// REPORT STRUCTURE
// =============================================================================

// Report is the content of a workbook as read back by Read.
type Report struct {
	Facturas []FacturaRow
	Errors   []ErrorRow
	Items    int
}

// FacturaRow is one row of the Facturas sheet.
type FacturaRow struct {
	Slot          int
	InvoiceNumber int32
	ClientID      int32
	Date          string
	Currency      string
	Items         int
	Declared      string
	Computed      string
	Status        string
}

// Rejected counts the invoice rows marked rejected.
func (r *Report) Rejected() int {
	n := 0
	for _, row := range r.Facturas {
		if row.Status == StatusRejected {
			n++
		}
	}
	return n
}

// Summary renders the row counts of the workbook on one line.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d invoice(s), %d rejected, %d item(s), %d error(s)",
		len(r.Facturas), r.Rejected(), r.Items, len(r.Errors))
}

// ErrorRow is one row of the Errors sheet.
type ErrorRow struct {
	Slot    int
	Stage   string
	Kind    string
	Message string
}

// =============================================================================
// WRITER
// =============================================================================

// Write creates the workbook at path.
//
// PARAMETERS:
//   - path: Destination file; it is overwritten.
//   - ticket: The parsed ticket.
//   - validationErrors: Errors from the validator; their Slot field links
//     them to the invoice rows.
//
// RETURNS:
//   - An error if the workbook cannot be built or saved.
func Write(path string, ticket types.Ticket, validationErrors []*types.ValidationError) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetFacturas); err != nil {
		return errors.Wrap(err, "rename default sheet")
	}
	for _, name := range []string{SheetItems, SheetErrors} {
		if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "create sheet %s", name)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}
	headers := map[string][]any{
		SheetFacturas: facturaHeader,
		SheetItems:    itemHeader,
		SheetErrors:   errorHeader,
	}
	for sheet, header := range headers {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return errors.Wrapf(err, "write %s header", sheet)
		}
		last, _ := excelize.ColumnNumberToName(len(header))
		if err := f.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
			return errors.Wrapf(err, "style %s header", sheet)
		}
	}

	rejected := make(map[int]bool)
	for _, v := range validationErrors {
		rejected[v.Slot] = true
	}

	facturaRow, itemRow, errorRow := 2, 2, 2
	for slot, s := range ticket.Facturas {
		if !s.OK() {
			row := []any{slot, StageParse, s.Err.Kind.String(), s.Err.Message}
			if err := setRow(f, SheetErrors, errorRow, row); err != nil {
				return err
			}
			errorRow++
			continue
		}

		fa := s.Factura
		status := StatusValid
		if rejected[slot] {
			status = StatusRejected
		}
		row := []any{
			slot,
			fa.Header.InvoiceNumber,
			fa.Header.ClientID,
			fa.Header.Date.Format("2006-01-02"),
			fa.Header.Currency.String(),
			len(fa.Items),
			types.FormatAmount(fa.Trailer.TotalValue),
			types.FormatAmount(fa.ItemsSum()),
			status,
		}
		if err := setRow(f, SheetFacturas, facturaRow, row); err != nil {
			return err
		}
		facturaRow++

		for _, item := range fa.Items {
			row := []any{slot, fa.Header.InvoiceNumber, item.ID, item.Age, item.Quantity, float64(item.NetValue)}
			if err := setRow(f, SheetItems, itemRow, row); err != nil {
				return err
			}
			itemRow++
		}
	}

	for _, v := range validationErrors {
		row := []any{v.Slot, StageValidation, v.Kind.String(), v.Message}
		if err := setRow(f, SheetErrors, errorRow, row); err != nil {
			return err
		}
		errorRow++
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "write %s row %d", sheet, row)
	}
	return nil
}

// =============================================================================
// READER
// =============================================================================

// Read loads the Facturas and Errors sheets of a workbook written by Write.
func Read(path string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open report file")
	}
	defer f.Close()

	report := &Report{}

	rows, err := f.GetRows(SheetFacturas)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", SheetFacturas)
	}
	for i := 1; i < len(rows); i++ {
		row, err := parseFacturaRow(rows[i])
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", SheetFacturas, i+1)
		}
		report.Facturas = append(report.Facturas, row)
	}

	rows, err = f.GetRows(SheetErrors)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", SheetErrors)
	}
	for i := 1; i < len(rows); i++ {
		row := padRow(rows[i], len(errorHeader))
		slot, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", SheetErrors, i+1)
		}
		report.Errors = append(report.Errors, ErrorRow{Slot: slot, Stage: row[1], Kind: row[2], Message: row[3]})
	}

	rows, err = f.GetRows(SheetItems)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", SheetItems)
	}
	if len(rows) > 0 {
		report.Items = len(rows) - 1
	}

	return report, nil
}

func parseFacturaRow(cells []string) (FacturaRow, error) {
	row := padRow(cells, len(facturaHeader))

	ints := make([]int, 0, 4)
	for _, idx := range []int{0, 1, 2, 5} {
		n, err := strconv.Atoi(row[idx])
		if err != nil {
			return FacturaRow{}, errors.Wrapf(err, "column %d", idx+1)
		}
		ints = append(ints, n)
	}

	return FacturaRow{
		Slot:          ints[0],
		InvoiceNumber: int32(ints[1]),
		ClientID:      int32(ints[2]),
		Date:          row[3],
		Currency:      row[4],
		Items:         ints[3],
		Declared:      row[6],
		Computed:      row[7],
		Status:        row[8],
	}, nil
}

// padRow extends a row to n cells; GetRows drops trailing empty cells.
func padRow(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}
