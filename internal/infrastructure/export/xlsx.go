// Package export renders screening summaries as spreadsheets
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/report"
)

// Sheet names of the workbook
const (
	SummarySheet = "Summary"
	RecordsSheet = "Records"
)

// ContentType is the MIME type of the workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var recordHeader = []any{"Index", "Invoice Number", "Tier", "Amount", "Duplicate", "Status", "Flags"}

// XLSXWriter writes a two-sheet workbook: run totals and one row per record.
// SummaryBytes leaves out the per-record sheet.
type XLSXWriter struct {
	logger *zap.Logger
}

// NewXLSXWriter creates a workbook writer
func NewXLSXWriter(logger *zap.Logger) *XLSXWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXWriter{logger: logger}
}

// Write renders the summary into w
func (x *XLSXWriter) Write(w io.Writer, s *report.Summary) error {
	return x.write(w, s, true)
}

func (x *XLSXWriter) write(w io.Writer, s *report.Summary, withRecords bool) error {
	f, err := x.build(s, withRecords)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Bytes renders the summary into memory
func (x *XLSXWriter) Bytes(s *report.Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := x.Write(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SummaryBytes renders only the Summary sheet: counts and totals, no
// invoice numbers or per-record amounts
func (x *XLSXWriter) SummaryBytes(s *report.Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := x.write(&buf, s, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveAs renders the summary to a file
func (x *XLSXWriter) SaveAs(path string, s *report.Summary) error {
	f, err := x.build(s, true)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	x.logger.Info("Screening report saved",
		zap.String("path", path),
		zap.String("run_id", s.RunID),
		zap.Int("records", s.Records))
	return nil
}

func (x *XLSXWriter) build(s *report.Summary, withRecords bool) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if withRecords {
		if _, err := f.NewSheet(RecordsSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create records sheet: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := x.fillSummary(f, s, bold); err != nil {
		f.Close()
		return nil, err
	}
	if !withRecords {
		return f, nil
	}
	if err := x.fillRecords(f, s, bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (x *XLSXWriter) fillSummary(f *excelize.File, s *report.Summary, bold int) error {
	rows := [][]any{
		{"Run ID", s.RunID},
		{"Catalog Version", s.CatalogVersion},
		{"Generated At", s.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Records", s.Records},
		{"Accepted", s.Accepted},
		{"Flagged", s.Flagged},
		{"Flagged %", s.FlaggedPercent.InexactFloat64()},
		{"Duplicates", s.Duplicates},
		{"Not Evaluated", s.Unevaluated},
		{"Total Amount", s.TotalAmount.IntPart()},
		{"Flagged Amount", s.FlaggedAmount.IntPart()},
		{},
		{"Tier", "Records", "Flagged", "Amount"},
	}
	tierHeader := len(rows)
	for _, tier := range s.Tiers() {
		totals := s.ByTier[tier]
		rows = append(rows, []any{tier.String(), totals.Records, totals.Flagged, totals.Amount.IntPart()})
	}
	rows = append(rows, []any{}, []any{"Check", "Count"})
	checkHeader := len(rows)
	for _, c := range s.ByCheck {
		rows = append(rows, []any{c.Check.String(), c.Count})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := x.setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}

	for _, r := range []int{tierHeader, checkHeader} {
		if err := f.SetRowStyle(SummarySheet, r, r, bold); err != nil {
			return fmt.Errorf("failed to style summary: %w", err)
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 28); err != nil {
		return fmt.Errorf("failed to size summary: %w", err)
	}
	return nil
}

func (x *XLSXWriter) fillRecords(f *excelize.File, s *report.Summary, bold int) error {
	if err := x.setRow(f, RecordsSheet, 1, recordHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(RecordsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style records: %w", err)
	}

	for i, row := range s.Rows {
		status := "Flagged"
		if row.Accepted {
			status = "Accepted"
		}
		var amount any = row.Amount.IntPart()
		if !row.AmountValid {
			amount = ""
		}
		duplicate := ""
		if row.Duplicate {
			duplicate = "yes"
		}

		values := []any{row.Index, row.InvoiceNumber, row.Tier.String(), amount, duplicate, status, strings.Join(row.Flags, "\n")}
		if err := x.setRow(f, RecordsSheet, i+2, values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(RecordsSheet, "B", "C", 24); err != nil {
		return fmt.Errorf("failed to size records: %w", err)
	}
	if err := f.SetColWidth(RecordsSheet, "G", "G", 80); err != nil {
		return fmt.Errorf("failed to size records: %w", err)
	}
	return nil
}

func (x *XLSXWriter) setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
