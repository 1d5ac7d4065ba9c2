package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/report"
	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/rules"
)

func sampleSummary() *report.Summary {
	return report.Summarize([]screening.Outcome{
		{Index: 0, InvoiceNumber: "INV-1", Tier: policy.TierStaff, Amount: 4000, AmountValid: true,
			Violations: []rules.Violation{{Check: rules.CheckBusinessTrips, Message: "Violation: A"}, {Check: rules.CheckStaleness, Message: "Violation: B"}}},
		{Index: 1, InvoiceNumber: "INV-1", Tier: policy.TierStaff, Amount: 4000, AmountValid: true, Duplicate: true,
			Violations: []rules.Violation{{Check: rules.CheckDuplicate, Message: rules.MsgDuplicate}}},
		{Index: 2, InvoiceNumber: "INV-2", Tier: policy.TierExecutive, Amount: 500000, AmountValid: true},
	}, report.Options{CatalogVersion: "2024.1", Now: time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC)})
}

func TestXLSXWriter_Bytes(t *testing.T) {
	summary := sampleSummary()

	data, err := NewXLSXWriter(zap.NewNop()).Bytes(summary)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, RecordsSheet}, f.GetSheetList())

	runID, err := f.GetCellValue(SummarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, runID)

	total, err := f.GetCellValue(SummarySheet, "B10")
	require.NoError(t, err)
	assert.Equal(t, "508000", total)

	rows, err := f.GetRows(RecordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Index", "Invoice Number", "Tier", "Amount", "Duplicate", "Status", "Flags"}, rows[0])
	assert.Equal(t, "Violation: A\nViolation: B", rows[1][6])
	assert.Equal(t, "yes", rows[2][4])
	assert.Equal(t, "Accepted", rows[3][5])
	assert.Equal(t, "Executive Level", rows[3][2])
}

func TestXLSXWriter_SummaryBytes(t *testing.T) {
	data, err := NewXLSXWriter(zap.NewNop()).SummaryBytes(sampleSummary())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Records", "3"}, rows[3])
	for _, row := range rows {
		for _, cell := range row {
			assert.NotContains(t, cell, "INV-", "no invoice numbers in the summary workbook")
		}
	}
}

func TestXLSXWriter_SaveAs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	require.NoError(t, NewXLSXWriter(nil).SaveAs(path, sampleSummary()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tier", "Records", "Flagged", "Amount"}, rows[12])
	assert.Equal(t, []string{"Executive Level", "1", "0", "500000"}, rows[13])
}
