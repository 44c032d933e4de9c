package payroll

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleBatch() Batch {
	results := []Result{
		{EmployeeNumber: "001", FullName: "José Pérez", Games: 4, GrossPay: 120, TotalEarnings: 120, AdminFee: 4, DepositFee: 2, NetPay: 114, Warnings: []string{}},
		{EmployeeNumber: "002", FullName: "Ana Lopez", Games: 1, HasFixedRate: true, FixedRate: 30, GrossPay: 30, TotalEarnings: 30, AdminFee: 1, DepositFee: 2, Fines: 40, NetPay: -13, Warnings: []string{WarningNegativeNet}},
	}
	return Batch{
		ID:        "3f2a9c1d-0000-4000-8000-000000000000",
		Name:      "Torneo Apertura / Semana 3",
		CreatedAt: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		DateRange: DateRange{Start: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)},
		Settings:  testGlobals,
		Results:   results,
		Totals:    Summarize(results),
	}
}

func TestReportFileName(t *testing.T) {
	assert.Equal(t, "torneo-apertura-semana-3-3f2a9c1d.pdf", ReportFileName(sampleBatch(), FormatPDF))
	assert.Equal(t, "payroll.csv", ReportFileName(Batch{}, FormatCSV))
}

func TestRenderCSV(t *testing.T) {
	report, err := Render(sampleBatch(), "csv")
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(report.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, reportHeader, records[0])
	assert.Equal(t, "José Pérez", records[1][1])
	assert.Equal(t, "", records[1][3])
	assert.Equal(t, "30.00", records[2][3])
	assert.Equal(t, "-13.00", records[2][13])
	assert.Equal(t, WarningNegativeNet, records[2][14])
	assert.Equal(t, "TOTAL", records[3][0])
	assert.Equal(t, "101.00", records[3][13])
}

func TestRenderPDF(t *testing.T) {
	report, err := Render(sampleBatch(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, bytes.HasPrefix(report.Data, []byte("%PDF")))
}

func TestRenderXLSX(t *testing.T) {
	report, err := Render(sampleBatch(), FormatXLSX)
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(report.Data))
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	rows, err := file.GetRows("Payroll")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "employee_number", rows[0][0])
	assert.Equal(t, "002", rows[2][0])
	assert.Equal(t, "TOTAL", rows[3][0])
}

func TestRenderUnsupportedFormat(t *testing.T) {
	_, err := Render(sampleBatch(), "docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
