package payroll

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

type Report struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
	Location    string `json:"location,omitempty"`
}

var reportHeader = []string{
	"employee_number", "full_name", "games", "fixed_rate", "gross_pay", "extra_pay", "total_earnings",
	"admin_fee", "fines", "lifetime_before", "taxable_income", "hacienda_tax", "deposit_fee", "net_pay", "warnings",
}

// Render produces the batch report in the requested format.
func Render(batch Batch, format string) (Report, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	var (
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatCSV:
		data, err = renderCSV(batch)
		contentType = "text/csv"
	case FormatPDF:
		data, err = renderPDF(batch)
		contentType = "application/pdf"
	case FormatXLSX:
		data, err = renderXLSX(batch)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return Report{}, ErrUnsupportedFormat
	}
	if err != nil {
		return Report{}, fmt.Errorf("render %s report: %w", format, err)
	}
	return Report{FileName: ReportFileName(batch, format), ContentType: contentType, Data: data}, nil
}

// ReportFileName is a URL- and filesystem-safe name such as
// "payroll-march-week-1-3f2a9c1d.csv".
func ReportFileName(batch Batch, format string) string {
	base := slug.Make(batch.Name)
	if base == "" {
		base = "payroll"
	}
	id := batch.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id != "" {
		base += "-" + id
	}
	return base + "." + format
}

func reportRow(r Result) []string {
	fixed := ""
	if r.HasFixedRate {
		fixed = money(r.FixedRate)
	}
	return []string{
		r.EmployeeNumber, r.FullName, strconv.Itoa(r.Games), fixed, money(r.GrossPay), money(r.ExtraPay),
		money(r.TotalEarnings), money(r.AdminFee), money(r.Fines), money(r.LifetimeEarningsBefore),
		money(r.TaxableIncome), money(r.HaciendaTax), money(r.DepositFee), money(r.NetPay),
		strings.Join(r.Warnings, ";"),
	}
}

func totalsRow(t Totals) []string {
	return []string{
		"TOTAL", strconv.Itoa(t.Referees) + " referees", strconv.Itoa(t.Games), "", money(t.GrossPay), money(t.ExtraPay),
		money(cents(amount(t.GrossPay).Add(amount(t.ExtraPay)))), money(t.AdminFee), money(t.Fines), "",
		money(t.TaxableIncome), money(t.HaciendaTax), money(t.DepositFee), money(t.NetPay), "",
	}
}

func renderCSV(batch Batch) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, result := range batch.Results {
		if err := writer.Write(reportRow(result)); err != nil {
			return nil, err
		}
	}
	if err := writer.Write(totalsRow(batch.Totals)); err != nil {
		return nil, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPDF(batch Batch) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(batch.Name))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", batch.DateRange.Start.Format("2006-01-02"), batch.DateRange.End.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Tax rate: %.2f%%  Deposit fee: %s  Admin fee per game: %s",
		batch.Settings.HaciendaTaxRate*100, money(batch.Settings.DepositFee), money(batch.Settings.AdminFeePerGame)))
	pdf.Ln(10)

	headers := []string{"Emp #", "Name", "Games", "Gross", "Extra", "Admin", "Fines", "Taxable", "Tax", "Deposit", "Net"}
	widths := []float64{20, 60, 15, 22, 20, 20, 20, 22, 20, 20, 24}
	pdf.SetFont("Helvetica", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	row := func(cells []string) {
		for i, cell := range cells {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, r := range batch.Results {
		row([]string{
			r.EmployeeNumber, r.FullName, strconv.Itoa(r.Games), money(r.GrossPay), money(r.ExtraPay),
			money(r.AdminFee), money(r.Fines), money(r.TaxableIncome), money(r.HaciendaTax), money(r.DepositFee), money(r.NetPay),
		})
	}
	t := batch.Totals
	pdf.SetFont("Helvetica", "B", 9)
	row([]string{
		"Total", strconv.Itoa(t.Referees) + " referees", strconv.Itoa(t.Games), money(t.GrossPay), money(t.ExtraPay),
		money(t.AdminFee), money(t.Fines), money(t.TaxableIncome), money(t.HaciendaTax), money(t.DepositFee), money(t.NetPay),
	})

	if len(t.Warnings) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 9)
		for _, warning := range []string{WarningUnratedCategory, WarningNegativeNet, WarningLowConfidence} {
			if count := t.Warnings[warning]; count > 0 {
				pdf.Cell(0, 5, fmt.Sprintf("%s: %d", warning, count))
				pdf.Ln(5)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(batch Batch) ([]byte, error) {
	const sheet = "Payroll"
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	header := make([]any, len(reportHeader))
	for i, title := range reportHeader {
		header[i] = title
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := file.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, err
	}

	rowIndex := 2
	for _, r := range batch.Results {
		cell, err := excelize.CoordinatesToCellName(1, rowIndex)
		if err != nil {
			return nil, err
		}
		var fixed any
		if r.HasFixedRate {
			fixed = r.FixedRate
		}
		values := []any{
			r.EmployeeNumber, r.FullName, r.Games, fixed, r.GrossPay, r.ExtraPay, r.TotalEarnings,
			r.AdminFee, r.Fines, r.LifetimeEarningsBefore, r.TaxableIncome, r.HaciendaTax, r.DepositFee, r.NetPay,
			strings.Join(r.Warnings, ";"),
		}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
		rowIndex++
	}

	t := batch.Totals
	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return nil, err
	}
	totals := []any{
		"TOTAL", fmt.Sprintf("%d referees", t.Referees), t.Games, nil, t.GrossPay, t.ExtraPay,
		cents(amount(t.GrossPay).Add(amount(t.ExtraPay))), t.AdminFee, t.Fines, nil,
		t.TaxableIncome, t.HaciendaTax, t.DepositFee, t.NetPay, nil,
	}
	if err := file.SetSheetRow(sheet, cell, &totals); err != nil {
		return nil, err
	}
	if err := file.SetRowStyle(sheet, rowIndex, rowIndex, bold); err != nil {
		return nil, err
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(value float64) string {
	return amount(value).StringFixed(2)
}
