package payroll

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

// PayslipData is everything one rendered payslip needs.
type PayslipData struct {
	RestaurantName string
	Row            Row
	JobTitle       string
}

// RenderPayslipPDF renders a single employee's payslip for the month.
func RenderPayslipPDF(data PayslipData) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, data.RestaurantName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Payslip for %s", data.Row.Month), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, data.Row.EmployeeName, "", 1, "L", false, 0, "")
	if data.JobTitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, data.JobTitle, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	payslipRow(pdf, "Base salary", data.Row.BaseAmount, false)
	payslipRow(pdf, "Overtime", data.Row.OvertimeAmount, false)
	payslipRow(pdf, "Bonuses", data.Row.BonusesTotal, false)
	payslipRow(pdf, "Deductions", -data.Row.DeductionsTotal, false)
	payslipRow(pdf, "Loan repayment", -data.Row.LoansDeducted, false)

	pdf.Ln(1)
	pdf.SetDrawColor(120, 120, 120)
	x, y := pdf.GetXY()
	pdf.Line(x, y, x+182, y)
	pdf.Ln(2)
	payslipRow(pdf, "Net salary", data.Row.NetSalary, true)

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	status := "Pending approval"
	if data.Row.Status == RowApproved {
		status = "Approved"
		if data.Row.PaidAt != nil {
			status = "Paid " + data.Row.PaidAt.Format("2006-01-02")
		}
	}
	pdf.CellFormat(0, 5, status, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip pdf: %w", err)
	}
	return &buf, nil
}

func payslipRow(pdf *gofpdf.Fpdf, label string, amount float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Arial", style, 10)
	pdf.CellFormat(120, 6, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(62, 6, fmt.Sprintf("%.2f", amount), "", 1, "R", false, 0, "")
}
