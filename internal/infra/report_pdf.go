package infra

// report_pdf.go renders the closing report with go-pdf/fpdf: one A4 page with
// the register header, the sales breakdown by method, expected vs counted
// cash and the variance line. The bytes are handed to a ReportStore.

import (
	"bytes"
	"fmt"
	"time"

	"cashledger/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// ClosingReport is what the PDF shows. RegisterName falls back to the id.
type ClosingReport struct {
	Closing      *model.CashClosing
	RegisterName string
	Location     *time.Location
	Outflows     map[string]decimal.Decimal // label -> amount, optional
}

// ReportFileName is the object/file name a closing report is stored under.
func ReportFileName(closingID string) string {
	return "closing_" + closingID + ".pdf"
}

// GenerateClosingPDF renders the report in memory.
func GenerateClosingPDF(r ClosingReport) ([]byte, error) {
	c := r.Closing
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	name := r.RegisterName
	if name == "" {
		name = c.RegisterID
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Cash closing "+c.ID, true)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30
	labelW := contentW * 0.6
	valueW := contentW * 0.4

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Daily cash closing", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Register: %s", name), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Business day: %s", c.BusinessDay), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Closed at: %s", c.Date.In(loc).Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	closedBy := c.ClosedBy
	if c.AutoClosed {
		closedBy += " (automatic)"
	}
	pdf.CellFormat(contentW, 6, "Closed by: "+closedBy, "", 1, "L", false, 0, "")
	pdf.Ln(3)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	row := func(label string, v decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelW, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, v.StringFixed(2), "", 1, "R", false, 0, "")
	}

	// ── Sales ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 8, "Sales", "", 1, "L", false, 0, "")
	row("Total sales", c.TotalSales, true)
	row("Collected in cash", c.AmountCash, false)
	row("Collected by mobile money", c.AmountMobileMoney, false)
	row("Collected by card", c.AmountCard, false)
	pdf.Ln(2)

	if len(r.Outflows) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(contentW, 8, "Outflows", "", 1, "L", false, 0, "")
		for _, label := range []string{"Purchases", "Withdrawals", "Expenses", "Bank deposits", "Deposits"} {
			if v, ok := r.Outflows[label]; ok {
				row(label, v, false)
			}
		}
		pdf.Ln(2)
	}

	// ── Cash count ───────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 8, "Cash count", "", 1, "L", false, 0, "")
	row("Expected in drawer", c.CashExpected, false)
	row("Counted", c.CashReal, false)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	row("Difference", c.Difference, true)

	if c.Comment != nil && *c.Comment != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(contentW, 5, "Note: "+*c.Comment, "", "L", false)
	}

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Closing %s  |  %d invoices locked", c.ID, c.LockedTransactions), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render closing %s: %w", c.ID, err)
	}
	return buf.Bytes(), nil
}
