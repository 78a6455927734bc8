package infra

import (
	"bytes"
	"testing"
	"time"

	"cashledger/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateClosingPDF(t *testing.T) {
	note := "two coins short"
	c := &model.CashClosing{
		ID:           "2024-03-15_reg-1",
		RegisterID:   "reg-1",
		BusinessDay:  "2024-03-15",
		Date:         time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC),
		ClosedBy:     "Ana",
		TotalSales:   decimal.NewFromInt(300),
		AmountCash:   decimal.NewFromInt(300),
		CashExpected: decimal.NewFromInt(500),
		CashReal:     decimal.NewFromInt(480),
		Difference:   decimal.NewFromInt(-20),
		Status:       model.ClosingStatusClosed,
		Comment:      &note,
	}

	out, err := GenerateClosingPDF(ClosingReport{
		Closing:  c,
		Location: time.UTC,
		Outflows: map[string]decimal.Decimal{"Expenses": decimal.NewFromInt(12)},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 500)
}

func TestReportFileName(t *testing.T) {
	assert.Equal(t, "closing_2024-03-15_reg-1.pdf", ReportFileName("2024-03-15_reg-1"))
}
