package receipt

import (
	"strings"
	"testing"
	"time"

	"go-pharma-pos/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleTransaction() *models.Transaction {
	return &models.Transaction{
		ID:              7,
		ReferenceNo:     "CASH-12345",
		PaymentMethod:   models.PaymentCash,
		Subtotal:        dec("200.00"),
		SeniorPWD:       true,
		DiscountAmount:  dec("40.00"),
		VATAmount:       dec("19.20"),
		TotalAmount:     dec("179.20"),
		CashReceived:    dec("200.00"),
		ChangeDue:       dec("20.80"),
		TransactionTime: time.Date(2026, 8, 23, 6, 30, 0, 0, time.UTC),
		Items: []models.TransactionItem{
			{
				Product:        models.Product{Name: "Biogesic 500mg"},
				Quantity:       2,
				UnitPrice:      dec("100.00"),
				Subtotal:       dec("200.00"),
				DiscountAmount: dec("40.00"),
				VATAmount:      dec("19.20"),
			},
		},
	}
}

func TestBuildDocument(t *testing.T) {
	doc := Build(sampleTransaction(), "jdoe", "PharmaPoint Pharmacy", "123 Rizal Ave", false)

	assert.Equal(t, "CASH-12345", doc.ReferenceNo)
	assert.Equal(t, "CASH", doc.Payment)
	assert.Equal(t, "jdoe", doc.Cashier)
	assert.True(t, doc.HasBreakdown)
	assert.True(t, doc.CashPayment)
	assert.Equal(t, "179.20", doc.Total)
	assert.Equal(t, "20.80", doc.ChangeDue)
	// 06:30 UTC is 14:30 in Manila.
	assert.Equal(t, "23 Aug 2026 2:30 PM", doc.IssuedAt)

	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "Biogesic 500mg", doc.Lines[0].Name)
	assert.Equal(t, "100.00", doc.Lines[0].UnitPrice)
}

func TestRenderTextCashReceipt(t *testing.T) {
	doc := Build(sampleTransaction(), "jdoe", "PharmaPoint Pharmacy", "123 Rizal Ave", false)
	out, err := RenderText(doc)
	require.NoError(t, err)

	assert.Contains(t, out, "PharmaPoint Pharmacy")
	assert.Contains(t, out, "Ref: CASH-12345")
	assert.Contains(t, out, "Biogesic 500mg")
	assert.Contains(t, out, "179.20")
	assert.Contains(t, out, "Cash")
	assert.Contains(t, out, "Change")
	assert.Contains(t, out, "VAT (12%)")
	assert.NotContains(t, out, "REPRINT")
	assert.NotContains(t, out, BreakdownNote)

	// Nothing wider than the paper.
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 32, "line too wide: %q", line)
	}
}

func TestRenderTextReprintMarker(t *testing.T) {
	doc := Build(sampleTransaction(), "jdoe", "PharmaPoint Pharmacy", "", true)
	out, err := RenderText(doc)
	require.NoError(t, err)

	assert.Contains(t, out, "*** REPRINT ***")
}

func TestRenderTextNonCashOmitsChange(t *testing.T) {
	tx := sampleTransaction()
	tx.PaymentMethod = models.PaymentGcash
	tx.ReferenceNo = "GCASH-777"
	tx.CashReceived = dec("0.00")
	tx.ChangeDue = dec("0.00")

	doc := Build(tx, "jdoe", "PharmaPoint Pharmacy", "", false)
	out, err := RenderText(doc)
	require.NoError(t, err)

	assert.False(t, doc.CashPayment)
	assert.NotContains(t, out, "Change")
}

func TestVATExemptLineLabel(t *testing.T) {
	tx := sampleTransaction()
	tx.Items[0].VATExempt = true
	tx.Items[0].VATAmount = dec("0.00")

	doc := Build(tx, "jdoe", "PharmaPoint Pharmacy", "", false)
	out, err := RenderText(doc)
	require.NoError(t, err)

	assert.Contains(t, out, "VAT Exempt")
}

func TestHistoricalRecordFallbackNote(t *testing.T) {
	// A row written before per-item amounts existed: quantity and price are
	// set but the computed fields are zero.
	tx := sampleTransaction()
	tx.Items[0].Subtotal = decimal.Zero
	tx.Items[0].DiscountAmount = decimal.Zero
	tx.Items[0].VATAmount = decimal.Zero

	doc := Build(tx, "jdoe", "PharmaPoint Pharmacy", "", false)
	assert.False(t, doc.HasBreakdown)

	out, err := RenderText(doc)
	require.NoError(t, err)
	assert.Contains(t, out, BreakdownNote)
	assert.NotContains(t, out, "VAT (12%)")
}

func TestMoneyFormatting(t *testing.T) {
	assert.Equal(t, "1,234.50", money(dec("1234.5")))
	assert.Equal(t, "0.00", money(decimal.Zero))
	assert.Equal(t, "999.99", money(dec("999.99")))
	assert.Equal(t, "1,000,000.00", money(dec("1000000")))
	assert.Equal(t, "-1,234.50", money(dec("-1234.5")))
}
