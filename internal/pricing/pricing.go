// Package pricing holds the checkout math: subtotal, senior/PWD discount,
// VAT and change due. Everything is computed with decimals and rounded
// half-up to centavos before it leaves this package, so persisted amounts
// are audit-exact.
package pricing

import "github.com/shopspring/decimal"

var (
	// SeniorPWDRate is the statutory 20% senior citizen / PWD discount.
	SeniorPWDRate = decimal.RequireFromString("0.20")
	// VATRate is the 12% value-added tax applied to the discounted base.
	VATRate = decimal.RequireFromString("0.12")
)

// Line is one cart entry as the calculator sees it.
type Line struct {
	ProductID uint
	UnitPrice decimal.Decimal
	Quantity  int
	VATExempt bool
}

// LineAmounts is a Line with its computed money breakdown.
type LineAmounts struct {
	Line
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	VAT      decimal.Decimal
}

// Totals is the full checkout computation for a cart.
type Totals struct {
	Lines    []LineAmounts
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
}

// round2 rounds half away from zero to 2 decimal places. All amounts are
// non-negative here, so this is round-half-up to the centavo.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute derives the per-line and aggregate amounts for a cart.
//
// The discount is the transaction-wide 20% senior/PWD discount applied to
// every line when the flag is set. VAT is per-item aware: 12% of the
// discounted line base for VAT-applicable products, zero for VAT-exempt
// ones. With no exempt items this reduces to the aggregate
// subtotal/discount/vatBase formulas shown on the charge button.
func Compute(lines []Line, seniorPWD bool) Totals {
	totals := Totals{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		VAT:      decimal.Zero,
		Total:    decimal.Zero,
	}

	for _, line := range lines {
		sub := round2(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))

		disc := decimal.Zero
		if seniorPWD {
			disc = round2(sub.Mul(SeniorPWDRate))
		}

		vat := decimal.Zero
		if !line.VATExempt {
			vat = round2(sub.Sub(disc).Mul(VATRate))
		}

		totals.Lines = append(totals.Lines, LineAmounts{
			Line:     line,
			Subtotal: sub,
			Discount: disc,
			VAT:      vat,
		})

		totals.Subtotal = totals.Subtotal.Add(sub)
		totals.Discount = totals.Discount.Add(disc)
		totals.VAT = totals.VAT.Add(vat)
	}

	totals.Total = totals.Subtotal.Sub(totals.Discount).Add(totals.VAT)
	return totals
}

// ChangeDue is how much cash goes back to the customer. Never negative;
// only meaningful for cash payments.
func ChangeDue(total, cashReceived decimal.Decimal) decimal.Decimal {
	change := round2(cashReceived.Sub(total))
	if change.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return change
}
