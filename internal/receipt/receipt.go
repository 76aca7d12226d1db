// Package receipt turns a persisted transaction into a print-ready document
// sized for 32-column thermal paper. No amounts are recomputed here; every
// figure comes from the stored rows.
package receipt

import (
	"strings"
	"text/template"
	"time"

	"go-pharma-pos/internal/models"

	"github.com/shopspring/decimal"
)

const paperWidth = 32

// BreakdownNote is printed for historical transactions stored before
// per-item discount/VAT amounts existed.
const BreakdownNote = "Per-item breakdown not available"

// manila is the fixed display timezone for receipts.
var manila = loadManila()

func loadManila() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}

// LineView is one rendered cart line.
type LineView struct {
	Name      string
	Quantity  int
	UnitPrice string
	Subtotal  string
	Discount  string
	VAT       string
	VATExempt bool
}

// Document is everything the printer (or the on-screen modal) needs.
type Document struct {
	StoreName    string
	StoreAddress string
	ReferenceNo  string
	Payment      string
	Cashier      string
	IssuedAt     string
	Reprint      bool

	Lines        []LineView
	HasBreakdown bool

	Subtotal     string
	SeniorPWD    bool
	Discount     string
	VAT          string
	Total        string
	CashPayment  bool
	CashReceived string
	ChangeDue    string
}

// Build maps a stored transaction onto a Document.
func Build(tx *models.Transaction, cashier string, storeName, storeAddress string, reprint bool) Document {
	doc := Document{
		StoreName:    storeName,
		StoreAddress: storeAddress,
		ReferenceNo:  tx.ReferenceNo,
		Payment:      tx.PaymentMethod.ReferencePrefix(),
		Cashier:      cashier,
		IssuedAt:     tx.TransactionTime.In(manila).Format("02 Jan 2006 3:04 PM"),
		Reprint:      reprint,
		HasBreakdown: hasBreakdown(tx),
		Subtotal:     money(tx.Subtotal),
		SeniorPWD:    tx.SeniorPWD,
		Discount:     money(tx.DiscountAmount),
		VAT:          money(tx.VATAmount),
		Total:        money(tx.TotalAmount),
		CashPayment:  tx.PaymentMethod == models.PaymentCash,
		CashReceived: money(tx.CashReceived),
		ChangeDue:    money(tx.ChangeDue),
	}

	for _, item := range tx.Items {
		name := item.Product.Name
		if name == "" {
			name = "Item"
		}
		doc.Lines = append(doc.Lines, LineView{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: money(item.UnitPrice),
			Subtotal:  money(item.Subtotal),
			Discount:  money(item.DiscountAmount),
			VAT:       money(item.VATAmount),
			VATExempt: item.VATExempt,
		})
	}

	return doc
}

// hasBreakdown reports whether per-item amounts were stored with this
// transaction. Rows written before the breakdown existed carry zero item
// subtotals even though quantity and price are set.
func hasBreakdown(tx *models.Transaction) bool {
	if len(tx.Items) == 0 {
		return false
	}
	for _, item := range tx.Items {
		lineValue := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if item.Subtotal.IsZero() && !lineValue.IsZero() {
			return false
		}
	}
	return true
}

// money renders an amount with thousands separators, e.g. "1,234.50".
// The peso sign is left off because most thermal printers cannot print it.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	dot := strings.Index(s, ".")
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

var renderFuncs = template.FuncMap{
	"row":     row,
	"center":  center,
	"divider": func() string { return strings.Repeat("-", paperWidth) },
}

var receiptTemplate = template.Must(template.New("receipt").Funcs(renderFuncs).Parse(
	`{{center .StoreName}}
{{center .StoreAddress}}
{{if .Reprint}}{{center "*** REPRINT ***"}}
{{end}}{{divider}}
Ref: {{.ReferenceNo}}
Date: {{.IssuedAt}}
Cashier: {{.Cashier}}
Payment: {{.Payment}}
{{divider}}
{{range .Lines}}{{.Name}}
{{row (printf "  %d x %s" .Quantity .UnitPrice) .Subtotal}}
{{if $.HasBreakdown}}{{if $.SeniorPWD}}{{row "  Discount (20%)" (printf "-%s" .Discount)}}
{{end}}{{if .VATExempt}}{{row "  VAT Exempt" "0.00"}}
{{else}}{{row "  VAT (12%)" .VAT}}
{{end}}{{end}}{{end}}{{if not .HasBreakdown}}{{center .Note}}
{{end}}{{divider}}
{{row "Subtotal" .Subtotal}}
{{row "Discount" (printf "-%s" .Discount)}}
{{row "VAT" .VAT}}
{{row "TOTAL" .Total}}
{{if .CashPayment}}{{row "Cash" .CashReceived}}
{{row "Change" .ChangeDue}}
{{end}}{{divider}}
{{center "Thank you!"}}
{{center "This serves as your"}}
{{center "official receipt"}}
`))

// templateData wraps Document with the fallback note so the template stays
// free of string literals that tests also assert on.
type templateData struct {
	Document
	Note string
}

// RenderText renders the document as fixed-width thermal printer text.
func RenderText(doc Document) (string, error) {
	var b strings.Builder
	if err := receiptTemplate.Execute(&b, templateData{Document: doc, Note: BreakdownNote}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// row lays out a label on the left and an amount on the right edge.
func row(label, amount string) string {
	gap := paperWidth - len(label) - len(amount)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + amount
}

func center(s string) string {
	if len(s) >= paperWidth {
		return s
	}
	pad := (paperWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
