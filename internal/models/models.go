package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Roles known to the system. Reprint authorization depends on these.
const (
	RoleClerk      = "clerk"
	RolePharmacist = "pharmacist"
	RoleAdmin      = "admin"
)

// PaymentMethod is the tender type of a transaction.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentGcash PaymentMethod = "gcash"
	PaymentMaya  PaymentMethod = "maya"
)

// ErrUnknownPaymentMethod is returned for tender types the register does not accept.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ParsePaymentMethod maps user input to a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(PaymentCash):
		return PaymentCash, nil
	case string(PaymentGcash):
		return PaymentGcash, nil
	case string(PaymentMaya):
		return PaymentMaya, nil
	default:
		return "", ErrUnknownPaymentMethod
	}
}

// ReferencePrefix is the human reference-number prefix for a payment method,
// e.g. CASH in "CASH-12345".
func (m PaymentMethod) ReferencePrefix() string {
	return strings.ToUpper(string(m))
}

// User - a staff account (clerk, pharmacist or admin)
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Username            string     `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash        string     `json:"-"` // Never return this in JSON
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	ContactNumber       string     `json:"contact_number"`
	Email               string     `gorm:"size:120" json:"email"`
	Role                string     `json:"role"` // 'clerk', 'pharmacist', 'admin'
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	CompletedFirstLogin bool       `json:"completed_first_login"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Pharmacist - licensing profile for pharmacist-role users
type Pharmacist struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex" json:"user_id"`
	User          User      `json:"-"`
	LicenseNumber string    `gorm:"size:50" json:"license_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// Product - the catalog. Stock lives on the product row; checkout decrements
// it with a conditional update so it can never go negative.
type Product struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Name                 string          `json:"name"`
	GenericName          string          `json:"generic_name"`
	Category             string          `json:"category"`
	Brand                string          `json:"brand"`
	UnitPrice            decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	VATExempt            bool            `json:"vat_exempt"`
	PrescriptionRequired bool            `json:"prescription_required"`
	ImageURL             string          `json:"image_url"`
	StockQuantity        int             `json:"stock_quantity"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Transaction - the checkout header. Immutable once written; deleting one
// cascades to its items first.
type Transaction struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	ReferenceNo     string            `gorm:"uniqueIndex;size:40" json:"reference_no"`
	PaymentMethod   PaymentMethod     `gorm:"size:10" json:"payment_method"`
	Subtotal        decimal.Decimal   `gorm:"type:decimal(12,2)" json:"subtotal"`
	SeniorPWD       bool              `json:"senior_pwd"`
	DiscountAmount  decimal.Decimal   `gorm:"type:decimal(12,2)" json:"discount_amount"`
	VATAmount       decimal.Decimal   `gorm:"type:decimal(12,2)" json:"vat_amount"`
	TotalAmount     decimal.Decimal   `gorm:"type:decimal(12,2)" json:"total_amount"`
	CashReceived    decimal.Decimal   `gorm:"type:decimal(12,2)" json:"cash_received"`
	ChangeDue       decimal.Decimal   `gorm:"type:decimal(12,2)" json:"change_due"`
	UserID          uint              `json:"user_id"` // Who processed it
	TransactionTime time.Time         `json:"transaction_time"`
	Items           []TransactionItem `gorm:"foreignKey:TransactionID" json:"items"`
}

// TransactionItem - one cart line inside a transaction, with the price
// snapshot and its share of the discount/VAT breakdown.
type TransactionItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TransactionID  uint            `json:"transaction_id"`
	ProductID      uint            `json:"product_id"`
	Product        Product         `json:"product"` // Preload product details
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	VATAmount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"vat_amount"`
	VATExempt      bool            `json:"vat_exempt"`
}

// TrustedDevice - a browser that already passed OTP for a user. Only the
// SHA-256 hash of the cookie token is stored, never the raw value.
type TrustedDevice struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index" json:"user_id"`
	TokenHash      string    `gorm:"uniqueIndex;size:64" json:"-"`
	Trusted        bool      `gorm:"default:true" json:"trusted"`
	FirstTrustedAt time.Time `json:"first_trusted_at"`
	LastUsedAt     time.Time `json:"last_used_at"`
}

// OTPCode - a pending one-time passcode. One row per user, short expiry,
// deleted on successful verification so codes are single-use.
type OTPCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex" json:"user_id"`
	Code      string    `gorm:"size:10" json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
