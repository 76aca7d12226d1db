package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/models"
	"go-pharma-pos/internal/pricing"
	"go-pharma-pos/internal/receipt"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CheckoutItem is one cart line as the frontend sends it.
type CheckoutItem struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// CheckoutRequest is the body of POST /api/transactions.
type CheckoutRequest struct {
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	ReferenceNumber string          `json:"reference_number" binding:"required"`
	SeniorPWD       bool            `json:"senior_pwd"`
	CashReceived    decimal.Decimal `json:"cash_received"`
	Items           []CheckoutItem  `json:"items" binding:"required,min=1,dive"`
}

// buildReferenceNo prefixes the cashier-entered reference with the payment
// method, e.g. "12345" under cash becomes "CASH-12345". An already prefixed
// value passes through unchanged.
func buildReferenceNo(method models.PaymentMethod, userInput string) string {
	prefix := method.ReferencePrefix() + "-"
	if strings.HasPrefix(strings.ToUpper(userInput), prefix) {
		return prefix + userInput[len(prefix):]
	}
	return prefix + userInput
}

// CreateTransaction runs a checkout: validates the cart, decrements stock
// with conditional updates, recomputes all money amounts server-side and
// persists the header plus its items in one database transaction. Either
// everything commits or nothing does.
func CreateTransaction(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment method"})
		return
	}

	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		return
	}

	userID := c.MustGet("userID").(uint)
	referenceNo := buildReferenceNo(method, req.ReferenceNumber)

	tx := database.DB.Begin()

	var lines []pricing.Line
	for _, item := range req.Items {
		var product models.Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Product %d not found", item.ProductID)})
			return
		}

		// Conditional decrement is the concurrency guarantee: zero rows
		// affected means someone else sold the stock first, so the sale is
		// rejected rather than oversold.
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", product.ID, item.Quantity).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))
		if res.Error != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
			return
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Insufficient stock for %s", product.Name)})
			return
		}

		lines = append(lines, pricing.Line{
			ProductID: product.ID,
			UnitPrice: product.UnitPrice,
			Quantity:  item.Quantity,
			VATExempt: product.VATExempt,
		})
	}

	// Amounts are recomputed here; client-side totals are display-only.
	totals := pricing.Compute(lines, req.SeniorPWD)

	cashReceived := decimal.Zero.Round(2)
	changeDue := decimal.Zero.Round(2)
	if method == models.PaymentCash {
		cashReceived = req.CashReceived.Round(2)
		if cashReceived.LessThan(totals.Total) {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cash received is less than the total"})
			return
		}
		changeDue = pricing.ChangeDue(totals.Total, cashReceived)
	}

	var txItems []models.TransactionItem
	for _, line := range totals.Lines {
		txItems = append(txItems, models.TransactionItem{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			Subtotal:       line.Subtotal,
			DiscountAmount: line.Discount,
			VATAmount:      line.VAT,
			VATExempt:      line.VATExempt,
		})
	}

	sale := models.Transaction{
		ReferenceNo:     referenceNo,
		PaymentMethod:   method,
		Subtotal:        totals.Subtotal,
		SeniorPWD:       req.SeniorPWD,
		DiscountAmount:  totals.Discount,
		VATAmount:       totals.VAT,
		TotalAmount:     totals.Total,
		CashReceived:    cashReceived,
		ChangeDue:       changeDue,
		UserID:          userID,
		TransactionTime: time.Now(),
		Items:           txItems, // GORM inserts these with the header
	}

	if err := tx.Create(&sale).Error; err != nil {
		tx.Rollback()
		log.Println("Failed to create transaction:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create transaction"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Println("Failed to commit transaction:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create transaction"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         "Transaction recorded",
		"transaction_id":  sale.ID,
		"reference_no":    sale.ReferenceNo,
		"subtotal":        sale.Subtotal,
		"discount_amount": sale.DiscountAmount,
		"vat_amount":      sale.VATAmount,
		"total_amount":    sale.TotalAmount,
		"cash_received":   sale.CashReceived,
		"change_due":      sale.ChangeDue,
	})
}

// GetTransactions lists history, newest first, with page/limit paging.
func GetTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := database.DB.Model(&models.Transaction{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
		return
	}

	var transactions []models.Transaction
	err := database.DB.
		Preload("Items.Product").
		Order("transaction_time desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"page":         page,
		"limit":        limit,
		"total":        total,
	})
}

// GetTransaction returns one transaction with its items.
func GetTransaction(c *gin.Context) {
	var transaction models.Transaction
	err := database.DB.Preload("Items.Product").First(&transaction, c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	c.JSON(http.StatusOK, transaction)
}

// DeleteTransaction (admin only) removes a transaction. Items go first so
// no orphan rows survive the header.
func DeleteTransaction(c *gin.Context) {
	var transaction models.Transaction
	if err := database.DB.First(&transaction, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transaction_id = ?", transaction.ID).Delete(&models.TransactionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&transaction).Error
	})
	if err != nil {
		log.Println("Failed to delete transaction:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete transaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

func storeIdentity() (string, string) {
	name := os.Getenv("STORE_NAME")
	if name == "" {
		name = "PharmaPoint Pharmacy"
	}
	return name, os.Getenv("STORE_ADDRESS")
}

// loadReceipt fetches everything the formatter needs for a transaction id.
func loadReceipt(id string, reprint bool) (*receipt.Document, error) {
	var transaction models.Transaction
	if err := database.DB.Preload("Items.Product").First(&transaction, id).Error; err != nil {
		return nil, err
	}

	cashier := "-"
	var user models.User
	if err := database.DB.First(&user, transaction.UserID).Error; err == nil {
		cashier = user.Username
	}

	name, address := storeIdentity()
	doc := receipt.Build(&transaction, cashier, name, address, reprint)
	return &doc, nil
}

// GetReceipt renders the receipt for a transaction.
func GetReceipt(c *gin.Context) {
	doc, err := loadReceipt(c.Param("id"), false)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	printable, err := receipt.RenderText(*doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render receipt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": doc, "printable": printable})
}

// ReprintRequest carries supervisor credentials when a clerk reprints.
type ReprintRequest struct {
	SupervisorUsername string `json:"supervisor_username"`
	SupervisorPassword string `json:"supervisor_password"`
}

// ReprintReceipt re-renders a receipt marked as a reprint. Pharmacists and
// admins may do this directly; a clerk must present pharmacist/admin
// credentials; any other role is denied outright.
func ReprintReceipt(c *gin.Context) {
	role, _ := c.Get("role")

	switch role {
	case models.RolePharmacist, models.RoleAdmin:
		// authorized directly
	case models.RoleClerk:
		var req ReprintRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.SupervisorUsername == "" || req.SupervisorPassword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Supervisor credentials are required"})
			return
		}
		if _, err := verifySupervisor(req.SupervisorUsername, req.SupervisorPassword); err != nil {
			if errors.Is(err, errNotSupervisor) {
				c.JSON(http.StatusForbidden, gin.H{"error": "Account is not a pharmacist or admin"})
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid supervisor credentials"})
			return
		}
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to reprint receipts"})
		return
	}

	doc, err := loadReceipt(c.Param("id"), true)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	printable, err := receipt.RenderText(*doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render receipt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": doc, "printable": printable})
}
