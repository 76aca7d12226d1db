package database

import (
	"time"

	"go-pharma-pos/internal/models"
)

// SalesReportResult summarizes revenue over a date range.
type SalesReportResult struct {
	TotalRevenue float64
	TotalCount   int64
}

// GetSalesReport calculates sales within a specific date range.
func GetSalesReport(start, end time.Time) (*SalesReportResult, error) {
	var result SalesReportResult

	// COALESCE ensures we get 0 instead of NULL if no transactions exist
	err := DB.Model(&models.Transaction{}).
		Where("transaction_time BETWEEN ? AND ?", start, end).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&result.TotalRevenue).Error

	if err != nil {
		return nil, err
	}

	err = DB.Model(&models.Transaction{}).
		Where("transaction_time BETWEEN ? AND ?", start, end).
		Count(&result.TotalCount).Error

	if err != nil {
		return nil, err
	}

	return &result, nil
}
