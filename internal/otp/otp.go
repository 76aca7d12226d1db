// Package otp issues and verifies one-time passcodes. Codes live in their
// own table with a short expiry and are deleted on successful use, so a
// consumed or expired code can never pass twice.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go-pharma-pos/internal/models"

	"gorm.io/gorm"
)

// TTL is how long a code stays valid after it is sent.
const TTL = 5 * time.Minute

var (
	ErrNoCode   = errors.New("no pending code for this user")
	ErrExpired  = errors.New("code has expired")
	ErrMismatch = errors.New("code does not match")
)

// GenerateCode produces a 6-digit numeric code from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue replaces any pending code for the user with a fresh one and returns
// it for dispatch. Re-sending invalidates the previous code.
func Issue(db *gorm.DB, userID uint, now time.Time) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.OTPCode{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.OTPCode{
			UserID:    userID,
			Code:      code,
			ExpiresAt: now.Add(TTL),
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks a submitted code. On success the stored row is deleted so
// the code is single-use. An expired code is rejected even if the value
// matches, and its row is cleaned up.
func Verify(db *gorm.DB, userID uint, submitted string, now time.Time) error {
	var pending models.OTPCode
	if err := db.Where("user_id = ?", userID).First(&pending).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoCode
		}
		return err
	}

	if now.After(pending.ExpiresAt) {
		db.Delete(&pending)
		return ErrExpired
	}

	if pending.Code != submitted {
		return ErrMismatch
	}

	return db.Delete(&pending).Error
}
