// Package devicetrust manages the "remember this browser" side of the OTP
// gate. A trusted browser holds an opaque token in an httpOnly cookie; the
// server keeps only the SHA-256 hash of that token.
package devicetrust

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go-pharma-pos/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CookieName is the per-user device cookie, e.g. "device_token_7".
func CookieName(userID uint) string {
	return fmt.Sprintf("device_token_%d", userID)
}

// MintToken creates a fresh opaque device token.
func MintToken() string {
	return uuid.NewString()
}

// HashToken hashes a raw cookie token for storage and lookup.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Trust records a newly verified device for a user.
func Trust(db *gorm.DB, userID uint, rawToken string, now time.Time) error {
	device := models.TrustedDevice{
		UserID:         userID,
		TokenHash:      HashToken(rawToken),
		Trusted:        true,
		FirstTrustedAt: now,
		LastUsedAt:     now,
	}
	return db.Create(&device).Error
}

// IsTrusted reports whether the raw token from the cookie matches a trusted
// device record for the user, and touches last_used_at when it does.
func IsTrusted(db *gorm.DB, userID uint, rawToken string, now time.Time) bool {
	if rawToken == "" {
		return false
	}

	var device models.TrustedDevice
	err := db.Where("user_id = ? AND token_hash = ? AND trusted = ?", userID, HashToken(rawToken), true).
		First(&device).Error
	if err != nil {
		return false
	}

	db.Model(&device).Update("last_used_at", now)
	return true
}
