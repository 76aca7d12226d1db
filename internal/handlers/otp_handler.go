package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"go-pharma-pos/internal/auth"
	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/devicetrust"
	"go-pharma-pos/internal/mailer"
	"go-pharma-pos/internal/models"
	"go-pharma-pos/internal/otp"

	"github.com/gin-gonic/gin"
)

type SendOTPRequest struct {
	Username string `json:"username" binding:"required"`
}

// SendOTP issues a fresh code for the user and emails it. The code is never
// echoed in the response unless OTP_DEBUG=true (local development only).
func SendOTP(c *gin.Context) {
	var input SendOTPRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.Where("username = ? AND is_active = ?", input.Username, true).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if user.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No email address on file for this account"})
		return
	}

	code, err := otp.Issue(database.DB, user.ID, time.Now())
	if err != nil {
		log.Println("Failed to issue OTP:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue verification code"})
		return
	}

	if err := mailer.SendOTP(user.Email, code); err != nil {
		// Surface dispatch failure so the user can retry manually.
		log.Println("Failed to send OTP email:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification code. Please try again."})
		return
	}

	resp := gin.H{"message": "Verification code sent"}
	if os.Getenv("OTP_DEBUG") == "true" {
		resp["debug_code"] = code
	}
	c.JSON(http.StatusOK, resp)
}

type VerifyOTPRequest struct {
	Username string `json:"username" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// VerifyOTP validates the submitted code. On success it marks the first
// login complete, trusts this browser with a fresh device token in an
// httpOnly SameSite-Strict session cookie, and returns a JWT.
func VerifyOTP(c *gin.Context) {
	var input VerifyOTPRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.Where("username = ? AND is_active = ?", input.Username, true).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	now := time.Now()
	if err := otp.Verify(database.DB, user.ID, input.Code, now); err != nil {
		switch {
		case errors.Is(err, otp.ErrNoCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No pending code. Request a new one."})
		case errors.Is(err, otp.ErrExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Code has expired. Request a new one."})
		case errors.Is(err, otp.ErrMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect code"})
		default:
			log.Println("OTP verification failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		}
		return
	}

	if err := database.DB.Model(&user).Updates(map[string]interface{}{
		"completed_first_login": true,
		"last_login_at":         &now,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update account"})
		return
	}

	deviceToken := devicetrust.MintToken()
	if err := devicetrust.Trust(database.DB, user.ID, deviceToken, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	// Session-lifetime cookie: maxAge 0 omits Max-Age so the browser drops
	// it when the session ends.
	c.SetSameSite(http.SameSiteStrictMode)
	secure := os.Getenv("COOKIE_SECURE") == "true"
	c.SetCookie(devicetrust.CookieName(user.ID), deviceToken, 0, "/", "", secure, true)

	token, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"role":     user.Role,
		"username": user.Username,
	})
}
