package handlers

import (
	"net/http"
	"time"

	"go-pharma-pos/internal/auth"
	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/devicetrust"
	"go-pharma-pos/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and runs the device-trust gate. A user who has
// completed their first login AND presents a valid device cookie gets a JWT
// straight away; everyone else is told to go through OTP.
func Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.Where("username = ?", input.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// Device-trust gate: OTP is required unless the first login was already
	// completed and this browser holds a token we trust.
	requiresOTP := !user.CompletedFirstLogin
	if !requiresOTP {
		rawToken, err := c.Cookie(devicetrust.CookieName(user.ID))
		if err != nil || !devicetrust.IsTrusted(database.DB, user.ID, rawToken, time.Now()) {
			requiresOTP = true
		}
	}

	if requiresOTP {
		c.JSON(http.StatusOK, gin.H{
			"requires_otp": true,
			"username":     user.Username,
		})
		return
	}

	now := time.Now()
	database.DB.Model(&user).Update("last_login_at", &now)

	token, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requires_otp": false,
		"token":        token,
		"role":         user.Role,
		"username":     user.Username,
	})
}

type RegisterRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required,min=8"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email" binding:"required,email"`
	Role          string `json:"role"`
	LicenseNumber string `json:"license_number"`
}

// Register creates a staff account. The route is only mounted when
// ALLOW_REGISTRATION=true in .env.
func Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	role := input.Role
	if role == "" {
		role = models.RoleClerk
	}
	if role != models.RoleClerk && role != models.RolePharmacist && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}
	if role == models.RolePharmacist && input.LicenseNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pharmacist accounts need a license number"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Username:      input.Username,
		PasswordHash:  string(hashedPassword),
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		ContactNumber: input.ContactNumber,
		Email:         input.Email,
		Role:          role,
		IsActive:      true,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User likely already exists"})
		return
	}

	if role == models.RolePharmacist {
		pharmacist := models.Pharmacist{
			UserID:        user.ID,
			LicenseNumber: input.LicenseNumber,
		}
		if err := database.DB.Create(&pharmacist).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pharmacist profile"})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "id": user.ID})
}

type CheckFirstLoginRequest struct {
	Username string `json:"username" binding:"required"`
}

// CheckFirstLogin tells the login screen whether this account still needs
// its first-login OTP walkthrough.
func CheckFirstLogin(c *gin.Context) {
	var input CheckFirstLoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.Where("username = ?", input.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed_first_login": user.CompletedFirstLogin})
}
