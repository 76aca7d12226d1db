package handlers

import (
	"errors"
	"net/http"

	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// GetProfile returns the authenticated user's own profile, with the
// pharmacist license attached when one exists.
func GetProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	resp := gin.H{"user": user}

	var pharmacist models.Pharmacist
	if err := database.DB.Where("user_id = ?", userID).First(&pharmacist).Error; err == nil {
		resp["license_number"] = pharmacist.LicenseNumber
	}

	c.JSON(http.StatusOK, resp)
}

type UpdateProfileRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
}

// UpdateProfile edits the authenticated user's own contact fields. Role and
// active status are not editable here.
func UpdateProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updates := map[string]interface{}{
		"first_name":     input.FirstName,
		"last_name":      input.LastName,
		"contact_number": input.ContactNumber,
	}
	if input.Email != "" {
		updates["email"] = input.Email
	}

	if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword swaps the authenticated user's password after re-verifying
// the old one.
func ChangePassword(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input ChangePasswordRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	if err := database.DB.Model(&user).Update("password_hash", string(hashed)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

type DeactivateRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// DeactivateUser (admin only) disables an account and withdraws trust from
// all of its devices, so the next login cannot skip OTP even if the account
// is later re-enabled.
func DeactivateUser(c *gin.Context) {
	var input DeactivateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, input.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.TrustedDevice{}).
			Where("user_id = ?", user.ID).
			Update("trusted", false).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deactivated"})
}

type VerifyCredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// errNotSupervisor means the credentials were fine but the account is not a
// pharmacist or admin.
var errNotSupervisor = errors.New("account is not a pharmacist or admin")

// verifySupervisor checks a pharmacist/admin credential pair. Used by the
// verify endpoint and by clerk-initiated receipt reprints.
func verifySupervisor(username, password string) (*models.User, error) {
	var user models.User
	if err := database.DB.Where("username = ? AND is_active = ?", username, true).First(&user).Error; err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, err
	}
	if user.Role != models.RolePharmacist && user.Role != models.RoleAdmin {
		return nil, errNotSupervisor
	}
	return &user, nil
}

// VerifyPharmacistAdmin confirms that the supplied credentials belong to an
// active pharmacist or admin account.
func VerifyPharmacistAdmin(c *gin.Context) {
	var input VerifyCredentialsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	supervisor, err := verifySupervisor(input.Username, input.Password)
	if err != nil {
		if errors.Is(err, errNotSupervisor) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is not a pharmacist or admin"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true, "role": supervisor.Role})
}
