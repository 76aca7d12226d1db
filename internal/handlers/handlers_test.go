package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-pharma-pos/internal/auth"
	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/middleware"
	"go-pharma-pos/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTest points the global database.DB at a fresh in-memory SQLite
// database for the duration of one test.
func setupTest(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	database.DB = db
}

// testRouter mirrors the route table in cmd/server, minus the env-flag on
// registration so tests can always reach it.
func testRouter() *gin.Engine {
	r := gin.New()

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", Register)
		authRoutes.POST("/login", Login)
		authRoutes.POST("/check-first-login", CheckFirstLogin)
		authRoutes.POST("/send-otp", SendOTP)
		authRoutes.POST("/verify-otp", VerifyOTP)
		authRoutes.POST("/verify-pharmacist-admin", VerifyPharmacistAdmin)
	}

	account := r.Group("/auth")
	account.Use(middleware.AuthMiddleware())
	{
		account.GET("/profile", GetProfile)
		account.PUT("/profile", UpdateProfile)
		account.POST("/change-password", ChangePassword)
		account.POST("/deactivate", middleware.RequireRole(models.RoleAdmin), DeactivateUser)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		api.GET("/products", GetProducts)
		api.GET("/products/:id", GetProduct)
		api.GET("/inventory/stock/:productId", GetProductStock)
		api.GET("/inventory/products-with-stock", GetProductsWithStock)

		api.POST("/transactions", CreateTransaction)
		api.GET("/transactions", GetTransactions)
		api.GET("/transactions/:id", GetTransaction)
		api.GET("/transactions/:id/receipt", GetReceipt)
		api.POST("/transactions/:id/reprint", ReprintReceipt)

		admin := api.Group("/")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/products", AddProduct)
			admin.PUT("/products/:id", UpdateProduct)
			admin.DELETE("/products/:id", DeleteProduct)
			admin.DELETE("/transactions/:id", DeleteTransaction)
			admin.GET("/reports", GetSalesReport)
		}
	}

	return r
}

func createUser(t *testing.T, username, password, role string, completedFirstLogin bool) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Username:            username,
		PasswordHash:        string(hash),
		Email:               username + "@pharmacy.test",
		Role:                role,
		IsActive:            true,
		CompletedFirstLogin: completedFirstLogin,
	}
	require.NoError(t, database.DB.Create(&user).Error)
	return user
}

func createProduct(t *testing.T, name, price string, stock int, vatExempt bool) models.Product {
	t.Helper()
	product := models.Product{
		Name:          name,
		UnitPrice:     decimal.RequireFromString(price),
		StockQuantity: stock,
		VATExempt:     vatExempt,
	}
	require.NoError(t, database.DB.Create(&product).Error)
	return product
}

func bearerToken(t *testing.T, user models.User) string {
	t.Helper()
	token, err := auth.GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	return "Bearer " + token
}

// doRequest runs one request through the router and returns the recorder.
func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}, authHeader string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
