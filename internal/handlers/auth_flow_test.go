package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/devicetrust"
	"go-pharma-pos/internal/models"
	"go-pharma-pos/internal/otp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginResponse struct {
	RequiresOTP bool   `json:"requires_otp"`
	Token       string `json:"token"`
	Role        string `json:"role"`
	Username    string `json:"username"`
}

func loginBody(username, password string) map[string]interface{} {
	return map[string]interface{}{"username": username, "password": password}
}

func TestLoginWrongPassword(t *testing.T) {
	setupTest(t)
	r := testRouter()
	createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	w := doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "nope"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, true)
	require.NoError(t, database.DB.Model(&user).Update("is_active", false).Error)

	w := doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "pw123456"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFirstLoginRequiresOTP(t *testing.T) {
	setupTest(t)
	r := testRouter()
	createUser(t, "clerk1", "pw123456", models.RoleClerk, false)

	w := doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "pw123456"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.RequiresOTP)
	assert.Empty(t, resp.Token)
}

func TestLoginWithoutDeviceCookieRequiresOTP(t *testing.T) {
	setupTest(t)
	r := testRouter()
	createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	w := doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "pw123456"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.RequiresOTP)
}

func TestLoginWithTrustedDeviceSkipsOTP(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	token := devicetrust.MintToken()
	require.NoError(t, devicetrust.Trust(database.DB, user.ID, token, time.Now()))

	cookie := &http.Cookie{Name: devicetrust.CookieName(user.ID), Value: token}
	w := doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "pw123456"), "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	decodeBody(t, w, &resp)
	assert.False(t, resp.RequiresOTP)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleClerk, resp.Role)

	// last_login_at was stamped.
	var after models.User
	require.NoError(t, database.DB.First(&after, user.ID).Error)
	assert.NotNil(t, after.LastLoginAt)
}

func TestLoginWithStrangerCookieRequiresOTP(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	cookie := &http.Cookie{Name: devicetrust.CookieName(user.ID), Value: devicetrust.MintToken()}
	w := doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "pw123456"), "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.RequiresOTP)
}

func TestVerifyOTPHappyPath(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, false)

	code, err := otp.Issue(database.DB, user.ID, time.Now())
	require.NoError(t, err)

	w := doRequest(t, r, http.MethodPost, "/auth/verify-otp", map[string]interface{}{
		"username": "clerk1",
		"code":     code,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp loginResponse
	decodeBody(t, w, &resp)
	assert.NotEmpty(t, resp.Token)

	// The device cookie is set httpOnly for this session.
	setCookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, devicetrust.CookieName(user.ID))
	assert.Contains(t, strings.ToLower(setCookie), "httponly")
	assert.NotContains(t, strings.ToLower(setCookie), "max-age")

	// First login is now complete and the device is trusted.
	var after models.User
	require.NoError(t, database.DB.First(&after, user.ID).Error)
	assert.True(t, after.CompletedFirstLogin)

	var devices []models.TrustedDevice
	require.NoError(t, database.DB.Where("user_id = ?", user.ID).Find(&devices).Error)
	assert.Len(t, devices, 1)

	// The code is single-use: replaying it fails.
	w = doRequest(t, r, http.MethodPost, "/auth/verify-otp", map[string]interface{}{
		"username": "clerk1",
		"code":     code,
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyOTPExpiredCode(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, false)

	// Issued long enough ago that it is already past its TTL.
	code, err := otp.Issue(database.DB, user.ID, time.Now().Add(-otp.TTL-time.Minute))
	require.NoError(t, err)

	w := doRequest(t, r, http.MethodPost, "/auth/verify-otp", map[string]interface{}{
		"username": "clerk1",
		"code":     code,
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "expired")

	var after models.User
	require.NoError(t, database.DB.First(&after, user.ID).Error)
	assert.False(t, after.CompletedFirstLogin)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, false)

	_, err := otp.Issue(database.DB, user.ID, time.Now())
	require.NoError(t, err)

	w := doRequest(t, r, http.MethodPost, "/auth/verify-otp", map[string]interface{}{
		"username": "clerk1",
		"code":     "999999x",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendOTPSurfacesDispatchFailure(t *testing.T) {
	setupTest(t)
	r := testRouter()
	createUser(t, "clerk1", "pw123456", models.RoleClerk, false)

	// No SMTP configuration in tests, so dispatch fails and the caller is
	// told to retry manually. The code row still exists for debugging.
	w := doRequest(t, r, http.MethodPost, "/auth/send-otp", map[string]interface{}{
		"username": "clerk1",
	}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, int64(1), func() int64 {
		var n int64
		database.DB.Model(&models.OTPCode{}).Count(&n)
		return n
	}())
}

func TestCheckFirstLogin(t *testing.T) {
	setupTest(t)
	r := testRouter()
	createUser(t, "fresh", "pw123456", models.RoleClerk, false)
	createUser(t, "veteran", "pw123456", models.RoleClerk, true)

	w := doRequest(t, r, http.MethodPost, "/auth/check-first-login", map[string]interface{}{"username": "fresh"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed_first_login":false`)

	w = doRequest(t, r, http.MethodPost, "/auth/check-first-login", map[string]interface{}{"username": "veteran"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed_first_login":true`)

	w = doRequest(t, r, http.MethodPost, "/auth/check-first-login", map[string]interface{}{"username": "nobody"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyPharmacistAdmin(t *testing.T) {
	setupTest(t)
	r := testRouter()
	createUser(t, "pharm1", "pw123456", models.RolePharmacist, true)
	createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	w := doRequest(t, r, http.MethodPost, "/auth/verify-pharmacist-admin", loginBody("pharm1", "pw123456"), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"verified":true`)

	w = doRequest(t, r, http.MethodPost, "/auth/verify-pharmacist-admin", loginBody("clerk1", "pw123456"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, r, http.MethodPost, "/auth/verify-pharmacist-admin", loginBody("pharm1", "wrong"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePassword(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "oldpassword", models.RoleClerk, true)

	w := doRequest(t, r, http.MethodPost, "/auth/change-password", map[string]interface{}{
		"old_password": "wrong",
		"new_password": "newpassword1",
	}, bearerToken(t, user))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, r, http.MethodPost, "/auth/change-password", map[string]interface{}{
		"old_password": "oldpassword",
		"new_password": "newpassword1",
	}, bearerToken(t, user))
	require.Equal(t, http.StatusOK, w.Code)

	// Old password no longer works, the new one does.
	w = doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "oldpassword"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "newpassword1"), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeactivateUserWithdrawsDeviceTrust(t *testing.T) {
	setupTest(t)
	r := testRouter()
	admin := createUser(t, "boss", "pw123456", models.RoleAdmin, true)
	clerk := createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	token := devicetrust.MintToken()
	require.NoError(t, devicetrust.Trust(database.DB, clerk.ID, token, time.Now()))

	// Clerks cannot deactivate anyone.
	w := doRequest(t, r, http.MethodPost, "/auth/deactivate", map[string]interface{}{"user_id": admin.ID}, bearerToken(t, clerk))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, r, http.MethodPost, "/auth/deactivate", map[string]interface{}{"user_id": clerk.ID}, bearerToken(t, admin))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodPost, "/auth/login", loginBody("clerk1", "pw123456"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.False(t, devicetrust.IsTrusted(database.DB, clerk.ID, token, time.Now()))
}

func TestRegisterPharmacistCreatesProfile(t *testing.T) {
	setupTest(t)
	r := testRouter()

	w := doRequest(t, r, http.MethodPost, "/auth/register", map[string]interface{}{
		"username":       "pharm1",
		"password":       "pw1234567",
		"email":          "pharm1@pharmacy.test",
		"role":           models.RolePharmacist,
		"license_number": "RPh-20881",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var pharmacist models.Pharmacist
	require.NoError(t, database.DB.First(&pharmacist).Error)
	assert.Equal(t, "RPh-20881", pharmacist.LicenseNumber)

	// Missing license is rejected.
	w = doRequest(t, r, http.MethodPost, "/auth/register", map[string]interface{}{
		"username": "pharm2",
		"password": "pw1234567",
		"email":    "pharm2@pharmacy.test",
		"role":     models.RolePharmacist,
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileRoundTrip(t *testing.T) {
	setupTest(t)
	r := testRouter()
	user := createUser(t, "clerk1", "pw123456", models.RoleClerk, true)

	w := doRequest(t, r, http.MethodPut, "/auth/profile", map[string]interface{}{
		"first_name":     "Ana",
		"last_name":      "Reyes",
		"contact_number": "09171234567",
	}, bearerToken(t, user))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, "/auth/profile", nil, bearerToken(t, user))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ana")
	assert.Contains(t, w.Body.String(), "09171234567")

	// No token, no profile.
	w = doRequest(t, r, http.MethodGet, "/auth/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
