package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"masjidflow/models"
	"masjidflow/pkg/auth"
	"masjidflow/pkg/otp"
	"masjidflow/pkg/ratelimit"
	"masjidflow/pkg/token"
)

// In-memory stands-ins for the gorm stores, so the full HTTP surface can be
// exercised without Postgres.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{users: make(map[string]*models.User)} }

func (m *memUsers) FindByID(id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) FindByPhone(phone, countryCode string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone && u.CountryCode == countryCode {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Create(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) Save(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

type memOtps struct {
	mu   sync.Mutex
	reqs []*models.OtpRequest
}

func (m *memOtps) Create(req *models.OtpRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = uuid.NewString()
	req.CreatedAt = time.Now()
	cp := *req
	m.reqs = append(m.reqs, &cp)
	return nil
}

func (m *memOtps) latest(match func(*models.OtpRequest) bool) *models.OtpRequest {
	sorted := make([]*models.OtpRequest, len(m.reqs))
	copy(sorted, m.reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	for _, r := range sorted {
		if match(r) {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (m *memOtps) LatestUnusedSince(phone, countryCode string, since time.Time) (*models.OtpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(func(r *models.OtpRequest) bool {
		return r.Phone == phone && r.CountryCode == countryCode && !r.IsUsed && !r.CreatedAt.Before(since)
	}), nil
}

func (m *memOtps) LatestActive(phone, countryCode string, now time.Time) (*models.OtpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(func(r *models.OtpRequest) bool {
		return r.Phone == phone && r.CountryCode == countryCode && !r.IsUsed && !r.ExpiresAt.Before(now)
	}), nil
}

func (m *memOtps) InvalidateUnused(phone, countryCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.Phone == phone && r.CountryCode == countryCode && !r.IsUsed {
			r.IsUsed = true
		}
	}
	return nil
}

func (m *memOtps) IncrementAttempts(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.ID == id {
			r.Attempts++
		}
	}
	return nil
}

func (m *memOtps) Consume(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.ID == id && !r.IsUsed {
			r.IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: make(map[string]*models.RefreshToken)} }

func (m *memTokens) Create(row *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.ID = uuid.NewString()
	cp := *row
	m.rows[row.ID] = &cp
	return nil
}

func (m *memTokens) FindByToken(t string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Token == t {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTokens) Revoke(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok && !r.IsRevoked {
		r.IsRevoked = true
		return true, nil
	}
	return false, nil
}

func (m *memTokens) RevokeByToken(t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Token == t {
			r.IsRevoked = true
		}
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == userID {
			r.IsRevoked = true
		}
	}
	return nil
}

// captureSender records the last message so tests can read back the code.
type captureSender struct {
	mu       sync.Mutex
	lastTo   string
	lastBody string
}

func (c *captureSender) SendSMS(_ context.Context, to, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTo = to
	c.lastBody = message
	return nil
}

var codeRE = regexp.MustCompile(`\d{6}`)

func (c *captureSender) lastCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return codeRE.FindString(c.lastBody)
}

type testEnv struct {
	router *gin.Engine
	sender *captureSender
	otps   *memOtps
}

func newTestEnv(t *testing.T, limiter ratelimit.Limiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := Config{
		Env:               "test",
		JWTAccessSecret:   "access-secret",
		JWTRefreshSecret:  "refresh-secret",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		OTPLength:         6,
		OTPTTL:            5 * time.Minute,
		OTPMaxAttempts:    3,
		OTPResendCooldown: 30 * time.Second,
		BcryptCost:        bcrypt.MinCost,
		AuthRateLimit:     2,
		AuthRateWindow:    time.Minute,
	}
	log := zap.NewNop()
	users := newMemUsers()
	otps := &memOtps{}
	tokenRows := newMemTokens()
	sender := &captureSender{}

	otpSvc := otp.NewService(otps, sender, log, otp.Config{
		Length:         cfg.OTPLength,
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
		BcryptCost:     cfg.BcryptCost,
	}, false)
	tokenSvc := token.NewService(tokenRows, cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	srv := &server{
		cfg:    cfg,
		log:    log,
		auth:   auth.NewService(users, otpSvc, tokenSvc),
		users:  auth.NewUserService(users),
		tokens: tokenSvc,
	}
	router := gin.New()
	srv.setupRoutes(router, limiter)
	return &testEnv{router: router, sender: sender, otps: otps}
}

func performRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func dataField(t *testing.T, resp apiResponse, key string) interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	return data[key]
}

// signup walks a full signup through send and verify and returns the token
// pair plus the created user id.
func (e *testEnv) signup(t *testing.T, phone, name, email string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q,"phone":%q,"countryCode":"+1"}`, name, email, phone)
	w := performRequest(e.router, http.MethodPost, "/api/v1/auth/signup", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code := e.sender.lastCode()
	require.Len(t, code, 6)

	verify := fmt.Sprintf(`{"phone":%q,"countryCode":"+1","otp":%q}`, phone, code)
	w = performRequest(e.router, http.MethodPost, "/api/v1/auth/verify-otp", verify, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	require.True(t, resp.Success)
	user := dataField(t, resp, "user").(map[string]interface{})
	return dataField(t, resp, "accessToken").(string),
		dataField(t, resp, "refreshToken").(string),
		user["id"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	w := performRequest(env.router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSignupFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"name":"Aisha","email":"aisha@example.com","phone":"5551234567","countryCode":"+1"}`
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/signup", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "OTP sent to your phone number", resp.Message)
	assert.NotNil(t, dataField(t, resp, "expiresAt"))
	assert.Equal(t, "+15551234567", env.sender.lastTo)

	code := env.sender.lastCode()
	require.Len(t, code, 6)

	verify := fmt.Sprintf(`{"phone":"5551234567","countryCode":"+1","otp":%q}`, code)
	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/verify-otp", verify, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, true, dataField(t, resp, "isNewUser"))

	user := dataField(t, resp, "user").(map[string]interface{})
	assert.Equal(t, "Aisha", user["name"])
	assert.Equal(t, true, user["isPhoneVerified"])
	assert.Equal(t, false, user["isProfileComplete"])

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, refreshCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, dataField(t, resp, "refreshToken"), cookies[0].Value)
}

func TestSignupRejectsExistingPhone(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	body := `{"name":"Bilal","email":"bilal@example.com","phone":"5551234567","countryCode":"+1"}`
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/signup", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "already exists")
}

func TestLoginRequiresExistingAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"phone":"5559999999","countryCode":"+1"}`
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/send-otp", body, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "USER_NOT_FOUND", resp.Code)
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	body := `{"phone":"5551234567","countryCode":"+1"}`
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/send-otp", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "OTP sent successfully", decodeEnvelope(t, w).Message)

	code := env.sender.lastCode()
	verify := fmt.Sprintf(`{"phone":"5551234567","countryCode":"+1","otp":%q}`, code)
	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/verify-otp", verify, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	assert.Equal(t, false, dataField(t, resp, "isNewUser"))
}

func TestResendCooldown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	body := `{"phone":"5551234567","countryCode":"+1"}`
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/send-otp", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/send-otp", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Message, "before requesting another OTP")
}

func TestVerifyWrongCodeCountsAttempts(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"name":"Aisha","email":"aisha@example.com","phone":"5551234567","countryCode":"+1"}`
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/signup", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	verify := `{"phone":"5551234567","countryCode":"+1","otp":"000000"}`
	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/verify-otp", verify, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_OTP", resp.Code)
	assert.Equal(t, "Invalid OTP. 2 attempt(s) remaining.", resp.Message)
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	_, refresh, _ := env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	body := fmt.Sprintf(`{"refreshToken":%q}`, refresh)
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	next := dataField(t, resp, "refreshToken").(string)
	assert.NotEqual(t, refresh, next)

	// Replaying the spent token must fail.
	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", decodeEnvelope(t, w).Code)

	// The rotated token still works.
	body = fmt.Sprintf(`{"refreshToken":%q}`, next)
	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshReadsCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	_, refresh, _ := env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"Cookie": refreshCookieName + "=" + refresh,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRefreshRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", "{}", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Refresh token is required", decodeEnvelope(t, w).Message)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	_, refresh, _ := env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	body := fmt.Sprintf(`{"refreshToken":%q}`, refresh)
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/logout", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, refreshCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)

	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	env := newTestEnv(t, nil)
	access, refresh, _ := env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/logout-all", "", map[string]string{
		"Authorization": "Bearer " + access,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := fmt.Sprintf(`{"refreshToken":%q}`, refresh)
	w = performRequest(env.router, http.MethodPost, "/api/v1/auth/refresh", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	w := performRequest(env.router, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_TOKEN", decodeEnvelope(t, w).Code)

	w = performRequest(env.router, http.MethodGet, "/api/v1/users/me", "", map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeEnvelope(t, w).Code)
}

func TestMeReturnsProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _, userID := env.signup(t, "5551234567", "Aisha", "aisha@example.com")

	w := performRequest(env.router, http.MethodGet, "/api/v1/users/me", "", map[string]string{
		"Authorization": "Bearer " + access,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	assert.Equal(t, userID, dataField(t, resp, "id"))
	assert.Equal(t, "aisha@example.com", dataField(t, resp, "email"))
}

func TestUpdateProfileCompletesProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _, _ := env.signup(t, "5551234567", "Aisha", "aisha@example.com")
	headers := map[string]string{"Authorization": "Bearer " + access}

	body := `{"address":"12 Crescent Rd","city":"Springfield"}`
	w := performRequest(env.router, http.MethodPut, "/api/v1/users/profile", body, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	assert.Equal(t, false, dataField(t, resp, "isProfileComplete"))

	body = `{"state":"IL"}`
	w = performRequest(env.router, http.MethodPut, "/api/v1/users/profile", body, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeEnvelope(t, w)
	assert.Equal(t, true, dataField(t, resp, "isProfileComplete"))
}

func TestValidationErrorsAreRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{"bad email", "/api/v1/auth/signup", `{"name":"A B","email":"nope","phone":"5551234567","countryCode":"+1"}`, "email"},
		{"missing plus", "/api/v1/auth/send-otp", `{"phone":"5551234567","countryCode":"1"}`, "countryCode"},
		{"short otp", "/api/v1/auth/verify-otp", `{"phone":"5551234567","countryCode":"+1","otp":"123"}`, "otp"},
		{"alpha phone", "/api/v1/auth/send-otp", `{"phone":"abcdefghij","countryCode":"+1"}`, "phone"},
		{"signed phone", "/api/v1/auth/send-otp", `{"phone":"+123456789","countryCode":"+1"}`, "phone"},
		{"decimal phone", "/api/v1/auth/send-otp", `{"phone":"1.23456789","countryCode":"+1"}`, "phone"},
		{"alpha country code", "/api/v1/auth/send-otp", `{"phone":"5551234567","countryCode":"+abc"}`, "countryCode"},
		{"decimal otp", "/api/v1/auth/verify-otp", `{"phone":"5551234567","countryCode":"+1","otp":"1.2345"}`, "otp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performRequest(env.router, http.MethodPost, tc.path, tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeEnvelope(t, w)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Equal(t, "Validation failed", resp.Message)
			require.NotEmpty(t, resp.Errors)
			fields := make([]string, 0, len(resp.Errors))
			for _, fe := range resp.Errors {
				assert.NotEmpty(t, fe.Message)
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, ratelimit.NewMemory())

	body := `{"phone":"5559999999","countryCode":"+1"}`
	for i := 0; i < 2; i++ {
		w := performRequest(env.router, http.MethodPost, "/api/v1/auth/send-otp", body, nil)
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
	w := performRequest(env.router, http.MethodPost, "/api/v1/auth/send-otp", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests. Please try again later.", decodeEnvelope(t, w).Message)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	w := performRequest(env.router, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "Cannot GET /api/v1/nope", resp.Message)
}
