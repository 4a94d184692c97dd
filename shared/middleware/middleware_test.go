package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/httpx"
	utils "transparencia-backend/shared/utils/auth"
)

func tokenFor(t *testing.T, issuer *utils.TokenIssuer, perms ...string) string {
	t.Helper()
	permissions := make([]models.Permission, len(perms))
	for i, p := range perms {
		permissions[i] = models.Permission{Code: p}
	}
	user := &models.User{
		ID:    uuid.New(),
		Email: "editor@morelos.gob.mx",
		Roles: []models.Role{{Name: models.RoleEdicion, Active: true, Permissions: permissions}},
	}
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)
	return token
}

func protectedRouter(issuer *utils.TokenIssuer, codes ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", append(Protected(issuer, codes...), func(c *gin.Context) {
		id, _ := httpx.CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
	})...)
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	issuer := utils.NewTokenIssuer("test-secret", time.Minute)
	r := protectedRouter(issuer)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer garbage").Code)

	w := do(r, "Bearer "+tokenFor(t, issuer))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user_id")
}

func TestRequirePermissionAnyOf(t *testing.T) {
	issuer := utils.NewTokenIssuer("test-secret", time.Minute)
	r := protectedRouter(issuer, models.PermDocumentUpload, models.PermDocumentEdit)

	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+tokenFor(t, issuer, models.PermReportView)).Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+tokenFor(t, issuer, models.PermDocumentEdit)).Code)
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(context.Background(), 0, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 2, BlockDuration: time.Minute}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", rl.RateLimitMiddleware("login", cfg, ""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		return w
	}

	assert.Equal(t, http.StatusNoContent, post().Code)
	assert.Equal(t, http.StatusNoContent, post().Code)
	blocked := post()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	// the bucket refills but the block holds
	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusTooManyRequests, post().Code)

	now = now.Add(31 * time.Second)
	assert.Equal(t, http.StatusNoContent, post().Code)
	assert.Equal(t, 1, rl.Len())
}

func TestRequestIDPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(httpx.KeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(httpx.HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(httpx.HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
}

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

func TestWithRevocation(t *testing.T) {
	issuer := utils.NewTokenIssuer("test-secret", time.Minute)
	token := tokenFor(t, issuer)
	claims, err := issuer.Validate(token)
	require.NoError(t, err)

	revoked := revokedSet{}
	validator := WithRevocation(issuer, revoked)

	_, err = validator.Validate(token)
	require.NoError(t, err)

	revoked[claims.ID] = true
	_, err = validator.Validate(token)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)

	assert.Same(t, issuer, WithRevocation(issuer, nil))
}
