package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transparencia-backend/auth-service/services"
	"transparencia-backend/shared/clients"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/middleware"
)

// PasswordMailer delivers generated temporary passwords
type PasswordMailer interface {
	SendPasswordResetEmail(ctx context.Context, authorization string, req clients.PasswordResetEmailRequest) error
}

// AuthHandler serves login, session and profile endpoints
type AuthHandler struct {
	auth   *services.AuthService
	users  *services.UserService
	mailer PasswordMailer
}

// NewAuthHandler creates the handler. mailer may be nil, temporary
// passwords are then only returned to the administrator.
func NewAuthHandler(auth *services.AuthService, users *services.UserService, mailer PasswordMailer) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, mailer: mailer}
}

// LoginRequest carries the login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"admin@transparencia.gob.mx"`
	Password string `json:"password" binding:"required" example:"admin123"`
	TOTPCode string `json:"totp_code" example:"123456"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally names the refresh token to revoke
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ValidateRequest carries an access token
type ValidateRequest struct {
	Token string `json:"token" binding:"required"`
}

// ValidateResponse describes a checked access token
type ValidateResponse struct {
	Valid       bool      `json:"valid"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Limits configures the rate limits of the public auth endpoints
type Limits struct {
	Login   middleware.RateLimitConfig
	General middleware.RateLimitConfig
}

// RegisterRoutes mounts the auth and user administration routes
func RegisterRoutes(r gin.IRouter, h *AuthHandler, validator middleware.TokenValidator, limiter *middleware.RateLimiter, limits Limits) {
	authed := middleware.AuthMiddleware(validator)

	a := r.Group("/api/auth")
	{
		a.POST("/login", limiter.RateLimitMiddleware("login", limits.Login, "Too many login attempts. Please try again later."), h.Login)
		a.POST("/refresh", limiter.RateLimitMiddleware("refresh", limits.General, ""), h.Refresh)
		a.POST("/validate", limiter.RateLimitMiddleware("validate", limits.General, ""), h.Validate)
		a.GET("/validate", authed, h.ValidateCurrent)
		a.POST("/logout", authed, h.Logout)
		a.GET("/profile", authed, h.Profile)
		a.PATCH("/profile", authed, h.UpdateProfile)
		a.GET("/profile/access-logs", authed, h.AccessLogs)
		a.POST("/change-password", authed, h.ChangePassword)
		a.POST("/2fa/setup", authed, h.SetupTOTP)
		a.POST("/2fa/enable", authed, h.EnableTOTP)
		a.POST("/2fa/disable", authed, h.DisableTOTP)
	}

	manage := middleware.Protected(validator, models.PermRoleManage)
	register := middleware.Protected(validator, models.PermUserRegister, models.PermRoleManage)
	deactivate := middleware.Protected(validator, models.PermUserDeactivate)
	password := middleware.Protected(validator, models.PermUserChangePassword)

	u := r.Group("/api/admin/users")
	{
		u.POST("", with(register, h.CreateUser)...)
		u.GET("", with(register, h.ListUsers)...)
		u.GET("/roles", with(register, h.ListRoles)...)
		u.GET("/count", with(register, h.CountUsers)...)
		u.GET("/role/:roleId", with(manage, h.UsersByRole)...)
		u.GET("/permissions/matrix", with(manage, h.PermissionMatrix)...)
		u.GET("/:id", with(register, h.GetUser)...)
		u.PATCH("/:id", with(manage, h.UpdateUser)...)
		u.DELETE("/:id", with(deactivate, h.DeactivateUser)...)
		u.POST("/:id/restore", with(deactivate, h.RestoreUser)...)
		u.POST("/:id/force-password-reset", with(password, h.ResetUserPassword)...)
	}
}

func with(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, h)
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// respondError maps authentication failures to 401 and everything else
// through httpx.Error
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTOTPRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Two-factor code required", "code": "TOTP_REQUIRED"})
	case errors.Is(err, services.ErrInvalidTOTP):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid two-factor code", "code": "TOTP_INVALID"})
	case errors.Is(err, services.ErrInactiveUser):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is inactive", "code": "USER_INACTIVE"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "INVALID_CREDENTIALS"})
	case errors.Is(err, services.ErrInvalidRefresh):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token is invalid or expired", "code": "INVALID_REFRESH"})
	default:
		httpx.Error(c, err)
	}
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// Login authenticates a user
// @Summary User login
// @Description Authenticate with email and password, plus a TOTP code when two-factor is enabled
// @Tags auth
// @Accept json
// @Produce json
// @Param login body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Access and refresh tokens"
// @Failure 400 {object} map[string]string "Invalid request format"
// @Failure 401 {object} map[string]string "Invalid credentials, inactive account or missing two-factor code"
// @Failure 429 {object} map[string]string "Too many login attempts"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	session, err := h.auth.Login(c.Request.Context(), services.Credentials{
		Email:    req.Email,
		Password: req.Password,
		TOTPCode: req.TOTPCode,
	}, clientInfo(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, session)
}

// Refresh rotates a refresh token
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new access and refresh token. The old one is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param refresh body RefreshRequest true "Refresh token"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string "Invalid refresh token or user inactive"
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	session, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, session)
}

// Logout revokes the refresh token and the current access token
// @Summary User logout
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param logout body LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} map[string]string "Logged out successfully"
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err.Error())
			return
		}
	}

	claims, _ := middleware.ClaimsFrom(c)
	userID, _ := httpx.CurrentUserID(c)
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := h.auth.Logout(c.Request.Context(), userID, req.RefreshToken, claims.ID, expiresAt); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Profile returns the authenticated user
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, _ := httpx.CurrentUserID(c)
	profile, err := h.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, profile)
}

// UpdateProfile lets users edit their own name, photo, area and phone
// @Summary Update current user profile
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.ProfileUpdate true "Profile fields"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Invalid field"
// @Router /api/auth/profile [patch]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	userID, _ := httpx.CurrentUserID(c)
	profile, err := h.auth.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated successfully", "data": profile})
}

// Validate checks an access token sent in the body
// @Summary Validate access token
// @Description Report whether a token is valid and belongs to an active user
// @Tags auth
// @Accept json
// @Produce json
// @Param validate body ValidateRequest true "Access token"
// @Success 200 {object} ValidateResponse
// @Router /api/auth/validate [post]
func (h *AuthHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	claims, err := h.auth.ValidateAccessToken(c.Request.Context(), req.Token)
	if err != nil {
		ok(c, ValidateResponse{Valid: false})
		return
	}
	ok(c, ValidateResponse{
		Valid:       true,
		UserID:      claims.Subject,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}

// ValidateCurrent echoes the claims of the bearer token
// @Summary Validate bearer token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ValidateResponse
// @Router /api/auth/validate [get]
func (h *AuthHandler) ValidateCurrent(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	ok(c, ValidateResponse{
		Valid:       true,
		UserID:      claims.Subject,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}
