package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/utils/query"
)

// TOTPCodeRequest carries a code from the authenticator app
type TOTPCodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// DisableTOTPRequest confirms the caller's password
type DisableTOTPRequest struct {
	Password string `json:"password" binding:"required"`
}

// SetupTOTP starts two-factor enrollment
// @Summary Start two-factor setup
// @Description Generate a TOTP secret and a base64 PNG QR code. Two-factor stays off until enabled with a valid code.
// @Tags auth-security
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Already enabled"
// @Router /api/auth/2fa/setup [post]
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	userID, _ := httpx.CurrentUserID(c)
	setup, err := h.auth.SetupTOTP(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, setup)
}

// EnableTOTP turns two-factor on
// @Summary Enable two-factor
// @Tags auth-security
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TOTPCodeRequest true "Code from the authenticator app"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string "Invalid code"
// @Router /api/auth/2fa/enable [post]
func (h *AuthHandler) EnableTOTP(c *gin.Context) {
	var req TOTPCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	userID, _ := httpx.CurrentUserID(c)
	if err := h.auth.EnableTOTP(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"message": "Two-factor authentication enabled"})
}

// DisableTOTP turns two-factor off
// @Summary Disable two-factor
// @Tags auth-security
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DisableTOTPRequest true "Current password"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string "Incorrect password"
// @Router /api/auth/2fa/disable [post]
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	var req DisableTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	userID, _ := httpx.CurrentUserID(c)
	if err := h.auth.DisableTOTP(c.Request.Context(), userID, req.Password); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"message": "Two-factor authentication disabled"})
}

// AccessLogs lists the caller's requests recorded by the gateway
// @Summary Own access log
// @Tags auth-security
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 20)"
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/profile/access-logs [get]
func (h *AuthHandler) AccessLogs(c *gin.Context) {
	params := query.ParseQueryParams(c, "created_at")
	userID, _ := httpx.CurrentUserID(c)

	logs, total, err := h.auth.AccessLogs(c.Request.Context(), userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       logs,
		"pagination": query.BuildPaginationResponse(params.Page, params.Limit, total),
	})
}
