package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transparencia-backend/shared/clients"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
)

// ChangePasswordRequest changes the caller's own password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// ResetPasswordRequest sets another user's password. An empty password
// generates a temporary one.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword changes the caller's password after verifying the current one
// @Summary Change password
// @Description Change the caller's password. Every refresh token of the user is revoked.
// @Tags auth-password
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Password change data"
// @Success 200 {object} map[string]string "Password changed successfully"
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Current password is incorrect"
// @Router /api/auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	userID, _ := httpx.CurrentUserID(c)
	if err := h.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"message": "Password changed successfully"})
}

// ResetUserPassword sets a user's password on behalf of an administrator
// @Summary Force password reset
// @Description Set a user's password. Without a password in the body a temporary one is generated, returned once and mailed to the user.
// @Tags admin-users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body ResetPasswordRequest false "New password"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "User not found"
// @Router /api/admin/users/{id}/force-password-reset [post]
func (h *AuthHandler) ResetUserPassword(c *gin.Context) {
	id, valid := parseUserID(c)
	if !valid {
		return
	}

	var req ResetPasswordRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err.Error())
			return
		}
	}

	temporary, err := h.users.ResetPassword(c.Request.Context(), id, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"message": "Password reset successfully"}
	if temporary != "" {
		data["temporary_password"] = temporary
		data["mail_sent"] = h.mailTemporaryPassword(c, id, temporary)
	}
	ok(c, data)
}

// mailTemporaryPassword forwards the caller's token so the mail endpoint
// checks the same permission
func (h *AuthHandler) mailTemporaryPassword(c *gin.Context, id uuid.UUID, temporary string) bool {
	if h.mailer == nil {
		return false
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		logger.L().Warn("temporary password not mailed", "user_id", id, "error", err)
		return false
	}
	err = h.mailer.SendPasswordResetEmail(c.Request.Context(), c.GetHeader("Authorization"), clients.PasswordResetEmailRequest{
		Email:             user.Email,
		Name:              user.FullName,
		TemporaryPassword: temporary,
	})
	if err != nil {
		logger.L().Warn("temporary password not mailed", "user_id", id, "error", err)
		return false
	}
	return true
}
