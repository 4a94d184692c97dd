package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/httpx"
)

// PasswordResetMailRequest asks for a temporary password to be mailed
type PasswordResetMailRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Name              string `json:"name" binding:"required"`
	TemporaryPassword string `json:"temporary_password" binding:"required"`
}

// SendPasswordResetMail queues the temporary password mail of a portal user
// @Summary Mail a temporary password
// @Description Used by the auth service after an administrator resets a password
// @Tags internal-mail
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PasswordResetMailRequest true "Recipient"
// @Success 202 {object} map[string]interface{}
// @Failure 503 {object} map[string]string "Mail disabled or queue full"
// @Router /api/internal/mail/password-reset [post]
func (h *Handler) SendPasswordResetMail(c *gin.Context) {
	var req PasswordResetMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	if !h.email.QueuePasswordReset(req.Email, req.Name, req.TemporaryPassword) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "mail delivery unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Mail queued"})
}
