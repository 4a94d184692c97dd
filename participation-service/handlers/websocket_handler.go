package handlers

import (
	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
)

// HandleWebSocket streams inbox events to a staff member
// @Summary Inbox events
// @Description Upgrades to a WebSocket that receives message.created, message.updated and message.deleted events. Browsers pass the token as access_token.
// @Tags websocket
// @Security BearerAuth
// @Param access_token query string false "Access token"
// @Router /ws/participation [get]
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, _ := httpx.CurrentUserID(c)
	if err := h.hub.Serve(c.Writer, c.Request, userID.String()); err != nil {
		logger.L().Warn("websocket upgrade failed", "error", err, "user_id", userID)
	}
}
