package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transparencia-backend/participation-service/services"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/utils/query"
)

// RespondRequest is the staff answer to a message
type RespondRequest struct {
	Response   string `json:"response" binding:"required"`
	TargetArea string `json:"target_area"`
}

// StatusRequest moves a message to another status
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func parseMessageID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "invalid message id")
		return uuid.Nil, false
	}
	return id, true
}

// CreateMessage receives a citizen message
// @Summary Send a citizen message
// @Description Stores the message under a new folio and mails a confirmation to the sender
// @Tags public-participation
// @Accept json
// @Produce json
// @Param request body services.NewMessage true "Message"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /api/public/participation/messages [post]
func (h *Handler) CreateMessage(c *gin.Context) {
	var req services.NewMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	receipt, err := h.messages.Create(c.Request.Context(), req, services.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Mensaje enviado correctamente. Se ha enviado una confirmación a su correo electrónico.",
		"data":    receipt,
	})
}

// GetMessageByFolio returns the status of a message
// @Summary Message status by folio
// @Tags public-participation
// @Produce json
// @Param folio path string true "Folio"
// @Success 200 {object} services.FolioStatus
// @Failure 404 {object} map[string]string
// @Router /api/public/participation/messages/{folio} [get]
func (h *Handler) GetMessageByFolio(c *gin.Context) {
	status, err := h.messages.ByFolio(c.Request.Context(), c.Param("folio"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, status)
}

// ListMessages returns a page of the inbox
// @Summary List citizen messages
// @Tags admin-participation
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param status query string false "pendiente, en_proceso, respondido or cerrado"
// @Param channel query string false "web, email, telefono or presencial"
// @Param search query string false "Name, email, subject, body or folio"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/participation/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	params := query.ParseQueryParams(c, "created_at")
	messages, pagination, err := h.messages.List(c.Request.Context(), services.MessageFilter{
		Status:  queryOrFilter(c, params, "status"),
		Channel: queryOrFilter(c, params, "channel"),
		Search:  params.Search,
		Page:    params.Page,
		Limit:   params.Limit,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": messages, "pagination": pagination})
}

// GetMessageStats counts the inbox
// @Summary Inbox statistics
// @Tags admin-participation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.MessageStats
// @Router /api/admin/participation/messages/stats [get]
func (h *Handler) GetMessageStats(c *gin.Context) {
	stats, err := h.messages.Stats(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, stats)
}

// GetRecentMessages returns the latest messages
// @Summary Recent citizen messages
// @Tags admin-participation
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Limit" default(10)
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/participation/messages/recent [get]
func (h *Handler) GetRecentMessages(c *gin.Context) {
	messages, err := h.messages.Recent(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, messages)
}

// CountMessages counts messages by status and channel
// @Summary Count citizen messages
// @Tags admin-participation
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status"
// @Param channel query string false "Channel"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/participation/messages/count [get]
func (h *Handler) CountMessages(c *gin.Context) {
	n, err := h.messages.Count(c.Request.Context(), c.Query("status"), c.Query("channel"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, gin.H{"count": n})
}

// GetMessage returns one message
// @Summary Get citizen message
// @Tags admin-participation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} participation.Message
// @Failure 404 {object} map[string]string
// @Router /api/admin/participation/messages/{id} [get]
func (h *Handler) GetMessage(c *gin.Context) {
	id, valid := parseMessageID(c)
	if !valid {
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, msg)
}

// RespondMessage answers a message
// @Summary Answer citizen message
// @Description Stores the answer, marks the message as answered and mails the citizen
// @Tags admin-participation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param request body RespondRequest true "Answer"
// @Success 200 {object} participation.Message
// @Failure 400 {object} map[string]string "Already answered"
// @Failure 404 {object} map[string]string
// @Router /api/admin/participation/messages/{id}/respond [patch]
func (h *Handler) RespondMessage(c *gin.Context) {
	id, valid := parseMessageID(c)
	if !valid {
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Respond(c.Request.Context(), id, req.Response, req.TargetArea, httpx.CurrentUserIDPtr(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, msg)
}

// ChangeMessageStatus moves a message to another status
// @Summary Change message status
// @Tags admin-participation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param request body StatusRequest true "Status"
// @Success 200 {object} participation.Message
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/admin/participation/messages/{id}/status [patch]
func (h *Handler) ChangeMessageStatus(c *gin.Context) {
	id, valid := parseMessageID(c)
	if !valid {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messages.ChangeStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, msg)
}

// DeleteMessage removes a message
// @Summary Delete citizen message
// @Tags admin-participation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/participation/messages/{id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	id, valid := parseMessageID(c)
	if !valid {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted successfully"})
}

// queryOrFilter reads name from the plain query or from filters[name]
func queryOrFilter(c *gin.Context, params query.FilterParams, name string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return params.Filters[name]
}
