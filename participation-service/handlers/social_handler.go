package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transparencia-backend/participation-service/services"
	"transparencia-backend/shared/httpx"
)

// ListActiveSocialLinks returns the visible social network profiles
// @Summary Social links
// @Tags public-social
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/social-links [get]
func (h *Handler) ListActiveSocialLinks(c *gin.Context) {
	active := true
	links, err := h.social.List(c.Request.Context(), &active, "sort_order", "asc")
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, links)
}

// ListSocialLinks returns every social link
// @Summary Social links (admin)
// @Tags admin-social
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Active flag"
// @Param order_by query string false "sort_order or name"
// @Param order query string false "asc or desc"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/social-links [get]
func (h *Handler) ListSocialLinks(c *gin.Context) {
	links, err := h.social.List(c.Request.Context(), optionalBool(c.Query("active")), c.Query("order_by"), c.Query("order"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, links)
}

// CountSocialLinks counts social links
// @Summary Count social links
// @Tags admin-social
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Active flag"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/social-links/count [get]
func (h *Handler) CountSocialLinks(c *gin.Context) {
	n, err := h.social.Count(c.Request.Context(), optionalBool(c.Query("active")))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, gin.H{"count": n})
}

// @Summary Get social link
// @Tags admin-social
// @Produce json
// @Security BearerAuth
// @Param id path int true "Social link ID"
// @Success 200 {object} participation.SocialLink
// @Failure 404 {object} map[string]string
// @Router /api/admin/social-links/{id} [get]
func (h *Handler) GetSocialLink(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	link, err := h.social.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, link)
}

// @Summary Create social link
// @Tags admin-social
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.SocialLinkInput true "Social link"
// @Success 201 {object} participation.SocialLink
// @Failure 400 {object} map[string]string
// @Router /api/admin/social-links [post]
func (h *Handler) CreateSocialLink(c *gin.Context) {
	var req services.SocialLinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	link, err := h.social.Create(c.Request.Context(), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": link})
}

// @Summary Update social link
// @Tags admin-social
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Social link ID"
// @Param request body services.SocialLinkInput true "Fields to change"
// @Success 200 {object} participation.SocialLink
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/admin/social-links/{id} [patch]
func (h *Handler) UpdateSocialLink(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	var req services.SocialLinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	link, err := h.social.Update(c.Request.Context(), id, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, link)
}

// @Summary Toggle social link
// @Tags admin-social
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Social link ID"
// @Param request body ActiveRequest true "Active flag"
// @Success 200 {object} participation.SocialLink
// @Router /api/admin/social-links/{id}/active [patch]
func (h *Handler) SetSocialLinkActive(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	link, err := h.social.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, link)
}

// @Summary Delete social link
// @Tags admin-social
// @Produce json
// @Security BearerAuth
// @Param id path int true "Social link ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/social-links/{id} [delete]
func (h *Handler) DeleteSocialLink(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	if err := h.social.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Social link deleted successfully"})
}
