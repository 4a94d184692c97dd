package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transparencia-backend/auth-service/services"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/utils/query"
)

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

// optionalBool reads "true" or "false", anything else is unset
func optionalBool(raw string) *bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// CreateUser registers a user
// @Summary Create user
// @Tags admin-users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.NewUser true "User"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Invalid request data"
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /api/admin/users [post]
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req services.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	actor, _ := httpx.CurrentUserID(c)
	logger.L().Info("user registered by administrator", "user_id", user.ID, "actor", actor)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User created successfully", "data": user})
}

// ListUsers returns a page of users
// @Summary List users
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Name or email"
// @Param active query bool false "Active flag"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	params := query.ParseQueryParams(c, "created_at")
	users, pagination, err := h.users.List(c.Request.Context(), services.UserFilter{
		Search: params.Search,
		Active: optionalBool(c.Query("active")),
		Sort:   params.Sort,
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": users, "pagination": pagination})
}

// GetUser returns one user
// @Summary Get user
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/users/{id} [get]
func (h *AuthHandler) GetUser(c *gin.Context) {
	id, valid := parseUserID(c)
	if !valid {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, user)
}

// UpdateUser changes profile fields and roles
// @Summary Update user
// @Tags admin-users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body services.UserUpdate true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /api/admin/users/{id} [patch]
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	id, valid := parseUserID(c)
	if !valid {
		return
	}
	var req services.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User updated successfully", "data": user})
}

// DeactivateUser blocks a user and revokes their sessions
// @Summary Deactivate user
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} map[string]string
// @Router /api/admin/users/{id} [delete]
func (h *AuthHandler) DeactivateUser(c *gin.Context) {
	id, valid := parseUserID(c)
	if !valid {
		return
	}
	if actor, _ := httpx.CurrentUserID(c); actor == id {
		httpx.BadRequest(c, "you cannot deactivate your own account")
		return
	}
	if err := h.users.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deactivated successfully"})
}

// RestoreUser reactivates a user
// @Summary Restore user
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/users/{id}/restore [post]
func (h *AuthHandler) RestoreUser(c *gin.Context) {
	id, valid := parseUserID(c)
	if !valid {
		return
	}
	if err := h.users.Restore(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, user)
}

// CountUsers counts users
// @Summary Count users
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Active flag"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/users/count [get]
func (h *AuthHandler) CountUsers(c *gin.Context) {
	n, err := h.users.Count(c.Request.Context(), optionalBool(c.Query("active")))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"total": n})
}

// ListRoles lists roles with their permissions
// @Summary List roles
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Active flag"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/users/roles [get]
func (h *AuthHandler) ListRoles(c *gin.Context) {
	roles, err := h.users.Roles(c.Request.Context(), optionalBool(c.Query("active")))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, roles)
}

// UsersByRole lists the users holding a role
// @Summary Users of a role
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param roleId path int true "Role ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/users/role/{roleId} [get]
func (h *AuthHandler) UsersByRole(c *gin.Context) {
	roleID, valid := httpx.ParseUintParam(c, "roleId")
	if !valid {
		return
	}
	users, err := h.users.ByRole(c.Request.Context(), roleID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, users)
}

// PermissionMatrix maps roles to permission codes
// @Summary Permission matrix
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/users/permissions/matrix [get]
func (h *AuthHandler) PermissionMatrix(c *gin.Context) {
	matrix, err := h.users.PermissionMatrix(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, matrix)
}
