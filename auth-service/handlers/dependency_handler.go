package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"transparencia-backend/auth-service/services"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/middleware"
)

// DependencyHandler serves the read-only institutions catalog
type DependencyHandler struct {
	deps *services.DependencyService
}

func NewDependencyHandler(deps *services.DependencyService) *DependencyHandler {
	return &DependencyHandler{deps: deps}
}

// RegisterDependencyRoutes mounts the institutions catalog for staff users
func RegisterDependencyRoutes(r gin.IRouter, h *DependencyHandler, validator middleware.TokenValidator) {
	staff := middleware.Protected(validator,
		models.PermReportView,
		models.PermDocumentUpload,
		models.PermDocumentEdit,
		models.PermUserRegister,
		models.PermRoleManage,
	)

	d := r.Group("/api/admin/dependencies")
	{
		d.GET("", with(staff, h.List)...)
		d.GET("/types", with(staff, h.Types)...)
		d.GET("/tree", with(staff, h.Tree)...)
		d.GET("/selection", with(staff, h.ForUserSelection)...)
		d.GET("/paths", with(staff, h.WithFullPath)...)
		d.GET("/structure", with(staff, h.Structure)...)
		d.GET("/levels", with(staff, h.ByLevels)...)
		d.GET("/stats", with(staff, h.Count)...)
		d.GET("/level/:level", with(staff, h.ByLevel)...)
		d.GET("/type/:typeId", with(staff, h.ByType)...)
		d.GET("/parent/:parentId", with(staff, h.ByParent)...)
		d.GET("/:id/exists", with(staff, h.Exists)...)
		d.GET("/:id", with(staff, h.Get)...)
	}
}

// reply writes data or maps err
func reply(c *gin.Context, data interface{}, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, data)
}

// List returns the active dependencies
// @Summary List dependencies
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies [get]
func (h *DependencyHandler) List(c *gin.Context) {
	deps, err := h.deps.List(c.Request.Context())
	reply(c, deps, err)
}

// Types returns the dependency types
// @Summary List dependency types
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/types [get]
func (h *DependencyHandler) Types(c *gin.Context) {
	types, err := h.deps.Types(c.Request.Context())
	reply(c, types, err)
}

// Tree returns the nested institutions tree
// @Summary Dependency tree
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/tree [get]
func (h *DependencyHandler) Tree(c *gin.Context) {
	tree, err := h.deps.Tree(c.Request.Context())
	reply(c, tree, err)
}

// @Summary Dependencies assignable to users
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/selection [get]
func (h *DependencyHandler) ForUserSelection(c *gin.Context) {
	deps, err := h.deps.ForUserSelection(c.Request.Context())
	reply(c, deps, err)
}

// @Summary Dependencies with their full path
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/paths [get]
func (h *DependencyHandler) WithFullPath(c *gin.Context) {
	deps, err := h.deps.WithFullPath(c.Request.Context())
	reply(c, deps, err)
}

// @Summary Types, dependencies and tree in one response
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DependencyStructure
// @Router /api/admin/dependencies/structure [get]
func (h *DependencyHandler) Structure(c *gin.Context) {
	structure, err := h.deps.Structure(c.Request.Context())
	reply(c, structure, err)
}

// @Summary Dependencies grouped by level
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DependencyLevels
// @Router /api/admin/dependencies/levels [get]
func (h *DependencyHandler) ByLevels(c *gin.Context) {
	levels, err := h.deps.ByLevels(c.Request.Context())
	reply(c, levels, err)
}

// @Summary Dependency counts by level and type
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DependencyStats
// @Router /api/admin/dependencies/stats [get]
func (h *DependencyHandler) Count(c *gin.Context) {
	stats, err := h.deps.Count(c.Request.Context())
	reply(c, stats, err)
}

// @Summary Dependencies of a level
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Param level path int true "Level, 1 to 3"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Unknown level"
// @Router /api/admin/dependencies/level/{level} [get]
func (h *DependencyHandler) ByLevel(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		httpx.BadRequest(c, "invalid level")
		return
	}
	deps, err := h.deps.ByLevel(c.Request.Context(), level)
	reply(c, deps, err)
}

// @Summary Dependencies of a type
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Param typeId path int true "Dependency type ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/type/{typeId} [get]
func (h *DependencyHandler) ByType(c *gin.Context) {
	typeID, valid := httpx.ParseUintParam(c, "typeId")
	if !valid {
		return
	}
	deps, err := h.deps.ByType(c.Request.Context(), typeID)
	reply(c, deps, err)
}

// @Summary Children of a dependency
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Param parentId path int true "Parent dependency ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/parent/{parentId} [get]
func (h *DependencyHandler) ByParent(c *gin.Context) {
	parentID, valid := httpx.ParseUintParam(c, "parentId")
	if !valid {
		return
	}
	deps, err := h.deps.ByParent(c.Request.Context(), parentID)
	reply(c, deps, err)
}

// @Summary Get dependency
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Dependency ID"
// @Success 200 {object} models.Dependency
// @Failure 404 {object} map[string]string "Not found or inactive"
// @Router /api/admin/dependencies/{id} [get]
func (h *DependencyHandler) Get(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	dep, err := h.deps.Get(c.Request.Context(), id)
	reply(c, dep, err)
}

// @Summary Check that a dependency exists and is active
// @Tags dependencies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Dependency ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dependencies/{id}/exists [get]
func (h *DependencyHandler) Exists(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	exists, err := h.deps.Exists(c.Request.Context(), id)
	reply(c, gin.H{"exists": exists}, err)
}
