package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/utils/query"
)

// CatalogView is a catalog with the availability of each document type.
// Availability is null for catalogs that do not accept documents.
type CatalogView struct {
	document.Catalog
	Availability []catalog.Availability `json:"availability"`
}

// CatalogMatch is a search hit with its path from the root
type CatalogMatch struct {
	document.Catalog
	Path []catalog.PathNode `json:"path"`
}

type catalogRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	LevelDescription *string `json:"level_description"`
	Icon             *string `json:"icon"`
	SortOrder        *int    `json:"sort_order"`
	Active           *bool   `json:"active"`
	AcceptsDocuments *bool   `json:"accepts_documents"`
	ParentID         *uint   `json:"parent_id"`
}

func (h *Handler) withAvailability(c *gin.Context, catalogs []document.Catalog) ([]CatalogView, error) {
	byCatalog, err := h.availability.ForCatalogs(c.Request.Context(), catalogs)
	if err != nil {
		return nil, err
	}
	views := make([]CatalogView, len(catalogs))
	for i, cat := range catalogs {
		views[i] = CatalogView{Catalog: cat}
		if cat.AcceptsDocuments {
			views[i].Availability = byCatalog[cat.ID]
			if views[i].Availability == nil {
				views[i].Availability = []catalog.Availability{}
			}
		}
	}
	return views, nil
}

// GetRootCatalogs lists the root catalogs
// @Summary Root catalogs
// @Description Active root catalogs ordered by sort order and name, with document availability
// @Tags public-catalogs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/catalogs/roots [get]
func (h *Handler) GetRootCatalogs(c *gin.Context) {
	roots, err := h.tree.Roots(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	views, err := h.withAvailability(c, roots)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, views)
}

// GetCatalogChildren lists the children of a catalog
// @Summary Catalog children
// @Tags public-catalogs
// @Produce json
// @Param id path int true "Catalog ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/public/catalogs/{id}/children [get]
func (h *Handler) GetCatalogChildren(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	children, err := h.tree.Children(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	views, err := h.withAvailability(c, children)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, views)
}

// GetCatalogPath returns the breadcrumb of a catalog
// @Summary Catalog path
// @Tags public-catalogs
// @Produce json
// @Param id path int true "Catalog ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/public/catalogs/{id}/path [get]
func (h *Handler) GetCatalogPath(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	path, err := h.tree.AncestorPath(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, path)
}

// SearchCatalogs finds catalogs by name and returns each with its path
// @Summary Search catalogs
// @Tags public-catalogs
// @Produce json
// @Param q query string true "Term, at least 2 characters"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/public/catalogs/search [get]
func (h *Handler) SearchCatalogs(c *gin.Context) {
	ctx := c.Request.Context()
	found, err := h.tree.SearchByName(ctx, c.Query("q"), 50)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	matches := make([]CatalogMatch, len(found))
	for i, cat := range found {
		path, err := h.tree.AncestorPath(ctx, cat.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		matches[i] = CatalogMatch{Catalog: cat, Path: path}
	}
	ok(c, matches)
}

// ListCatalogs returns a page of catalogs
// @Summary List catalogs
// @Tags admin-catalogs
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Name filter"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs [get]
func (h *Handler) ListCatalogs(c *gin.Context) {
	params := query.ParseQueryParams(c, "level")
	catalogs, pagination, err := h.tree.List(c.Request.Context(), params.Page, params.Limit, params.Search)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": catalogs, "pagination": pagination})
}

// GetCatalogTree returns the nested tree of active catalogs
// @Summary Catalog tree
// @Tags admin-catalogs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs/tree [get]
func (h *Handler) GetCatalogTree(c *gin.Context) {
	tree, err := h.tree.Tree(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, tree)
}

// AdminSearchCatalogs finds catalogs by name
// @Summary Search catalogs
// @Tags admin-catalogs
// @Produce json
// @Param q query string true "Term, at least 2 characters"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs/search [get]
func (h *Handler) AdminSearchCatalogs(c *gin.Context) {
	found, err := h.tree.SearchByName(c.Request.Context(), c.Query("q"), 100)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, found)
}

// CountCatalogs returns the number of active catalogs
// @Summary Count catalogs
// @Tags admin-catalogs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs/count [get]
func (h *Handler) CountCatalogs(c *gin.Context) {
	n, err := h.tree.Count(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, gin.H{"total": n})
}

// GetCatalogWithChildren returns a catalog and its direct children
// @Summary Get catalog
// @Tags admin-catalogs
// @Produce json
// @Param id path int true "Catalog ID"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/catalogs/{id} [get]
func (h *Handler) GetCatalogWithChildren(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	cat, err := h.tree.WithChildren(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, cat)
}

// GetCatalogAvailability returns the document type availability of a catalog
// @Summary Catalog availability
// @Tags admin-catalogs
// @Produce json
// @Param id path int true "Catalog ID"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs/{id}/availability [get]
func (h *Handler) GetCatalogAvailability(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	cat, err := h.tree.Get(ctx, id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	records, err := h.availability.ForCatalog(ctx, *cat)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if records == nil {
		records = []catalog.Availability{}
	}
	ok(c, gin.H{"catalog_id": cat.ID, "accepts_documents": cat.AcceptsDocuments, "availability": records})
}

// CreateCatalog creates a catalog
// @Summary Create catalog
// @Tags admin-catalogs
// @Accept json
// @Produce json
// @Param body body catalogRequest true "Catalog"
// @Security BearerAuth
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Parent not found"
// @Router /api/admin/catalogs [post]
func (h *Handler) CreateCatalog(c *gin.Context) {
	var req catalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	cat, err := h.tree.Create(c.Request.Context(), req.input(true))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	logger.L().Info("catalog created", "catalog_id", cat.ID, "level", cat.Level)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Catalog created successfully", "data": cat})
}

// UpdateCatalog updates a catalog. Sending parent_id, even null, moves it.
// @Summary Update catalog
// @Tags admin-catalogs
// @Accept json
// @Produce json
// @Param id path int true "Catalog ID"
// @Param body body catalogRequest true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Cycle"
// @Router /api/admin/catalogs/{id} [put]
func (h *Handler) UpdateCatalog(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}

	var req catalogRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	// an explicit null parent moves the catalog to the root, an absent one keeps it
	var raw map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		httpx.BadRequest(c, "body must be a JSON object")
		return
	}
	_, parentSet := raw["parent_id"]

	cat, err := h.tree.Update(c.Request.Context(), id, req.input(parentSet))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Catalog updated successfully", "data": cat})
}

// UpdateCatalogOrder changes the sort order of a catalog
// @Summary Update catalog order
// @Tags admin-catalogs
// @Accept json
// @Produce json
// @Param id path int true "Catalog ID"
// @Param order query int true "New sort order"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs/{id}/order [patch]
func (h *Handler) UpdateCatalogOrder(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	order, err := strconv.Atoi(c.Query("order"))
	if err != nil {
		httpx.BadRequest(c, "order must be an integer")
		return
	}
	cat, err := h.tree.UpdateOrder(c.Request.Context(), id, order)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, cat)
}

// DeleteCatalog deactivates a catalog without active children or documents
// @Summary Delete catalog
// @Tags admin-catalogs
// @Produce json
// @Param id path int true "Catalog ID"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Has children or documents"
// @Router /api/admin/catalogs/{id} [delete]
func (h *Handler) DeleteCatalog(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	if err := h.tree.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Catalog deleted successfully"})
}

// InvalidateCatalogCache drops every cached descendant set
// @Summary Invalidate descendant cache
// @Tags admin-catalogs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/catalogs/cache/invalidate [post]
func (h *Handler) InvalidateCatalogCache(c *gin.Context) {
	h.resolver.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Catalog cache invalidated"})
}

func (r catalogRequest) input(parentSet bool) catalog.CatalogInput {
	return catalog.CatalogInput{
		Name:             r.Name,
		Description:      r.Description,
		LevelDescription: r.LevelDescription,
		Icon:             r.Icon,
		SortOrder:        r.SortOrder,
		Active:           r.Active,
		AcceptsDocuments: r.AcceptsDocuments,
		ParentSet:        parentSet,
		ParentID:         r.ParentID,
	}
}
