package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"transparencia-backend/document-service/services"
	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/middleware"
)

// Handler serves the catalog and document endpoints
type Handler struct {
	db           *gorm.DB
	tree         *catalog.TreeStore
	resolver     *catalog.DescendantResolver
	availability *catalog.AvailabilityAggregator
	search       *catalog.DocumentSearch
	documents    *services.DocumentService
	baseURL      string
}

// Deps are the collaborators of Handler
type Deps struct {
	DB           *gorm.DB
	Tree         *catalog.TreeStore
	Resolver     *catalog.DescendantResolver
	Availability *catalog.AvailabilityAggregator
	Search       *catalog.DocumentSearch
	Documents    *services.DocumentService
	BaseURL      string
}

func New(d Deps) *Handler {
	return &Handler{
		db:           d.DB,
		tree:         d.Tree,
		resolver:     d.Resolver,
		availability: d.Availability,
		search:       d.Search,
		documents:    d.Documents,
		baseURL:      d.BaseURL,
	}
}

// RegisterRoutes mounts public and admin routes on r
func (h *Handler) RegisterRoutes(r gin.IRouter, validator middleware.TokenValidator) {
	public := r.Group("/api/public")
	{
		public.GET("/catalogs/roots", h.GetRootCatalogs)
		public.GET("/catalogs/search", h.SearchCatalogs)
		public.GET("/catalogs/:id/children", h.GetCatalogChildren)
		public.GET("/catalogs/:id/path", h.GetCatalogPath)
		public.GET("/document-types", h.GetDocumentTypes)
		public.GET("/periodicities", h.GetPeriodicities)

		public.GET("/documents", h.SearchDocuments)
		public.GET("/documents/filters", h.GetSearchFilters)
		public.GET("/documents/recent", h.GetRecentDocuments)
		public.GET("/documents/stats", h.GetDocumentStats)
		public.GET("/documents/:id", h.GetDocument)
		public.GET("/documents/:id/download", h.DownloadDocument)
		public.GET("/documents/:id/view", h.ViewDocument)
	}

	read := middleware.Protected(validator, models.PermReportView, models.PermRoleManage)
	manage := middleware.Protected(validator, models.PermRoleManage)

	catalogs := r.Group("/api/admin/catalogs")
	{
		catalogs.GET("", with(read, h.ListCatalogs)...)
		catalogs.GET("/tree", with(read, h.GetCatalogTree)...)
		catalogs.GET("/search", with(read, h.AdminSearchCatalogs)...)
		catalogs.GET("/count", with(read, h.CountCatalogs)...)
		catalogs.GET("/:id", with(read, h.GetCatalogWithChildren)...)
		catalogs.GET("/:id/availability", with(read, h.GetCatalogAvailability)...)
		catalogs.POST("", with(manage, h.CreateCatalog)...)
		catalogs.PUT("/:id", with(manage, h.UpdateCatalog)...)
		catalogs.PATCH("/:id/order", with(manage, h.UpdateCatalogOrder)...)
		catalogs.DELETE("/:id", with(manage, h.DeleteCatalog)...)
		catalogs.POST("/cache/invalidate", with(manage, h.InvalidateCatalogCache)...)
	}

	documents := r.Group("/api/admin/documents")
	{
		documents.GET("", with(read, h.ListDocuments)...)
		documents.GET("/recent", with(read, h.GetRecentDocuments)...)
		documents.GET("/stats", with(read, h.CountDocuments)...)
		documents.GET("/stats/:catalogId", with(read, h.GetCatalogDocumentStats)...)
		documents.GET("/:id", with(read, h.AdminGetDocument)...)
		documents.POST("", with(middleware.Protected(validator, models.PermDocumentUpload), h.UploadDocument)...)
		documents.PUT("/:id", with(middleware.Protected(validator, models.PermDocumentEdit), h.UpdateDocument)...)
		documents.DELETE("/:id", with(middleware.Protected(validator, models.PermDocumentDelete), h.DeleteDocument)...)
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
