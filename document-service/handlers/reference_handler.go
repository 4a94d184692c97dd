package handlers

import (
	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/httpx"
)

// DocumentTypeView adds the primary extension to a document type
type DocumentTypeView struct {
	document.DocumentType
	Extension string `json:"extension"`
}

// GetDocumentTypes lists the active document types
// @Summary Document types
// @Tags public-catalogs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/document-types [get]
func (h *Handler) GetDocumentTypes(c *gin.Context) {
	var types []document.DocumentType
	if err := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).Order("name ASC").Find(&types).Error; err != nil {
		httpx.Error(c, err)
		return
	}

	views := make([]DocumentTypeView, len(types))
	for i := range types {
		views[i] = DocumentTypeView{DocumentType: types[i], Extension: types[i].PrimaryExtension()}
	}
	ok(c, views)
}

// GetPeriodicities lists the active periodicities
// @Summary Periodicities
// @Tags public-catalogs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/periodicities [get]
func (h *Handler) GetPeriodicities(c *gin.Context) {
	periodicities := make([]document.Periodicity, 0)
	if err := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).Order("months_per_period ASC").Find(&periodicities).Error; err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, periodicities)
}
