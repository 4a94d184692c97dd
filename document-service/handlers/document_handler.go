package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"transparencia-backend/document-service/services"
	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
	docUtils "transparencia-backend/shared/utils/document"
	"transparencia-backend/shared/utils/query"
)

// SearchDocuments runs the catalog-scoped document search
// @Summary Search documents
// @Description Active documents of a catalog subtree filtered by text, fiscal year, type, periodicity and institution
// @Tags public-documents
// @Produce json
// @Param q query string false "Text in name or description, at least 2 characters"
// @Param catalog_id query int false "Catalog whose subtree is searched"
// @Param categories query string false "Comma separated catalog ids, overrides catalog_id"
// @Param fiscal_year query int false "Fiscal year"
// @Param document_type_id query int false "Document type"
// @Param periodicity query string false "mensual, trimestral, semestral or anual"
// @Param institution query string false "Institution substring"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param sort_by query string false "name, published_at, fiscal_year or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/public/documents [get]
func (h *Handler) SearchDocuments(c *gin.Context) {
	params, err := parseSearchParams(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	result, err := h.search.Search(c.Request.Context(), params)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       docUtils.BuildDocumentResponses(result.Documents, h.baseURL),
		"pagination": result.Pagination,
	})
}

// GetSearchFilters lists the values the search form can filter on
// @Summary Search filters
// @Tags public-documents
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/documents/filters [get]
func (h *Handler) GetSearchFilters(c *gin.Context) {
	filters, err := h.search.AvailableFilters(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, filters)
}

// GetRecentDocuments returns the latest documents
// @Summary Recent documents
// @Tags public-documents
// @Produce json
// @Param limit query int false "Maximum items" default(10)
// @Success 200 {object} map[string]interface{}
// @Router /api/public/documents/recent [get]
func (h *Handler) GetRecentDocuments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	docs, err := h.search.Recent(c.Request.Context(), limit)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, docUtils.BuildDocumentResponses(docs, h.baseURL))
}

// GetDocumentStats returns published document counts
// @Summary Document statistics
// @Tags public-documents
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/documents/stats [get]
func (h *Handler) GetDocumentStats(c *gin.Context) {
	stats, err := h.search.Statistics(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, stats)
}

// GetDocument returns one published document
// @Summary Get document
// @Tags public-documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/public/documents/{id} [get]
func (h *Handler) GetDocument(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	doc, err := h.search.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, docUtils.BuildDocumentResponse(doc, h.baseURL))
}

// DownloadDocument streams the file as an attachment
// @Summary Download document
// @Tags public-documents
// @Produce octet-stream
// @Param id path int true "Document ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /api/public/documents/{id}/download [get]
func (h *Handler) DownloadDocument(c *gin.Context) {
	h.serveFile(c, "attachment")
}

// ViewDocument streams the file for inline display
// @Summary View document
// @Tags public-documents
// @Produce octet-stream
// @Param id path int true "Document ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /api/public/documents/{id}/view [get]
func (h *Handler) ViewDocument(c *gin.Context) {
	h.serveFile(c, "inline")
}

func (h *Handler) serveFile(c *gin.Context, disposition string) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()

	doc, err := h.search.Get(ctx, id)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	rc, info, err := h.documents.Open(ctx, doc)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	defer rc.Close()

	filename := docUtils.DownloadFileName(doc.Name, doc.FileExtension)
	contentType := docUtils.MimeType("."+doc.FileExtension, doc.MimeType)

	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`%s; filename="%s"`, disposition, filename),
		"Cache-Control":       "private, max-age=3600",
	})
}

// ListDocuments returns a page of documents for the admin panel
// @Summary List documents
// @Tags admin-documents
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Text in name or description"
// @Param catalog_id query int false "Catalog"
// @Param fiscal_year query int false "Fiscal year"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	params := query.ParseQueryParams(c, "created_at")
	catalogID, err := httpx.OptionalUint(c.Query("catalog_id"), "catalog_id")
	if err != nil {
		httpx.Error(c, err)
		return
	}
	fiscalYear, err := httpx.OptionalInt(c.Query("fiscal_year"), "fiscal_year")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	result, err := h.documents.List(c.Request.Context(), services.ListParams{
		Page:       params.Page,
		PageSize:   params.Limit,
		Search:     params.Search,
		CatalogID:  catalogID,
		FiscalYear: fiscalYear,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       docUtils.BuildDocumentResponses(result.Documents, h.baseURL),
		"pagination": result.Pagination,
	})
}

// AdminGetDocument returns one document
// @Summary Get document
// @Tags admin-documents
// @Produce json
// @Param id path int true "Document ID"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/documents/{id} [get]
func (h *Handler) AdminGetDocument(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, doc)
}

// CountDocuments returns the number of published documents
// @Summary Count documents
// @Tags admin-documents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/documents/stats [get]
func (h *Handler) CountDocuments(c *gin.Context) {
	n, err := h.documents.Count(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, gin.H{"total": n})
}

// GetCatalogDocumentStats counts the documents of a catalog per fiscal year
// @Summary Catalog document statistics
// @Tags admin-documents
// @Produce json
// @Param catalogId path int true "Catalog ID"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/documents/stats/{catalogId} [get]
func (h *Handler) GetCatalogDocumentStats(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "catalogId")
	if !valid {
		return
	}
	stats, err := h.documents.StatsByCatalog(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, stats)
}

// UploadDocument uploads a new document
// @Summary Upload a new document
// @Description Upload a file into a catalog that accepts documents
// @Tags admin-documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Param name formData string true "Document name"
// @Param catalog_id formData int true "Catalog ID"
// @Param description formData string false "Description"
// @Param document_type_id formData int false "Document type"
// @Param fiscal_year formData int false "Fiscal year, defaults to the current year"
// @Param periodicity formData string false "Periodicity"
// @Param institution formData string false "Issuing institution"
// @Param published_at formData string false "Publication date (RFC3339 or YYYY-MM-DD)"
// @Security BearerAuth
// @Success 201 {object} map[string]interface{} "Document uploaded successfully"
// @Failure 400 {object} map[string]string "Invalid request data"
// @Failure 404 {object} map[string]string "Catalog not found"
// @Failure 409 {object} map[string]string "Catalog does not accept documents"
// @Router /api/admin/documents [post]
func (h *Handler) UploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		httpx.BadRequest(c, "file is required")
		return
	}

	in, err := documentForm(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		httpx.BadRequest(c, "file could not be read")
		return
	}
	defer file.Close()

	doc, err := h.documents.Create(c.Request.Context(), in, &services.FileInput{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}, httpx.CurrentUserIDPtr(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Document uploaded successfully",
		"data":    docUtils.BuildDocumentResponse(doc, h.baseURL),
	})
}

// UpdateDocument updates metadata and optionally replaces the file
// @Summary Update document
// @Tags admin-documents
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Document ID"
// @Param file formData file false "Replacement file"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/documents/{id} [put]
func (h *Handler) UpdateDocument(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}

	in, err := documentForm(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	var input *services.FileInput
	if header, err := c.FormFile("file"); err == nil {
		file, err := header.Open()
		if err != nil {
			httpx.BadRequest(c, "file could not be read")
			return
		}
		defer file.Close()
		input = &services.FileInput{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	doc, err := h.documents.Update(c.Request.Context(), id, in, input, httpx.CurrentUserIDPtr(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	logger.L().Info("document updated", "document_id", id, "file_replaced", input != nil)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Document updated successfully",
		"data":    docUtils.BuildDocumentResponse(doc, h.baseURL),
	})
}

// DeleteDocument hides a document
// @Summary Delete document
// @Tags admin-documents
// @Produce json
// @Param id path int true "Document ID"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/documents/{id} [delete]
func (h *Handler) DeleteDocument(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), id, httpx.CurrentUserIDPtr(c)); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Document deleted successfully"})
}

func parseSearchParams(c *gin.Context) (catalog.SearchParams, error) {
	params := catalog.SearchParams{
		Query:       c.Query("q"),
		Periodicity: strings.TrimSpace(c.Query("periodicity")),
		Institution: c.Query("institution"),
		SortBy:      c.Query("sort_by"),
		Order:       c.Query("order"),
	}
	if params.Periodicity != "" && !document.ValidPeriodicity(params.Periodicity) {
		return params, &catalog.ValidationError{Field: "periodicity", Message: "must be one of mensual, trimestral, semestral, anual"}
	}

	var err error
	if params.CatalogID, err = httpx.OptionalUint(c.Query("catalog_id"), "catalog_id"); err != nil {
		return params, err
	}
	if params.DocumentTypeID, err = httpx.OptionalUint(c.Query("document_type_id"), "document_type_id"); err != nil {
		return params, err
	}
	if params.FiscalYear, err = httpx.OptionalInt(c.Query("fiscal_year"), "fiscal_year"); err != nil {
		return params, err
	}
	if params.Catalogs, err = parseIDList(c.QueryArray("categories")); err != nil {
		return params, err
	}

	if page, err := httpx.OptionalInt(c.Query("page"), "page"); err != nil {
		return params, err
	} else if page != nil {
		params.Page = *page
	}
	if size, err := httpx.OptionalInt(c.Query("page_size"), "page_size"); err != nil {
		return params, err
	} else if size != nil {
		params.PageSize = *size
	}
	return params, nil
}

// parseIDList accepts repeated values and comma separated lists
func parseIDList(values []string) ([]uint, error) {
	var ids []uint
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return nil, &catalog.ValidationError{Field: "categories", Message: "must be a list of positive integers"}
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}

// documentForm reads the optional document fields of a multipart form
func documentForm(c *gin.Context) (services.DocumentInput, error) {
	var in services.DocumentInput
	var err error

	if v, ok := c.GetPostForm("name"); ok {
		in.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		in.Description = &v
	}
	if v, ok := c.GetPostForm("periodicity"); ok {
		in.Periodicity = &v
	}
	if v, ok := c.GetPostForm("institution"); ok {
		in.Institution = &v
	}
	if in.CatalogID, err = httpx.OptionalUint(c.PostForm("catalog_id"), "catalog_id"); err != nil {
		return in, err
	}
	if in.DocumentTypeID, err = httpx.OptionalUint(c.PostForm("document_type_id"), "document_type_id"); err != nil {
		return in, err
	}
	if in.FiscalYear, err = httpx.OptionalInt(c.PostForm("fiscal_year"), "fiscal_year"); err != nil {
		return in, err
	}
	if raw := c.PostForm("published_at"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return in, &catalog.ValidationError{Field: "published_at", Message: "must be RFC3339 or YYYY-MM-DD"}
		}
		in.PublishedAt = &t
	}
	return in, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
