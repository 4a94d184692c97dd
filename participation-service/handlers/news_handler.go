package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"transparencia-backend/participation-service/services"
	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/utils/query"
)

// ActiveRequest toggles the visibility of a news item or social link
type ActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ListPublishedNews returns a page of active news
// @Summary List news
// @Tags public-news
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Title, summary or content"
// @Param order_by query string false "published_at or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} map[string]interface{}
// @Router /api/public/news [get]
func (h *Handler) ListPublishedNews(c *gin.Context) {
	active := true
	h.listNews(c, &active)
}

// ListNews returns a page of news for the admin panel
// @Summary List news (admin)
// @Tags admin-news
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Title, summary or content"
// @Param active query bool false "Active flag"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/news [get]
func (h *Handler) ListNews(c *gin.Context) {
	h.listNews(c, optionalBool(c.Query("active")))
}

func (h *Handler) listNews(c *gin.Context, active *bool) {
	params := query.ParseQueryParams(c, "published_at")
	items, pagination, err := h.news.List(c.Request.Context(), services.NewsFilter{
		Active:  active,
		Search:  params.Search,
		OrderBy: c.Query("order_by"),
		Order:   c.Query("order"),
		Page:    params.Page,
		Limit:   params.Limit,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items, "pagination": pagination})
}

// GetCarousel returns the news of the home carousel
// @Summary News carousel
// @Tags public-news
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/public/news/carousel [get]
func (h *Handler) GetCarousel(c *gin.Context) {
	items, err := h.news.Carousel(c.Request.Context(), services.CarouselSize)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, items)
}

// GetRecentNews returns the latest active news
// @Summary Recent news
// @Tags public-news
// @Produce json
// @Param limit query int false "Limit" default(5)
// @Success 200 {object} map[string]interface{}
// @Router /api/public/news/recent [get]
func (h *Handler) GetRecentNews(c *gin.Context) {
	items, err := h.news.Recent(c.Request.Context(), queryInt(c, "limit", services.CarouselSize))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, items)
}

// GetPublishedNews returns an active news item
// @Summary Get news
// @Tags public-news
// @Produce json
// @Param id path int true "News ID"
// @Success 200 {object} participation.News
// @Failure 404 {object} map[string]string
// @Router /api/public/news/{id} [get]
func (h *Handler) GetPublishedNews(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	news, err := h.news.GetPublished(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, news)
}

// GetNewsImage streams the stored image of a news item
// @Summary News image
// @Tags public-news
// @Produce octet-stream
// @Param id path int true "News ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /api/public/news/{id}/image [get]
func (h *Handler) GetNewsImage(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	rc, info, err := h.news.OpenImage(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

// GetNews returns a news item regardless of its visibility
// @Summary Get news (admin)
// @Tags admin-news
// @Produce json
// @Security BearerAuth
// @Param id path int true "News ID"
// @Success 200 {object} participation.News
// @Failure 404 {object} map[string]string
// @Router /api/admin/news/{id} [get]
func (h *Handler) GetNews(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	news, err := h.news.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, news)
}

// CountNews counts news items
// @Summary Count news
// @Tags admin-news
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Active flag"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/news/count [get]
func (h *Handler) CountNews(c *gin.Context) {
	n, err := h.news.Count(c.Request.Context(), optionalBool(c.Query("active")))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, gin.H{"count": n})
}

// CreateNews publishes a news item with an optional image
// @Summary Create news
// @Tags admin-news
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param summary formData string false "Summary"
// @Param content formData string false "Content"
// @Param link formData string false "Link"
// @Param image_url formData string false "External image URL"
// @Param published_at formData string false "RFC3339 or YYYY-MM-DD"
// @Param active formData bool false "Active"
// @Param image formData file false "jpg, jpeg, png, gif or webp up to 5MB"
// @Success 201 {object} participation.News
// @Failure 400 {object} map[string]string
// @Router /api/admin/news [post]
func (h *Handler) CreateNews(c *gin.Context) {
	in, err := newsForm(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	image, closeImage, err := imageInput(c)
	if err != nil {
		httpx.BadRequest(c, "image could not be read")
		return
	}
	defer closeImage()

	news, err := h.news.Create(c.Request.Context(), in, image)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "News created successfully", "data": news})
}

// UpdateNews changes a news item, replacing its image when one is uploaded
// @Summary Update news
// @Tags admin-news
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "News ID"
// @Param title formData string false "Title"
// @Param image formData file false "New image"
// @Success 200 {object} participation.News
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/admin/news/{id} [patch]
func (h *Handler) UpdateNews(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	in, err := newsForm(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	image, closeImage, err := imageInput(c)
	if err != nil {
		httpx.BadRequest(c, "image could not be read")
		return
	}
	defer closeImage()

	news, err := h.news.Update(c.Request.Context(), id, in, image)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, news)
}

// SetNewsActive shows or hides a news item
// @Summary Toggle news
// @Tags admin-news
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "News ID"
// @Param request body ActiveRequest true "Active flag"
// @Success 200 {object} participation.News
// @Router /api/admin/news/{id}/active [patch]
func (h *Handler) SetNewsActive(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	news, err := h.news.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ok(c, news)
}

// DeleteNews removes a news item and its image
// @Summary Delete news
// @Tags admin-news
// @Produce json
// @Security BearerAuth
// @Param id path int true "News ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/news/{id} [delete]
func (h *Handler) DeleteNews(c *gin.Context) {
	id, valid := httpx.ParseUintParam(c, "id")
	if !valid {
		return
	}
	if err := h.news.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "News deleted successfully"})
}

func newsForm(c *gin.Context) (services.NewsInput, error) {
	var in services.NewsInput
	if v, ok := c.GetPostForm("title"); ok {
		in.Title = &v
	}
	if v, ok := c.GetPostForm("summary"); ok {
		in.Summary = &v
	}
	if v, ok := c.GetPostForm("content"); ok {
		in.Content = &v
	}
	if v, ok := c.GetPostForm("link"); ok {
		in.Link = &v
	}
	if v, ok := c.GetPostForm("image_url"); ok {
		in.ImageURL = &v
	}
	if raw := c.PostForm("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return in, &catalog.ValidationError{Field: "active", Message: "must be true or false"}
		}
		in.Active = &active
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

// imageInput opens the optional "image" form file. The returned func closes it.
func imageInput(c *gin.Context) (*services.ImageInput, func(), error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, func() {}, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &services.ImageInput{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}, closer(file), nil
}

func closer(f multipart.File) func() {
	return func() { f.Close() }
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
