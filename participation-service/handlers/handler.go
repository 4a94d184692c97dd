package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"transparencia-backend/participation-service/services"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/middleware"
)

// Handler serves the participation inbox, news and social link endpoints
type Handler struct {
	messages *services.MessageService
	news     *services.NewsService
	social   *services.SocialLinkService
	email    *services.EmailService
	hub      *services.Hub
}

// Deps are the collaborators of Handler
type Deps struct {
	Messages *services.MessageService
	News     *services.NewsService
	Social   *services.SocialLinkService
	Email    *services.EmailService
	Hub      *services.Hub
}

func New(d Deps) *Handler {
	return &Handler{
		messages: d.Messages,
		news:     d.News,
		social:   d.Social,
		email:    d.Email,
		hub:      d.Hub,
	}
}

// RegisterRoutes mounts public and admin routes on r. submit throttles the
// public message form.
func (h *Handler) RegisterRoutes(r gin.IRouter, validator middleware.TokenValidator, submit gin.HandlerFunc) {
	public := r.Group("/api/public")
	{
		messages := []gin.HandlerFunc{h.CreateMessage}
		if submit != nil {
			messages = append([]gin.HandlerFunc{submit}, messages...)
		}
		public.POST("/participation/messages", messages...)
		public.GET("/participation/messages/:folio", h.GetMessageByFolio)

		public.GET("/news", h.ListPublishedNews)
		public.GET("/news/carousel", h.GetCarousel)
		public.GET("/news/recent", h.GetRecentNews)
		public.GET("/news/:id", h.GetPublishedNews)
		public.GET("/news/:id/image", h.GetNewsImage)

		public.GET("/social-links", h.ListActiveSocialLinks)
	}

	// staff with any portal role may work the inbox and the news
	staff := middleware.Protected(validator, models.PermReportView, models.PermDocumentUpload, models.PermDocumentEdit, models.PermRoleManage)
	admin := middleware.Protected(validator, models.PermRoleManage)

	inbox := r.Group("/api/admin/participation/messages")
	{
		inbox.GET("", with(staff, h.ListMessages)...)
		inbox.GET("/stats", with(staff, h.GetMessageStats)...)
		inbox.GET("/recent", with(staff, h.GetRecentMessages)...)
		inbox.GET("/count", with(staff, h.CountMessages)...)
		inbox.GET("/:id", with(staff, h.GetMessage)...)
		inbox.PATCH("/:id/respond", with(staff, h.RespondMessage)...)
		inbox.PATCH("/:id/status", with(staff, h.ChangeMessageStatus)...)
		inbox.DELETE("/:id", with(admin, h.DeleteMessage)...)
	}

	news := r.Group("/api/admin/news")
	{
		news.GET("", with(staff, h.ListNews)...)
		news.GET("/count", with(staff, h.CountNews)...)
		news.GET("/:id", with(staff, h.GetNews)...)
		news.POST("", with(staff, h.CreateNews)...)
		news.PATCH("/:id", with(staff, h.UpdateNews)...)
		news.PATCH("/:id/active", with(staff, h.SetNewsActive)...)
		news.DELETE("/:id", with(admin, h.DeleteNews)...)
	}

	social := r.Group("/api/admin/social-links")
	{
		social.GET("", with(staff, h.ListSocialLinks)...)
		social.GET("/count", with(staff, h.CountSocialLinks)...)
		social.GET("/:id", with(staff, h.GetSocialLink)...)
		social.POST("", with(staff, h.CreateSocialLink)...)
		social.PATCH("/:id", with(staff, h.UpdateSocialLink)...)
		social.PATCH("/:id/active", with(staff, h.SetSocialLinkActive)...)
		social.DELETE("/:id", with(admin, h.DeleteSocialLink)...)
	}

	mail := r.Group("/api/internal/mail")
	{
		mail.POST("/password-reset", with(middleware.Protected(validator, models.PermUserChangePassword), h.SendPasswordResetMail)...)
	}

	r.GET("/ws/participation", with(append([]gin.HandlerFunc{middleware.QueryToken()}, staff...), h.HandleWebSocket)...)
}

func with(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, h)
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// optionalBool reads "true" or "false", anything else is unset
func optionalBool(raw string) *bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return v
}
