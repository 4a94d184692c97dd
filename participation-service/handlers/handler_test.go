package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pconfig "transparencia-backend/participation-service/config"
	"transparencia-backend/participation-service/services"
	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/storage"
	utils "transparencia-backend/shared/utils/auth"
)

type outbox struct {
	mu   sync.Mutex
	sent []services.Email
}

func (o *outbox) Send(_ context.Context, email services.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, email)
	return nil
}

func (o *outbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, e := range o.sent {
		out = append(out, e.To...)
	}
	return out
}

type env struct {
	router *gin.Engine
	issuer *utils.TokenIssuer
	store  *storage.MemoryStore
	mail   *outbox
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t, &participation.Message{}, &participation.News{}, &participation.SocialLink{})
	store := storage.NewMemoryStore()
	mail := &outbox{}

	email := services.NewEmailService(mail, services.NewTemplateService(services.TemplateFS("")), pconfig.MailConfig{
		Enabled:            true,
		QueueSize:          20,
		RetryAttempts:      1,
		InternalRecipients: []string{"transparencia@morelos.gob.mx"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go email.Start(ctx)

	hub := services.NewHub("http://localhost:3000")
	go hub.Run(ctx)

	h := New(Deps{
		Messages: services.NewMessageService(db, email, hub, nil, "Unidad de Transparencia Fiscal"),
		News: services.NewNewsService(db, store, services.ImageLimits{
			MaxBytes:          1 << 20,
			AllowedExtensions: []string{".png", ".jpg"},
		}, "http://localhost:8000"),
		Social: services.NewSocialLinkService(db),
		Email:  email,
		Hub:    hub,
	})

	issuer := utils.NewTokenIssuer("test-secret", time.Hour)
	r := gin.New()
	h.RegisterRoutes(r, issuer, nil)
	return &env{router: r, issuer: issuer, store: store, mail: mail}
}

func (e *env) token(t *testing.T, perms ...string) string {
	t.Helper()
	permissions := make([]models.Permission, len(perms))
	for i, p := range perms {
		permissions[i] = models.Permission{Code: p}
	}
	token, _, err := e.issuer.Issue(&models.User{
		ID:    uuid.New(),
		Email: "enlace@morelos.gob.mx",
		Roles: []models.Role{{Name: "ENLACE", Active: true, Permissions: permissions}},
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *env) do(method, path, auth, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) json(method, path, auth, body string) *httptest.ResponseRecorder {
	return e.do(method, path, auth, "application/json", bytes.NewBufferString(body))
}

func (e *env) form(method, path, auth string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, _ := mw.CreateFormFile("image", filename)
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	return e.do(method, path, auth, mw.FormDataContentType(), &buf)
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
}

const citizenMessage = `{
	"full_name": "María López",
	"email": "maria@example.com",
	"subject": "Presupuesto",
	"body": "¿Dónde consulto el presupuesto 2024?"
}`

func TestCitizenMessageLifecycle(t *testing.T) {
	e := newEnv(t)

	w := e.json(http.MethodPost, "/api/public/participation/messages", "", citizenMessage)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt services.Receipt
	decode(t, w, &receipt)
	assert.Regexp(t, `^MSG-\d{6}-\d{3}$`, receipt.Folio)

	w = e.json(http.MethodGet, "/api/public/participation/messages/"+receipt.Folio, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status services.FolioStatus
	decode(t, w, &status)
	assert.Equal(t, participation.StatusPending, status.Status)

	require.Eventually(t, func() bool { return len(e.mail.recipients()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"maria@example.com", "transparencia@morelos.gob.mx"}, e.mail.recipients())

	assert.Equal(t, http.StatusUnauthorized, e.json(http.MethodGet, "/api/admin/participation/messages", "", "").Code)

	staff := e.token(t, models.PermReportView)
	w = e.json(http.MethodGet, "/api/admin/participation/messages?search=presupuesto", staff, "")
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []participation.Message
	decode(t, w, &inbox)
	require.Len(t, inbox, 1)
	id := inbox[0].ID

	w = e.json(http.MethodPatch, fmt.Sprintf("/api/admin/participation/messages/%s/respond", id), staff, `{"response":"Está en la sección de presupuesto."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.json(http.MethodPatch, fmt.Sprintf("/api/admin/participation/messages/%s/respond", id), staff, `{"response":"Otra vez"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Eventually(t, func() bool { return len(e.mail.recipients()) == 3 }, 2*time.Second, 5*time.Millisecond)

	w = e.json(http.MethodGet, "/api/admin/participation/messages/stats", staff, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.MessageStats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.Answered)

	w = e.json(http.MethodPatch, fmt.Sprintf("/api/admin/participation/messages/%s/status", id), staff, `{"status":"archivado"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodGet, "/api/admin/participation/messages/not-a-uuid", staff, "").Code)
	assert.Equal(t, http.StatusNotFound, e.json(http.MethodGet, "/api/admin/participation/messages/"+uuid.NewString(), staff, "").Code)

	path := fmt.Sprintf("/api/admin/participation/messages/%s", id)
	assert.Equal(t, http.StatusForbidden, e.json(http.MethodDelete, path, staff, "").Code)
	assert.Equal(t, http.StatusOK, e.json(http.MethodDelete, path, e.token(t, models.PermRoleManage), "").Code)
	assert.Equal(t, http.StatusNotFound, e.json(http.MethodGet, "/api/public/participation/messages/"+receipt.Folio, "", "").Code)
}

func TestCitizenMessageValidation(t *testing.T) {
	e := newEnv(t)

	w := e.json(http.MethodPost, "/api/public/participation/messages", "", `{"full_name":"Ana","email":"no-es-correo","subject":"x","body":"y"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.json(http.MethodPost, "/api/public/participation/messages", "", `{"full_name":"Ana","email":"ana@example.com","subject":"x","body":"y","channel":"fax"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.json(http.MethodGet, "/api/public/participation/messages/MSG-000000-000", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewsWithImage(t *testing.T) {
	e := newEnv(t)
	editor := e.token(t, models.PermDocumentUpload)

	w := e.form(http.MethodPost, "/api/admin/news", editor, map[string]string{
		"title":        "Informe trimestral",
		"summary":      "Resultados del primer trimestre",
		"published_at": "2025-03-31",
	}, "portada.png", "png-bytes")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var news participation.News
	decode(t, w, &news)
	assert.Equal(t, fmt.Sprintf("http://localhost:8000/api/public/news/%d/image", news.ID), news.ImageURL)
	require.Len(t, e.store.Keys(), 1)
	assert.True(t, strings.HasPrefix(e.store.Keys()[0], "noticias/"))

	w = e.json(http.MethodGet, fmt.Sprintf("/api/public/news/%d/image", news.ID), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))

	w = e.json(http.MethodGet, "/api/public/news/carousel", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var carousel []services.CarouselItem
	decode(t, w, &carousel)
	require.Len(t, carousel, 1)
	assert.Equal(t, "Marzo 2025", carousel[0].FormattedDate)

	w = e.form(http.MethodPost, "/api/admin/news", editor, map[string]string{"title": "Sin imagen válida"}, "informe.pdf", "pdf")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.form(http.MethodPost, "/api/admin/news", editor, map[string]string{"title": "Fecha", "published_at": "ayer"}, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.json(http.MethodPatch, fmt.Sprintf("/api/admin/news/%d/active", news.ID), editor, `{"active":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, e.json(http.MethodGet, fmt.Sprintf("/api/public/news/%d", news.ID), "", "").Code)
	assert.Equal(t, http.StatusOK, e.json(http.MethodGet, fmt.Sprintf("/api/admin/news/%d", news.ID), editor, "").Code)

	w = e.json(http.MethodGet, "/api/admin/news/count?active=false", editor, "")
	require.Equal(t, http.StatusOK, w.Code)
	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, w, &count)
	assert.Equal(t, int64(1), count.Count)

	path := fmt.Sprintf("/api/admin/news/%d", news.ID)
	assert.Equal(t, http.StatusForbidden, e.json(http.MethodDelete, path, editor, "").Code)
	assert.Equal(t, http.StatusOK, e.json(http.MethodDelete, path, e.token(t, models.PermRoleManage), "").Code)
	assert.Empty(t, e.store.Keys())
}

func TestSocialLinkEndpoints(t *testing.T) {
	e := newEnv(t)
	editor := e.token(t, models.PermDocumentEdit)

	w := e.json(http.MethodPost, "/api/admin/social-links", editor, `{"name":"Facebook","url":"https://facebook.com/morelos","sort_order":1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var link participation.SocialLink
	decode(t, w, &link)

	w = e.json(http.MethodPost, "/api/admin/social-links", editor, `{"name":"X","url":"ftp://x.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.json(http.MethodGet, "/api/public/social-links", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var links []participation.SocialLink
	decode(t, w, &links)
	require.Len(t, links, 1)

	w = e.json(http.MethodPatch, fmt.Sprintf("/api/admin/social-links/%d/active", link.ID), editor, `{"active":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, e.json(http.MethodGet, "/api/public/social-links", "", ""), &links)
	assert.Empty(t, links)

	w = e.json(http.MethodPatch, fmt.Sprintf("/api/admin/social-links/%d/active", link.ID), editor, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusNotFound, e.json(http.MethodGet, "/api/admin/social-links/99", editor, "").Code)
}

func TestPasswordResetMail(t *testing.T) {
	e := newEnv(t)
	body := `{"email":"carga@morelos.gob.mx","name":"Carga","temporary_password":"a1b2c3d4e5f6"}`

	assert.Equal(t, http.StatusForbidden, e.json(http.MethodPost, "/api/internal/mail/password-reset", e.token(t, models.PermReportView), body).Code)

	w := e.json(http.MethodPost, "/api/internal/mail/password-reset", e.token(t, models.PermUserChangePassword), body)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool { return len(e.mail.recipients()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"carga@morelos.gob.mx"}, e.mail.recipients())
}
