package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models/auth"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
)

func envelopeRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpx.KeyRequestID, "req-1")
		c.Next()
	}, UnifiedResponseMiddleware())

	r.GET("/api/public/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"message":    "Documentos encontrados",
			"data":       []int{1, 2},
			"pagination": gin.H{"page": 1, "total": 2},
		})
	})
	r.GET("/api/public/catalogs/9/path", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found", "code": "CATALOG_NOT_FOUND"})
	})
	r.POST("/api/admin/news", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": 3})
	})
	r.GET("/api/public/documents/1/download", func(c *gin.Context) {
		c.Header("Content-Disposition", `attachment; filename="informe.pdf"`)
		c.Data(http.StatusOK, "application/pdf", []byte("%PDF-1.4"))
	})
	r.DELETE("/api/admin/catalogs/cache", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) UnifiedResponse {
	t.Helper()
	var out UnifiedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUnifiedResponseWrapsSuccess(t *testing.T) {
	w := serve(envelopeRouter(), http.MethodGet, "/api/public/documents")
	require.Equal(t, http.StatusOK, w.Code)

	out := decodeEnvelope(t, w)
	assert.True(t, out.Success)
	assert.Equal(t, "Documentos encontrados", out.Message)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, out.Data)
	assert.Equal(t, map[string]interface{}{"page": float64(1), "total": float64(2)}, out.Pagination)
	require.NotNil(t, out.Meta)
	assert.Equal(t, "req-1", out.Meta.RequestID)
	assert.Equal(t, http.MethodGet, out.Meta.Method)
	assert.Equal(t, "/api/public/documents", out.Meta.Path)
	assert.Nil(t, out.Error)
}

func TestUnifiedResponseWrapsBareObject(t *testing.T) {
	w := serve(envelopeRouter(), http.MethodPost, "/api/admin/news")
	require.Equal(t, http.StatusCreated, w.Code)

	out := decodeEnvelope(t, w)
	assert.True(t, out.Success)
	assert.Equal(t, "Record created successfully", out.Message)
	assert.Equal(t, map[string]interface{}{"id": float64(3)}, out.Data)
}

func TestUnifiedResponseWrapsErrors(t *testing.T) {
	w := serve(envelopeRouter(), http.MethodGet, "/api/public/catalogs/9/path")
	require.Equal(t, http.StatusNotFound, w.Code)

	out := decodeEnvelope(t, w)
	assert.False(t, out.Success)
	assert.Equal(t, "Catalog not found", out.Message)
	require.NotNil(t, out.Error)
	assert.Equal(t, "CATALOG_NOT_FOUND", out.Error.Code)
	assert.Equal(t, "Catalog not found", out.Error.Details)
	assert.Nil(t, out.Data)
}

func TestUnifiedResponsePassesBinaryThrough(t *testing.T) {
	w := serve(envelopeRouter(), http.MethodGet, "/api/public/documents/1/download")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="informe.pdf"`, w.Header().Get("Content-Disposition"))
}

func TestUnifiedResponseKeepsNoContent(t *testing.T) {
	w := serve(envelopeRouter(), http.MethodDelete, "/api/admin/catalogs/cache")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestUnifiedResponseSkipsHealth(t *testing.T) {
	w := serve(envelopeRouter(), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestAccessLogWriterPersistsRequests(t *testing.T) {
	db := dbtest.New(t, &auth.AccessLog{})
	writer := NewAccessLogWriter(db, 16, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go writer.Start(ctx)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpx.KeyRequestID, "req-7")
		c.Next()
	}, writer.Middleware())
	r.GET("/api/public/news", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/api/public/news")
	serve(r, http.MethodGet, "/health")

	cancel()
	select {
	case <-writer.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("access log writer did not stop")
	}

	var logs []auth.AccessLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "/api/public/news", logs[0].Path)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
	assert.Equal(t, "req-7", logs[0].RequestID)
	assert.Nil(t, logs[0].UserID)
}

func TestAccessLogWriterDropsWhenFull(t *testing.T) {
	writer := NewAccessLogWriter(nil, 1, logger.Nop())
	assert.True(t, writer.Record(auth.AccessLog{Path: "/a"}))
	assert.False(t, writer.Record(auth.AccessLog{Path: "/b"}))
}
