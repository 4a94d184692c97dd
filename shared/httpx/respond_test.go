package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia-backend/shared/catalog"
)

func recordError(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorMapping(t *testing.T) {
	code, body := recordError(t, fmt.Errorf("load: %w", &catalog.NotFoundError{Entity: "catalog", ID: 3}))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "catalog 3 not found", body["message"])

	code, body = recordError(t, fmt.Errorf("search: %w", fmt.Errorf("scope: %w", &catalog.NotFoundError{Entity: "document type", ID: 9})))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "document type 9 not found", body["message"])

	code, body = recordError(t, &catalog.ConflictError{Reason: catalog.ReasonChildren, Message: "has children"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "children", body["reason"])

	code, _ = recordError(t, &catalog.ValidationError{Field: "q", Message: "too short"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = recordError(t, errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body["message"], "connection reset")
}

func TestParseUintParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	_, ok := ParseUintParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c.Params = gin.Params{{Key: "id", Value: "12"}}
	id, ok := ParseUintParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(12), id)
}

func TestOptionalParsers(t *testing.T) {
	v, err := OptionalUint("", "catalog_id")
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = OptionalUint("7", "catalog_id")
	require.NoError(t, err)
	assert.Equal(t, uint(7), *v)

	_, err = OptionalUint("-1", "document_type_id")
	ve, ok := catalog.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "document_type_id", ve.Field)

	y, err := OptionalInt("2024", "fiscal_year")
	require.NoError(t, err)
	assert.Equal(t, 2024, *y)

	_, err = OptionalInt("dos mil", "fiscal_year")
	_, ok = catalog.AsValidation(err)
	assert.True(t, ok)
}
