// Package httpx holds the gin helpers shared by every service
package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/logger"
)

// Context keys set by the auth middleware
const (
	KeyUserID       = "user_id"
	KeyUserEmail    = "user_email"
	KeyClaims       = "claims"
	KeyRequestID    = "request_id"
	HeaderRequestID = "X-Request-ID"
)

// Error writes the gin.H error envelope matching err's kind
func Error(c *gin.Context, err error) {
	var nf *catalog.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": nf.Error()})
		return
	}
	if ce, ok := catalog.AsConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "message": ce.Message, "reason": ce.Reason})
		return
	}
	if ve, ok := catalog.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": ve.Error()})
		return
	}

	logger.L().Error("request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"request_id", c.GetString(KeyRequestID),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": "An unexpected error occurred"})
}

// BadRequest writes a 400 with message
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": message})
}

// ParseUintParam reads a positive integer path parameter, writing a 400 when it
// is malformed
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// OptionalUint parses an optional positive integer query or form value
func OptionalUint(raw, field string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, &catalog.ValidationError{Field: field, Message: "must be a positive integer"}
	}
	u := uint(v)
	return &u, nil
}

// OptionalInt parses an optional integer query value
func OptionalInt(raw, field string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &catalog.ValidationError{Field: field, Message: "must be an integer"}
	}
	return &v, nil
}

// CurrentUserID returns the authenticated user id, if any
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(KeyUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// CurrentUserIDPtr is CurrentUserID as a nullable column value
func CurrentUserIDPtr(c *gin.Context) *uuid.UUID {
	id, ok := CurrentUserID(c)
	if !ok {
		return nil
	}
	return &id
}
