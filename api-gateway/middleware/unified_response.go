package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/httpx"
)

// UnifiedResponse represents the standard API response format
type UnifiedResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
	Error      *ErrorInfo  `json:"error,omitempty"`
	Meta       *MetaInfo   `json:"meta"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string      `json:"code"`
	Details string      `json:"details"`
	Fields  interface{} `json:"fields,omitempty"`
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID     string `json:"request_id"`
	Timestamp     string `json:"timestamp"`
	ExecutionTime string `json:"execution_time"`
	Method        string `json:"method"`
	Path          string `json:"path"`
}

// envelopeWriter holds back JSON bodies so they can be rewritten once the
// handler finishes. Any other content type is passed through untouched. The
// choice is made on the first write, when the Content-Type is known.
type envelopeWriter struct {
	gin.ResponseWriter
	body      bytes.Buffer
	status    int
	decided   bool
	buffering bool
}

func (w *envelopeWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true
	w.buffering = isJSON(w.ResponseWriter.Header().Get("Content-Type"))
	if !w.buffering {
		w.ResponseWriter.WriteHeader(w.status)
	}
}

func (w *envelopeWriter) WriteHeader(status int) {
	if !w.decided {
		w.status = status
	}
}

func (w *envelopeWriter) WriteHeaderNow() {
	w.decide()
	if !w.buffering {
		w.ResponseWriter.WriteHeaderNow()
	}
}

func (w *envelopeWriter) Write(b []byte) (int, error) {
	w.decide()
	if w.buffering {
		return w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *envelopeWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *envelopeWriter) Flush() {
	w.decide()
	if !w.buffering {
		w.ResponseWriter.Flush()
	}
}

func (w *envelopeWriter) Status() int {
	if w.decided && !w.buffering {
		return w.ResponseWriter.Status()
	}
	return w.status
}

func (w *envelopeWriter) Written() bool {
	return w.decided || w.ResponseWriter.Written()
}

// UnifiedResponseMiddleware wraps every JSON response in UnifiedResponse.
// Downloads, images, websocket upgrades and the docs are left alone.
func UnifiedResponseMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if shouldSkipUnifiedResponse(c) {
			c.Next()
			return
		}

		start := time.Now()
		original := c.Writer
		w := &envelopeWriter{ResponseWriter: original, status: original.Status()}
		c.Writer = w

		c.Next()

		c.Writer = original
		if w.decided && !w.buffering {
			return
		}
		if !w.decided && w.status == http.StatusNoContent {
			original.WriteHeader(w.status)
			original.WriteHeaderNow()
			return
		}

		unified := transformToUnifiedResponse(c, w.body.Bytes(), w.status, time.Since(start))
		payload, err := json.Marshal(unified)
		if err != nil {
			original.WriteHeader(w.status)
			_, _ = original.Write(w.body.Bytes())
			return
		}
		original.Header().Set("Content-Type", "application/json; charset=utf-8")
		original.Header().Del("Content-Length")
		original.WriteHeader(w.status)
		_, _ = original.Write(payload)
	}
}

// transformToUnifiedResponse converts original response to unified format
func transformToUnifiedResponse(c *gin.Context, original []byte, statusCode int, executionTime time.Duration) UnifiedResponse {
	isSuccess := statusCode >= 200 && statusCode < 300

	unified := UnifiedResponse{
		Success: isSuccess,
		Message: getAutoMessage(c.Request.Method, statusCode, isSuccess),
		Meta: &MetaInfo{
			RequestID:     c.GetString(httpx.KeyRequestID),
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			ExecutionTime: fmt.Sprintf("%dms", executionTime.Milliseconds()),
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
		},
	}
	if len(bytes.TrimSpace(original)) == 0 {
		if !isSuccess {
			unified.Error = &ErrorInfo{Code: getErrorCode(statusCode), Details: unified.Message}
		}
		return unified
	}

	var originalData interface{}
	if err := json.Unmarshal(original, &originalData); err != nil {
		if !isSuccess {
			unified.Error = &ErrorInfo{Code: getErrorCode(statusCode), Details: string(original)}
		}
		return unified
	}

	dataMap, isMap := originalData.(map[string]interface{})
	if isSuccess {
		if !isMap {
			unified.Data = originalData
			return unified
		}
		if data, exists := dataMap["data"]; exists {
			unified.Data = data
		} else {
			unified.Data = originalData
		}
		if pagination, exists := dataMap["pagination"]; exists {
			unified.Pagination = pagination
		}
		if msg, ok := dataMap["message"].(string); ok && msg != "" {
			unified.Message = msg
		}
		return unified
	}

	unified.Error = &ErrorInfo{Code: getErrorCode(statusCode), Details: string(original)}
	if !isMap {
		return unified
	}
	if code, ok := dataMap["code"].(string); ok && code != "" {
		unified.Error.Code = code
	}
	if msg, ok := dataMap["message"].(string); ok && msg != "" {
		unified.Error.Details = msg
	} else if errMsg, exists := dataMap["error"]; exists {
		unified.Error.Details = fmt.Sprintf("%v", errMsg)
	}
	if errMsg, ok := dataMap["error"].(string); ok && errMsg != "" {
		unified.Message = errMsg
	}
	if details, exists := dataMap["details"]; exists {
		unified.Error.Fields = details
	}
	return unified
}

// getAutoMessage generates appropriate success/error messages
func getAutoMessage(method string, statusCode int, isSuccess bool) string {
	if isSuccess {
		switch method {
		case http.MethodPost:
			return "Record created successfully"
		case http.MethodPut, http.MethodPatch:
			return "Record updated successfully"
		case http.MethodDelete:
			return "Record deleted successfully"
		case http.MethodGet:
			return "Data retrieved successfully"
		default:
			return "Operation completed successfully"
		}
	}
	switch statusCode {
	case http.StatusBadRequest:
		return "Invalid request data"
	case http.StatusUnauthorized:
		return "Authentication required"
	case http.StatusForbidden:
		return "Permission denied"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusConflict:
		return "Resource conflict"
	case http.StatusTooManyRequests:
		return "Too many requests"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "Service unavailable"
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return "Operation failed"
	}
}

// getErrorCode generates error codes based on status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusInternalServerError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}

// shouldSkipUnifiedResponse checks if the request path should skip unified response format
func shouldSkipUnifiedResponse(c *gin.Context) bool {
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}

	path := c.Request.URL.Path
	for _, prefix := range []string{"/swagger", "/health", "/metrics", "/ws/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
