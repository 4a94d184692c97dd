package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"transparencia-backend/shared/database/models/auth"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
)

const (
	accessLogBatch    = 100
	accessLogInterval = 2 * time.Second
)

// AccessLogWriter persists gateway requests in batches off the request path.
// Entries are dropped when the buffer is full.
type AccessLogWriter struct {
	db      *gorm.DB
	entries chan auth.AccessLog
	log     *logger.Logger
	done    chan struct{}
}

func NewAccessLogWriter(db *gorm.DB, size int, log *logger.Logger) *AccessLogWriter {
	if size <= 0 {
		size = 1024
	}
	return &AccessLogWriter{
		db:      db,
		entries: make(chan auth.AccessLog, size),
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start drains the buffer until ctx is cancelled, flushing what is left
func (w *AccessLogWriter) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(accessLogInterval)
	defer ticker.Stop()

	batch := make([]auth.AccessLog, 0, accessLogBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.db.CreateInBatches(&batch, accessLogBatch).Error; err != nil {
			w.log.Warn("failed to store access logs", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-w.entries:
			batch = append(batch, entry)
			if len(batch) >= accessLogBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry := <-w.entries:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Done is closed once Start has flushed and returned
func (w *AccessLogWriter) Done() <-chan struct{} {
	return w.done
}

// Record queues an entry without blocking
func (w *AccessLogWriter) Record(entry auth.AccessLog) bool {
	select {
	case w.entries <- entry:
		return true
	default:
		return false
	}
}

// Middleware records every request except health checks and metrics scrapes
func (w *AccessLogWriter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}
		if !w.Record(auth.AccessLog{
			UserID:     httpx.CurrentUserIDPtr(c),
			Method:     c.Request.Method,
			Path:       truncate(path, 500),
			StatusCode: c.Writer.Status(),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Duration:   time.Since(start).Milliseconds(),
			RequestID:  c.GetString(httpx.KeyRequestID),
			CreatedAt:  time.Now(),
		}) {
			w.log.Debug("access log buffer full, entry dropped", "path", path)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
