// Package server builds the gin engine every service runs on
package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/metrics"
	"transparencia-backend/shared/middleware"
	"transparencia-backend/shared/observability"
)

const shutdownTimeout = 15 * time.Second

// NewRouter returns an engine with recovery, request ids, tracing, request
// logging, metrics and the /health and /metrics endpoints
func NewRouter(service string, cfg *config.Config, log *logger.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		observability.Middleware(service),
		middleware.RequestLogger(log),
		metrics.Get().Middleware(service),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	})
	router.GET("/metrics", metrics.Handler())

	return router
}

// NotifyContext is cancelled on SIGINT or SIGTERM
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully
func Run(ctx context.Context, addr string, h http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
