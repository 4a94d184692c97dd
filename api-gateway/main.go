package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	gatewaymw "transparencia-backend/api-gateway/middleware"
	"transparencia-backend/api-gateway/routes"
	_ "transparencia-backend/docs"
	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/middleware"
	"transparencia-backend/shared/observability"
	"transparencia-backend/shared/server"
	utils "transparencia-backend/shared/utils/auth"
	"transparencia-backend/shared/utils/cache"
)

const serviceName = "api-gateway"

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	log := logger.Init(cfg.LogMode, serviceName)
	defer log.Sync()

	ctx, stop := server.NotifyContext(context.Background())
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, cfg, serviceName)
	defer shutdownTracing(context.Background())

	if err := database.InitDatabase(); err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer database.CloseDatabase()

	accessLogs := gatewaymw.NewAccessLogWriter(database.GetDB(), 4096, log)
	go accessLogs.Start(ctx)

	var validator middleware.TokenValidator = utils.DefaultIssuer()
	if cfg.RedisEnabled {
		redisCache, err := cache.NewCacheManager(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, revoked tokens are not checked at the gateway", "error", err)
		} else {
			defer redisCache.Close()
			validator = middleware.WithRevocation(validator, redisCache)
		}
	}

	limiter := middleware.NewRateLimiter(ctx, 5*time.Minute, 30*time.Minute)

	router := server.NewRouter(serviceName, cfg, log)
	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{cfg.FrontendURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		accessLogs.Middleware(),
		gatewaymw.UnifiedResponseMiddleware(),
		limiter.RateLimitMiddleware("gateway", middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
			BlockDuration:     cfg.RateLimitBlock,
		}, ""),
		middleware.OptionalAuth(validator),
	)

	if cfg.IsProduction() {
		router.GET("/swagger/*any", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Swagger documentation not available in production"})
		})
	} else {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if err := routes.Register(router, routes.Table, routes.ServiceURLs(cfg)); err != nil {
		log.Fatal("failed to register service routes", "error", err)
	}

	if err := server.Run(ctx, ":"+config.Port(cfg.APIGatewayURL), router, log); err != nil {
		log.Error("api gateway stopped", "error", err)
	}

	stop()
	select {
	case <-accessLogs.Done():
	case <-time.After(5 * time.Second):
		log.Warn("access log flush timed out")
	}
}
