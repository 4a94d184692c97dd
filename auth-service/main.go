package main

import (
	"context"
	"time"

	"transparencia-backend/auth-service/handlers"
	"transparencia-backend/auth-service/services"
	"transparencia-backend/shared/clients"
	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/middleware"
	"transparencia-backend/shared/observability"
	"transparencia-backend/shared/server"
	utils "transparencia-backend/shared/utils/auth"
	"transparencia-backend/shared/utils/cache"
)

const serviceName = "auth-service"

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
	db := database.GetDB()

	issuer := utils.DefaultIssuer()
	var validator middleware.TokenValidator = issuer

	// logout revokes access tokens only when Redis is available
	var revoker services.TokenRevoker
	if cfg.RedisEnabled {
		redisCache, err := cache.NewCacheManager(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, access tokens stay valid until expiry after logout", "error", err)
		} else {
			defer redisCache.Close()
			revoker = redisCache
			validator = middleware.WithRevocation(issuer, redisCache)
		}
	}

	authService := services.NewAuthService(db, issuer, cfg.JWTRefreshTTL, cfg.TOTPIssuer, revoker)
	userService := services.NewUserService(db, authService)
	mailer := clients.NewMailClient(cfg.ParticipationServiceURL, 10*time.Second)
	h := handlers.NewAuthHandler(authService, userService, mailer)

	limiter := middleware.NewRateLimiter(ctx, 10*time.Minute, 30*time.Minute)
	limits := handlers.Limits{
		Login: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.LoginRateLimitRPS,
			Burst:             cfg.LoginRateLimitBurst,
			BlockDuration:     cfg.LoginRateLimitBlock,
		},
		General: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
			BlockDuration:     cfg.RateLimitBlock,
		},
	}

	router := server.NewRouter(serviceName, cfg, log)
	handlers.RegisterRoutes(router, h, validator, limiter, limits)
	handlers.RegisterDependencyRoutes(router, handlers.NewDependencyHandler(services.NewDependencyService(db)), validator)

	if err := server.Run(ctx, ":"+config.Port(cfg.AuthServiceURL), router, log); err != nil {
		log.Fatal("auth service stopped", "error", err)
	}
}
