package main

import (
	"context"
	"time"

	pconfig "transparencia-backend/participation-service/config"
	"transparencia-backend/participation-service/handlers"
	"transparencia-backend/participation-service/services"
	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/metrics"
	"transparencia-backend/shared/middleware"
	"transparencia-backend/shared/observability"
	"transparencia-backend/shared/server"
	"transparencia-backend/shared/storage"
	utils "transparencia-backend/shared/utils/auth"
	"transparencia-backend/shared/utils/cache"
)

const serviceName = "participation-service"

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	log := logger.Init(cfg.LogMode, serviceName)
	defer log.Sync()

	ctx, stop := server.NotifyContext(context.Background())
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, cfg, serviceName)
	defer shutdownTracing(context.Background())

	pcfg, err := pconfig.LoadParticipationConfig()
	if err != nil {
		log.Fatal("failed to load participation config", "error", err)
	}

	if err := database.InitDatabase(); err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer database.CloseDatabase()
	db := database.GetDB()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize object storage", "error", err)
	}

	email := services.NewEmailService(
		services.NewSMTPSender(cfg),
		services.NewTemplateService(services.TemplateFS(cfg.MailTemplates)),
		pcfg.Mail,
	)
	go email.Start(ctx)

	hub := services.NewHub(cfg.FrontendURL)
	go hub.Run(ctx)

	h := handlers.New(handlers.Deps{
		Messages: services.NewMessageService(db, email, hub, metrics.Get(), pcfg.Mail.DefaultArea),
		News: services.NewNewsService(db, store, services.ImageLimits{
			MaxBytes:          cfg.NewsImageMaxBytes,
			AllowedExtensions: cfg.NewsImageExtensions,
		}, cfg.APIGatewayURL),
		Social: services.NewSocialLinkService(db),
		Email:  email,
		Hub:    hub,
	})

	var validator middleware.TokenValidator = utils.DefaultIssuer()
	if cfg.RedisEnabled {
		redisCache, err := cache.NewCacheManager(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, revoked access tokens are accepted until expiry", "error", err)
		} else {
			defer redisCache.Close()
			validator = middleware.WithRevocation(validator, redisCache)
		}
	}

	limiter := middleware.NewRateLimiter(ctx, 10*time.Minute, 30*time.Minute)
	submit := limiter.RateLimitMiddleware("participation", middleware.RateLimitConfig{
		RequestsPerSecond: pcfg.Submit.RequestsPerSecond,
		Burst:             pcfg.Submit.Burst,
		BlockDuration:     pcfg.Submit.BlockDuration,
	}, "Too many messages sent, please try again later")

	router := server.NewRouter(serviceName, cfg, log)
	router.MaxMultipartMemory = 8 << 20
	h.RegisterRoutes(router, validator, submit)

	if err := server.Run(ctx, ":"+config.Port(cfg.ParticipationServiceURL), router, log); err != nil {
		log.Fatal("participation service stopped", "error", err)
	}
}
