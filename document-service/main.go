package main

import (
	"context"
	"strings"
	"time"

	"transparencia-backend/document-service/handlers"
	"transparencia-backend/document-service/services"
	"transparencia-backend/shared/catalog"
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

const serviceName = "document-service"

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

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize object storage", "error", err)
	}

	var redisCache *cache.CacheManager
	if cfg.RedisEnabled || strings.EqualFold(cfg.DescendantCache, "redis") {
		redisCache, err = cache.NewCacheManager(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-memory descendant cache", "error", err)
		} else {
			defer redisCache.Close()
		}
	}

	m := metrics.Get()
	resolver := catalog.NewDescendantResolver(db, descendantCache(cfg, redisCache),
		catalog.WithBatchPolicy(catalog.ParseBatchPolicy(cfg.DescendantCacheBatchPolicy)),
		catalog.WithCacheObserver(m),
	)
	tree := catalog.NewTreeStore(db, resolver)

	h := handlers.New(handlers.Deps{
		DB:           db,
		Tree:         tree,
		Resolver:     resolver,
		Availability: catalog.NewAvailabilityAggregator(db),
		Search:       catalog.NewDocumentSearch(db, resolver, m),
		Documents: services.NewDocumentService(db, tree, store, services.UploadLimits{
			MaxBytes:           cfg.UploadMaxBytes,
			AllowedExtensions:  cfg.UploadAllowedExtensions,
			DefaultInstitution: cfg.DefaultInstitution,
		}, m),
		BaseURL: cfg.APIGatewayURL,
	})

	var validator middleware.TokenValidator = utils.DefaultIssuer()
	if redisCache != nil {
		validator = middleware.WithRevocation(validator, redisCache)
	}

	router := server.NewRouter(serviceName, cfg, log)
	router.MaxMultipartMemory = 32 << 20
	h.RegisterRoutes(router, validator)

	if err := server.Run(ctx, ":"+config.Port(cfg.DocumentServiceURL), router, log); err != nil {
		log.Fatal("document service stopped", "error", err)
	}
}

// descendantCache picks the resolver cache named by DESCENDANT_CACHE
func descendantCache(cfg *config.Config, redisCache *cache.CacheManager) catalog.DescendantCache {
	switch strings.ToLower(cfg.DescendantCache) {
	case "none":
		return catalog.NoopCache{}
	case "redis":
		if redisCache != nil {
			return catalog.NewRedisCache(redisCache.Client(), cfg.DescendantCacheTTL)
		}
	}
	return catalog.NewMemoryCache(cfg.DescendantCacheTTL, time.Minute)
}
