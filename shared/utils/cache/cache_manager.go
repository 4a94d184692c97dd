package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/logger"
)

const revokedTokenPrefix = "auth:revoked:"

// CacheManager owns the Redis connection shared by a service
type CacheManager struct {
	client redis.UniversalClient
}

// NewCacheManager connects to Redis and verifies the connection
func NewCacheManager(ctx context.Context, cfg *config.Config) (*CacheManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.L().Info("redis connection established", "addr", client.Options().Addr, "db", cfg.RedisDB)
	return &CacheManager{client: client}, nil
}

// NewFromClient wraps an existing client
func NewFromClient(client redis.UniversalClient) *CacheManager {
	return &CacheManager{client: client}
}

// Client exposes the underlying client for other caches such as the
// descendant cache
func (cm *CacheManager) Client() redis.UniversalClient {
	return cm.client
}

// RevokeToken denies an access token id until it would have expired anyway
func (cm *CacheManager) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := cm.client.Set(ctx, revokedTokenPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id was revoked
func (cm *CacheManager) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := cm.client.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// Ping checks the connection
func (cm *CacheManager) Ping(ctx context.Context) error {
	return cm.client.Ping(ctx).Err()
}

// Close closes the connection
func (cm *CacheManager) Close() error {
	if cm == nil || cm.client == nil {
		return nil
	}
	return cm.client.Close()
}
