// Package storage keeps uploaded files in an object store
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/logger"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore is the subset of object storage the services rely on
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

// Open returns the object store selected by STORAGE_BACKEND
func Open(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "", "minio":
		return NewMinIOStore(ctx, cfg)
	case "memory":
		logger.L().Warn("using in-memory object storage, files are lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
