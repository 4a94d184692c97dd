package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/logger"
)

// MinIOStore stores objects in a single MinIO bucket
type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore connects to MinIO and makes sure the bucket exists
func NewMinIOStore(ctx context.Context, cfg *config.Config) (*MinIOStore, error) {
	parsedURL, err := url.Parse(cfg.MinIOServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MinIO endpoint: %w", err)
	}

	endpoint := parsedURL.Host
	if endpoint == "" {
		endpoint = cfg.MinIOServerURL
	}

	logger.L().Info("connecting to MinIO", "endpoint", endpoint, "ssl", cfg.MinIOUseSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIORootUser, cfg.MinIORootPassword, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinIOStore{client: client, bucketName: cfg.MinIOBucketName}
	if err := s.initializeBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinIOStore) initializeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		logger.L().Debug("MinIO bucket already exists", "bucket", s.bucketName)
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logger.L().Info("MinIO bucket created", "bucket", s.bucketName)
	return nil
}

// Ping checks that the bucket is reachable
func (s *MinIOStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucketName); err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	return nil
}

// Bucket returns the bucket name
func (s *MinIOStore) Bucket() string {
	return s.bucketName
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	logger.L().Debug("object uploaded", "key", key, "size", size)
	return nil
}

// Get opens an object for reading. The object is stat'ed first so a missing
// key is reported before any byte is written to the client.
func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", key, err)
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}

	return obj, &ObjectInfo{Key: key, Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	logger.L().Debug("object removed", "key", key)
	return nil
}
