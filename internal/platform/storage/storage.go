package storage

import (
	"context"
	"io"
	"time"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/config"
)

type PutObjectOptions struct {
	ContentType string
	Size        int64
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is an object store for uploaded attachments.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

var ErrUnavailable = apperr.New(apperr.CodeStorage, "file storage is not configured")

// New returns the MinIO backend when an endpoint is configured, otherwise a
// storage that refuses every call with ErrUnavailable.
func New(ctx context.Context, cfg config.Config) (Storage, error) {
	if !cfg.StorageEnabled() {
		return Disabled{}, nil
	}
	return NewMinIO(ctx, MinIOConfig{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
	})
}

type Disabled struct{}

func (Disabled) Put(context.Context, string, io.Reader, PutObjectOptions) (ObjectInfo, error) {
	return ObjectInfo{}, ErrUnavailable
}

func (Disabled) Get(context.Context, string) (io.ReadCloser, ObjectInfo, error) {
	return nil, ObjectInfo{}, ErrUnavailable
}

func (Disabled) Delete(context.Context, string) error {
	return ErrUnavailable
}

func (Disabled) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrUnavailable
}
