// Package filestore abstracts where uploaded book files live:
// a directory on local disk or an S3 compatible bucket.
package filestore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

type Store interface {
	// Put stores content under key, overwriting silently
	Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error

	// Get returns the content, caller closes it
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content, deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Provider string

	// Local provider
	LocalPath string

	// S3 provider
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", ProviderLocal:
		return NewLocal(cfg.LocalPath)
	case ProviderS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.Provider)
	}
}

// BookKey builds the storage key for a freshly uploaded book file
// Per user prefix plus random name, so concurrent uploads never collide
func BookKey(userID uuid.UUID, fileExt string) string {
	d := time.Now()
	return fmt.Sprintf("books/%s/%d/%v.%s", userID, d.Year(), uuid.New(), fileExt)
}
