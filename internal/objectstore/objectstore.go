// Package objectstore presigns download URLs for model artifacts kept in
// S3-compatible object storage, mirroring plugins/storage-s3's client setup
// in the teacher repo.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultExpiry = time.Hour

// Config configures the MinIO client used to presign model downloads.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

type Client struct {
	minio  *minio.Client
	bucket string
}

func New(cfg Config) (*Client, error) {
	opts := &minio.Options{Secure: cfg.Secure}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	c, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &Client{minio: c, bucket: cfg.Bucket}, nil
}

// PresignDownload returns a time-limited GET URL for objectKey in the
// configured bucket, used for client_models rows whose download_url
// names an object key rather than a public URL.
func (c *Client) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	u, err := c.minio.PresignedGetObject(ctx, c.bucket, objectKey, defaultExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", c.bucket, objectKey, err)
	}
	return u.String(), nil
}
