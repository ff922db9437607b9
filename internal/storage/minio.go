package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/drone-relay/internal/config"
)

// Uploader archives finished recordings and captured photos to an
// S3-compatible bucket. It is optional: a nil *Uploader is a valid no-op,
// used when no endpoint is configured.
type Uploader struct {
	client *minio.Client
	bucket string
}

func NewUploader(cfg config.MinIOConfig) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the archive bucket if it doesn't exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	if u == nil {
		return nil
	}
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// UploadFile streams a local media file into the bucket under key.
func (u *Uploader) UploadFile(ctx context.Context, key, filePath, contentType string) error {
	if u == nil {
		return nil
	}
	_, err := u.client.FPutObject(ctx, u.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Ping checks bucket reachability.
func (u *Uploader) Ping(ctx context.Context) error {
	if u == nil {
		return nil
	}
	_, err := u.client.BucketExists(ctx, u.bucket)
	return err
}
