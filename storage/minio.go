package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filechat/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStore holds the raw bytes of uploaded files in a MinIO bucket. The
// database keeps only metadata and extracted text; the binary lives here.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

func NewObjectStore(cfg *config.Config, logger *zap.Logger) (*ObjectStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.MinioBucket, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (o *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", o.bucket, err)
	}
	if exists {
		return nil
	}
	if err := o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", o.bucket, err)
	}
	o.logger.Info("Created storage bucket", zap.String("bucket", o.bucket))
	return nil
}

// Put stores data under key with the given content type.
func (o *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return nil
}

// Get reads the full object stored under key.
func (o *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes the object stored under key.
func (o *ObjectStore) Remove(ctx context.Context, key string) error {
	if err := o.client.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds the canonical storage key for an uploaded file. Keys are
// namespaced by owner so a leaked key never crosses users.
func ObjectKey(userID, fileID uuid.UUID, name string) string {
	return fmt.Sprintf("%s/%s/%s", userID, fileID, name)
}
