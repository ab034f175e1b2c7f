package imagestore

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	caterrors "github.com/shopfox/catalog/internal/errors"
)

// MinioStore implements Store on an S3-compatible object store. References
// are object URLs under the bucket endpoint, so the bucket is expected to
// allow public reads.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.Bucket, err)
		}
	}

	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	return &MinioStore{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket),
	}, nil
}

// Save uploads the blob as a new object and returns its URL.
func (s *MinioStore) Save(ctx context.Context, up Upload) (string, error) {
	if !Allowed(up.ContentType) {
		return "", caterrors.ErrUnsupportedImageType
	}

	name := uniqueName(up.Name)
	// Size -1: stream with unknown length, the client falls back to multipart upload.
	_, err := s.client.PutObject(ctx, s.bucket, name, up.Content, -1, minio.PutObjectOptions{
		ContentType: up.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image object: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// Remove deletes the object behind ref. RemoveObject is a no-op for missing
// objects, which matches the Store contract.
func (s *MinioStore) Remove(ctx context.Context, ref string) error {
	name := path.Base(ref)
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove image object %s: %w", name, err)
	}
	return nil
}
