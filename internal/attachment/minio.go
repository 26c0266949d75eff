package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zulandar/kpiboard/internal/store"
)

// minioClient is the subset of *minio.Client used here, for testability.
type minioClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// MinioStorage keeps blobs in an S3-compatible bucket.
type MinioStorage struct {
	client minioClient
	bucket string
}

// MinioOpts addresses a MinIO or S3 endpoint.
type MinioOpts struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStorage connects to the endpoint and creates the bucket when it
// does not exist.
func NewMinioStorage(ctx context.Context, opts MinioOpts) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("attachment: minio client: %w", err)
	}
	return newMinioStorage(ctx, client, opts.Bucket)
}

func newMinioStorage(ctx context.Context, client minioClient, bucket string) (*MinioStorage, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("attachment: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("attachment: create bucket %s: %w", bucket, err)
		}
	}
	return &MinioStorage{client: client, bucket: bucket}, nil
}

func (m *MinioStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", m.bucket, key, err)
	}
	return nil
}

func (m *MinioStorage) Open(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, Object{}, fmt.Errorf("attachment: %s: %w", key, store.ErrNotFound)
		}
		return nil, Object{}, fmt.Errorf("attachment: stat %s: %w", key, err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Object{}, fmt.Errorf("attachment: get %s: %w", key, err)
	}
	return obj, Object{Key: key, Size: info.Size, ContentType: info.ContentType}, nil
}

func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", m.bucket, key, err)
	}
	return nil
}
