package attachments

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/datalib/internal/apperr"
)

// MinIOConfig describes an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO implements Provider backed by an S3-compatible bucket.
type MinIO struct {
	client    *minio.Client
	bucket    string
	urlPrefix string
}

// NewMinIO connects to the bucket described by cfg and creates the bucket
// when it does not exist yet.
func NewMinIO(ctx context.Context, cfg MinIOConfig, urlPrefix string) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("attachments: minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("attachments: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("attachments: create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIO{client: client, bucket: cfg.Bucket, urlPrefix: urlPrefix}, nil
}

// Put uploads r as object name.
func (m *MinIO) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (Object, error) {
	if err := checkName(name); err != nil {
		return Object{}, err
	}
	if size > MaxUploadBytes {
		return Object{}, fmt.Errorf("attachments: file too large: exceeds %d bytes", MaxUploadBytes)
	}
	if _, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{}); err == nil {
		return Object{}, fmt.Errorf("attachments: %s: %w", name, apperr.ErrAlreadyExists)
	} else if !isNoSuchKey(err) {
		return Object{}, fmt.Errorf("attachments: stat %s: %w", name, err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.client.PutObject(ctx, m.bucket, name, io.LimitReader(r, MaxUploadBytes+1), size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("attachments: put %s: %w", name, err)
	}
	if info.Size > MaxUploadBytes {
		_ = m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{})
		return Object{}, fmt.Errorf("attachments: file too large: exceeds %d bytes", MaxUploadBytes)
	}
	return Object{Name: name, Size: info.Size, URL: publicURL(m.urlPrefix, name)}, nil
}

// Open streams object name.
func (m *MinIO) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("attachments: get %s: %w", name, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("attachments: stat %s: %w", name, err)
	}
	return obj, nil
}

// Delete removes object name.
func (m *MinIO) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("attachments: stat %s: %w", name, err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("attachments: delete %s: %w", name, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
