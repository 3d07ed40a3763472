// Package objectstore mirrors rendered artifacts to an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const keyPrefix = "ideas"

// Config describes the bucket to mirror into.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectAPI is the subset of *minio.Client the mirror uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// Mirror uploads artifacts under ideas/<folder>/idea.pdf.
type Mirror struct {
	client objectAPI
	bucket string
}

// New connects to the endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("objectstore: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore client: %w", err)
	}
	m := &Mirror{client: client, bucket: cfg.Bucket}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *Mirror) Put(ctx context.Context, folder string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, ObjectKey(folder), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("put %s: %w", ObjectKey(folder), err)
	}
	return nil
}

func (m *Mirror) Remove(ctx context.Context, folder string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, ObjectKey(folder), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", ObjectKey(folder), err)
	}
	return nil
}

// ObjectKey is the bucket key of folder's artifact.
func ObjectKey(folder string) string {
	return path.Join(keyPrefix, folder, "idea.pdf")
}
