package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"admin-backend/internal/upload"
)

// Config locates a bucket on an S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string

	// UsePathStyle addresses the bucket in the path instead of the host
	// name. R2 and MinIO both want this.
	UsePathStyle bool
}

func (c Config) validate() error {
	if c.Endpoint == "" || c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return fmt.Errorf("object store configuration incomplete")
	}
	return nil
}

// Minio talks to MinIO through minio-go's low-level multipart API.
type Minio struct {
	core   minio.Core
	bucket string
}

// NewMinio connects to the endpoint and checks that the bucket exists.
func NewMinio(ctx context.Context, cfg Config) (*Minio, error) {
	m, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := m.core.BucketExists(ctx, m.bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, m.bucket)
	}
	return m, nil
}

func newMinioClient(cfg Config) (*Minio, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	lookup := minio.BucketLookupAuto
	if cfg.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, err
	}

	return &Minio{core: minio.Core{Client: client}, bucket: cfg.Bucket}, nil
}

// Ping checks that the bucket is reachable.
func (m *Minio) Ping(ctx context.Context) error {
	exists, err := m.core.BucketExists(ctx, m.bucket)
	if err != nil {
		return m.wrap("ping", "", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, m.bucket)
	}
	return nil
}

func (m *Minio) InitiateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	id, err := m.core.NewMultipartUpload(ctx, m.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", m.wrap("initiate", key, err)
	}
	return id, nil
}

func (m *Minio) PresignPartURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(partNumber))
	params.Set("uploadId", uploadID)

	u, err := m.core.Presign(ctx, http.MethodPut, m.bucket, key, ttl, params)
	if err != nil {
		return "", m.wrap("presign", key, err)
	}
	return u.String(), nil
}

func (m *Minio) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []upload.Part) error {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	if _, err := m.core.CompleteMultipartUpload(ctx, m.bucket, key, uploadID, complete, minio.PutObjectOptions{}); err != nil {
		return m.wrap("complete", key, err)
	}
	return nil
}

func (m *Minio) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if err := m.core.AbortMultipartUpload(ctx, m.bucket, key, uploadID); err != nil {
		return m.wrap("abort", key, err)
	}
	return nil
}

func (m *Minio) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := m.core.Client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return m.wrap("put", key, err)
	}
	return nil
}

func (m *Minio) RemoveObject(ctx context.Context, key string) error {
	if err := m.core.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return m.wrap("remove", key, err)
	}
	return nil
}

func (m *Minio) wrap(op, key string, err error) error {
	e := &Error{Op: op, Bucket: m.bucket, Key: key, Err: err}
	resp := minio.ToErrorResponse(err)
	e.Status = resp.StatusCode
	e.Code = resp.Code
	if errors.Is(err, context.DeadlineExceeded) {
		e.Code = "Timeout"
	}
	return e
}
