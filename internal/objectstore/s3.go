package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"admin-backend/internal/upload"
)

// S3 talks to AWS S3 or Cloudflare R2 through aws-sdk-go-v2.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3 builds a client from static credentials. R2 wants region "auto".
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3FromConfig(awsCfg, cfg)
}

// NewS3FromConfig builds a client from an already loaded AWS config. Only the
// endpoint, bucket and addressing style are taken from cfg.
func NewS3FromConfig(awsCfg aws.Config, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	endpoint, err := endpointURL(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// R2 rejects the CRC checksums the SDK sends by default.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// Ping checks that the bucket is reachable.
func (s *S3) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return s.wrap("ping", "", err)
	}
	return nil
}

func (s *S3) InitiateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", s.wrap("initiate", key, err)
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3) PresignPartURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, error) {
	n, err := s.partNumber("presign", key, partNumber)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		PartNumber: aws.Int32(n),
		UploadId:   aws.String(uploadID),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", s.wrap("presign", key, err)
	}
	return req.URL, nil
}

func (s *S3) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []upload.Part) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		n, err := s.partNumber("complete", key, p.PartNumber)
		if err != nil {
			return err
		}
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(n),
		})
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return s.wrap("complete", key, err)
	}
	return nil
}

func (s *S3) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return s.wrap("abort", key, err)
	}
	return nil
}

func (s *S3) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return s.wrap("put", key, err)
	}
	return nil
}

func (s *S3) RemoveObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.wrap("remove", key, err)
	}
	return nil
}

// partNumber narrows n to the SDK's int32 field, rejecting values that
// would wrap.
func (s *S3) partNumber(op, key string, n int) (int32, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, &Error{
			Op:     op,
			Bucket: s.bucket,
			Key:    key,
			Code:   "InvalidPartNumber",
			Err:    fmt.Errorf("part number %d is out of range", n),
		}
	}
	return int32(n), nil
}

func (s *S3) wrap(op, key string, err error) error {
	e := &Error{Op: op, Bucket: s.bucket, Key: key, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Code = apiErr.ErrorCode()
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		e.Status = respErr.HTTPStatusCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e.Code = "Timeout"
	}
	return e
}
