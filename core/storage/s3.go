package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"syncup-api/core/config"
	"syncup-api/core/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured is returned by uploads when no bucket is set.
var ErrNotConfigured = errors.New("object storage is not configured")

// Uploader stores objects by key.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage builds an S3 client from static credentials. It returns nil when
// no bucket is configured; a nil *S3Storage rejects uploads with ErrNotConfigured.
func NewS3Storage(cfg config.S3Config) *S3Storage {
	if cfg.Bucket == "" {
		logger.Info("S3Storage:New:Disabled", "reason", "s3.bucket not set")
		return nil
	}

	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		// MinIO and other S3-compatible stores need path-style addressing.
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return &S3Storage{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// ObjectKey joins the configured prefix and key.
func (s *S3Storage) ObjectKey(key string) string {
	if s == nil || s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Upload puts body under key and returns the full object key.
func (s *S3Storage) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrNotConfigured
	}

	objectKey := s.ObjectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logger.Error("S3Storage:Upload:PutObject", "bucket", s.bucket, "key", objectKey, "error", err)
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}

	logger.Info("S3Storage:Upload:Stored", "bucket", s.bucket, "key", objectKey, "bytes", len(body))
	return objectKey, nil
}
