package storage

import (
	"context"
	"testing"

	"syncup-api/core/config"

	"github.com/stretchr/testify/assert"
)

func TestNewS3Storage_DisabledWithoutBucket(t *testing.T) {
	s := NewS3Storage(config.S3Config{Region: "us-east-1"})
	assert.Nil(t, s)

	_, err := s.Upload(context.Background(), "exports/a.json", []byte("{}"), "application/json")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestObjectKey(t *testing.T) {
	s := NewS3Storage(config.S3Config{
		Bucket:          "syncup",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Prefix:          "prod",
	})
	if assert.NotNil(t, s) {
		assert.Equal(t, "prod/exports/a.json", s.ObjectKey("exports/a.json"))
	}

	bare := NewS3Storage(config.S3Config{Bucket: "syncup", Region: "us-east-1"})
	if assert.NotNil(t, bare) {
		assert.Equal(t, "exports/a.json", bare.ObjectKey("exports/a.json"))
	}
}
