package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"kerno/internal/config"
)

func TestNewMinIO_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinIOConfig
		msg  string
	}{
		{"missing endpoint", config.MinIOConfig{AccessKey: "a", SecretKey: "s", Bucket: "b"}, "minio endpoint is required"},
		{"missing credentials", config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "b"}, "minio credentials are required"},
		{"missing bucket", config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "minio bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.msg)
			assert.Nil(t, s)
		})
	}
}

func TestPresignParams(t *testing.T) {
	assert.Empty(t, presignParams(""))
	assert.Equal(t, `attachment; filename="a _b_.pdf"`,
		presignParams(`a "b".pdf`).Get("response-content-disposition"))
}
