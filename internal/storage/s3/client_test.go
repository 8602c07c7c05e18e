package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"drive-service/internal/config"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"head 404", awserr.NewRequestFailure(awserr.New(codeNotFound, "Not Found", nil), http.StatusNotFound, "req-1"), true},
		{"no such key", awserr.New(s3.ErrCodeNoSuchKey, "missing", nil), true},
		{"wrapped no such key", fmt.Errorf("get: %w", awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)), true},
		{"access denied", awserr.NewRequestFailure(awserr.New("AccessDenied", "denied", nil), http.StatusForbidden, "req-2"), false},
		{"server error", awserr.NewRequestFailure(awserr.New("InternalError", "boom", nil), http.StatusInternalServerError, "req-3"), false},
		{"plain error", errors.New("dial tcp: timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestPresign_UsesBucketAndEndpoint(t *testing.T) {
	c, err := NewClient(&config.AWSConfig{
		Region:             "us-east-1",
		AccessKeyID:        "AKIATEST",
		SecretAccessKey:    "secret",
		BucketName:         "drive",
		Endpoint:           "http://localhost:9000",
		PresignedURLExpiry: 15 * time.Minute,
	})
	require.NoError(t, err)

	put, err := c.PresignPut(context.Background(), "users/u/1", "image/png")
	require.NoError(t, err)
	assert.Contains(t, put, "http://localhost:9000/drive/users/u/1")
	assert.Contains(t, put, "X-Amz-Signature=")

	get, err := c.PresignGet(context.Background(), "users/u/1", "photo.png")
	require.NoError(t, err)
	assert.Contains(t, get, "response-content-disposition=")
	assert.Equal(t, 15*time.Minute, c.PresignedURLExpiry())
}
