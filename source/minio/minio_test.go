package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stagefetch/source"
)

func TestUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, true},
		{"NoSuchBucket", minio.ErrorResponse{Code: "NoSuchBucket"}, true},
		{"AccessDenied", minio.ErrorResponse{Code: "AccessDenied"}, true},
		{"Status403", minio.ErrorResponse{StatusCode: http.StatusForbidden}, true},
		{"InternalError", minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, false},
		{"Other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Source{bucket: "b", key: "k"}
			err := s.translateError(tt.err)
			assert.Equal(t, tt.want, source.IsUnavailable(err))
		})
	}
}

// TestSource_Integration requires a running MinIO instance.
// Skip if not available.
func TestSource_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-stagefetch"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("archive bytes")
	_, err = client.PutObject(ctx, bucket, "archive.tar", bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)

	rc, size, err := New(client, bucket, "archive.tar").Open(ctx)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), size)

	_, _, err = New(client, bucket, "missing.tar").Open(ctx)
	assert.True(t, source.IsUnavailable(err))
}
