// Package minio streams archives from MinIO and other S3-compatible stores.
package minio

import (
	"context"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/stagefetch/source"
)

// Source streams one object.
type Source struct {
	client *minio.Client
	bucket string
	key    string
}

// New creates a source for bucket/key.
func New(client *minio.Client, bucket, key string) *Source {
	return &Source{client: client, bucket: bucket, key: key}
}

// Location implements source.Source.
func (s *Source) Location() string {
	return "minio://" + s.bucket + "/" + s.key
}

// Open implements source.Source. The object is stat'ed first so that a
// missing key surfaces here instead of on the first read.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, s.translateError(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, s.translateError(err)
	}
	return obj, info.Size, nil
}

func (s *Source) translateError(err error) error {
	if reason, ok := unavailable(err); ok {
		return source.Unavailable(s.Location(), reason, err)
	}
	return err
}

func unavailable(err error) (string, bool) {
	errResp := minio.ToErrorResponse(err)
	switch errResp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return "not found", true
	case "AccessDenied":
		return "access denied", true
	}
	switch errResp.StatusCode {
	case http.StatusNotFound:
		return "not found", true
	case http.StatusForbidden:
		return "access denied", true
	}
	return "", false
}
