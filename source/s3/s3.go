package s3

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/hupe1980/stagefetch/source"
)

// Client is the subset of *s3.Client used by Source.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ source.Downloader = (*Source)(nil)

// Options configures a Source.
type Options struct {
	// PartSize is the byte size of each ranged GET. Defaults to the manager default.
	PartSize int64
	// Concurrency is the number of parallel ranged GETs.
	Concurrency int
}

// Source streams one S3 object.
type Source struct {
	client Client
	bucket string
	key    string
	opts   Options
}

// New creates a source for s3://bucket/key.
func New(client Client, bucket, key string, optFns ...func(o *Options)) *Source {
	opts := Options{
		PartSize:    manager.DefaultDownloadPartSize,
		Concurrency: manager.DefaultDownloadConcurrency,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Source{client: client, bucket: bucket, key: key, opts: opts}
}

// Location implements source.Source.
func (s *Source) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}

// Open implements source.Source.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, 0, s.translateError(err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// Download implements source.Downloader.
func (s *Source) Download(ctx context.Context, w io.WriterAt) (int64, error) {
	d := manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = s.opts.PartSize
		d.Concurrency = s.opts.Concurrency
	})
	n, err := d.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return n, s.translateError(err)
	}
	return n, nil
}

func (s *Source) translateError(err error) error {
	if reason, ok := unavailable(err); ok {
		return source.Unavailable(s.Location(), reason, err)
	}
	return err
}

// unavailable classifies missing objects and denied access.
func unavailable(err error) (string, bool) {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return "no such key", true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return "no such bucket", true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return "not found", true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return "not found", true
		case "AccessDenied", "Forbidden":
			return "access denied", true
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return "not found", true
		case http.StatusForbidden:
			return "access denied", true
		}
	}
	return "", false
}
