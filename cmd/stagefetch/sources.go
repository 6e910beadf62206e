package main

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/stagefetch/source"
	s3source "github.com/hupe1980/stagefetch/source/s3"
	miniosource "github.com/hupe1980/stagefetch/source/minio"
)

// newResolver returns a resolver that also understands s3:// and minio://.
// Clients are built on first use so local datasets never load AWS config.
func newResolver(ctx context.Context, cfg *Config) *source.Resolver {
	r := source.NewResolver()

	s3Client := sync.OnceValues(func() (*s3.Client, error) {
		return newS3Client(ctx, cfg.S3)
	})
	r.Register("s3", func(u *url.URL) (source.Source, error) {
		bucket, key, err := source.BucketKey(u)
		if err != nil {
			return nil, err
		}
		client, err := s3Client()
		if err != nil {
			return nil, err
		}
		partSize, _ := parseBytes(cfg.S3.PartSize)
		return s3source.New(client, bucket, key, func(o *s3source.Options) {
			if partSize > 0 {
				o.PartSize = partSize
			}
			if cfg.S3.Concurrency > 0 {
				o.Concurrency = cfg.S3.Concurrency
			}
		}), nil
	})

	minioClient := sync.OnceValues(func() (*miniogo.Client, error) {
		return newMinIOClient(cfg.MinIO)
	})
	r.Register("minio", func(u *url.URL) (source.Source, error) {
		bucket, key, err := source.BucketKey(u)
		if err != nil {
			return nil, err
		}
		client, err := minioClient()
		if err != nil {
			return nil, err
		}
		return miniosource.New(client, bucket, key), nil
	})

	return r
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func newMinIOClient(cfg MinIOConfig) (*miniogo.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio.endpoint is required for minio:// sources")
	}
	return miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
}
