// Package s3blob archives cycle reports to S3 or an S3-compatible store
// (MinIO, R2, iDrive e2) using AWS SDK v2.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// minPartSize is the S3 floor for multipart part sizes.
const minPartSize int64 = 5 * 1024 * 1024

// ClientConfig mirrors the [s3] config section.
type ClientConfig struct {
	// Endpoint points at an S3-compatible provider; empty means AWS.
	Endpoint string
	Region   string
	Bucket   string

	// Without AccessKey the default AWS credential chain is used.
	AccessKey string
	SecretKey string

	// UseSSL picks the scheme for an Endpoint given without one.
	UseSSL         bool
	ForcePathStyle bool
}

// objectAPI is the part of *s3.Client the archive needs. The upload manager
// requires the multipart calls as well.
type objectAPI interface {
	manager.UploadAPIClient
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Client writes archive objects into one bucket. It implements
// domain.BlobWriter.
type Client struct {
	api    objectAPI
	bucket string
}

// New resolves AWS credentials and builds the bucket client.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var errs []error
	if cfg.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if cfg.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("s3blob: %w", err)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	return newClient(s3.NewFromConfig(awsCfg, s3Options(cfg)), cfg.Bucket), nil
}

func newClient(api objectAPI, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// s3Options applies the endpoint override and addressing style.
func s3Options(cfg ClientConfig) func(*s3.Options) {
	return func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}
}

// Health checks that the bucket exists and the credentials can reach it.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Put stores data under key in a single request.
func (c *Client) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if _, err := c.api.PutObject(ctx, c.object(key, data, contentType)); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// PutMultipart streams data through the upload manager as JSONL. partSize
// is raised to the S3 minimum.
func (c *Client) PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(c.api, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	if _, err := uploader.Upload(ctx, c.object(key, data, contentTypeJSONL)); err != nil {
		return fmt.Errorf("s3blob: multipart put %s: %w", key, err)
	}
	return nil
}

func (c *Client) object(key string, data io.Reader, contentType string) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	return in
}

// normaliseEndpoint adds http:// or https:// (by useSSL) to a bare host.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

var _ domain.BlobWriter = (*Client)(nil)
