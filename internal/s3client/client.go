// Package s3client stores run artifacts (failure screenshots, reports) in an
// S3-compatible bucket.
package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("s3client: object not found")

// Client wraps an S3 client bound to one bucket.
type Client struct {
	s3         *s3.Client
	bucketName string
	publicURL  string
}

// Config holds the configuration for creating an S3 client.
type Config struct {
	// Endpoint is the S3 endpoint URL. Empty uses AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// PublicURL is the base URL artifacts are linked from in reports. When
	// empty, links are built from Endpoint and BucketName.
	PublicURL string
	// UsePathStyle is required by most self-hosted S3 implementations.
	UsePathStyle bool
}

// New creates a new S3 client with the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("s3client: bucket name is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3client: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicURL := cfg.PublicURL
	if publicURL == "" && cfg.Endpoint != "" {
		publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.BucketName
	}
	return NewFromS3Client(client, cfg.BucketName, publicURL), nil
}

// NewFromS3Client creates a Client from an existing S3 client.
func NewFromS3Client(client *s3.Client, bucketName, publicURL string) *Client {
	return &Client{
		s3:         client,
		bucketName: bucketName,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
	}
}

// PutObject stores content under key.
func (c *Client) PutObject(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3client: put object %q: %w", key, err)
	}
	return nil
}

// GetObject returns the content stored under key, or ErrObjectNotFound.
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3client: get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("s3client: read object %q: %w", key, err)
	}
	return data, nil
}

// ListKeys returns every key under prefix in lexical order.
func (c *Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucketName),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3client: list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteObject removes the object at key. Missing keys are not an error.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3client: delete object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the link for key, or "" when no public base is known.
func (c *Client) PublicURL(key string) string {
	if c.publicURL == "" {
		return ""
	}
	return c.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// BucketName returns the configured bucket name.
func (c *Client) BucketName() string {
	return c.bucketName
}
