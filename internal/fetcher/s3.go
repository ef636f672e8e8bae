package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher retrieves files from AWS S3.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3Fetcher creates a new S3 fetcher using the default AWS credential
// chain: environment variables, shared credentials, IRSA, and instance
// roles.
func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

// NewS3FetcherWithConfig creates a new S3 fetcher with a specific AWS
// config.
func NewS3FetcherWithConfig(cfg aws.Config) *S3Fetcher {
	return &S3Fetcher{client: s3.NewFromConfig(cfg)}
}

// Supports returns true for s3:// URIs.
func (f *S3Fetcher) Supports(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// Fetch retrieves the object from S3.
func (f *S3Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := f.parseURI(uri)
	if err != nil {
		return nil, err
	}

	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3 object body: %w", err)
	}

	return data, nil
}

// parseURI extracts bucket and key from an s3:// URI.
// Format: s3://bucket/path/to/key
func (f *S3Fetcher) parseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URI: %s", uri)
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URI format (expected s3://bucket/key): %s", uri)
	}

	return parts[0], parts[1], nil
}
