package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"lostfound-ai/internal/contextutil"
	"lostfound-ai/internal/item"
)

// objectPrefix groups all item images under one key space.
const objectPrefix = "lost-items"

// S3Config holds connection settings for an S3-compatible object store
// (MinIO in development, any S3 endpoint in production).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3ObjectStore implements ObjectStore on an S3-compatible backend.
type S3ObjectStore struct {
	client *s3.Client
	bucket string
	// baseURL is the public prefix objects are reachable under,
	// endpoint + bucket in path style.
	baseURL string
}

// NewS3ObjectStore creates an object store client for the configured
// bucket. Path-style addressing is used so MinIO endpoints work
// unchanged.
func NewS3ObjectStore(ctx context.Context, cfg S3Config) (*S3ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket,
	}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectKey builds a unique key for one image of an item.
func objectKey(itemKey string, i int, name string) string {
	safe := unsafeKeyChars.ReplaceAllString(name, "_")
	if safe == "" {
		safe = "image"
	}
	return fmt.Sprintf("%s/%s/%d-%d-%s", objectPrefix, itemKey, time.Now().UnixMilli(), i, safe)
}

// UploadMany uploads the blobs under the given item key and returns
// one URL per blob, in order. Partial uploads are not rolled back; the
// caller reports the item as failed and the orphaned objects are
// harmless.
func (s *S3ObjectStore) UploadMany(ctx context.Context, blobs []item.Blob, itemKey string) ([]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	urls := make([]string, 0, len(blobs))
	for i, blob := range blobs {
		key := objectKey(itemKey, i, blob.Name)

		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(blob.Data),
		}
		if blob.MIME != "" {
			input.ContentType = aws.String(blob.MIME)
		}

		if _, err := s.client.PutObject(ctx, input); err != nil {
			logger.ErrorContext(ctx, "failed to upload object",
				"bucket", s.bucket, "key", key, "error", err)
			return nil, fmt.Errorf("failed to upload object %s: %w", key, err)
		}

		urls = append(urls, s.baseURL+"/"+key)
	}

	logger.InfoContext(ctx, "uploaded objects", "bucket", s.bucket, "item_key", itemKey, "count", len(urls))
	return urls, nil
}

// DeleteMany removes previously uploaded objects by URL. URLs outside
// this store's bucket are skipped; individual delete failures are
// collected and returned together.
func (s *S3ObjectStore) DeleteMany(ctx context.Context, urls []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	var errs []error
	for _, rawURL := range urls {
		key, ok := s.keyFromURL(rawURL)
		if !ok {
			logger.WarnContext(ctx, "skipping foreign object url", "url", rawURL)
			continue
		}

		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete object %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

// keyFromURL recovers the object key from a public URL produced by
// UploadMany.
func (s *S3ObjectStore) keyFromURL(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	prefix := "/" + s.bucket + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return "", false
	}
	return strings.TrimPrefix(parsed.Path, prefix), true
}
