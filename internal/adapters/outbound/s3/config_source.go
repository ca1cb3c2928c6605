// Package s3 provides a ConfigSource that reads the config document from AWS S3.
package s3

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/configdoc"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// maxDocumentBytes bounds the size of a config document.
const maxDocumentBytes = 1 << 20

// s3API defines the subset of S3 operations needed by the ConfigSource.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ outbound.ConfigSource = (*ConfigSource)(nil)

// ConfigSource fetches config documents stored as S3 objects.
// Ids have the form "s3://bucket/key" or "bucket/key".
type ConfigSource struct {
	client s3API
	logger *slog.Logger
}

// NewConfigSource creates a ConfigSource with the given AWS config.
func NewConfigSource(cfg aws.Config, logger *slog.Logger, optFns ...func(*s3.Options)) *ConfigSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigSource{
		client: s3.NewFromConfig(cfg, optFns...),
		logger: logger.With("component", "s3-config-source"),
	}
}

// Name returns the source name.
func (c *ConfigSource) Name() string {
	return "s3"
}

// FetchConfig reads and parses the object named by id.
// Objects with a .gz suffix are decompressed.
func (c *ConfigSource) FetchConfig(ctx context.Context, id string) (*entity.OracleConfig, error) {
	bucket, key, err := ParseLocation(id)
	if err != nil {
		return nil, err
	}

	data, err := c.read(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	cfg, err := configdoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
	}

	c.logger.Debug("fetched config", "bucket", bucket, "key", key, "feeds", len(cfg.FeedIDs))
	return cfg, nil
}

func (c *ConfigSource) read(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer func() {
		if closeErr := result.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close object body", "error", closeErr)
		}
	}()

	var body io.Reader = result.Body
	if strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(result.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", key, err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading object %s/%s: %w", bucket, key, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("object %s/%s exceeds %d bytes", bucket, key, maxDocumentBytes)
	}
	return data, nil
}

// ParseLocation splits "s3://bucket/key" or "bucket/key" into its parts.
func ParseLocation(id string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(id, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q, want s3://bucket/key", id)
	}
	return bucket, key, nil
}
