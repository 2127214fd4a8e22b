// Package s3util provides the S3 helpers used by the summarization pipeline:
// reading an uploaded transcript into memory and writing the summary back.
package s3util

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Store wraps an S3 client with the text object operations the pipeline
// needs. It satisfies pipeline.ObjectStore.
type Store struct {
	client *s3.Client
}

// NewStore creates a Store backed by the given S3 client.
func NewStore(client *s3.Client) *Store {
	return &Store{client: client}
}

// ReadText fetches an object and returns its full contents as a string.
func (s *Store) ReadText(ctx context.Context, bucket, key string) (string, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Reading object from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return "", fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	log.Debug().Str("key", key).Int("size", len(data)).Msg("Object read from S3")
	return string(data), nil
}

// WriteText stores text as a text/plain object. There is no existence
// check; an existing object at the key is overwritten.
func (s *Store) WriteText(ctx context.Context, bucket, key, body string) error {
	contentType := "text/plain"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        strings.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject: %w", err)
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Int("size", len(body)).Msg("Object written to S3")
	return nil
}

// DecodeKey reverses the URL encoding S3 applies to object keys in event
// notifications ("+" for space, percent escapes). A key that fails to
// decode is returned as-is.
func DecodeKey(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", raw).Msg("Failed to URL-decode object key, using raw value")
		return raw
	}
	return decoded
}
