// Package s3util stores generated check-in images in S3 and hands out
// time-limited presigned URLs for them.
package s3util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
)

// DefaultURLExpiry is how long a presigned check-in URL stays valid. S3 caps
// SigV4 presigned URLs at seven days.
const DefaultURLExpiry = 7 * 24 * time.Hour

// defaultPrefix is the key prefix for generated images.
const defaultPrefix = "checkins"

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignGetAPI is the subset of *s3.PresignClient used for URLs.
type PresignGetAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ImageStore uploads generated images and returns presigned GET URLs.
type ImageStore struct {
	client  PutObjectAPI
	presign PresignGetAPI
	bucket  string
	prefix  string
	expiry  time.Duration
	now     func() time.Time
}

// NewImageStore creates an ImageStore for bucket.
func NewImageStore(client *s3.Client, bucket string) *ImageStore {
	return newImageStore(client, s3.NewPresignClient(client), bucket)
}

func newImageStore(client PutObjectAPI, presign PresignGetAPI, bucket string) *ImageStore {
	return &ImageStore{
		client:  client,
		presign: presign,
		bucket:  bucket,
		prefix:  defaultPrefix,
		expiry:  DefaultURLExpiry,
		now:     time.Now,
	}
}

// SaveGenerated uploads data under checkins/YYYY/MM/DD/<uuid>.<ext> and
// returns a presigned URL for it.
func (s *ImageStore) SaveGenerated(ctx context.Context, data []byte, mimeType string) (string, error) {
	const op = "save generated image"
	if len(data) == 0 {
		return "", apperr.Validation(op, errors.New("empty image"))
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	key := path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), uuid.NewString()+extensionFor(mimeType))
	log.Debug().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(data)).Msg("Uploading generated image to S3")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mimeType,
		Tagging:     ProjectTagging("checkin"),
	})
	if err != nil {
		return "", apperr.Transport(op, fmt.Errorf("S3 PutObject: %w", err))
	}

	url, err := s.PresignedURL(ctx, key)
	if err != nil {
		return "", err
	}
	log.Info().Str("key", key).Msg("Generated image uploaded to S3")
	return url, nil
}

// PresignedURL creates a presigned GET URL for key.
func (s *ImageStore) PresignedURL(ctx context.Context, key string) (string, error) {
	expiry := s.expiry
	result, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
