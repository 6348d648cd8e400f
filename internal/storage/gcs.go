package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
)

// DocumentSigner produces time-bounded retrieval URLs for stored documents.
// Providers only ever see these signed URLs, never bucket credentials.
type DocumentSigner interface {
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// GCSSigner signs retrieval URLs against a single documents bucket.
type GCSSigner struct {
	client *gcs.Client
	bucket string
	logger *slog.Logger
}

func NewGCSSigner(ctx context.Context, bucket string, logger *slog.Logger) (*GCSSigner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSigner{client: client, bucket: bucket, logger: logger}, nil
}

func (s *GCSSigner) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(objectPath, &gcs.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		s.logger.Error("storage.sign_url.error", "object", objectPath, "error", err)
		return "", fmt.Errorf("sign url for %s: %w", objectPath, err)
	}
	return url, nil
}

func (s *GCSSigner) Close() error {
	return s.client.Close()
}
