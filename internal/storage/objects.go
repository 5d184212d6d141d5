package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	gcs "google.golang.org/api/storage/v1"
)

// maxSignedExpiry is the longest validity V4 signing allows.
const maxSignedExpiry = 7 * 24 * time.Hour

// Store writes objects and hands out time-limited read links.
// Keys are relative to the store's prefix.
type Store interface {
	// Put writes r under prefix+key and returns the stored object name.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)

	// SignedURL returns a GET URL for prefix+key valid for expiry.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// GCSConfig configures a GCS store.
type GCSConfig struct {
	Service *gcs.Service
	Bucket  string

	// Prefix is prepended to every key, e.g. "uploads/".
	Prefix string

	// Signer signs download URLs. Required for SignedURL.
	Signer Signer

	Logger *slog.Logger
}

// GCS is a Store backed by a Google Cloud Storage bucket.
type GCS struct {
	svc    *gcs.Service
	bucket string
	prefix string
	signer Signer
	logger *slog.Logger
}

// NewGCS returns a Store writing to cfg.Bucket through cfg.Service.
func NewGCS(cfg GCSConfig) (*GCS, error) {
	if cfg.Service == nil {
		return nil, errors.New("storage service is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GCS{
		svc:    cfg.Service,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		signer: cfg.Signer,
		logger: cfg.Logger,
	}, nil
}

// Bucket returns the bucket name.
func (s *GCS) Bucket() string { return s.bucket }

// Prefix returns the key prefix.
func (s *GCS) Prefix() string { return s.prefix }

func (s *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	name := s.prefix + strings.TrimPrefix(key, "/")
	start := time.Now()

	var opts []googleapi.MediaOption
	if contentType != "" {
		opts = append(opts, googleapi.ContentType(contentType))
	}

	obj, err := s.svc.Objects.Insert(s.bucket, &gcs.Object{Name: name, ContentType: contentType}).
		Media(r, opts...).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", name, s.bucket, err)
	}

	s.logger.Info("Object uploaded",
		slog.String("bucket", s.bucket),
		slog.String("name", obj.Name),
		slog.Int("size", int(obj.Size)),
		slog.Duration("duration", time.Since(start)),
	)
	return obj.Name, nil
}

func (s *GCS) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.signer == nil {
		return "", errors.New("no signer configured for signed URLs")
	}
	if expiry <= 0 || expiry > maxSignedExpiry {
		return "", fmt.Errorf("signed URL expiry must be in (0, %s], got %s", maxSignedExpiry, expiry)
	}

	name := s.prefix + strings.TrimPrefix(key, "/")
	signed, err := cloudstorage.SignedURL(s.bucket, name, &cloudstorage.SignedURLOptions{
		GoogleAccessID: s.signer.Email(),
		SignBytes:      signBytes(ctx, s.signer),
		Method:         http.MethodGet,
		Expires:        time.Now().Add(expiry),
		Scheme:         cloudstorage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", name, err)
	}
	return signed, nil
}
