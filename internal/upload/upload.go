// Package upload writes user documents to object storage and assigns their
// document ids.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"docpipe/internal/models"
	"docpipe/internal/storage"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for file names that cannot be used as object keys.
var ErrInvalidName = errors.New("invalid file name")

// Client uploads documents.
type Client struct {
	store  storage.Store
	bucket string
	logger *slog.Logger

	// newID is swapped in tests.
	newID func() string
}

// New returns a Client that writes uploads to bucket through store.
func New(store storage.Store, bucket string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		store:  store,
		bucket: bucket,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Upload stores r under the upload prefix using fileName as the key. The
// document id is generated only once the write has succeeded.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (models.Document, error) {
	if err := validateName(fileName); err != nil {
		return models.Document{}, err
	}

	name, err := c.store.Put(ctx, fileName, r, contentType(fileName))
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to upload %s: %w", fileName, err)
	}

	doc := models.Document{
		ID:     c.newID(),
		Bucket: c.bucket,
		Name:   name,
		Key:    fileName,
	}
	c.logger.Info("Document uploaded",
		slog.String("doc_id", doc.ID),
		slog.String("bucket", doc.Bucket),
		slog.String("name", doc.Name),
	)
	return doc, nil
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
