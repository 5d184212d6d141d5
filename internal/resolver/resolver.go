// Package resolver turns a finished extraction into a download link.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docpipe/internal/jobstore"
	"docpipe/internal/models"
	"docpipe/internal/storage"
)

// DefaultExpiry is how long a signed download URL stays valid.
const DefaultExpiry = 15 * time.Minute

// ErrNoOutput is returned when neither the job record nor the output table
// knows where the extracted text was written.
var ErrNoOutput = errors.New("no extraction output recorded")

// Download is a resolved extraction output.
type Download struct {
	// OutputPath is the stored location reported by the pipeline.
	OutputPath string `json:"output_path"`

	// Key is OutputPath relative to the upload prefix.
	Key string `json:"key"`

	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Config configures a Resolver.
type Config struct {
	Objects storage.Store
	Jobs    jobstore.Store

	// OutputTable is read when the terminal record has no output path.
	OutputTable string

	// Prefix is stripped from output paths to recover storage keys.
	Prefix string

	// Expiry defaults to DefaultExpiry.
	Expiry time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Resolver exchanges extraction output paths for signed URLs.
type Resolver struct {
	objects     storage.Store
	jobs        jobstore.Store
	outputTable string
	prefix      string
	expiry      time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New returns a Resolver with defaults applied to cfg.
func New(cfg Config) *Resolver {
	if cfg.Expiry == 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		objects:     cfg.Objects,
		jobs:        cfg.Jobs,
		outputTable: cfg.OutputTable,
		prefix:      cfg.Prefix,
		expiry:      cfg.Expiry,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Resolve signs a download URL for the extraction output of docID. An empty
// outputPath is looked up in the output table first. When only signing fails
// the returned Download still carries OutputPath and Key.
func (r *Resolver) Resolve(ctx context.Context, docID, outputPath string) (Download, error) {
	if outputPath == "" {
		path, err := r.lookupOutputPath(ctx, docID)
		if err != nil {
			return Download{}, err
		}
		outputPath = path
	}

	key := KeyFromPath(outputPath, r.prefix)
	issued := r.now()
	url, err := r.objects.SignedURL(ctx, key, r.expiry)
	if err != nil {
		return Download{OutputPath: outputPath, Key: key}, fmt.Errorf("failed to get download link for %s: %w", key, err)
	}

	r.logger.Info("Download link issued",
		slog.String("doc_id", docID),
		slog.String("key", key),
		slog.Duration("expiry", r.expiry),
	)
	return Download{
		OutputPath: outputPath,
		Key:        key,
		URL:        url,
		ExpiresAt:  issued.Add(r.expiry),
	}, nil
}

func (r *Resolver) lookupOutputPath(ctx context.Context, docID string) (string, error) {
	if r.jobs == nil || r.outputTable == "" {
		return "", ErrNoOutput
	}
	records, err := r.jobs.Query(ctx, jobstore.Query{
		Table:      r.outputTable,
		DocumentID: docID,
		SortKey:    models.OutputTypeOrderedText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read output table: %w", err)
	}

	var path string
	for _, rec := range records {
		if rec.OutputPath != "" {
			path = rec.OutputPath
		}
	}
	if path == "" {
		return "", ErrNoOutput
	}
	return path, nil
}

// KeyFromPath removes the first occurrence of prefix from path.
func KeyFromPath(path, prefix string) string {
	if prefix == "" {
		return path
	}
	return strings.Replace(path, prefix, "", 1)
}
