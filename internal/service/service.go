package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docpipe/internal/api"
	"docpipe/internal/config"
	"docpipe/internal/gcloud"
	"docpipe/internal/jobstore"
	"docpipe/internal/notify"
	"docpipe/internal/resolver"
	"docpipe/internal/session"
	"docpipe/internal/storage"
	"docpipe/internal/upload"
)

// Services holds the long lived clients shared by every session.
type Services struct {
	Config *config.Config

	Google   *gcloud.Client
	Objects  *storage.GCS
	Jobs     jobstore.Store
	API      *api.Client
	Uploader *upload.Client
	Resolver *resolver.Resolver

	logger *slog.Logger
}

// New authenticates against Google Cloud and builds every client described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	google, err := gcloud.NewClient(ctx, cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = google.ProjectID
	}

	signer, err := newSigner(google, cfg.Content.SignerEmail)
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewGCS(storage.GCSConfig{
		Service: google.Storage,
		Bucket:  cfg.Content.Bucket,
		Prefix:  cfg.Content.Prefix,
		Signer:  signer,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	jobs, err := newJobStore(ctx, cfg, google, projectID, logger)
	if err != nil {
		return nil, err
	}

	httpClient, err := google.APIClient(ctx, cfg.API.Audience)
	if err != nil {
		jobs.Close()
		return nil, err
	}
	apiClient, err := api.NewWithConfig(api.ClientConfig{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: httpClient,
		Timeout:    cfg.API.Timeout,
		RateLimit:  cfg.API.RateLimit,
		Logger:     logger,
	})
	if err != nil {
		jobs.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	logger.Info("Services ready",
		slog.String("bucket", cfg.Content.Bucket),
		slog.String("backend", cfg.Tables.Backend),
		slog.String("api", cfg.API.BaseURL),
	)

	return &Services{
		Config:   cfg,
		Google:   google,
		Objects:  objects,
		Jobs:     jobs,
		API:      apiClient,
		Uploader: upload.New(objects, cfg.Content.Bucket, logger),
		Resolver: resolver.New(resolver.Config{
			Objects:     objects,
			Jobs:        jobs,
			OutputTable: cfg.Tables.Outputs,
			Prefix:      cfg.Content.Prefix,
			Expiry:      cfg.Content.SignedURLExpiry,
			Logger:      logger,
		}),
		logger: logger,
	}, nil
}

// NewSession builds a session over the shared clients that reports to n.
func (s *Services) NewSession(n notify.Notifier) (*session.Session, error) {
	return session.New(session.Config{
		Uploader:  s.Uploader,
		Submitter: s.API,
		Store:     s.Jobs,
		Resolver:  s.Resolver,
		Tables: session.Tables{
			Jobs:       s.Config.Tables.Jobs,
			Embeddings: s.Config.Tables.Embeddings,
			Summaries:  s.Config.Tables.Summaries,
		},
		Params:      s.Config.Summarization,
		Notifier:    n,
		Logger:      s.logger,
		Interval:    s.Config.Polling.Interval,
		MaxAttempts: s.Config.Polling.MaxAttempts,
	})
}

func (s *Services) Close() error {
	return s.Jobs.Close()
}

// newSigner prefers the private key of a service account file and falls
// back to the IAM credentials API for email.
func newSigner(google *gcloud.Client, email string) (storage.Signer, error) {
	if sa := google.ServiceAccount; sa != nil && sa.PrivateKey != "" {
		signer, err := storage.NewKeySigner(sa.ClientEmail, sa.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		return signer, nil
	}
	if email == "" {
		return nil, errors.New("content.signer_email is required without a service account key")
	}
	return storage.NewIAMSigner(google.IAM, email), nil
}

func newJobStore(ctx context.Context, cfg *config.Config, google *gcloud.Client, projectID string, logger *slog.Logger) (jobstore.Store, error) {
	switch cfg.Tables.Backend {
	case config.BackendPostgres:
		store, err := jobstore.NewPostgres(ctx, jobstore.PostgresConfig{
			DSN:    cfg.Tables.PostgresDSN,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres job store: %w", err)
		}
		return store, nil
	default:
		store, err := jobstore.NewFirestore(google.Firestore, projectID, cfg.Tables.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open firestore job store: %w", err)
		}
		return store, nil
	}
}
