package config

import (
	"docpipe/internal/gcloud"
	"docpipe/internal/models"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Config holds the runtime configuration for docpipe.
type Config struct {
	// CredentialsPath is the path to the Google Cloud service account JSON key file.
	// When empty, application default credentials are used.
	CredentialsPath string `json:"credentials" yaml:"credentials" mapstructure:"credentials"`

	// ProjectID is the cloud project holding the status tables.
	// Defaults to the project of the service account.
	ProjectID string `json:"project_id" yaml:"project_id" mapstructure:"project_id"`

	API           APIConfig              `json:"api" yaml:"api" mapstructure:"api"`
	Content       ContentConfig          `json:"content" yaml:"content" mapstructure:"content"`
	Tables        TablesConfig           `json:"tables" yaml:"tables" mapstructure:"tables"`
	Polling       PollingConfig          `json:"polling" yaml:"polling" mapstructure:"polling"`
	Summarization models.SummarizeParams `json:"summarization" yaml:"summarization" mapstructure:"summarization"`
}

// APIConfig configures the job submission endpoints.
type APIConfig struct {
	// BaseURL is the stage URL of the pipeline API, e.g. https://docs.example.com/prod.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Audience enables ID token authentication for the given audience.
	// When empty, requests carry an OAuth2 access token.
	Audience string `json:"audience" yaml:"audience" mapstructure:"audience"`

	// Timeout bounds a single request. Default is 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RateLimit is the maximum number of requests per second. Default is 5.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ContentConfig configures object storage.
type ContentConfig struct {
	Bucket string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`

	// Prefix is prepended to every uploaded file name. Default is "uploads/".
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// SignedURLExpiry is how long download links stay valid. Default is 15m.
	SignedURLExpiry time.Duration `json:"signed_url_expiry" yaml:"signed_url_expiry" mapstructure:"signed_url_expiry"`

	// SignerEmail is the service account used to sign URLs through the IAM
	// credentials API when no private key is available locally.
	SignerEmail string `json:"signer_email" yaml:"signer_email" mapstructure:"signer_email"`
}

// TablesConfig names the job-status tables and the backend serving them.
type TablesConfig struct {
	// Backend is "firestore" (default) or "postgres".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Database is the Firestore database id. Default is "(default)".
	Database string `json:"database" yaml:"database" mapstructure:"database"`

	// PostgresDSN is required when Backend is "postgres".
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" mapstructure:"postgres_dsn"`

	Jobs       string `json:"jobs" yaml:"jobs" mapstructure:"jobs"`
	Embeddings string `json:"embeddings" yaml:"embeddings" mapstructure:"embeddings"`
	Outputs    string `json:"outputs" yaml:"outputs" mapstructure:"outputs"`
	Summaries  string `json:"summaries" yaml:"summaries" mapstructure:"summaries"`
	Documents  string `json:"documents" yaml:"documents" mapstructure:"documents"`
}

// PollingConfig controls job status polling.
type PollingConfig struct {
	// Interval is the delay between the end of one status check and the next. Default is 30s.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxAttempts stops polling a job after this many checks. 0 polls until done.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Apply default config values
func (c *Config) ApplyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 5
	}
	if c.Content.Prefix == "" {
		c.Content.Prefix = "uploads/"
	}
	if c.Content.SignedURLExpiry == 0 {
		c.Content.SignedURLExpiry = 15 * time.Minute
	}
	if c.Tables.Backend == "" {
		c.Tables.Backend = BackendFirestore
	}
	if c.Tables.Database == "" {
		c.Tables.Database = "(default)"
	}
	if c.Tables.Jobs == "" {
		c.Tables.Jobs = "jobs"
	}
	if c.Tables.Embeddings == "" {
		c.Tables.Embeddings = "embeddings"
	}
	if c.Tables.Outputs == "" {
		c.Tables.Outputs = "outputs"
	}
	if c.Tables.Summaries == "" {
		c.Tables.Summaries = "summaries"
	}
	if c.Tables.Documents == "" {
		c.Tables.Documents = c.Tables.Jobs
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = 30 * time.Second
	}
	if c.Summarization == (models.SummarizeParams{}) {
		c.Summarization = models.DefaultSummarizeParams()
	}
}

// Validate checks if the configuration is valid.
// It also applies default values for fields that are not set.
func (c *Config) Validate() error {
	c.ApplyDefaults()

	if c.API.BaseURL == "" {
		return errors.New("missing required field: api.base_url")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url is not an absolute URL: %q", c.API.BaseURL)
	}

	if c.Content.Bucket == "" {
		return errors.New("missing required field: content.bucket")
	}
	if !strings.HasSuffix(c.Content.Prefix, "/") {
		return fmt.Errorf("content.prefix must end with '/': %q", c.Content.Prefix)
	}

	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must not be negative")
	}
	if c.Polling.Interval < 0 {
		return errors.New("polling.interval must not be negative")
	}
	if c.Polling.MaxAttempts < 0 {
		return errors.New("polling.max_attempts must not be negative")
	}

	if err := c.Summarization.Validate(); err != nil {
		return fmt.Errorf("invalid summarization defaults: %w", err)
	}

	if c.CredentialsPath != "" {
		if err := ValidateCredentialsPath(c.CredentialsPath); err != nil {
			return err
		}
		creds, err := gcloud.ReadCredentialsFile(c.CredentialsPath)
		if err != nil {
			return err
		}
		if c.ProjectID == "" {
			c.ProjectID = creds.ProjectID
		}
	}

	switch c.Tables.Backend {
	case BackendFirestore:
		if c.ProjectID == "" {
			return errors.New("missing required field: project_id (needed by the firestore backend)")
		}
	case BackendPostgres:
		if c.Tables.PostgresDSN == "" {
			return errors.New("missing required field: tables.postgres_dsn")
		}
	default:
		return fmt.Errorf("unsupported tables.backend: %q", c.Tables.Backend)
	}

	return nil
}

// ValidateCredentialsPath checks that path points at a readable, well formed service account key.
func ValidateCredentialsPath(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking credentials file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("credentials path is a directory, expected a file: %s", path)
	}

	if err := gcloud.ValidateCredentialsFile(path); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
