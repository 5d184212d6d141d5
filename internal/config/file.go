package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g. DOCPIPE_API_BASE_URL.
const EnvPrefix = "DOCPIPE"

// Load builds a validated Config from defaults, the optional config file at
// path, a .env file in the working directory, DOCPIPE_* environment
// variables and the flags registered with RegisterFlags, in increasing order
// of precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Debug("Loaded config file", slog.String("path", v.ConfigFileUsed()))
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	return decode(v)
}

// LoadFromJSON decodes a JSON document on top of the defaults.
func LoadFromJSON(data []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so that AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("credentials", d.CredentialsPath)
	v.SetDefault("project_id", d.ProjectID)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.audience", d.API.Audience)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.rate_limit", d.API.RateLimit)

	v.SetDefault("content.bucket", d.Content.Bucket)
	v.SetDefault("content.prefix", d.Content.Prefix)
	v.SetDefault("content.signed_url_expiry", d.Content.SignedURLExpiry)
	v.SetDefault("content.signer_email", d.Content.SignerEmail)

	v.SetDefault("tables.backend", d.Tables.Backend)
	v.SetDefault("tables.database", d.Tables.Database)
	v.SetDefault("tables.postgres_dsn", d.Tables.PostgresDSN)
	v.SetDefault("tables.jobs", d.Tables.Jobs)
	v.SetDefault("tables.embeddings", d.Tables.Embeddings)
	v.SetDefault("tables.outputs", d.Tables.Outputs)
	v.SetDefault("tables.summaries", d.Tables.Summaries)
	v.SetDefault("tables.documents", d.Tables.Documents)

	v.SetDefault("polling.interval", d.Polling.Interval)
	v.SetDefault("polling.max_attempts", d.Polling.MaxAttempts)

	v.SetDefault("summarization.chunk_size", d.Summarization.ChunkSize)
	v.SetDefault("summarization.chunk_overlap", d.Summarization.ChunkOverlap)
	v.SetDefault("summarization.max_length", d.Summarization.MaxLength)
	v.SetDefault("summarization.top_p", d.Summarization.TopP)
	v.SetDefault("summarization.top_k", d.Summarization.TopK)
	v.SetDefault("summarization.num_beams", d.Summarization.NumBeams)
	v.SetDefault("summarization.temperature", d.Summarization.Temperature)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
