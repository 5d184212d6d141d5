package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"credentials":   "credentials",
	"project":       "project_id",
	"api-url":       "api.base_url",
	"audience":      "api.audience",
	"bucket":        "content.bucket",
	"prefix":        "content.prefix",
	"backend":       "tables.backend",
	"postgres-dsn":  "tables.postgres_dsn",
	"poll-interval": "polling.interval",
	"max-attempts":  "polling.max_attempts",
}

// RegisterFlags defines the configuration flags on fs.
// Values given on the command line override the config file and environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("credentials", "", "Path to service account JSON (default: application default credentials)")
	fs.String("project", "", "Cloud project holding the status tables (default: project of the service account)")
	fs.String("api-url", "", "Base URL of the pipeline API")
	fs.String("audience", "", "Audience for ID token authentication against the pipeline API")
	fs.String("bucket", "", "Object storage bucket for uploads")
	fs.String("prefix", "", "Object key prefix for uploads (default: uploads/)")
	fs.String("backend", "", "Status table backend: firestore or postgres (default: firestore)")
	fs.String("postgres-dsn", "", "Postgres DSN for the postgres backend")
	fs.Duration("poll-interval", 0, "Delay between job status checks (default: 30s)")
	fs.Int("max-attempts", 0, "Stop polling a job after this many checks (default: 0, unlimited)")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}
