package types

import (
	"errors"
	"fmt"
	"os"
	"time"

	"docpipe/internal/config"

	"github.com/spf13/pflag"
)

type APIConfig struct {
	// Addr is the listen address. Default is ":8090".
	Addr string

	// ShutdownTimeout bounds the graceful shutdown. Default is 15s.
	ShutdownTimeout time.Duration

	// Pipeline is the shared docpipe configuration.
	Pipeline *config.Config
}

// LoadConfig parses the server flags from args and loads the pipeline
// configuration from the optional --config file, the environment and flags.
func LoadConfig(args []string) (*APIConfig, error) {
	fs := pflag.NewFlagSet("app", pflag.ContinueOnError)
	addr := fs.String("addr", ":8090", "Listen address")
	shutdownTimeout := fs.Duration("shutdown-timeout", 15*time.Second, "Graceful shutdown timeout")
	configPath := fs.String("config", "", "Path to a YAML or JSON config file")
	config.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return nil, err
	}

	pipeline, err := config.Load(*configPath, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := &APIConfig{
		Addr:            *addr,
		ShutdownTimeout: *shutdownTimeout,
		Pipeline:        pipeline,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *APIConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}
