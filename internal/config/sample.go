package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteSample writes a YAML config file holding the defaults and placeholders
// for the required fields.
func WriteSample(w io.Writer) error {
	cfg := Default()
	cfg.API.BaseURL = "https://pipeline.example.com/prod"
	cfg.Content.Bucket = "my-documents-bucket"
	cfg.ProjectID = "my-project"

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode sample config: %w", err)
	}
	return enc.Close()
}
