package gcloud

import (
	"encoding/json"
	"fmt"
	"os"
)

// ServiceAccountCredentials represents the structure of a Google service account JSON key file.
type ServiceAccountCredentials struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// ParseCredentials decodes and checks a service account key.
func ParseCredentials(data []byte) (*ServiceAccountCredentials, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("credentials are empty")
	}

	var creds ServiceAccountCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials JSON: %w", err)
	}

	if creds.Type == "" {
		return nil, fmt.Errorf("missing required field: type")
	}
	if creds.Type != "service_account" {
		return nil, fmt.Errorf("unsupported credentials type %q, expected service_account", creds.Type)
	}
	if creds.PrivateKey == "" {
		return nil, fmt.Errorf("missing required field: private_key")
	}
	if creds.ClientEmail == "" {
		return nil, fmt.Errorf("missing required field: client_email")
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("missing required field: project_id")
	}
	if creds.TokenURI == "" {
		return nil, fmt.Errorf("missing required field: token_uri")
	}

	return &creds, nil
}

// ReadCredentialsFile reads and checks the service account key at path.
func ReadCredentialsFile(path string) (*ServiceAccountCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("credentials file is empty: %s", path)
	}
	return ParseCredentials(data)
}

// ValidateCredentialsFile checks if the credentials file exists, is readable, and contains required fields.
func ValidateCredentialsFile(path string) error {
	_, err := ReadCredentialsFile(path)
	return err
}
