package gcloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/firestore/v1"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"
)

// ScopeCloudPlatform covers storage, firestore and IAM credentials.
const ScopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

// Client holds the authenticated Google services used by docpipe.
type Client struct {
	// HTTP carries an OAuth2 access token for ScopeCloudPlatform.
	HTTP *http.Client

	Storage   *storage.Service
	Firestore *firestore.Service
	IAM       *iamcredentials.Service

	// ProjectID is the project the credentials belong to, if known.
	ProjectID string

	// ServiceAccount is set when a service account key was supplied.
	// It holds the private key used for local URL signing.
	ServiceAccount *ServiceAccountCredentials

	credentialsJSON []byte
}

// NewClient creates the Google services using the provided credentials file.
// An empty path falls back to application default credentials.
func NewClient(ctx context.Context, credentialsPath string) (*Client, error) {
	var (
		creds *google.Credentials
		sa    *ServiceAccountCredentials
		raw   []byte
		err   error
	)

	if credentialsPath != "" {
		raw, err = os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account file: %w", err)
		}
		sa, err = ParseCredentials(raw)
		if err != nil {
			return nil, err
		}
		creds, err = google.CredentialsFromJSON(ctx, raw, ScopeCloudPlatform)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials: %w", err)
		}
	} else {
		creds, err = google.FindDefaultCredentials(ctx, ScopeCloudPlatform)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		slog.Info("Using application default credentials", slog.String("project_id", creds.ProjectID))
	}

	httpClient := oauth2.NewClient(ctx, creds.TokenSource)

	storageService, err := storage.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	firestoreService, err := firestore.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore service: %w", err)
	}

	iamService, err := iamcredentials.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create iam credentials service: %w", err)
	}

	return &Client{
		HTTP:            httpClient,
		Storage:         storageService,
		Firestore:       firestoreService,
		IAM:             iamService,
		ProjectID:       creds.ProjectID,
		ServiceAccount:  sa,
		credentialsJSON: raw,
	}, nil
}

// APIClient returns the HTTP client for the pipeline API. With an audience
// the requests carry a Google-signed ID token, otherwise the access token
// client is reused.
func (c *Client) APIClient(ctx context.Context, audience string) (*http.Client, error) {
	if audience == "" {
		return c.HTTP, nil
	}

	var opts []option.ClientOption
	if len(c.credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(c.credentialsJSON))
	}
	client, err := idtoken.NewClient(ctx, audience, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ID token client: %w", err)
	}
	return client, nil
}
