// Package api submits jobs to the document pipeline's request/response API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docpipe/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the client generated id of each request.
const RequestIDHeader = "X-Request-Id"

// ErrSubmission wraps every failure to start a job. The job id stays unset
// and the caller may retry.
var ErrSubmission = errors.New("job submission failed")

// QAError is a handled question-answering failure reported by the service.
type QAError struct {
	Code    int
	Message string
}

func (e *QAError) Error() string {
	return fmt.Sprintf("question answering failed with code %d: %s", e.Code, e.Message)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the API stage URL. Endpoint paths are appended to it.
	BaseURL string

	// HTTPClient must carry the caller's credentials. Defaults to a plain client.
	HTTPClient *http.Client

	// Timeout bounds each request. Default is 30s.
	Timeout time.Duration

	// RateLimit is requests per second. Default is 5.
	RateLimit float64

	Logger *slog.Logger
}

// Client talks to the pipeline API.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewWithConfig returns a Client for config.BaseURL.
func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse API base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("API base URL must be absolute: %q", config.BaseURL)
	}

	return &Client{
		base:    base,
		http:    config.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		timeout: config.Timeout,
		logger:  config.Logger,
	}, nil
}

type documentRequest struct {
	DocID  string `json:"docId"`
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

type summarizeRequest struct {
	documentRequest
	models.SummarizeParams
}

type extractionResponse struct {
	Message string `json:"msg,omitempty"`
	JobID   string `json:"jobId"`
}

type jobResponse struct {
	Message string `json:"msg,omitempty"`
	Job     string `json:"job"`
}

type qaRequest struct {
	DocID    string `json:"docId"`
	Question string `json:"question"`
}

// Answer is the reply of the question-answering endpoint.
type Answer struct {
	Code   int    `json:"code"`
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newDocumentRequest(doc models.Document) documentRequest {
	return documentRequest{DocID: doc.ID, Bucket: doc.Bucket, Name: doc.Name}
}

// newTextRequest names the extraction output instead of the uploaded file.
// The embedding and summarization workers read plain text from it.
func newTextRequest(doc models.Document, textPath string) (documentRequest, error) {
	if textPath == "" {
		return documentRequest{}, errors.New("no extracted text path")
	}
	return documentRequest{DocID: doc.ID, Bucket: doc.Bucket, Name: textPath}, nil
}

// StartExtraction starts PDF text extraction and returns the job id.
func (c *Client) StartExtraction(ctx context.Context, doc models.Document) (string, error) {
	var resp extractionResponse
	if err := c.send(ctx, "/doctopdf", newDocumentRequest(doc), &resp); err != nil {
		return "", fmt.Errorf("%w: extraction: %w", ErrSubmission, err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: extraction: response has no jobId", ErrSubmission)
	}
	return resp.JobID, nil
}

// StartEmbedding starts embedding generation over the extracted text stored
// at textPath and returns the job id.
func (c *Client) StartEmbedding(ctx context.Context, doc models.Document, textPath string) (string, error) {
	req, err := newTextRequest(doc, textPath)
	if err != nil {
		return "", fmt.Errorf("%w: embedding: %w", ErrSubmission, err)
	}
	var resp jobResponse
	if err := c.send(ctx, "/embed", req, &resp); err != nil {
		return "", fmt.Errorf("%w: embedding: %w", ErrSubmission, err)
	}
	if resp.Job == "" {
		return "", fmt.Errorf("%w: embedding: response has no job", ErrSubmission)
	}
	return resp.Job, nil
}

// StartSummarization starts summarization of the extracted text stored at
// textPath with the given parameters and returns the job id.
func (c *Client) StartSummarization(ctx context.Context, doc models.Document, textPath string, params models.SummarizeParams) (string, error) {
	text, err := newTextRequest(doc, textPath)
	if err != nil {
		return "", fmt.Errorf("%w: summarization: %w", ErrSubmission, err)
	}
	var resp jobResponse
	req := summarizeRequest{documentRequest: text, SummarizeParams: params}
	if err := c.send(ctx, "/summarize", req, &resp); err != nil {
		return "", fmt.Errorf("%w: summarization: %w", ErrSubmission, err)
	}
	if resp.Job == "" {
		return "", fmt.Errorf("%w: summarization: response has no job", ErrSubmission)
	}
	return resp.Job, nil
}

// Ask sends a question about an embedded document. A reply with a code
// other than 200 is returned together with a *QAError.
func (c *Client) Ask(ctx context.Context, docID, question string) (*Answer, error) {
	var resp Answer
	if err := c.send(ctx, "/qa", qaRequest{DocID: docID, Question: question}, &resp); err != nil {
		// The service may report handled failures with an error status and a coded body.
		var serr *StatusError
		if errors.As(err, &serr) && json.Unmarshal(serr.Body, &resp) == nil && resp.Code != 0 {
			return &resp, &QAError{Code: resp.Code, Message: resp.Error}
		}
		return nil, fmt.Errorf("failed to ask question: %w", err)
	}
	if resp.Code != http.StatusOK {
		return &resp, &QAError{Code: resp.Code, Message: resp.Error}
	}
	return &resp, nil
}

// send posts body as JSON to path and decodes a 2xx response into out.
func (c *Client) send(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqID := uuid.New().String()
	start := time.Now()
	endpoint := c.base.JoinPath(path).String()

	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, reqID)

	c.logger.Info("api.request",
		slog.String("req_id", reqID),
		slog.String("url", endpoint),
		slog.Int("content_length", len(bs)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("api.send_error",
			slog.String("req_id", reqID),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("api.response_body_close_error", slog.String("req_id", reqID), slog.String("error", err.Error()))
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Info("api.response",
		slog.String("req_id", reqID),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
