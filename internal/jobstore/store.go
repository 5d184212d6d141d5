// Package jobstore reads the job-status tables written by the pipeline workers.
//
// Every table is partitioned by document id. Some tables add a sort key
// (job id for embeddings and summaries, output type for outputs).
package jobstore

import (
	"context"
	"errors"

	"docpipe/internal/models"
)

// DefaultPageSize is the page size used when listing documents.
const DefaultPageSize = 25

// ErrInvalidQuery is returned for queries missing the table or partition key.
var ErrInvalidQuery = errors.New("invalid job-status query")

// Query selects records of one table by partition key and optional sort key.
type Query struct {
	Table      string
	DocumentID string

	// SortKey narrows the query to one record when set.
	SortKey string
}

func (q Query) validate() error {
	if q.Table == "" || q.DocumentID == "" {
		return ErrInvalidQuery
	}
	return nil
}

// Store is a read-only view over the job-status tables.
type Store interface {
	// Query returns the matching records in store iteration order.
	Query(ctx context.Context, q Query) ([]models.Record, error)

	// ListDocuments pages through the documents table.
	ListDocuments(ctx context.Context, table string, pageSize int, pageToken string) (*models.DocumentPage, error)

	Close() error
}
