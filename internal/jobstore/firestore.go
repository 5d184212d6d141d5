package jobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"docpipe/internal/models"

	"google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
)

// recordsCollection holds one document per sort key under each partition.
const recordsCollection = "records"

// Firestore layout:
//
//	{table}/{documentId}                    partition document (documents listing)
//	{table}/{documentId}/records/{sortKey}  one record per sort key
type Firestore struct {
	svc    *firestore.Service
	root   string
	logger *slog.Logger
}

// NewFirestore returns a store reading the given project and database.
func NewFirestore(svc *firestore.Service, projectID, database string, logger *slog.Logger) (*Firestore, error) {
	if svc == nil {
		return nil, errors.New("firestore service is required")
	}
	if projectID == "" {
		return nil, errors.New("project id is required")
	}
	if database == "" {
		database = "(default)"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Firestore{
		svc:    svc,
		root:   fmt.Sprintf("projects/%s/databases/%s/documents", projectID, database),
		logger: logger,
	}, nil
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]models.Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	partition := path.Join(f.root, q.Table, q.DocumentID)

	if q.SortKey != "" {
		doc, err := f.svc.Projects.Databases.Documents.Get(path.Join(partition, recordsCollection, q.SortKey)).Context(ctx).Do()
		if isNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s record %s/%s: %w", q.Table, q.DocumentID, q.SortKey, err)
		}
		return []models.Record{toRecord(q.DocumentID, doc)}, nil
	}

	var records []models.Record
	err := f.svc.Projects.Databases.Documents.List(partition, recordsCollection).
		Pages(ctx, func(resp *firestore.ListDocumentsResponse) error {
			for _, doc := range resp.Documents {
				records = append(records, toRecord(q.DocumentID, doc))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records for %s: %w", q.Table, q.DocumentID, err)
	}

	f.logger.Debug("Queried job-status table",
		slog.String("table", q.Table),
		slog.String("document_id", q.DocumentID),
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (f *Firestore) ListDocuments(ctx context.Context, table string, pageSize int, pageToken string) (*models.DocumentPage, error) {
	if table == "" {
		return nil, ErrInvalidQuery
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	call := f.svc.Projects.Databases.Documents.List(f.root, table).
		PageSize(int64(pageSize)).
		ShowMissing(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", table, err)
	}

	page := &models.DocumentPage{NextPageToken: resp.NextPageToken}
	for _, doc := range resp.Documents {
		fields := decodeFields(doc)
		page.Documents = append(page.Documents, models.DocumentSummary{
			DocumentID: path.Base(doc.Name),
			Bucket:     fields["bucketName"],
			ObjectName: fields["objectName"],
			JobID:      fields["jobId"],
			Status:     fields["jobStatus"],
		})
	}
	return page, nil
}

func (f *Firestore) Close() error { return nil }

func toRecord(documentID string, doc *firestore.Document) models.Record {
	fields := decodeFields(doc)
	rec := models.Record{
		DocumentID:  documentID,
		SortKey:     path.Base(doc.Name),
		JobID:       fields["jobId"],
		Status:      fields["jobStatus"],
		OutputPath:  fields["outputPath"],
		OutputType:  fields["outputType"],
		SummaryText: fields["summaryText"],
	}
	if doc.UpdateTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, doc.UpdateTime); err == nil {
			rec.UpdatedAt = t
		}
	}
	return rec
}

// decodeFields flattens the string and integer fields of doc. Job ids are
// integers in records written by some workers. The decoded value cannot tell
// an empty string or a zero from an absent field, so both are left out.
func decodeFields(doc *firestore.Document) map[string]string {
	out := make(map[string]string, len(doc.Fields))
	for name, v := range doc.Fields {
		switch {
		case v.NullValue != "":
		case v.StringValue != "":
			out[name] = v.StringValue
		case v.IntegerValue != 0:
			out[name] = strconv.FormatInt(v.IntegerValue, 10)
		}
	}
	return out
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
