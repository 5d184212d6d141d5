package jobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docpipe/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/api/firestore/v1"
	"google.golang.org/api/option"
)

const docRoot = "projects/p1/databases/(default)/documents"

func newTestFirestore(t *testing.T, handler http.HandlerFunc) *Firestore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := firestore.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("firestore.NewService() error = %v", err)
	}
	store, err := NewFirestore(svc, "p1", "", nil)
	if err != nil {
		t.Fatalf("NewFirestore() error = %v", err)
	}
	return store
}

func TestFirestore_QueryPartition(t *testing.T) {
	var gotPath string
	store := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"documents": [
				{
					"name": "`+docRoot+`/jobs/d1/records/a",
					"fields": {"jobStatus": {"stringValue": "IN_PROGRESS"}, "jobId": {"stringValue": "j-1"}},
					"updateTime": "2026-03-14T09:26:53.123456Z"
				},
				{
					"name": "`+docRoot+`/jobs/d1/records/b",
					"fields": {
						"jobStatus": {"stringValue": "SUCCEEDED"},
						"jobId": {"integerValue": "42"},
						"outputPath": {"stringValue": "uploads/d1.txt"}
					}
				}
			]
		}`)
	})

	records, err := store.Query(context.Background(), Query{Table: "jobs", DocumentID: "d1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if !strings.HasSuffix(gotPath, "/jobs/d1/records") {
		t.Errorf("request path = %q, want suffix /jobs/d1/records", gotPath)
	}

	want := []models.Record{
		{DocumentID: "d1", SortKey: "a", JobID: "j-1", Status: "IN_PROGRESS"},
		{DocumentID: "d1", SortKey: "b", JobID: "42", Status: "SUCCEEDED", OutputPath: "uploads/d1.txt"},
	}
	if diff := cmp.Diff(want, records, cmpopts.IgnoreFields(models.Record{}, "UpdatedAt")); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}
	if records[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt not parsed from updateTime")
	}
}

func TestFirestore_QuerySortKey(t *testing.T) {
	store := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/summaries/d1/records/job-7") {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error": {"code": 404, "message": "not found", "status": "NOT_FOUND"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"name": "`+docRoot+`/summaries/d1/records/job-7",
			"fields": {"jobStatus": {"stringValue": "Complete"}, "summaryText": {"stringValue": "Revenue grew."}}
		}`)
	})

	records, err := store.Query(context.Background(), Query{Table: "summaries", DocumentID: "d1", SortKey: "job-7"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []models.Record{{DocumentID: "d1", SortKey: "job-7", Status: "Complete", SummaryText: "Revenue grew."}}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}

	records, err = store.Query(context.Background(), Query{Table: "summaries", DocumentID: "d1", SortKey: "missing"})
	if err != nil {
		t.Fatalf("Query(missing) error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Query(missing) = %v, want no records", records)
	}
}

func TestDecodeFields(t *testing.T) {
	doc := &firestore.Document{Fields: map[string]firestore.Value{
		"jobStatus":  {StringValue: "SUCCEEDED"},
		"jobId":      {IntegerValue: 42},
		"outputPath": {NullValue: "NULL_VALUE"},
		"pages":      {BooleanValue: true},
	}}
	want := map[string]string{"jobStatus": "SUCCEEDED", "jobId": "42"}
	if diff := cmp.Diff(want, decodeFields(doc)); diff != "" {
		t.Errorf("decodeFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestFirestore_QueryErrors(t *testing.T) {
	store := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error": {"code": 403, "message": "denied"}}`)
	})

	if _, err := store.Query(context.Background(), Query{Table: "jobs", DocumentID: "d1"}); err == nil {
		t.Error("Query() should fail on 403")
	}
	if _, err := store.Query(context.Background(), Query{Table: "jobs"}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Query() without document id error = %v, want ErrInvalidQuery", err)
	}
}

func TestFirestore_ListDocuments(t *testing.T) {
	var gotQuery string
	store := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"documents": [
				{
					"name": "`+docRoot+`/jobs/d1",
					"fields": {
						"bucketName": {"stringValue": "docs"},
						"objectName": {"stringValue": "uploads/report.pdf"},
						"jobStatus": {"stringValue": "SUCCEEDED"}
					}
				}
			],
			"nextPageToken": "tok-2"
		}`)
	})

	page, err := store.ListDocuments(context.Background(), "jobs", 0, "tok-1")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	want := &models.DocumentPage{
		Documents:     []models.DocumentSummary{{DocumentID: "d1", Bucket: "docs", ObjectName: "uploads/report.pdf", Status: "SUCCEEDED"}},
		NextPageToken: "tok-2",
	}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Errorf("ListDocuments() mismatch (-want +got):\n%s", diff)
	}
	for _, param := range []string{"pageSize=25", "pageToken=tok-1"} {
		if !strings.Contains(gotQuery, param) {
			t.Errorf("query %q missing %s", gotQuery, param)
		}
	}
}
