package resolver

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"docpipe/internal/jobstore"
	"docpipe/internal/models"

	"github.com/google/go-cmp/cmp"
)

type fakeObjects struct {
	err    error
	gotKey string
	gotTTL time.Duration
	signed int
}

func (f *fakeObjects) Put(context.Context, string, io.Reader, string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeObjects) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	f.signed++
	f.gotKey, f.gotTTL = key, expiry
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.example.com/docs/uploads/" + key + "?X-Goog-Signature=abc", nil
}

type fakeJobs struct {
	records []models.Record
	err     error
	got     jobstore.Query
}

func (f *fakeJobs) Query(_ context.Context, q jobstore.Query) ([]models.Record, error) {
	f.got = q
	return f.records, f.err
}

func (f *fakeJobs) ListDocuments(context.Context, string, int, string) (*models.DocumentPage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeJobs) Close() error { return nil }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_WithOutputPath(t *testing.T) {
	objects := &fakeObjects{}
	r := New(Config{Objects: objects, Prefix: "uploads/", Now: func() time.Time { return testNow }})

	got, err := r.Resolve(context.Background(), "d1", "uploads/d1.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := Download{
		OutputPath: "uploads/d1.txt",
		Key:        "d1.txt",
		URL:        "https://storage.example.com/docs/uploads/d1.txt?X-Goog-Signature=abc",
		ExpiresAt:  testNow.Add(15 * time.Minute),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
	if objects.gotTTL != DefaultExpiry {
		t.Errorf("expiry = %v, want %v", objects.gotTTL, DefaultExpiry)
	}
}

func TestResolve_FallsBackToOutputTable(t *testing.T) {
	objects := &fakeObjects{}
	jobs := &fakeJobs{records: []models.Record{
		{DocumentID: "d1", SortKey: models.OutputTypeOrderedText, OutputPath: "uploads/old.txt"},
		{DocumentID: "d1", SortKey: models.OutputTypeOrderedText, OutputPath: "uploads/d1.txt"},
	}}
	r := New(Config{Objects: objects, Jobs: jobs, OutputTable: "outputs", Prefix: "uploads/"})

	got, err := r.Resolve(context.Background(), "d1", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Key != "d1.txt" {
		t.Errorf("Key = %q, want d1.txt (last record wins)", got.Key)
	}

	wantQuery := jobstore.Query{Table: "outputs", DocumentID: "d1", SortKey: "ResponseOrderedText"}
	if diff := cmp.Diff(wantQuery, jobs.got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		objects *fakeObjects
		jobs    *fakeJobs
		path    string
		wantErr error

		// want is the partial result returned alongside the error.
		want Download
	}{
		{
			name:    "no output recorded",
			objects: &fakeObjects{},
			jobs:    &fakeJobs{},
			wantErr: ErrNoOutput,
		},
		{
			name:    "output table failure",
			objects: &fakeObjects{},
			jobs:    &fakeJobs{err: errors.New("unavailable")},
		},
		{
			name:    "signing failure",
			objects: &fakeObjects{err: errors.New("permission denied")},
			jobs:    &fakeJobs{},
			path:    "uploads/d1.txt",
			want:    Download{OutputPath: "uploads/d1.txt", Key: "d1.txt"},
		},
		{
			name:    "signing failure after lookup",
			objects: &fakeObjects{err: errors.New("permission denied")},
			jobs: &fakeJobs{records: []models.Record{
				{DocumentID: "d1", SortKey: models.OutputTypeOrderedText, OutputPath: "uploads/d1.txt"},
			}},
			want: Download{OutputPath: "uploads/d1.txt", Key: "d1.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{Objects: tt.objects, Jobs: tt.jobs, OutputTable: "outputs", Prefix: "uploads/"})
			got, err := r.Resolve(context.Background(), "d1", tt.path)
			if err == nil {
				t.Fatal("Resolve() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeyFromPath(t *testing.T) {
	tests := []struct {
		path, prefix, want string
	}{
		{"uploads/d1.txt", "uploads/", "d1.txt"},
		{"d1.txt", "uploads/", "d1.txt"},
		{"out/uploads/d1.txt", "uploads/", "out/d1.txt"},
		{"uploads/d1.txt", "", "uploads/d1.txt"},
	}
	for _, tt := range tests {
		if got := KeyFromPath(tt.path, tt.prefix); got != tt.want {
			t.Errorf("KeyFromPath(%q, %q) = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}
