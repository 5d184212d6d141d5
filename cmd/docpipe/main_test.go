package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docpipe/internal/config"
	"docpipe/internal/jobstore"
	"docpipe/internal/models"
	"docpipe/internal/orchestrator"
	"docpipe/internal/workflow"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
)

func init() {
	color.NoColor = true
}

type tableStore struct {
	records map[string][]models.Record
	err     error
	queries []jobstore.Query
}

func (s *tableStore) Query(_ context.Context, q jobstore.Query) ([]models.Record, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Record
	for _, r := range s.records[q.Table] {
		if q.SortKey == "" || r.SortKey == q.SortKey {
			out = append(out, r)
		}
	}
	return out, nil
}

// fields splits output into lines of whitespace separated fields.
func fields(s string) [][]string {
	var out [][]string
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		out = append(out, strings.Fields(line))
	}
	return out
}

func TestPrintStatus(t *testing.T) {
	tables := config.Default().Tables
	store := &tableStore{records: map[string][]models.Record{
		"jobs": {{DocumentID: "d1", JobID: "ext-1", Status: "SUCCEEDED", OutputPath: "uploads/d1.txt"}},
		"summaries": {
			{DocumentID: "d1", SortKey: "s1", Status: "Complete"},
			{DocumentID: "d1", SortKey: "s2", Status: "Started"},
		},
	}}

	var buf bytes.Buffer
	if err := printStatus(context.Background(), &buf, store, tables, "d1", ""); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	want := [][]string{
		{"KIND", "JOB", "STATUS", "DONE", "OUTPUT"},
		{"extraction", "ext-1", "SUCCEEDED", "yes", "uploads/d1.txt"},
		{"embedding", "-", "not", "started", "-"},
		{"summarization", "s1", "Complete", "yes"},
		{"summarization", "s2", "Started", "no"},
	}
	if diff := cmp.Diff(want, fields(buf.String())); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintStatus_SummaryJob(t *testing.T) {
	tables := config.Default().Tables
	store := &tableStore{}

	if err := printStatus(context.Background(), &bytes.Buffer{}, store, tables, "d1", "s2"); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	want := []jobstore.Query{
		{Table: "jobs", DocumentID: "d1"},
		{Table: "embeddings", DocumentID: "d1"},
		{Table: "summaries", DocumentID: "d1", SortKey: "s2"},
	}
	if diff := cmp.Diff(want, store.queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintStatus_QueryError(t *testing.T) {
	store := &tableStore{err: errors.New("unavailable")}
	err := printStatus(context.Background(), &bytes.Buffer{}, store, config.Default().Tables, "d1", "")
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("printStatus() error = %v, want wrapped store error", err)
	}
}

func TestPrintDocuments(t *testing.T) {
	tests := []struct {
		name string
		page *models.DocumentPage
		want string
	}{
		{
			name: "empty",
			page: &models.DocumentPage{},
			want: "No documents.\n",
		},
		{
			name: "with next page",
			page: &models.DocumentPage{
				Documents: []models.DocumentSummary{
					{DocumentID: "d1", Bucket: "docs", ObjectName: "uploads/a.pdf", JobID: "j1", Status: "SUCCEEDED"},
				},
				NextPageToken: "d1",
			},
			want: "DOC_ID  OBJECT                   JOB  STATUS\n" +
				"d1      gs://docs/uploads/a.pdf  j1   SUCCEEDED\n" +
				"\nNext page: --page-token d1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printDocuments(&buf, tt.page); err != nil {
				t.Fatalf("printDocuments() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	out := &workflow.WorkflowOutput{
		Status:      workflow.StatusPartial,
		DownloadURL: "https://signed.example.com/d1.txt",
		Summary:     "Short summary.\n",
		Answers: []orchestrator.Answer{
			{Question: "Who?", Answer: "Ada."},
			{Question: "Why?", Error: "no index"},
		},
		Warnings: []string{"embedding generation failed"},
	}
	out.Document.ID = "d1"
	out.Document.Bucket = "docs"
	out.Document.Name = "uploads/a.pdf"

	var buf bytes.Buffer
	printResult(&buf, out)

	want := "Status:   partial (0s)\n" +
		"Document: d1 (gs://docs/uploads/a.pdf)\n" +
		"Text:     https://signed.example.com/d1.txt\n" +
		"\nSummary:\nShort summary.\n" +
		"\nQ: Who?\nA: Ada.\n" +
		"\nQ: Why?\nA: (failed: no index)\n" +
		"\nwarning: embedding generation failed\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpipe.yaml")

	run := func(args ...string) error {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	if err := run("config", "init", path); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if err := run("config", "init", path); err == nil {
		t.Error("second config init succeeded, want error for existing file")
	}
	if err := run("config", "init", "--force", path); err != nil {
		t.Fatalf("config init --force error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"base_url: https://pipeline.example.com/prod", "bucket: my-documents-bucket"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("sample config missing %q:\n%s", want, data)
		}
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	want := []string{"ask", "config", "documents", "run", "status"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	for _, flag := range []string{"config", "verbose", "api-url", "bucket", "backend", "poll-interval"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}
