package models

import (
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name         string
		kind         JobKind
		raw          string
		want         JobStatus
		wantTerminal bool
	}{
		{"extraction succeeded", KindExtraction, "SUCCEEDED", StatusSucceeded, true},
		{"extraction in progress", KindExtraction, "IN_PROGRESS", StatusInProgress, false},
		{"extraction started", KindExtraction, "Started", StatusStarted, false},
		{"extraction failed", KindExtraction, "FAILED", StatusFailed, false},
		{"extraction trims whitespace", KindExtraction, " SUCCEEDED\n", StatusSucceeded, true},
		{"extraction substring is not a match", KindExtraction, "NOT_SUCCEEDED", StatusUnknown, false},
		{"extraction rejects worker vocabulary", KindExtraction, "Complete", StatusUnknown, false},
		{"embedding complete", KindEmbedding, "Complete", StatusComplete, true},
		{"embedding started", KindEmbedding, "Started", StatusStarted, false},
		{"embedding is case sensitive", KindEmbedding, "complete", StatusUnknown, false},
		{"summarization complete", KindSummarization, "Complete", StatusComplete, true},
		{"summarization empty", KindSummarization, "", StatusUnknown, false},
		{"unknown kind", JobKind("ocr"), "Complete", StatusUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStatus(tt.kind, tt.raw)
			if got != tt.want {
				t.Errorf("ParseStatus(%q, %q) = %v, want %v", tt.kind, tt.raw, got, tt.want)
			}
			if got.Terminal() != tt.wantTerminal {
				t.Errorf("ParseStatus(%q, %q).Terminal() = %v, want %v", tt.kind, tt.raw, got.Terminal(), tt.wantTerminal)
			}
		})
	}
}

func TestSummarizeParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *SummarizeParams)
		wantErr bool
	}{
		{"defaults", func(p *SummarizeParams) {}, false},
		{"chunk size too small", func(p *SummarizeParams) { p.ChunkSize = 999 }, true},
		{"chunk overlap too large", func(p *SummarizeParams) { p.ChunkOverlap = 1001 }, true},
		{"max length lower bound", func(p *SummarizeParams) { p.MaxLength = 50 }, false},
		{"top p above one", func(p *SummarizeParams) { p.TopP = 1.1 }, true},
		{"top k upper bound", func(p *SummarizeParams) { p.TopK = 1000 }, false},
		{"negative beams", func(p *SummarizeParams) { p.NumBeams = -1 }, true},
		{"zero temperature", func(p *SummarizeParams) { p.Temperature = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultSummarizeParams()
			tt.modify(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("SummarizeParams.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseJobKind(t *testing.T) {
	if k, ok := ParseJobKind("embedding"); !ok || k != KindEmbedding {
		t.Errorf("ParseJobKind(embedding) = %q, %v", k, ok)
	}
	if _, ok := ParseJobKind("qa"); ok {
		t.Error("ParseJobKind(qa) should not be valid")
	}
}
