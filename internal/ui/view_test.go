package ui

import (
	"bytes"
	"testing"

	"docpipe/internal/models"
	"docpipe/internal/session"

	"github.com/google/go-cmp/cmp"
)

func state() session.State {
	return session.State{
		Jobs: map[models.JobKind]session.JobState{
			models.KindExtraction:    {},
			models.KindEmbedding:     {},
			models.KindSummarization: {},
		},
		Params: models.DefaultSummarizeParams(),
	}
}

func enabled(v View) map[string]bool {
	out := map[string]bool{}
	for _, c := range v.Controls {
		out[c.Name] = c.Enabled
	}
	return out
}

func TestRender_Controls(t *testing.T) {
	doc := models.Document{ID: "d1", Bucket: "docs", Name: "uploads/report.pdf", Key: "report.pdf"}

	tests := []struct {
		name  string
		setup func(*session.State)
		want  map[string]bool
	}{
		{
			name:  "fresh session",
			setup: func(*session.State) {},
			want: map[string]bool{
				"upload": true, "extract": false, "embed": false, "summarize": false,
				"params": true, "ask": false, "download": false, "start_over": true,
			},
		},
		{
			name:  "uploaded",
			setup: func(s *session.State) { s.Document = doc },
			want: map[string]bool{
				"upload": false, "extract": true, "embed": false, "summarize": false,
				"params": true, "ask": false, "download": false, "start_over": true,
			},
		},
		{
			name: "extraction pending",
			setup: func(s *session.State) {
				s.Document = doc
				s.Jobs[models.KindExtraction] = session.JobState{JobID: "j1", Phase: session.PhasePending}
			},
			want: map[string]bool{
				"upload": false, "extract": false, "embed": false, "summarize": false,
				"params": true, "ask": false, "download": false, "start_over": true,
			},
		},
		{
			name: "extraction done",
			setup: func(s *session.State) {
				s.Document = doc
				s.Jobs[models.KindExtraction] = session.JobState{JobID: "j1", Phase: session.PhaseDone}
				s.OutputPath = "uploads/d1.txt"
				s.DownloadURL = "https://signed.example.com/d1.txt"
			},
			want: map[string]bool{
				"upload": false, "extract": false, "embed": true, "summarize": true,
				"params": true, "ask": false, "download": true, "start_over": true,
			},
		},
		{
			name: "extraction done, text location unknown",
			setup: func(s *session.State) {
				s.Document = doc
				s.Jobs[models.KindExtraction] = session.JobState{JobID: "j1", Phase: session.PhaseDone}
			},
			want: map[string]bool{
				"upload": false, "extract": false, "embed": false, "summarize": false,
				"params": true, "ask": false, "download": false, "start_over": true,
			},
		},
		{
			name: "embedded with question",
			setup: func(s *session.State) {
				s.Document = doc
				s.Jobs[models.KindExtraction] = session.JobState{JobID: "j1", Phase: session.PhaseDone}
				s.Jobs[models.KindEmbedding] = session.JobState{JobID: "d1", Phase: session.PhaseDone}
				s.OutputPath = "uploads/d1.txt"
				s.Question = "What changed?"
			},
			want: map[string]bool{
				"upload": false, "extract": false, "embed": false, "summarize": true,
				"params": true, "ask": true, "download": false, "start_over": true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state()
			tt.setup(&st)
			if diff := cmp.Diff(tt.want, enabled(Render(st))); diff != "" {
				t.Errorf("controls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_DisabledControlsHaveReasons(t *testing.T) {
	st := state()
	st.Document = models.Document{ID: "d1"}
	v := Render(st)

	embed, ok := v.Control(ControlEmbed)
	if !ok {
		t.Fatal("embed control missing")
	}
	if embed.Enabled || embed.Reason != session.ErrExtractionNotDone.Error() {
		t.Errorf("embed control = %+v", embed)
	}
	st.Jobs[models.KindExtraction] = session.JobState{JobID: "j1", Phase: session.PhaseDone}
	if summarize, _ := Render(st).Control(ControlSummarize); summarize.Reason != session.ErrTextNotReady.Error() {
		t.Errorf("summarize control without text location = %+v", summarize)
	}

	for _, c := range v.Controls {
		if !c.Enabled && c.Reason == "" {
			t.Errorf("control %s disabled without a reason", c.Name)
		}
	}
}

func TestWriteText(t *testing.T) {
	st := state()
	st.Document = models.Document{ID: "d1", Key: "report.pdf"}
	st.Jobs[models.KindExtraction] = session.JobState{JobID: "j1", Phase: session.PhaseDone}
	st.Jobs[models.KindEmbedding] = session.JobState{JobID: "d1", Phase: session.PhasePending, Stalled: true}
	st.OutputPath = "uploads/d1.txt"
	st.DownloadURL = "https://signed.example.com/d1.txt"

	var buf bytes.Buffer
	if err := WriteText(&buf, Render(st)); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}

	want := `Document:       d1 (report.pdf)
Extraction:     done                       j1
Embedding:      pending (polling stopped)  d1
Summarization:  idle                       -
Download:       https://signed.example.com/d1.txt

Available: summarize, params, download, start_over
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteText() mismatch (-want +got):\n%s", diff)
	}
}
