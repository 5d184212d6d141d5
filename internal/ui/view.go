// Package ui derives what a user can do from a session snapshot.
package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"docpipe/internal/models"
	"docpipe/internal/session"
)

// Control names.
const (
	ControlUpload    = "upload"
	ControlExtract   = "extract"
	ControlEmbed     = "embed"
	ControlSummarize = "summarize"
	ControlParams    = "params"
	ControlAsk       = "ask"
	ControlDownload  = "download"
	ControlStartOver = "start_over"
)

// Control is one user action and whether it is currently allowed.
type Control struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Job is the displayed state of one job kind.
type Job struct {
	Kind    models.JobKind `json:"kind"`
	JobID   string         `json:"job_id,omitempty"`
	Phase   string         `json:"phase"`
	Stalled bool           `json:"stalled,omitempty"`
}

// View is everything a front end shows for a session.
type View struct {
	DocumentID  string                 `json:"doc_id,omitempty"`
	FileName    string                 `json:"file_name,omitempty"`
	Jobs        []Job                  `json:"jobs"`
	DownloadURL string                 `json:"download_url,omitempty"`
	Summary     string                 `json:"summary,omitempty"`
	Question    string                 `json:"question,omitempty"`
	Answer      string                 `json:"answer,omitempty"`
	Params      models.SummarizeParams `json:"params"`
	Controls    []Control              `json:"controls"`
}

// Render maps a session state to its view.
func Render(st session.State) View {
	v := View{
		DocumentID:  st.Document.ID,
		FileName:    st.Document.Key,
		DownloadURL: st.DownloadURL,
		Summary:     st.SummaryText,
		Question:    st.Question,
		Answer:      st.Answer,
		Params:      st.Params,
	}

	for _, kind := range models.JobKinds {
		j := st.Job(kind)
		v.Jobs = append(v.Jobs, Job{Kind: kind, JobID: j.JobID, Phase: j.Phase.String(), Stalled: j.Stalled})
	}

	var download error
	if st.DownloadURL == "" {
		download = errNoDownload
	}

	v.Controls = []Control{
		control(ControlUpload, st.CanUpload()),
		control(ControlExtract, st.CanStart(models.KindExtraction)),
		control(ControlEmbed, st.CanStart(models.KindEmbedding)),
		control(ControlSummarize, st.CanStart(models.KindSummarization)),
		control(ControlParams, nil),
		control(ControlAsk, st.CanAsk()),
		control(ControlDownload, download),
		control(ControlStartOver, nil),
	}
	return v
}

var errNoDownload = errors.New("no download link yet")

func control(name string, err error) Control {
	if err != nil {
		return Control{Name: name, Reason: err.Error()}
	}
	return Control{Name: name, Enabled: true}
}

// Control returns the control called name.
func (v View) Control(name string) (Control, bool) {
	for _, c := range v.Controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

// WriteText prints the view as plain text.
func WriteText(w io.Writer, v View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	doc := v.DocumentID
	if doc == "" {
		doc = "-"
	} else if v.FileName != "" {
		doc = fmt.Sprintf("%s (%s)", v.DocumentID, v.FileName)
	}
	fmt.Fprintf(tw, "Document:\t%s\n", doc)

	for _, j := range v.Jobs {
		phase := j.Phase
		if j.Stalled {
			phase += " (polling stopped)"
		}
		id := j.JobID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "%s:\t%s\t%s\n", capitalize(string(j.Kind)), phase, id)
	}
	if v.DownloadURL != "" {
		fmt.Fprintf(tw, "Download:\t%s\n", v.DownloadURL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if v.Summary != "" {
		fmt.Fprintf(w, "\nSummary:\n%s\n", v.Summary)
	}
	if v.Answer != "" {
		fmt.Fprintf(w, "\nQ: %s\nA: %s\n", v.Question, v.Answer)
	}

	var enabled []string
	for _, c := range v.Controls {
		if c.Enabled {
			enabled = append(enabled, c.Name)
		}
	}
	_, err := fmt.Fprintf(w, "\nAvailable: %s\n", strings.Join(enabled, ", "))
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
