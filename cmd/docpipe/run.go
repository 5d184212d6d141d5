package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docpipe/internal/notify"
	"docpipe/internal/orchestrator"
	"docpipe/internal/workflow"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		questions     []string
		skipEmbedding bool
		skipSummary   bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Upload a document and run every pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open document: %w", err)
			}
			defer f.Close()

			services, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			spin := newSpinner(cmd.ErrOrStderr(), "Uploading "+filepath.Base(args[0]))
			defer spin.stop()

			orch := orchestrator.NewOrchestrator(services.NewSession, spin)
			out, err := workflow.ExecuteWorkflow(ctx, workflow.WorkflowInput{
				FileName:      filepath.Base(args[0]),
				Content:       f,
				Questions:     questions,
				SkipEmbedding: skipEmbedding,
				SkipSummary:   skipSummary,
			}, orch)
			spin.stop()
			if out == nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), out)
			}
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to ask once embeddings exist (repeatable)")
	cmd.Flags().BoolVar(&skipEmbedding, "skip-embedding", false, "Do not generate embeddings")
	cmd.Flags().BoolVar(&skipSummary, "skip-summary", false, "Do not summarize")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// spinner animates while the pipeline runs and prints each notification
// above it.
type spinner struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	console *notify.Console
	done    chan struct{}
	once    sync.Once
}

func newSpinner(w io.Writer, description string) *spinner {
	s := &spinner{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(color.CyanString(description)),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWidth(20),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetRenderBlankState(true),
		),
		console: notify.NewConsole(w),
		done:    make(chan struct{}),
	}
	go s.spin()
	return s
}

func (s *spinner) spin() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.bar.Add(1)
			s.mu.Unlock()
		}
	}
}

func (s *spinner) Notify(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bar.Clear()
	s.console.Notify(n)
	s.bar.Describe(color.CyanString(n.Message))
}

func (s *spinner) stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.bar.Finish()
		s.bar.Clear()
		s.mu.Unlock()
	})
}

func printResult(w io.Writer, out *workflow.WorkflowOutput) {
	status := out.Status
	switch status {
	case workflow.StatusSuccess:
		status = color.GreenString(status)
	case workflow.StatusPartial:
		status = color.YellowString(status)
	default:
		status = color.RedString(status)
	}

	fmt.Fprintf(w, "Status:   %s (%s)\n", status, out.TotalDuration.Round(time.Second))
	if out.Document.ID != "" {
		fmt.Fprintf(w, "Document: %s (gs://%s/%s)\n", out.Document.ID, out.Document.Bucket, out.Document.Name)
	}
	if out.DownloadURL != "" {
		fmt.Fprintf(w, "Text:     %s\n", out.DownloadURL)
	}
	if out.Summary != "" {
		fmt.Fprintf(w, "\nSummary:\n%s\n", strings.TrimSpace(out.Summary))
	}
	for _, a := range out.Answers {
		fmt.Fprintf(w, "\nQ: %s\n", a.Question)
		if a.Error != "" {
			fmt.Fprintf(w, "A: %s\n", color.RedString("(failed: %s)", a.Error))
			continue
		}
		fmt.Fprintf(w, "A: %s\n", a.Answer)
	}
	if len(out.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range out.Warnings {
			fmt.Fprintf(w, "%s %s\n", color.YellowString("warning:"), warning)
		}
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "%s %s\n", color.RedString("error:"), e)
	}
}
