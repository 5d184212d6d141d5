package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"docpipe/internal/config"
	"docpipe/internal/jobstore"
	"docpipe/internal/models"
	"docpipe/internal/session"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *options) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "status DOC_ID",
		Short: "Show the status records of every job of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			return printStatus(ctx, cmd.OutOrStdout(), services.Jobs, services.Config.Tables, args[0], jobID)
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "Summarization job id (default: every summarization of the document)")
	return cmd
}

func tableFor(tables config.TablesConfig, kind models.JobKind) string {
	switch kind {
	case models.KindEmbedding:
		return tables.Embeddings
	case models.KindSummarization:
		return tables.Summaries
	}
	return tables.Jobs
}

// printStatus writes one line per status record of docID. Summarization
// records are narrowed to summaryJobID when set.
func printStatus(ctx context.Context, w io.Writer, store session.Querier, tables config.TablesConfig, docID, summaryJobID string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tJOB\tSTATUS\tDONE\tOUTPUT")

	for _, kind := range models.JobKinds {
		q := jobstore.Query{Table: tableFor(tables, kind), DocumentID: docID}
		if kind == models.KindSummarization {
			q.SortKey = summaryJobID
		}
		records, err := store.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("failed to query %s status: %w", kind, err)
		}
		if len(records) == 0 {
			fmt.Fprintf(tw, "%s\t-\tnot started\t-\t\n", kind)
			continue
		}
		for _, r := range records {
			job := r.JobID
			if job == "" {
				job = r.SortKey
			}
			if job == "" {
				job = "-"
			}
			done := "no"
			if r.StatusFor(kind).Terminal() {
				done = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", kind, job, r.Status, done, r.OutputPath)
		}
	}
	return tw.Flush()
}
