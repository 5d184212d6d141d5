package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"docpipe/internal/jobstore"
	"docpipe/internal/models"

	"github.com/spf13/cobra"
)

func newDocumentsCmd(opts *options) *cobra.Command {
	var (
		pageToken string
		pageSize  int
	)

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List the documents known to the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			page, err := services.Jobs.ListDocuments(ctx, services.Config.Tables.Documents, pageSize, pageToken)
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			return printDocuments(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token of the page to show, printed after the previous page")
	cmd.Flags().IntVar(&pageSize, "page-size", jobstore.DefaultPageSize, "Documents per page")
	return cmd
}

func printDocuments(w io.Writer, page *models.DocumentPage) error {
	if len(page.Documents) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOC_ID\tOBJECT\tJOB\tSTATUS")
	for _, d := range page.Documents {
		object := d.ObjectName
		if d.Bucket != "" {
			object = "gs://" + d.Bucket + "/" + d.ObjectName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.DocumentID, object, d.JobID, d.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.NextPageToken != "" {
		fmt.Fprintf(w, "\nNext page: --page-token %s\n", page.NextPageToken)
	}
	return nil
}
