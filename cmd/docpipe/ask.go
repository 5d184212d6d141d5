package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask DOC_ID QUESTION...",
		Short: "Ask a question about a document with finished embeddings",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			if question == "" {
				return errors.New("question is empty")
			}

			ctx := cmd.Context()
			services, err := opts.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			answer, err := services.API.Ask(ctx, args[0], question)
			if err != nil {
				return fmt.Errorf("failed to get answer: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
			return nil
		},
	}
}
