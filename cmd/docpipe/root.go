package main

import (
	"context"
	"log/slog"
	"os"

	"docpipe/internal/config"
	"docpipe/internal/service"

	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "docpipe",
		Short: "Upload documents and drive them through the extraction, embedding and summarization pipeline",
		Long: `docpipe uploads a PDF to object storage, starts the text extraction,
embedding and summarization jobs of the document pipeline, polls their
status tables and answers questions about the document.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newAskCmd(opts),
		newDocumentsCmd(opts),
		newConfigCmd(),
	)
	return cmd
}

// services loads the configuration and connects every client.
func (o *options) services(ctx context.Context, cmd *cobra.Command) (*service.Services, error) {
	cfg, err := config.Load(o.configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return service.New(ctx, cfg, slog.Default())
}
