package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-shift-api/internal/dto"
	"github.com/noah-isme/sma-shift-api/internal/models"
)

type backend interface {
	Migrate(ctx context.Context) error
	RunDaily(ctx context.Context) (*models.RunSummary, error)
	Generate(ctx context.Context, callerID, id string) (*models.TemplateOperationResult, error)
	Cleanup(ctx context.Context, callerID string, req dto.CleanupRequest) (*models.CleanupResult, error)
}

// session runs fn against a backend bounded by timeout.
type session func(cmd *cobra.Command, timeout time.Duration, fn func(context.Context, backend) error) error

func newRootCmd(open session) *cobra.Command {
	var timeout time.Duration
	root := &cobra.Command{
		Use:           "shiftctl",
		Short:         "Operate shift templates outside the HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	run := func(cmd *cobra.Command, fn func(context.Context, backend) error) error {
		return open(cmd, timeout, fn)
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				return b.Migrate(ctx)
			})
		},
	}

	runDaily := &cobra.Command{
		Use:   "run-daily",
		Short: "Materialize every active template once, as the daily trigger does",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				summary, err := b.RunDaily(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}

	var generateAs string
	generate := &cobra.Command{
		Use:   "generate <templateId>",
		Short: "Sweep and regenerate one template's rolling window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				result, err := b.Generate(ctx, generateAs, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	generate.Flags().StringVar(&generateAs, "as", "", "Admin user id performing the operation")
	_ = generate.MarkFlagRequired("as")

	var cleanupAs, templateID string
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete future generated shifts, optionally for one template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				req := dto.CleanupRequest{}
				if templateID != "" {
					req.TemplateID = &templateID
				}
				result, err := b.Cleanup(ctx, cleanupAs, req)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cleanup.Flags().StringVar(&cleanupAs, "as", "", "Admin user id performing the operation")
	cleanup.Flags().StringVar(&templateID, "template", "", "Restrict the sweep to one template id")
	_ = cleanup.MarkFlagRequired("as")

	root.AddCommand(migrate, runDaily, generate, cleanup)
	return root
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
