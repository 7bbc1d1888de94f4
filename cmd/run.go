// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/observability"
	"github.com/xkilldash9x/courier-cli/internal/prospects"
)

// newRunCmd creates the `run` command: a full outreach batch driven from a
// prospect list file.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs an outreach batch from a prospect list",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so flag > env > file > default
			// precedence holds.
			if err := viper.BindPFlag("data.prospects_file", cmd.Flags().Lookup("prospects")); err != nil {
				return err
			}
			if err := viper.BindPFlag("outreach.max_requests", cmd.Flags().Lookup("max-requests")); err != nil {
				return err
			}
			return viper.BindPFlag("outreach.dry_run", cmd.Flags().Lookup("dry-run"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-resolve the config now that the run flags are bound.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			config.Set(cfg)

			if cfg.Data.ProspectsFile == "" {
				return errors.New("no prospect list configured: pass --prospects or set data.prospects_file")
			}
			list, err := prospects.Load(cfg.Data.ProspectsFile, logger)
			if err != nil {
				return err
			}

			logger.Info("Starting outreach batch.",
				zap.Int("prospects", len(list)),
				zap.Int("max_requests", cfg.Outreach.MaxRequests),
				zap.Bool("dry_run", cfg.Outreach.DryRun),
			)

			eng, err := buildEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Shutdown(ctx)

			outcomes := eng.coordinator.Run(ctx, list, cfg.Outreach.MaxRequests)
			printSummary(cmd, outcomes, eng.writer.Dir())

			if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
				logger.Warn("Batch aborted by signal; partial results are on disk.")
				return err
			}
			return nil
		},
	}

	runCmd.Flags().StringP("prospects", "p", "", "path to the prospect list JSON file")
	runCmd.Flags().IntP("max-requests", "n", 0, "hard ceiling on sent connection requests this run")
	runCmd.Flags().Bool("dry-run", false, "drive the full flow but never click send")

	return runCmd
}

// printSummary writes the human-facing batch census to the command's stdout.
func printSummary(cmd *cobra.Command, outcomes []schemas.Outcome, artifactDir string) {
	summary := schemas.Summarize(outcomes)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nBatch complete: %d prospects\n", summary.Total)
	fmt.Fprintf(out, "  sent:    %d\n", summary.Sent)
	fmt.Fprintf(out, "  skipped: %d\n", summary.Skipped)
	fmt.Fprintf(out, "  failed:  %d\n", summary.Failed)

	reasons := make(map[schemas.OutcomeReason]int)
	for _, o := range outcomes {
		if o.Reason != "" {
			reasons[o.Reason]++
		}
	}
	for _, reason := range []schemas.OutcomeReason{
		schemas.SkipAlreadyConnected,
		schemas.SkipInvitePending,
		schemas.SkipRateLimited,
		schemas.SkipLimitReached,
		schemas.SkipCancelled,
		schemas.FailedElement,
		schemas.FailedContent,
		schemas.FailedSubmission,
		schemas.FailedData,
	} {
		if n := reasons[reason]; n > 0 {
			fmt.Fprintf(out, "    %-18s %d\n", reason, n)
		}
	}
	fmt.Fprintf(out, "Artifacts written to %s\n", artifactDir)
}
