// -- cmd/single.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/observability"
	"github.com/xkilldash9x/courier-cli/internal/prospects"
)

// newSingleCmd creates the `single` command: one prospect end to end, with
// missing context scraped from the profile itself.
func newSingleCmd() *cobra.Command {
	var (
		name     string
		jobTitle string
		company  string
	)

	singleCmd := &cobra.Command{
		Use:   "single <profile-url>",
		Short: "Sends one connection request to a single profile",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("outreach.dry_run", cmd.Flags().Lookup("dry-run"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			config.Set(cfg)

			prospect := schemas.Prospect{
				Name:       name,
				ProfileURL: args[0],
				JobTitle:   jobTitle,
				Company:    company,
			}

			eng, err := buildEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Shutdown(ctx)

			// Backfill whatever the flags left empty from the profile page.
			// The scrape degrades to empty fields, so only a missing name can
			// still sink the attempt afterwards.
			if prospect.Name == "" || prospect.JobTitle == "" || prospect.Company == "" {
				scraper, err := prospects.NewScraper(eng.session, logger)
				if err != nil {
					return err
				}
				card, err := scraper.Scrape(ctx, prospect.ProfileURL)
				if err != nil {
					logger.Warn("Profile scrape failed, proceeding with flag values only.", zap.Error(err))
				} else {
					prospects.Backfill(&prospect, card)
				}
			}
			if err := prospect.Validate(); err != nil {
				return fmt.Errorf("prospect is not sendable: %w", err)
			}

			outcomes := eng.coordinator.Run(ctx, []schemas.Prospect{prospect}, 1)
			printOutcome(cmd, outcomes[0])
			return nil
		},
	}

	singleCmd.Flags().StringVar(&name, "name", "", "prospect name (scraped from the profile when omitted)")
	singleCmd.Flags().StringVar(&jobTitle, "job-title", "", "prospect job title for personalization")
	singleCmd.Flags().StringVar(&company, "company", "", "prospect company for personalization")
	singleCmd.Flags().Bool("dry-run", false, "drive the full flow but never click send")

	return singleCmd
}

// printOutcome writes one prospect's terminal result to the command's stdout.
func printOutcome(cmd *cobra.Command, o schemas.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s: %s", o.Prospect.Name, o.Status)
	if o.Reason != "" {
		fmt.Fprintf(out, " (%s)", o.Reason)
	}
	fmt.Fprintln(out)
	if o.Message != nil {
		fmt.Fprintf(out, "  note [%s]: %s\n", o.Message.Source, o.Message.Text)
	}
	if o.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", o.Error)
	}
}
