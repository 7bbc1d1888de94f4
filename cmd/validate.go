// -- cmd/validate.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/browser"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/llmclient"
	"github.com/xkilldash9x/courier-cli/internal/observability"
	"github.com/xkilldash9x/courier-cli/internal/outreach"
	"github.com/xkilldash9x/courier-cli/internal/prospects"
	"github.com/xkilldash9x/courier-cli/internal/selector"
)

// checkResult is one row of the validation report.
type checkResult struct {
	name   string
	detail string
	err    error
}

// newValidateCmd creates the `validate` command: every startup precondition
// checked up front, so misconfiguration is caught before a session is spent.
// No browser is launched.
func newValidateCmd() *cobra.Command {
	var ping bool

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validates config, selectors, prospects, cookies and credentials without opening a browser",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("data.prospects_file", cmd.Flags().Lookup("prospects"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			config.Set(cfg)

			// Fixed slots, one per check: each goroutine writes only its own
			// index, so no lock is needed around the results.
			results := make([]checkResult, 5)
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				results[0] = checkSelectors(cfg)
				return nil
			})
			g.Go(func() error {
				results[1] = checkProspects(cfg)
				return nil
			})
			g.Go(func() error {
				results[2] = checkCookies(cfg)
				return nil
			})
			g.Go(func() error {
				results[3] = checkLLM(gctx, cfg, ping)
				return nil
			})
			g.Go(func() error {
				results[4] = checkDataDir(cfg)
				return nil
			})
			_ = g.Wait()

			out := cmd.OutOrStdout()
			failed := 0
			fmt.Fprintf(out, "config ok: %s\n", viper.ConfigFileUsed())
			for _, r := range results {
				if r.err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %-10s %v\n", r.name, r.err)
					continue
				}
				fmt.Fprintf(out, "PASS  %-10s %s\n", r.name, r.detail)
			}
			if failed > 0 {
				return fmt.Errorf("validation failed: %d of %d checks", failed, len(results))
			}
			return nil
		},
	}

	validateCmd.Flags().StringP("prospects", "p", "", "prospect list to validate alongside the config")
	validateCmd.Flags().BoolVar(&ping, "ping", false, "send a live test request to the generation backend")

	return validateCmd
}

// checkSelectors loads the strategy registry and proves it can serve every
// role the outreach machine resolves.
func checkSelectors(cfg *config.Config) checkResult {
	r := checkResult{name: "selectors"}
	registry, err := selector.Load(cfg.Selectors.Path, observability.GetLogger())
	if err != nil {
		r.err = err
		return r
	}
	if err := registry.EnsureRoles(outreach.RequiredRoles()...); err != nil {
		r.err = err
		return r
	}
	source := cfg.Selectors.Path
	if source == "" {
		source = "embedded defaults"
	}
	r.detail = fmt.Sprintf("%d roles (%s)", len(registry.Roles()), source)
	return r
}

// checkProspects parses the prospect list when one is configured.
func checkProspects(cfg *config.Config) checkResult {
	r := checkResult{name: "prospects"}
	if cfg.Data.ProspectsFile == "" {
		r.detail = "no list configured, skipped"
		return r
	}
	list, err := prospects.Load(cfg.Data.ProspectsFile, observability.GetLogger())
	if err != nil {
		r.err = err
		return r
	}
	r.detail = fmt.Sprintf("%d prospects in %s", len(list), cfg.Data.ProspectsFile)
	return r
}

// checkCookies parses the exported session cookie file.
func checkCookies(cfg *config.Config) checkResult {
	r := checkResult{name: "cookies"}
	n, err := browser.CheckCookieFile(cfg.Browser.CookiesFile)
	if err != nil {
		r.err = err
		return r
	}
	r.detail = fmt.Sprintf("%d cookies in %s", n, cfg.Browser.CookiesFile)
	return r
}

// checkLLM verifies generation credentials, optionally with a live request.
func checkLLM(ctx context.Context, cfg *config.Config, ping bool) checkResult {
	r := checkResult{name: "llm"}
	if cfg.LLM.APIKey == "" {
		r.detail = "no API key, notes will come from templates"
		return r
	}
	if !ping {
		r.detail = fmt.Sprintf("%s/%s key present", cfg.LLM.Provider, cfg.LLM.Model)
		return r
	}
	client, err := llmclient.New(ctx, cfg.LLM, observability.GetLogger())
	if err != nil {
		r.err = err
		return r
	}
	defer client.Close()
	pingCtx, cancel := context.WithTimeout(ctx, cfg.LLM.Timeout)
	defer cancel()
	_, err = client.Generate(pingCtx, schemas.GenerationRequest{
		SystemPrompt: "Reply with the single word: ok",
		UserPrompt:   "ping",
		Options:      schemas.GenerationOptions{MaxTokens: 8},
	})
	if err != nil {
		r.err = fmt.Errorf("live ping failed: %w", err)
		return r
	}
	r.detail = fmt.Sprintf("%s/%s responded", cfg.LLM.Provider, cfg.LLM.Model)
	return r
}

// checkDataDir proves the artifact directory is writable.
func checkDataDir(cfg *config.Config) checkResult {
	r := checkResult{name: "data dir"}
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		r.err = fmt.Errorf("creating %s: %w", cfg.Data.Dir, err)
		return r
	}
	probe := filepath.Join(cfg.Data.Dir, fmt.Sprintf(".probe-%d", time.Now().UnixNano()))
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		r.err = fmt.Errorf("writing to %s: %w", cfg.Data.Dir, err)
		return r
	}
	_ = os.Remove(probe)
	r.detail = fmt.Sprintf("%s is writable", cfg.Data.Dir)
	return r
}
