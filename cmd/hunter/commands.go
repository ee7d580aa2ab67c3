package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/david/issue-hunter/internal/app"
	"github.com/david/issue-hunter/internal/config"
	"github.com/david/issue-hunter/internal/pricing"
	"github.com/david/issue-hunter/internal/report"
)

func newRunCmd() *cobra.Command {
	var showDrafts bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one hunt: search, filter, assess, quote and reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			deps, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			result, runErr := deps.Agent.Run(cmd.Context())
			out := cmd.OutOrStdout()
			report.RenderRun(out, result)
			if showDrafts || cfg.Agent.DryRun {
				fmt.Fprintln(out)
				report.RenderDrafts(out, result)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "draft replies without posting them")
	cmd.Flags().BoolVar(&showDrafts, "show-drafts", false, "print every reply text after the run")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	var in pricing.Input

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a project without searching",
		Example: `  hunter quote --category bug_fix --urgent --complexity 5
  hunter quote --category complex_integration --complexity 10 --large`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Quoting never posts, so no GitHub token is needed.
			cfg, _, err := loadConfig(cmd, config.WithOverride("agent.dry_run", true))
			if err != nil {
				return err
			}
			if in.ComplexityScore < 0 || in.ComplexityScore > 10 {
				return fmt.Errorf("complexity must be between 0 and 10, got %d", in.ComplexityScore)
			}
			in.Category = strings.TrimSpace(in.Category)

			quote := pricing.NewQuoter(cfg.Payment.Network, cfg.Payment.WalletAddress).Quote(in)
			report.RenderQuote(cmd.OutOrStdout(), quote)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Category, "category", "issue", "problem category (bug_fix, feature_request, performance_issue, architecture_problem, complex_integration)")
	cmd.Flags().BoolVar(&in.Urgent, "urgent", false, "apply the urgency multiplier")
	cmd.Flags().IntVar(&in.ComplexityScore, "complexity", 0, "complexity score 1-10, 0 for the default")
	cmd.Flags().BoolVar(&in.NicheTechStack, "niche", false, "apply the niche tech stack multiplier")
	cmd.Flags().BoolVar(&in.LargeProject, "large", false, "apply the large project multiplier")
	cmd.Flags().BoolVar(&in.FastDelivery, "fast", false, "apply the fast delivery multiplier")
	return cmd
}
