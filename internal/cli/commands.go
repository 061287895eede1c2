package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/format"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/services/analytics"
)

func (cli *CLIApp) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Render every analytics view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			dash := container.Analytics.Dashboard(ctx)
			out := cmd.OutOrStdout()
			if cli.asJSON {
				return cli.writeJSON(out, dash)
			}
			renderSummary(out, dash.Summary)
			renderFeatureUsage(out, dash.FeatureUsage)
			renderTopUsers(out, dash.TopUsers)
			renderFeatureCosts(out, dash.FeatureCosts)
			renderMonthly(out, dash.Monthly)
			renderDaily(out, dash.Daily)
			return nil
		},
	}
}

func (cli *CLIApp) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Compare this month with the previous one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			view := container.Analytics.Summary(ctx)
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderSummary(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func (cli *CLIApp) featuresCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show credit share per feature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			view, err := container.Analytics.FeatureUsage(ctx, limit)
			if err != nil {
				return err
			}
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderFeatureUsage(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of features (0 uses the configured default)")
	return cmd
}

func (cli *CLIApp) usersCmd() *cobra.Command {
	var (
		limit int
		sort  string
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Rank the top users with their estimated cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			view, err := container.Analytics.TopUsers(ctx, sort, limit)
			if err != nil {
				return err
			}
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderTopUsers(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of users (0 uses the configured default)")
	cmd.Flags().StringVarP(&sort, "sort", "s", "", "Ranking key (credits_today)")
	return cmd
}

func (cli *CLIApp) costsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "costs",
		Short: "Estimate the cost of each feature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			view := container.Analytics.FeatureCosts(ctx)
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderFeatureCosts(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func (cli *CLIApp) trendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Monthly and daily usage trends",
	}

	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Month-over-month revenue, users and credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			view := container.Analytics.MonthlyTrends(ctx)
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderMonthly(cmd.OutOrStdout(), view)
			return nil
		},
	}

	var (
		month string
		days  int
	)
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Daily credits for one calendar month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			container, err := cli.ensureContainer(ctx)
			if err != nil {
				return err
			}
			view, err := container.Analytics.DailyTrend(ctx, analytics.DailyParams{Month: month, Days: days})
			if err != nil {
				return err
			}
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderDaily(cmd.OutOrStdout(), view)
			return nil
		},
	}
	daily.Flags().StringVarP(&month, "month", "m", "", "Month as YYYY-MM (defaults to the current month)")
	daily.Flags().IntVarP(&days, "days", "d", 0, "Window length in days (defaults to the month length)")

	cmd.AddCommand(monthly, daily)
	return cmd
}

func (cli *CLIApp) estimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <credits>",
		Short: "Price a credit quantity with the configured tiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credits, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid credits %q", args[0])
			}
			container, err := cli.ensureContainer(commandContext(cmd))
			if err != nil {
				return err
			}
			view, err := container.Analytics.Estimate(credits)
			if err != nil {
				return err
			}
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), view)
			}
			renderEstimate(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

// tierRow is one line of the price list as printed by `tiers`.
type tierRow struct {
	pricing.Tier
	UnitCost string `json:"unit_cost"`
}

func (cli *CLIApp) tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Show the configured pricing tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := cli.ensureContainer(commandContext(cmd))
			if err != nil {
				return err
			}
			tiers := container.Analytics.Estimator().Tiers()
			rows := make([]tierRow, 0, len(tiers))
			for _, tier := range tiers {
				rows = append(rows, tierRow{Tier: tier, UnitCost: format.UnitCost(pricing.UnitRate(tier))})
			}
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), rows)
			}
			renderTiers(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func (cli *CLIApp) tokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token for the analytics API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := cli.ensureContainer(commandContext(cmd))
			if err != nil {
				return err
			}
			if container.Tokens == nil {
				return fmt.Errorf("admin.jwt_secret is not configured")
			}
			token, expiresAt, err := container.Tokens.Generate(subject)
			if err != nil {
				return err
			}
			if cli.asJSON {
				return cli.writeJSON(cmd.OutOrStdout(), map[string]string{
					"token":      token,
					"subject":    subject,
					"expires_at": expiresAt.UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "analyticsctl", "Subject claim of the token")
	return cmd
}
