package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/output"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List HIBP subscription plans and their request quotas",
	Long: `List the HIBP subscription plans and the requests per minute each allows.

The active plan comes from --plan, HIBP_SUBSCRIPTION_PLAN or the config file.
An unknown plan name falls back to Pwned 1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		active := core.Plans.ResolvePlan(observability.Logger(), activePlanName())

		rendered, err := output.NewFormatter(format).FormatPlans(output.PlanRows(core.Plans), active.Plan)
		if err != nil {
			return err
		}
		return writeRendered(cmd, rendered)
	},
}

func activePlanName() string {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg.SubscriptionPlan
	}
	return core.DefaultPlan
}

func init() {
	rootCmd.AddCommand(plansCmd)
	addOutputFlags(plansCmd)
}
