package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/engine"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
	"github.com/hibp-mcp/hibp-mcp/internal/output"
	"github.com/hibp-mcp/hibp-mcp/internal/server"
)

var checkCmd = &cobra.Command{
	Use:   "check <account...>",
	Short: "Look up breaches and pastes for accounts",
	Long: `Run getAllBreachesForAccount and getPastesForAccount for each account.

Each account costs two requests against the plan quota.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("file", "", "Read accounts from file, one per line (- for stdin)")
	checkCmd.Flags().Int("concurrency", engine.DefaultConcurrency, "Concurrent lookups")
	addOutputFlags(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	accounts, err := resolveSubjects(args, file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	concurrency, err := resolveConcurrency(cmd)
	if err != nil {
		return err
	}

	svc, err := lookupServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close() // nolint:errcheck // best-effort cleanup

	results, err := accountCheck(cmd.Context(), svc.client, accounts, concurrency)
	if err != nil {
		return err
	}

	rendered, err := output.FormatBatchList(format, results)
	if err != nil {
		return err
	}
	return writeRendered(cmd, rendered)
}

// accountCheck runs the breach and paste lookups for accounts, breaches
// first.
func accountCheck(ctx context.Context, lookup server.Lookup, accounts []string, concurrency int) ([]*core.BatchResult, error) {
	breaches, err := breachesBatch(ctx, lookup, hibp.BreachQuery{Operation: core.OperationBreachesForAccount}, accounts, concurrency)
	if err != nil {
		return nil, err
	}

	pastes, err := pastesBatch(ctx, lookup, accounts, concurrency)
	if err != nil {
		return nil, err
	}

	return []*core.BatchResult{breaches, pastes}, nil
}
