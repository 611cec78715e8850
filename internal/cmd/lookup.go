package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/engine"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/output"
	"github.com/hibp-mcp/hibp-mcp/internal/server"
)

var breachesCmd = &cobra.Command{
	Use:   "breaches [account...]",
	Short: "Look up breaches for accounts or browse the breach catalogue",
	Long: `Run one of the HIBP-Breaches operations from the command line.

getAllBreachesForAccount (default) and getBreachByName take one subject per
argument (or per line of --file). getAllBreachedSites and getDataClasses
take none. Account lookups are paced to the configured plan's quota.`,
	Example: `  hibp-mcp breaches test@example.com
  hibp-mcp breaches --operation getAllBreachedSites --domain adobe.com
  hibp-mcp breaches --operation getBreachByName Adobe LinkedIn
  hibp-mcp breaches --file accounts.txt --output json`,
	RunE: runBreaches,
}

var pastesCmd = &cobra.Command{
	Use:   "pastes <account...>",
	Short: "List pastes containing accounts",
	RunE:  runPastes,
}

var passwordCmd = &cobra.Command{
	Use:   "password [password]",
	Short: "Check a password against Pwned Passwords",
	Long: `Check a password against the Pwned Passwords range API.

Only the first five characters of the password's SHA-1 hash are sent. Prefer
--stdin so the password stays out of shell history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPassword,
}

func init() {
	rootCmd.AddCommand(breachesCmd)
	rootCmd.AddCommand(pastesCmd)
	rootCmd.AddCommand(passwordCmd)

	breachesCmd.Flags().String("operation", string(core.OperationBreachesForAccount), "Operation: getAllBreachesForAccount, getAllBreachedSites, getBreachByName, getDataClasses")
	breachesCmd.Flags().String("domain", "", "Filter results by domain")
	breachesCmd.Flags().Bool("include-unverified", false, "Include unverified breaches")
	breachesCmd.Flags().Bool("truncate", true, "Return only breach names for account lookups")
	breachesCmd.Flags().String("file", "", "Read subjects from file, one per line (- for stdin)")
	breachesCmd.Flags().Int("concurrency", engine.DefaultConcurrency, "Concurrent lookups")
	addOutputFlags(breachesCmd)

	pastesCmd.Flags().String("file", "", "Read accounts from file, one per line (- for stdin)")
	pastesCmd.Flags().Int("concurrency", engine.DefaultConcurrency, "Concurrent lookups")
	addOutputFlags(pastesCmd)

	passwordCmd.Flags().Bool("stdin", false, "Read the password from the first line of stdin")
	addOutputFlags(passwordCmd)
}

func runBreaches(cmd *cobra.Command, args []string) error {
	opValue, err := cmd.Flags().GetString("operation")
	if err != nil {
		return err
	}
	op, ok := core.ParseBreachOperation(strings.TrimSpace(opValue))
	if !ok {
		return apperrors.NewInvalidInputError(fmt.Sprintf("Unsupported operation: %s", opValue))
	}

	query := hibp.BreachQuery{Operation: op}
	if query.Domain, err = cmd.Flags().GetString("domain"); err != nil {
		return err
	}
	if cmd.Flags().Changed("include-unverified") {
		value, _ := cmd.Flags().GetBool("include-unverified")
		query.IncludeUnverified = &value
	}
	if cmd.Flags().Changed("truncate") {
		value, _ := cmd.Flags().GetBool("truncate")
		query.TruncateResponse = &value
	}

	var subjects []string
	if needsSubject(op) {
		file, _ := cmd.Flags().GetString("file")
		if subjects, err = resolveSubjects(args, file, cmd.InOrStdin()); err != nil {
			return err
		}
	} else if len(args) > 0 {
		return fmt.Errorf("%s does not take subjects", op)
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

	result, err := breachesBatch(cmd.Context(), svc.client, query, subjects, concurrency)
	if err != nil {
		return err
	}
	return renderBatch(cmd, format, result)
}

func runPastes(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	subjects, err := resolveSubjects(args, file, cmd.InOrStdin())
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

	result, err := pastesBatch(cmd.Context(), svc.client, subjects, concurrency)
	if err != nil {
		return err
	}
	return renderBatch(cmd, format, result)
}

func runPassword(cmd *cobra.Command, args []string) error {
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	password, err := readPassword(args, fromStdin, cmd.InOrStdin())
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	svc, err := lookupServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close() // nolint:errcheck // best-effort cleanup

	result, err := passwordBatch(cmd.Context(), svc.client, password)
	if err != nil {
		return err
	}
	return renderBatch(cmd, format, result)
}

// lookupServices builds the client for a one-shot lookup command.
func lookupServices(ctx context.Context, needsKey bool) (*services, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	if needsKey {
		if err := requireAPIKey(cfg); err != nil {
			return nil, err
		}
	}
	return newServices(ctx, cfg, observability.Logger(), versionInfo.Version)
}

// breachesBatch runs query once per subject, or once in total for the
// catalogue operations that take none.
func breachesBatch(ctx context.Context, lookup server.Lookup, query hibp.BreachQuery, subjects []string, concurrency int) (*core.BatchResult, error) {
	if !needsSubject(query.Operation) {
		result, err := lookup.Breaches(ctx, query)
		if err != nil {
			return nil, err
		}
		return core.NewBatchResult(query.Operation, []*core.LookupResult{result}), nil
	}

	orchestrator := &engine.Orchestrator{Concurrency: concurrency}
	return orchestrator.Run(ctx, query.Operation, subjects, func(ctx context.Context, subject string) (*core.LookupResult, error) {
		q := query
		if q.Operation == core.OperationBreachByName {
			q.Name = subject
		} else {
			q.Account = subject
		}
		return lookup.Breaches(ctx, q)
	})
}

func pastesBatch(ctx context.Context, lookup server.Lookup, accounts []string, concurrency int) (*core.BatchResult, error) {
	orchestrator := &engine.Orchestrator{Concurrency: concurrency}
	return orchestrator.Run(ctx, core.OperationPastesForAccount, accounts, lookup.Pastes)
}

// passwordBatch checks a single password. The password never becomes the
// result subject.
func passwordBatch(ctx context.Context, lookup server.Lookup, password string) (*core.BatchResult, error) {
	result, err := lookup.PasswordExposure(ctx, password)
	if err != nil {
		return nil, err
	}
	result.Subject = ""
	return core.NewBatchResult(core.OperationPasswordRange, []*core.LookupResult{result}), nil
}

func needsSubject(op core.Operation) bool {
	return op == core.OperationBreachesForAccount || op == core.OperationBreachByName
}

func readPassword(args []string, fromStdin bool, stdin io.Reader) (string, error) {
	switch {
	case fromStdin && len(args) > 0:
		return "", errors.New("cannot combine a password argument with --stdin")
	case fromStdin:
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" && errors.Is(err, io.EOF) {
			return "", errors.New("no password on stdin")
		}
		return strings.TrimRight(line, "\r\n"), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("a password argument or --stdin is required")
	}
}

func resolveConcurrency(cmd *cobra.Command) (int, error) {
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return 0, err
	}
	if concurrency < 1 {
		return 0, errors.New("concurrency must be at least 1")
	}
	return concurrency, nil
}

func renderBatch(cmd *cobra.Command, format output.Format, result *core.BatchResult) error {
	rendered, err := output.NewFormatter(format).FormatBatch(result)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		observability.Logger().Debug("Some lookups failed",
			zap.String("operation", string(result.Operation)),
			zap.Int("failed", result.Failed),
			zap.Int("total", result.Total))
	}
	return writeRendered(cmd, rendered)
}
