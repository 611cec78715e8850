package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
	Long: `Manage the local cache of public HIBP responses.

Only the breach catalogue and Pwned Passwords range responses are cached.
Account lookups are never stored.`,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		removed, err := db.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}

		observability.Logger().Info("Purged expired cache entries",
			zap.Int64("removed", removed),
			zap.String("database", db.Location()),
			zap.String("at", formatTime(time.Now())))

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", removed)
		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", db.Location())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("clear requires --yes")
		}

		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		removed, err := db.ClearCache(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", db.Location())
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().Bool("yes", false, "Confirm removal of all entries")

	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
