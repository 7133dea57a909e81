package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "amphion",
		Short: "Amphion - amphora orchestration worker",
		Long: `Amphion drives the lifecycle of load-balancer virtual appliances
("amphorae"): starting and stopping listeners, plugging network and VIP
ports, configuring VRRP failover, pushing agent configuration, and
uploading TLS material.

The worker coordinates many independently failing remote operations while
keeping a persistent record of entity status consistent, compensating when
a multi-step workflow aborts partway, and deciding per failure type whether
to retry, skip, or abort.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load environment overrides from a .env file if present.
			if _, err := os.Stat(".env"); err == nil {
				_ = godotenv.Load()
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(newWorkerCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}
