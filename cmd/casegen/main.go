// casegen generates Gherkin test cases for a work item with Gemini and files
// them in the issue tracker, reconciling against previously filed cases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "casegen",
	Short: "casegen - AI test-case generation for issue trackers",
	Long: `casegen reads a work item from the issue tracker, asks Gemini for a
structured set of Gherkin test cases, and reconciles them against the test
issues already linked to the work item: new scenarios are filed, changed
ones updated, vanished ones tagged obsolete or deleted.

Configuration comes from the environment (JIRA_*, GEMINI_*, GOOGLE_*,
LLM_*), optionally seeded from a YAML file via --config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(envCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
