package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casegen/internal/config"
	"casegen/internal/dedupe"
	"casegen/internal/tracker"
)

var (
	dedupeProject string
	dedupePrefer  string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [work-item-key]",
	Short: "Delete duplicate test issues linked to a work item",
	Long: `Groups the Test issues linked to the work item by content signature
and deletes all but one per group. --prefer selects the survivor.`,
	Args: cobra.ExactArgs(1),
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeProject, "project", "", "Project key to scope the search (default: configured project)")
	dedupeCmd.Flags().StringVar(&dedupePrefer, "prefer", "newest", "Which duplicate to keep: newest or oldest")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	workItemKey := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateTracker(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	prefer := dedupe.Prefer(dedupePrefer)
	if prefer != dedupe.PreferNewest && prefer != dedupe.PreferOldest {
		return fmt.Errorf("invalid --prefer %q: must be newest or oldest", dedupePrefer)
	}

	project := dedupeProject
	if project == "" {
		project = cfg.Tracker.ProjectKey
	}

	log := logger.With(zap.String("work_item", workItemKey))
	tc := tracker.NewClient(cfg.Tracker, log)

	result, err := dedupe.Sweep(cmd.Context(), tc, workItemKey, project, prefer, log)
	if err != nil {
		return fmt.Errorf("dedupe failed for %s: %w", workItemKey, err)
	}

	out := cmd.OutOrStdout()
	for _, k := range result.Deleted {
		fmt.Fprintf(out, "  deleted %s\n", k)
	}
	fmt.Fprintf(out, "kept=%d deleted=%d\n", len(result.Kept), len(result.Deleted))
	return nil
}
