package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casegen/internal/config"
	"casegen/internal/dedupe"
	"casegen/internal/generate"
	"casegen/internal/reconcile"
	"casegen/internal/tracker"
)

var (
	genProject        string
	genLinkType       string
	genMaxTests       int
	genDeleteObsolete bool
	genSkipDedupe     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [work-item-key]",
	Short: "Generate test cases for a work item and file them in the tracker",
	Long: `Fetches the work item, generates Gherkin scenarios with Gemini, and
reconciles them against the test issues already linked to it:

  - scenarios with no filed counterpart are created and linked;
  - scenarios whose steps changed update the filed issue;
  - filed tests whose titles vanished from the generated set are tagged
    "` + reconcile.ObsoleteLabel + `" (or deleted with --delete-obsolete).

Each tracker failure is reported and the run continues with the remaining
operations. A model failure or unparsable response aborts the run before
any tracker write.

Example:
  casegen generate PROJ-123 --project QA --max-tests 15`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genProject, "project", "", "Target project key for test issues (default: configured project)")
	generateCmd.Flags().StringVar(&genLinkType, "link-type", "", "Issue link type between test and work item (default: configured type)")
	generateCmd.Flags().IntVar(&genMaxTests, "max-tests", 0, "Cap on generated scenarios (default: configured cap)")
	generateCmd.Flags().BoolVar(&genDeleteObsolete, "delete-obsolete", false, "Delete obsolete test issues instead of tagging them")
	generateCmd.Flags().BoolVar(&genSkipDedupe, "skip-dedupe", false, "Skip the duplicate sweep after filing")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	workItemKey := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	project := genProject
	if project == "" {
		project = cfg.Tracker.ProjectKey
	}
	linkType := genLinkType
	if linkType == "" {
		linkType = cfg.Tracker.LinkType
	}
	maxTests := genMaxTests
	if maxTests <= 0 {
		maxTests = cfg.Prompt.MaxTests
	}
	mode := reconcile.TagObsolete
	if genDeleteObsolete {
		mode = reconcile.DeleteObsolete
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	log := logger.With(zap.String("run_id", runID), zap.String("work_item", workItemKey))
	log.Info("starting test-suite refinement",
		zap.String("project", project),
		zap.String("mode", mode.String()))

	ctx := cmd.Context()
	tc := tracker.NewClient(cfg.Tracker, log)

	item, err := tc.GetIssue(ctx, workItemKey)
	if err != nil {
		return fmt.Errorf("could not read work item %s: %w", workItemKey, err)
	}

	gen, err := generate.NewGenerator(ctx, cfg.Gemini, cfg.Prompt, log)
	if err != nil {
		return err
	}
	scenarios, err := gen.Scenarios(ctx, item, maxTests)
	if err != nil {
		return fmt.Errorf("generation failed for %s: %w", workItemKey, err)
	}

	existing, err := tc.LinkedTestIssues(ctx, workItemKey, project)
	if err != nil {
		// A failed lookup is survivable: the run proceeds as if nothing were
		// filed and the dedupe sweep cleans up any resulting duplicates.
		log.Warn("could not read existing tests, assuming none", zap.Error(err))
		existing = nil
	}

	plan := reconcile.BuildPlan(workItemKey, existing, scenarios)
	log.Info("reconciliation plan built",
		zap.Int("create", len(plan.Create)),
		zap.Int("update", len(plan.Update)),
		zap.Int("retire", len(plan.Retire)))

	var extraLabels []string
	if generate.IsBackendItem(item) {
		extraLabels = append(extraLabels, "api-test")
	}

	applier := reconcile.NewApplier(tc, project, linkType, log)
	report := applier.Apply(ctx, runID, item, existing, plan, mode, extraLabels)

	if !genSkipDedupe {
		if _, err := dedupe.Sweep(ctx, tc, workItemKey, project, dedupe.PreferNewest, log); err != nil {
			log.Warn("dedupe sweep failed", zap.Error(err))
		}
	}

	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, report *reconcile.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", report.RunID)
	for _, c := range report.Created {
		fmt.Fprintf(out, "  created  %s  %s\n", c.Key, c.Summary)
	}
	for _, k := range report.Updated {
		fmt.Fprintf(out, "  updated  %s\n", k)
	}
	for _, k := range report.Tagged {
		fmt.Fprintf(out, "  tagged   %s  (%s)\n", k, reconcile.ObsoleteLabel)
	}
	for _, k := range report.Deleted {
		fmt.Fprintf(out, "  deleted  %s\n", k)
	}
	for _, f := range report.Failures {
		if f.Key != "" {
			fmt.Fprintf(out, "  FAILED   %s %s: %v\n", f.Op, f.Key, f.Err)
		} else {
			fmt.Fprintf(out, "  FAILED   %s: %v\n", f.Op, f.Err)
		}
	}
	fmt.Fprintf(out, "created=%d updated=%d tagged=%d deleted=%d failures=%d\n",
		len(report.Created), len(report.Updated), len(report.Tagged),
		len(report.Deleted), len(report.Failures))
}
