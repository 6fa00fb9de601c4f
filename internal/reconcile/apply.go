package reconcile

import (
	"context"

	"go.uber.org/zap"

	"casegen/internal/generate"
	"casegen/internal/gherkin"
	"casegen/internal/tracker"
)

// Tracker is the subset of tracker operations the applier needs.
type Tracker interface {
	CreateTestIssue(ctx context.Context, projectKey, summary, description, feature string, labels []string) (string, error)
	UpdateTestIssue(ctx context.Context, key, summary, feature string) error
	AddLabels(ctx context.Context, key string, labels []string) error
	LinkIssues(ctx context.Context, inwardKey, outwardKey, linkType string) error
	DeleteIssue(ctx context.Context, key string) error
}

// CreatedCase records one successfully filed test.
type CreatedCase struct {
	Key     string
	Summary string
	Tag     string
}

// Failure records one tracker operation that failed without stopping the run.
type Failure struct {
	Op  string
	Key string
	Err error
}

// Report is the run outcome: what was filed, what failed.
type Report struct {
	RunID   string
	Created []CreatedCase
	Updated []string
	Tagged  []string // retired by labeling
	Deleted []string // retired by deletion

	Failures []Failure
}

func (r *Report) fail(op, key string, err error) {
	r.Failures = append(r.Failures, Failure{Op: op, Key: key, Err: err})
}

// Applier executes a reconciliation plan against the tracker. Each failed
// operation is recorded and the run continues; nothing is rolled back.
type Applier struct {
	tracker    Tracker
	projectKey string
	linkType   string
	logger     *zap.Logger
}

// NewApplier wires an applier to a tracker client.
func NewApplier(t Tracker, projectKey, linkType string, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{tracker: t, projectKey: projectKey, linkType: linkType, logger: logger}
}

// Apply runs the plan: updates first, then creates (numbered past the
// existing TCnn range), then retirement per mode.
func (a *Applier) Apply(ctx context.Context, runID string, item *tracker.WorkItem, existing []tracker.TestIssue, plan Plan, mode Mode, extraLabels []string) *Report {
	report := &Report{RunID: runID}

	for _, op := range plan.Update {
		feature := gherkin.BuildFeature(item.Summary, item.Key, op.Title, op.Steps)
		if err := a.tracker.UpdateTestIssue(ctx, op.Key, op.Summary, feature); err != nil {
			a.logger.Error("update failed", zap.String("run_id", runID), zap.String("key", op.Key), zap.Error(err))
			report.fail("update", op.Key, err)
			continue
		}
		report.Updated = append(report.Updated, op.Key)
	}

	index := NextIndex(existing)
	labels := append([]string{"casegen", "auto-generated"}, extraLabels...)
	for _, sc := range plan.Create {
		a.createOne(ctx, report, item, sc, index, labels)
		index++
	}

	for _, test := range plan.Retire {
		switch mode {
		case DeleteObsolete:
			if err := a.tracker.DeleteIssue(ctx, test.Key); err != nil {
				a.logger.Error("delete failed", zap.String("run_id", runID), zap.String("key", test.Key), zap.Error(err))
				report.fail("delete obsolete", test.Key, err)
				continue
			}
			report.Deleted = append(report.Deleted, test.Key)
		default:
			if err := a.tracker.AddLabels(ctx, test.Key, []string{ObsoleteLabel}); err != nil {
				a.logger.Error("tag failed", zap.String("run_id", runID), zap.String("key", test.Key), zap.Error(err))
				report.fail("tag obsolete", test.Key, err)
				continue
			}
			report.Tagged = append(report.Tagged, test.Key)
		}
	}

	a.logger.Info("plan applied",
		zap.String("run_id", runID),
		zap.String("work_item", item.Key),
		zap.String("mode", mode.String()),
		zap.Int("created", len(report.Created)),
		zap.Int("updated", len(report.Updated)),
		zap.Int("tagged", len(report.Tagged)),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("failures", len(report.Failures)))
	return report
}

func (a *Applier) createOne(ctx context.Context, report *Report, item *tracker.WorkItem, sc generate.Scenario, index int, labels []string) {
	tag := CaseTag(index)
	summary := item.Key + " | " + tag + " | " + sc.Title
	feature := gherkin.BuildFeature(item.Summary, item.Key, sc.Title, sc.Steps)

	key, err := a.tracker.CreateTestIssue(ctx, a.projectKey, summary,
		"Auto-generated test for "+item.Key+".", feature, labels)
	if err != nil {
		a.logger.Error("create failed", zap.String("run_id", report.RunID), zap.String("summary", summary), zap.Error(err))
		report.fail("create", "", err)
		return
	}

	if err := a.tracker.LinkIssues(ctx, key, item.Key, a.linkType); err != nil {
		// Configured link type may not exist in the target project.
		if err := a.tracker.LinkIssues(ctx, key, item.Key, "Relates"); err != nil {
			a.logger.Error("link failed", zap.String("run_id", report.RunID), zap.String("key", key), zap.Error(err))
			report.fail("link", key, err)
		}
	}
	report.Created = append(report.Created, CreatedCase{Key: key, Summary: summary, Tag: tag})
}
