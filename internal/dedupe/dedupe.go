// Package dedupe removes exact-duplicate test issues linked to a work item.
// Earlier tool versions could file the same scenario twice; the sweep groups
// linked tests by content signature and deletes all but one per group.
package dedupe

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"casegen/internal/tracker"
)

// Prefer selects which duplicate survives.
type Prefer string

const (
	// PreferNewest keeps the most recently created duplicate. Default.
	PreferNewest Prefer = "newest"
	// PreferOldest keeps the earliest duplicate.
	PreferOldest Prefer = "oldest"
)

// Tracker is the subset of tracker operations the sweep needs.
type Tracker interface {
	LinkedTestIssues(ctx context.Context, parentKey, projectKey string) ([]tracker.TestIssue, error)
	DeleteIssue(ctx context.Context, key string) error
}

// Result reports a sweep: which keys survived, which were dropped from the
// groups, and which deletions actually went through.
type Result struct {
	Kept    []string
	Dropped []string
	Deleted []string
}

// FindDuplicates groups tests by signature and splits each group into the
// survivor and the rest. Groups of one are kept untouched.
func FindDuplicates(tests []tracker.TestIssue, prefer Prefer) (keep, drop []tracker.TestIssue) {
	groups := make(map[string][]tracker.TestIssue)
	var order []string
	for _, t := range tests {
		if _, seen := groups[t.Signature]; !seen {
			order = append(order, t.Signature)
		}
		groups[t.Signature] = append(groups[t.Signature], t)
	}

	for _, sig := range order {
		items := groups[sig]
		if len(items) == 1 {
			keep = append(keep, items[0])
			continue
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Created < items[j].Created
		})
		if prefer == PreferOldest {
			keep = append(keep, items[0])
			drop = append(drop, items[1:]...)
		} else {
			keep = append(keep, items[len(items)-1])
			drop = append(drop, items[:len(items)-1]...)
		}
	}
	return keep, drop
}

// Sweep finds and deletes duplicate linked tests. Failed deletions are
// logged and skipped; the survivor set is never touched.
func Sweep(ctx context.Context, t Tracker, parentKey, projectKey string, prefer Prefer, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tests, err := t.LinkedTestIssues(ctx, parentKey, projectKey)
	if err != nil {
		return nil, err
	}

	keep, drop := FindDuplicates(tests, prefer)
	result := &Result{}
	for _, k := range keep {
		result.Kept = append(result.Kept, k.Key)
	}
	for _, d := range drop {
		result.Dropped = append(result.Dropped, d.Key)
		if err := t.DeleteIssue(ctx, d.Key); err != nil {
			logger.Warn("could not delete duplicate",
				zap.String("key", d.Key), zap.Error(err))
			continue
		}
		result.Deleted = append(result.Deleted, d.Key)
	}

	logger.Info("dedupe sweep completed",
		zap.String("parent", parentKey),
		zap.Int("kept", len(result.Kept)),
		zap.Int("deleted", len(result.Deleted)))
	return result, nil
}
