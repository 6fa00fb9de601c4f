// Package reconcile diffs freshly generated scenarios against the test
// issues already filed for a work item and executes the result. BuildPlan is
// pure; every side effect lives in the Applier so the set logic stays
// unit-testable on its own.
package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"casegen/internal/generate"
	"casegen/internal/gherkin"
	"casegen/internal/tracker"
)

// Mode selects what happens to retired test issues.
type Mode int

const (
	// TagObsolete labels retired issues for review. Default.
	TagObsolete Mode = iota
	// DeleteObsolete removes retired issues from the tracker.
	DeleteObsolete
)

func (m Mode) String() string {
	if m == DeleteObsolete {
		return "delete-obsolete"
	}
	return "tag-obsolete"
}

// ObsoleteLabel marks retired test issues in tag mode.
const ObsoleteLabel = "obsolete-review"

// UpdateOp rewrites one filed test whose scenario content changed.
type UpdateOp struct {
	Key     string
	Summary string // rebuilt, keeping the filed "KEY | TCnn" prefix when present
	Title   string
	Steps   string
}

// Plan is the reconciliation outcome: three disjoint sets.
type Plan struct {
	Create []generate.Scenario // no filed test carries this title
	Update []UpdateOp          // title matches, steps differ
	Retire []tracker.TestIssue // filed title absent from the generated set
}

// Empty reports whether the plan requires no tracker writes.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Retire) == 0
}

// BuildPlan matches generated scenarios against existing filed tests by
// normalized title. Content comparison uses the steps-only signature, so the
// feature-file framing a filed description carries does not defeat
// idempotence. Duplicate titles within one generated batch: first wins.
func BuildPlan(issueKey string, existing []tracker.TestIssue, generated []generate.Scenario) Plan {
	existingByTitle := make(map[string]tracker.TestIssue, len(existing))
	for _, test := range existing {
		norm := test.NormTitle
		if norm == "" {
			norm = gherkin.SanitizeTitle(issueKey, test.Summary)
		}
		if _, ok := existingByTitle[norm]; !ok {
			existingByTitle[norm] = test
		}
	}

	var plan Plan
	generatedTitles := make(map[string]bool, len(generated))
	for _, sc := range generated {
		norm := gherkin.SanitizeTitle(issueKey, sc.Title)
		if generatedTitles[norm] {
			continue
		}
		generatedTitles[norm] = true

		test, filed := existingByTitle[norm]
		if !filed {
			plan.Create = append(plan.Create, generate.Scenario{Title: norm, Steps: sc.Steps})
			continue
		}
		if gherkin.StepsSignature(test.Gherkin) != gherkin.StepsSignature(sc.Steps) {
			plan.Update = append(plan.Update, UpdateOp{
				Key:     test.Key,
				Summary: rebuildSummary(issueKey, test.Summary, norm),
				Title:   norm,
				Steps:   sc.Steps,
			})
		}
	}

	for _, test := range existing {
		norm := test.NormTitle
		if norm == "" {
			norm = gherkin.SanitizeTitle(issueKey, test.Summary)
		}
		// Only the representative of a duplicated filed title is matched;
		// the rest are left to the dedupe sweep, not retired here.
		if !generatedTitles[norm] && existingByTitle[norm].Key == test.Key {
			plan.Retire = append(plan.Retire, test)
		}
	}
	return plan
}

// rebuildSummary keeps the filed "KEY | TCnn" prefix when the summary has
// one, otherwise falls back to "KEY | Title".
func rebuildSummary(issueKey, filedSummary, title string) string {
	parts := strings.Split(filedSummary, "|")
	if len(parts) > 1 {
		return strings.TrimSpace(parts[0]) + " | " + strings.TrimSpace(parts[1]) + " | " + title
	}
	return issueKey + " | " + title
}

var tcIndexRx = regexp.MustCompile(`(?i)TC(\d+)`)

// NextIndex returns max(TCnn)+1 over the filed summaries so new cases
// continue the numbering.
func NextIndex(existing []tracker.TestIssue) int {
	max := 0
	for _, test := range existing {
		if m := tcIndexRx.FindStringSubmatch(test.Summary); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return max + 1
}

// CaseTag renders the TCnn tag for an index.
func CaseTag(index int) string {
	return fmt.Sprintf("TC%02d", index)
}
