// Package gherkin normalizes scenario titles, renders .feature text, and
// computes the content signatures used to match filed tests across runs.
package gherkin

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"regexp"
	"strings"
)

var (
	validateRx   = regexp.MustCompile(`(?i)^\s*(Validate\s*)+`)
	whitespaceRx = regexp.MustCompile(`\s+`)
	stepRx       = regexp.MustCompile(`(?i)^\s*(Given|When|Then|And|But)\b`)
	digitsRx     = regexp.MustCompile(`\d+`)
	nonWordRx    = regexp.MustCompile(`[^a-z#\s|]+`)
)

// SanitizeTitle strips tracker prefixes ("KEY |", "TCnn |") and any stacked
// "Validate" words from a raw title, then re-prefixes a single "Validate ".
// The result is the canonical form both generated and filed titles are
// compared in.
func SanitizeTitle(issueKey, raw string) string {
	t := strings.TrimSpace(raw)

	prefixRx := regexp.MustCompile(`(?i)^\s*(?:` + regexp.QuoteMeta(issueKey) + `\s*\|\s*)?(?:TC\d+\s*\|\s*)?`)
	t = prefixRx.ReplaceAllString(t, "")
	t = validateRx.ReplaceAllString(t, "")
	t = strings.Trim(t, " -:–—")
	t = strings.TrimSpace(whitespaceRx.ReplaceAllString(t, " "))
	if t == "" {
		t = "Untitled Scenario"
	}
	return "Validate " + t
}

// BuildFeature renders the .feature text for a single scenario. The scenario
// line drops the leading "Validate " so the tag and title read naturally.
func BuildFeature(summary, issueKey, title, steps string) string {
	if title == "" {
		title = "Untitled Scenario"
	}
	scenarioTitle := strings.Replace(title, "Validate ", "", 1)
	if steps == "" {
		steps = "# No steps defined"
	}

	lines := []string{
		"@" + issueKey,
		"Feature: " + summary,
		"  # Source: " + issueKey,
		"",
		"  Scenario: " + scenarioTitle,
	}
	for _, step := range strings.Split(steps, "\n") {
		lines = append(lines, "    "+strings.TrimSpace(step))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func norm(s string) string {
	return strings.TrimSpace(whitespaceRx.ReplaceAllString(strings.ToLower(s), " "))
}

// Signature hashes the normalized title and feature body together. Two filed
// tests with the same signature are duplicates of each other.
func Signature(title, featureText string) string {
	payload := norm(title) + "|" + norm(featureText)
	return fmt.Sprintf("%x", sha1.Sum([]byte(payload)))
}

// StepsSignature hashes only the Given/When/Then/And/But lines, with digits
// masked so volatile values (ids, amounts) do not churn the signature. It
// returns "" when the input has no step lines at all.
func StepsSignature(steps string) string {
	var lines []string
	for _, raw := range strings.Split(steps, "\n") {
		if stepRx.MatchString(raw) {
			lines = append(lines, strings.ToLower(strings.TrimSpace(raw)))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	t := strings.Join(lines, " | ")
	t = digitsRx.ReplaceAllString(t, "#")
	t = nonWordRx.ReplaceAllString(t, "")
	t = strings.TrimSpace(whitespaceRx.ReplaceAllString(t, " "))
	return fmt.Sprintf("%x", md5.Sum([]byte(t)))
}
