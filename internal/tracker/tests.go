package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"casegen/internal/adf"
	"casegen/internal/gherkin"
)

// TestIssue is a filed test case linked to a work item.
type TestIssue struct {
	Key       string
	Summary   string
	Gherkin   string
	NormTitle string
	Signature string
	Created   string
}

// CreateTestIssue files a new issue of type Test and returns its key. The
// description is an ADF document with the feature text in a gherkin code
// block; when feature is empty, description falls back to plain text.
func (c *Client) CreateTestIssue(ctx context.Context, projectKey, summary, description, feature string, labels []string) (string, error) {
	var desc adf.Doc
	if feature != "" {
		desc = adf.WithCodeBlock("Steps (Gherkin)", feature)
	} else {
		desc = adf.FromText(description)
	}
	if len(labels) == 0 {
		labels = []string{"casegen", "auto-generated"}
	}

	body := map[string]any{
		"fields": map[string]any{
			"project":     map[string]any{"key": projectKey},
			"summary":     summary,
			"issuetype":   map[string]any{"name": "Test"},
			"labels":      labels,
			"description": desc,
		},
	}
	raw, err := c.request(ctx, "POST", "/rest/api/3/issue", nil, body)
	if err != nil {
		return "", &APIError{Op: "create test issue", Status: statusOf(err), Err: err}
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", &APIError{Op: "create test issue", Err: err}
	}
	c.logger.Info("created test issue", zap.String("key", created.Key))
	return created.Key, nil
}

// UpdateTestIssue rewrites a filed test's summary and feature body.
func (c *Client) UpdateTestIssue(ctx context.Context, key, summary, feature string) error {
	body := map[string]any{
		"fields": map[string]any{
			"summary":     summary,
			"description": adf.WithCodeBlock("Steps (Gherkin)", feature),
		},
	}
	if _, err := c.request(ctx, "PUT", "/rest/api/3/issue/"+key, nil, body); err != nil {
		return &APIError{Op: "update test issue", Key: key, Status: statusOf(err), Err: err}
	}
	c.logger.Info("updated test issue", zap.String("key", key), zap.String("summary", summary))
	return nil
}

// AddLabels appends labels to an issue without touching existing ones.
func (c *Client) AddLabels(ctx context.Context, key string, labels []string) error {
	add := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		add = append(add, map[string]string{"add": l})
	}
	body := map[string]any{"update": map[string]any{"labels": add}}
	if _, err := c.request(ctx, "PUT", "/rest/api/3/issue/"+key, nil, body); err != nil {
		return &APIError{Op: "add labels", Key: key, Status: statusOf(err), Err: err}
	}
	c.logger.Info("added labels", zap.String("key", key), zap.Strings("labels", labels))
	return nil
}

// LinkIssues links a test to its work item. inwardKey is the new test,
// outwardKey the work item.
func (c *Client) LinkIssues(ctx context.Context, inwardKey, outwardKey, linkType string) error {
	if linkType == "" {
		linkType = "Relates"
	}
	body := map[string]any{
		"type":         map[string]any{"name": linkType},
		"inwardIssue":  map[string]any{"key": inwardKey},
		"outwardIssue": map[string]any{"key": outwardKey},
	}
	if _, err := c.request(ctx, "POST", "/rest/api/3/issueLink", nil, body); err != nil {
		return &APIError{
			Op:     "link issues",
			Key:    inwardKey,
			Status: statusOf(err),
			Err:    fmt.Errorf("linking %s -> %s (%s): %w", inwardKey, outwardKey, linkType, err),
		}
	}
	c.logger.Info("linked issues",
		zap.String("from", inwardKey),
		zap.String("to", outwardKey),
		zap.String("link_type", linkType))
	return nil
}

// DeleteIssue removes an issue permanently.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	if _, err := c.request(ctx, "DELETE", "/rest/api/3/issue/"+key, nil, nil); err != nil {
		return &APIError{Op: "delete issue", Key: key, Status: statusOf(err), Err: err}
	}
	c.logger.Warn("deleted issue", zap.String("key", key))
	return nil
}

// linkedIssueKeys returns the keys on either end of the parent's issue links.
func (c *Client) linkedIssueKeys(ctx context.Context, parentKey string) ([]string, error) {
	params := url.Values{}
	params.Set("fields", "issuelinks")
	raw, err := c.request(ctx, "GET", "/rest/api/3/issue/"+parentKey, params, nil)
	if err != nil {
		return nil, &APIError{Op: "list issue links", Key: parentKey, Status: statusOf(err), Err: err}
	}

	var payload struct {
		Fields struct {
			IssueLinks []struct {
				OutwardIssue *struct {
					Key string `json:"key"`
				} `json:"outwardIssue"`
				InwardIssue *struct {
					Key string `json:"key"`
				} `json:"inwardIssue"`
			} `json:"issuelinks"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &APIError{Op: "list issue links", Key: parentKey, Err: err}
	}

	var keys []string
	for _, link := range payload.Fields.IssueLinks {
		switch {
		case link.OutwardIssue != nil:
			keys = append(keys, link.OutwardIssue.Key)
		case link.InwardIssue != nil:
			keys = append(keys, link.InwardIssue.Key)
		}
	}
	return keys, nil
}

// LinkedTestIssues returns every Test issue linked to the work item, with
// gherkin bodies and normalized titles ready for reconciliation. projectKey
// narrows the search when non-empty.
func (c *Client) LinkedTestIssues(ctx context.Context, parentKey, projectKey string) ([]TestIssue, error) {
	linked, err := c.linkedIssueKeys(ctx, parentKey)
	if err != nil {
		return nil, err
	}
	if len(linked) == 0 {
		c.logger.Info("no linked tests found", zap.String("parent", parentKey))
		return nil, nil
	}

	jql := fmt.Sprintf("key in (%s) AND issuetype = \"Test\"", strings.Join(linked, ","))
	if projectKey != "" {
		jql = fmt.Sprintf("key in (%s) AND project = %q AND issuetype = \"Test\"", strings.Join(linked, ","), projectKey)
	}
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("fields", "summary,created,description")
	params.Set("maxResults", "100")

	raw, err := c.request(ctx, "GET", "/rest/api/3/search/jql", params, nil)
	if err != nil {
		return nil, &APIError{Op: "search linked tests", Key: parentKey, Status: statusOf(err), Err: err}
	}

	var payload struct {
		Issues []issuePayload `json:"issues"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &APIError{Op: "search linked tests", Key: parentKey, Err: err}
	}

	tests := make([]TestIssue, 0, len(payload.Issues))
	for _, issue := range payload.Issues {
		body, doc := descriptionText(issue.Fields.Description)
		if doc != nil {
			// Prefer the gherkin code block; summaries and headings around
			// it are not part of the scenario content.
			if blocks := adf.ExtractCodeBlocks(doc, "gherkin"); len(blocks) > 0 {
				body = strings.Join(blocks, "\n")
			}
		}
		norm := gherkin.SanitizeTitle(parentKey, issue.Fields.Summary)
		tests = append(tests, TestIssue{
			Key:       issue.Key,
			Summary:   issue.Fields.Summary,
			Gherkin:   body,
			NormTitle: norm,
			Signature: gherkin.Signature(norm, body),
			Created:   issue.Fields.Created,
		})
	}
	c.logger.Info("found linked tests", zap.String("parent", parentKey), zap.Int("count", len(tests)))
	return tests, nil
}
