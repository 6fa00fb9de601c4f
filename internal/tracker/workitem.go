package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"casegen/internal/adf"
)

// WorkItem is the read-only view of a tracked work item: the context the
// generator prompts from.
type WorkItem struct {
	Key            string
	Summary        string
	Description    string  // flattened plain text
	DescriptionADF adf.Doc // raw document, kept for table/link extraction
	Labels         []string
	Comments       []Comment
}

// Comment is one work-item comment, already flattened to text.
type Comment struct {
	Author string
	Body   string
}

// FullContext joins description and comments into the prompt context block.
func (w *WorkItem) FullContext() string {
	var comments []string
	for _, c := range w.Comments {
		if c.Body == "" {
			continue
		}
		comments = append(comments, "Comment from "+c.Author+":\n"+c.Body)
	}
	return "DESCRIPTION:\n" + w.Description + "\n\nCOMMENTS:\n" + strings.Join(comments, "\n\n---\n\n")
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Labels      []string        `json:"labels"`
	Created     string          `json:"created"`
	Comment     struct {
		Comments []struct {
			Author struct {
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Body json.RawMessage `json:"body"`
		} `json:"comments"`
	} `json:"comment"`
}

type issuePayload struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

// descriptionText handles both ADF documents and legacy plain strings.
func descriptionText(raw json.RawMessage) (string, adf.Doc) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var doc adf.Doc
	if err := json.Unmarshal(raw, &doc); err == nil {
		return adf.ToText(doc), doc
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return "", nil
}

// GetIssue fetches a work item with its description and comments. A missing
// or unreadable work item is fatal for the caller: there is nothing to
// generate from.
func (c *Client) GetIssue(ctx context.Context, key string) (*WorkItem, error) {
	params := url.Values{}
	params.Set("fields", "summary,description,labels,issuetype,parent,comment")

	raw, err := c.request(ctx, "GET", "/rest/api/3/issue/"+key, params, nil)
	if err != nil {
		return nil, &APIError{Op: "get work item", Key: key, Status: statusOf(err), Err: err}
	}

	var payload issuePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &APIError{Op: "get work item", Key: key, Err: err}
	}

	desc, descADF := descriptionText(payload.Fields.Description)
	item := &WorkItem{
		Key:            key,
		Summary:        payload.Fields.Summary,
		Description:    desc,
		DescriptionADF: descADF,
		Labels:         payload.Fields.Labels,
	}
	for _, rc := range payload.Fields.Comment.Comments {
		body, _ := descriptionText(rc.Body)
		author := rc.Author.DisplayName
		if author == "" {
			author = "Unknown"
		}
		if body != "" {
			item.Comments = append(item.Comments, Comment{Author: author, Body: body})
		}
	}

	c.logger.Info("read work item",
		zap.String("key", key),
		zap.String("summary", truncate(item.Summary, 50)),
		zap.Int("comments", len(item.Comments)))
	return item, nil
}

// statusOf pulls the HTTP status out of a wrapped APIError, if any.
func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
