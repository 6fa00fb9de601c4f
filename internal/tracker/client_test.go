package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"casegen/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// net/http keeps idle connections in a background goroutine pool.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.TrackerConfig{
		BaseURL:    srv.URL,
		Email:      "qa@example.com",
		Token:      "tok",
		MaxRetries: 3,
		Backoff:    "1ms",
		Timeout:    "5s",
	}, zap.NewNop())
}

func TestGetIssue(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/issue/PROJ-1", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "qa@example.com", user)
		assert.Equal(t, "tok", pass)

		w.Write([]byte(`{
			"key": "PROJ-1",
			"fields": {
				"summary": "Charge modal",
				"labels": ["backend"],
				"description": {"type":"doc","version":1,"content":[
					{"type":"paragraph","content":[{"type":"text","text":"As a user I can charge."}]}]},
				"comment": {"comments": [
					{"author":{"displayName":"Dana"},
					 "body":{"type":"doc","version":1,"content":[
						{"type":"paragraph","content":[{"type":"text","text":"Please cover timeouts."}]}]}},
					{"author":{},
					 "body":{"type":"doc","version":1,"content":[]}}
				]}
			}
		}`))
	}))

	item, err := c.GetIssue(context.Background(), "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "Charge modal", item.Summary)
	assert.Equal(t, "As a user I can charge.", item.Description)
	assert.Equal(t, []string{"backend"}, item.Labels)
	require.Len(t, item.Comments, 1, "empty comment bodies are dropped")
	assert.Equal(t, "Dana", item.Comments[0].Author)
	assert.Contains(t, item.FullContext(), "Comment from Dana:\nPlease cover timeouts.")
}

func TestGetIssueNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
	}))

	_, err := c.GetIssue(context.Background(), "PROJ-404")
	require.Error(t, err)
	assert.True(t, NotFound(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "PROJ-404", apiErr.Key)
}

func TestRequestRetriesTransientFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream sad", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"key":"PROJ-9","fields":{"summary":"ok"}}`))
	}))

	item, err := c.GetIssue(context.Background(), "PROJ-9")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "ok", item.Summary)
}

func TestRequestExhaustsRetries(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))

	_, err := c.GetIssue(context.Background(), "PROJ-9")
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestCreateTestIssue(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/issue", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"key":"QA-55","self":"https://example/rest/api/3/issue/10055"}`))
	}))

	key, err := c.CreateTestIssue(context.Background(), "QA",
		"PROJ-1 | TC03 | Validate timeout", "", "Feature: x", []string{"casegen", "auto-generated"})
	require.NoError(t, err)
	assert.Equal(t, "QA-55", key)

	fields := got["fields"].(map[string]any)
	assert.Equal(t, "PROJ-1 | TC03 | Validate timeout", fields["summary"])
	assert.Equal(t, "Test", fields["issuetype"].(map[string]any)["name"])
	assert.Equal(t, "QA", fields["project"].(map[string]any)["key"])
	desc := fields["description"].(map[string]any)
	assert.Equal(t, "doc", desc["type"])
}

func TestAddLabelsBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.AddLabels(context.Background(), "QA-1", []string{"obsolete-review"}))
	update := got["update"].(map[string]any)
	labels := update["labels"].([]any)
	require.Len(t, labels, 1)
	assert.Equal(t, "obsolete-review", labels[0].(map[string]any)["add"])
}

func TestLinkIssuesDefaultsToRelates(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/issueLink", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, c.LinkIssues(context.Background(), "QA-2", "PROJ-1", ""))
	assert.Equal(t, "Relates", got["type"].(map[string]any)["name"])
	assert.Equal(t, "QA-2", got["inwardIssue"].(map[string]any)["key"])
	assert.Equal(t, "PROJ-1", got["outwardIssue"].(map[string]any)["key"])
}

func linkedTestsHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/3/issue/PROJ-1":
			assert.Equal(t, "issuelinks", r.URL.Query().Get("fields"))
			w.Write([]byte(`{"fields":{"issuelinks":[
				{"outwardIssue":{"key":"QA-10"}},
				{"inwardIssue":{"key":"QA-11"}}]}}`))
		case "/rest/api/3/search/jql":
			assert.Contains(t, r.URL.Query().Get("jql"), "key in (QA-10,QA-11)")
			w.Write([]byte(`{"issues":[
				{"key":"QA-10","fields":{"summary":"PROJ-1 | TC01 | Validate Login success","created":"2026-01-01T00:00:00.000+0000",
					"description":{"type":"doc","version":1,"content":[
						{"type":"codeBlock","attrs":{"language":"gherkin"},"content":[{"type":"text","text":"Given a\nWhen b\nThen c"}]}]}}},
				{"key":"QA-11","fields":{"summary":"PROJ-1 | TC02 | Validate Login failure","created":"2026-01-02T00:00:00.000+0000",
					"description":{"type":"doc","version":1,"content":[]}}}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestLinkedTestIssues(t *testing.T) {
	c := newTestClient(t, linkedTestsHandler(t))

	tests, err := c.LinkedTestIssues(context.Background(), "PROJ-1", "QA")
	require.NoError(t, err)
	require.Len(t, tests, 2)
	assert.Equal(t, "Validate Login success", tests[0].NormTitle)
	assert.Equal(t, "Given a\nWhen b\nThen c", tests[0].Gherkin)
	assert.NotEmpty(t, tests[0].Signature)
	assert.Equal(t, "Validate Login failure", tests[1].NormTitle)
	assert.Empty(t, tests[1].Gherkin)
}

func TestLinkedTestIssuesNoLinks(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fields":{"issuelinks":[]}}`))
	}))

	tests, err := c.LinkedTestIssues(context.Background(), "PROJ-1", "QA")
	require.NoError(t, err)
	assert.Empty(t, tests)
}
