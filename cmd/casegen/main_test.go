package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"JIRA_BASE_URL", "JIRA_EMAIL", "JIRA_TOKEN", "JIRA_PROJECT_KEY",
		"GEMINI_API_KEY", "GOOGLE_CLOUD_PROJECT_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestEnvCommandRedactsSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_BASE_URL", "https://example.atlassian.net")
	t.Setenv("JIRA_TOKEN", "super-secret-token")
	t.Setenv("GEMINI_API_KEY", "another-secret")

	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.atlassian.net")
	assert.Contains(t, out, "****")
	assert.NotContains(t, out, "super-secret-token")
	assert.NotContains(t, out, "another-secret")
}

func TestGenerateRequiresWorkItemKey(t *testing.T) {
	_, err := execute(t, "generate")
	assert.Error(t, err)
}

func TestGenerateFailsFastWithoutConfiguration(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "generate", "PROJ-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration")
}

func TestDedupeRejectsBadPreference(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_BASE_URL", "https://example.atlassian.net")
	t.Setenv("JIRA_EMAIL", "qa@example.com")
	t.Setenv("JIRA_TOKEN", "tok")
	t.Setenv("JIRA_PROJECT_KEY", "QA")

	_, err := execute(t, "dedupe", "PROJ-1", "--prefer", "middle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--prefer")
}
