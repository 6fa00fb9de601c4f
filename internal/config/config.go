// Package config holds all casegen configuration. Defaults are overlaid by
// an optional YAML file and then by environment variables, which are the
// primary channel: the tool is meant to run from CI with everything supplied
// via the environment. Validation happens once at startup, before any
// network call.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all casegen configuration.
type Config struct {
	// Issue tracker (Jira Cloud REST v3)
	Tracker TrackerConfig `yaml:"tracker"`

	// Gemini generation
	Gemini GeminiConfig `yaml:"gemini"`

	// Prompt assembly limits
	Prompt PromptConfig `yaml:"prompt"`
}

// TrackerConfig configures the issue-tracker client.
type TrackerConfig struct {
	BaseURL    string `yaml:"base_url"`
	Email      string `yaml:"email"`
	Token      string `yaml:"token"`
	ProjectKey string `yaml:"project_key"`
	LinkType   string `yaml:"link_type"`
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"`
	Timeout    string `yaml:"timeout"`
}

// GeminiConfig configures the generation client.
type GeminiConfig struct {
	APIKey          string  `yaml:"api_key"`
	ProjectID       string  `yaml:"project_id"`
	Location        string  `yaml:"location"`
	CredentialsFile string  `yaml:"credentials_file"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Timeout         string  `yaml:"timeout"`
}

// PromptConfig bounds the context sent to the model.
type PromptConfig struct {
	MaxTests        int `yaml:"max_tests"`
	MaxContextChars int `yaml:"max_context_chars"`
	MaxComments     int `yaml:"max_comments"`
	MaxCommentChars int `yaml:"max_comment_chars"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			LinkType:   "Tests",
			MaxRetries: 3,
			Backoff:    "600ms",
			Timeout:    "30s",
		},
		Gemini: GeminiConfig{
			Location:        "us-central1",
			Model:           "gemini-1.5-flash-001",
			Temperature:     0.2,
			MaxOutputTokens: 2048,
			Timeout:         "120s",
		},
		Prompt: PromptConfig{
			MaxTests:        20,
			MaxContextChars: 16000,
			MaxComments:     10,
			MaxCommentChars: 600,
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (if any),
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&c.Tracker.BaseURL, "JIRA_BASE_URL")
	setString(&c.Tracker.Email, "JIRA_EMAIL")
	setString(&c.Tracker.Token, "JIRA_TOKEN")
	setString(&c.Tracker.ProjectKey, "JIRA_PROJECT_KEY")
	setString(&c.Tracker.LinkType, "JIRA_LINK_TYPE")
	setInt(&c.Tracker.MaxRetries, "JIRA_MAX_RETRIES")
	setString(&c.Tracker.Backoff, "JIRA_BACKOFF")

	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.ProjectID, "GOOGLE_CLOUD_PROJECT_ID")
	setString(&c.Gemini.Location, "GOOGLE_CLOUD_REGION")
	setString(&c.Gemini.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.Timeout, "LLM_TIMEOUT")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Gemini.Temperature = f
		}
	}
	setInt(&c.Gemini.MaxOutputTokens, "LLM_MAX_OUTPUT_TOKENS")

	setInt(&c.Prompt.MaxContextChars, "LLM_MAX_CONTEXT_CHARS")
	setInt(&c.Prompt.MaxComments, "LLM_MAX_COMMENTS")
	setInt(&c.Prompt.MaxCommentChars, "LLM_MAX_COMMENT_CHARS")
}

// ValidateTracker checks the tracker half of the configuration. Enough for
// commands that never call the model.
func (c *Config) ValidateTracker() error {
	if c.Tracker.BaseURL == "" {
		return fmt.Errorf("tracker base URL is required (JIRA_BASE_URL)")
	}
	if c.Tracker.Email == "" || c.Tracker.Token == "" {
		return fmt.Errorf("tracker credentials are required (JIRA_EMAIL, JIRA_TOKEN)")
	}
	if c.Tracker.ProjectKey == "" {
		return fmt.Errorf("tracker project key is required (JIRA_PROJECT_KEY)")
	}
	if _, err := time.ParseDuration(c.Tracker.Backoff); err != nil {
		return fmt.Errorf("invalid tracker backoff %q: %w", c.Tracker.Backoff, err)
	}
	if _, err := time.ParseDuration(c.Tracker.Timeout); err != nil {
		return fmt.Errorf("invalid tracker timeout %q: %w", c.Tracker.Timeout, err)
	}
	return nil
}

// Validate checks that everything needed before the first network call is
// present. Failures here abort the run.
func (c *Config) Validate() error {
	if err := c.ValidateTracker(); err != nil {
		return err
	}
	if c.Gemini.APIKey == "" && c.Gemini.ProjectID == "" {
		return fmt.Errorf("generation credentials are required (GEMINI_API_KEY or GOOGLE_CLOUD_PROJECT_ID)")
	}
	if _, err := time.ParseDuration(c.Gemini.Timeout); err != nil {
		return fmt.Errorf("invalid generation timeout %q: %w", c.Gemini.Timeout, err)
	}
	return nil
}

// BackoffDuration returns the parsed tracker retry backoff.
func (c *TrackerConfig) BackoffDuration() time.Duration {
	d, err := time.ParseDuration(c.Backoff)
	if err != nil {
		return 600 * time.Millisecond
	}
	return d
}

// TimeoutDuration returns the parsed per-request tracker timeout.
func (c *TrackerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// TimeoutDuration returns the parsed generation call timeout.
func (c *GeminiConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Redacted returns a copy safe for printing: secrets are masked, presence
// is still visible.
func (c *Config) Redacted() *Config {
	out := *c
	out.Tracker.Token = redact(c.Tracker.Token)
	out.Gemini.APIKey = redact(c.Gemini.APIKey)
	return &out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
