// Package generate asks Gemini for test scenarios and parses the structured
// response. A model failure or malformed response is fatal for the run; this
// package performs no tracker writes.
package generate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"casegen/internal/config"
	"casegen/internal/tracker"
)

// Generator produces test scenarios for a work item.
type Generator struct {
	client          *genai.Client
	model           string
	temperature     float64
	maxOutputTokens int
	timeout         time.Duration
	limits          config.PromptConfig
	logger          *zap.Logger
}

// NewGenerator creates a Gemini-backed generator. An API key selects the
// Gemini API backend; otherwise the Vertex project/location pair is used
// (credentials come from the standard GOOGLE_APPLICATION_CREDENTIALS
// mechanism).
func NewGenerator(ctx context.Context, cfg config.GeminiConfig, limits config.PromptConfig, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{}
	switch {
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.ProjectID != "":
		cc.Project = cfg.ProjectID
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("generation credentials are required")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	return &Generator{
		client:          client,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		timeout:         cfg.TimeoutDuration(),
		limits:          limits,
		logger:          logger,
	}, nil
}

func blockNoneSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryHarassment,
		genai.HarmCategorySexuallyExplicit,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, cat := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  cat,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// Scenarios generates test scenarios for the work item, capped at maxTests.
func (g *Generator) Scenarios(ctx context.Context, item *tracker.WorkItem, maxTests int) ([]Scenario, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	systemPrompt := SystemPrompt(item)
	promptContext := BuildContext(item, g.limits)
	userPrompt := UserPrompt(item, promptContext)

	g.logger.Info("calling generation model",
		zap.String("model", g.model),
		zap.String("work_item", item.Key),
		zap.Bool("backend_item", IsBackendItem(item)),
		zap.Int("context_chars", len(promptContext)))

	started := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(g.temperature)),
			MaxOutputTokens:   int32(g.maxOutputTokens),
			ResponseMIMEType:  "application/json",
			SafetySettings:    blockNoneSafety(),
		})
	if err != nil {
		return nil, fmt.Errorf("generation call failed for %s: %w", item.Key, err)
	}

	raw := resp.Text()
	g.logger.Info("generation response received",
		zap.String("work_item", item.Key),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("response_len", len(raw)))

	scenarios, err := ParseScenarios(raw, maxTests)
	if err != nil {
		return nil, err
	}
	g.logger.Info("scenarios generated",
		zap.String("work_item", item.Key),
		zap.Int("count", len(scenarios)))
	return scenarios, nil
}
