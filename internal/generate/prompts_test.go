package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"casegen/internal/adf"
	"casegen/internal/config"
	"casegen/internal/tracker"
)

func TestIsBackendItem(t *testing.T) {
	tests := []struct {
		name string
		item tracker.WorkItem
		want bool
	}{
		{"be tag in summary", tracker.WorkItem{Summary: "[BE] Charge endpoint"}, true},
		{"backend label only", tracker.WorkItem{Summary: "Charge", Labels: []string{"Backend"}}, true},
		{"backend and frontend labels", tracker.WorkItem{Summary: "Charge", Labels: []string{"backend", "frontend"}}, false},
		{"plain ui story", tracker.WorkItem{Summary: "Charge modal", Labels: []string{"frontend"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBackendItem(&tt.item))
			wantPrompt := sysPromptScenarios
			if tt.want {
				wantPrompt = sysPromptAPITests
			}
			assert.Equal(t, wantPrompt, SystemPrompt(&tt.item))
		})
	}
}

func TestFilterComments(t *testing.T) {
	limits := config.PromptConfig{MaxComments: 2, MaxCommentChars: 30}
	comments := []tracker.Comment{
		{Author: "A", Body: "ok"},           // noise word
		{Author: "B", Body: "two words"},    // too short
		{Author: "C", Body: "please also cover the negative path when the token expires"},
		{Author: "D", Body: "never reached because MaxComments caps at two"},
	}

	got := FilterComments(comments, limits)
	assert.Contains(t, got, "Comment from C:")
	assert.Contains(t, got, "[...]", "long comment is truncated")
	assert.NotContains(t, got, "Comment from D:")

	assert.Equal(t, "No additional comments.", FilterComments(nil, limits))
	assert.Equal(t, "No relevant comments found.",
		FilterComments([]tracker.Comment{{Author: "A", Body: "done"}}, limits))
}

func TestDescribeFlattensRichContent(t *testing.T) {
	item := &tracker.WorkItem{
		Summary:     "Charge modal",
		Description: "Copys below.",
		DescriptionADF: adf.Doc{
			"type": "doc", "version": 1,
			"content": []any{
				map[string]any{"type": "table", "content": []any{
					map[string]any{"type": "tableRow", "content": []any{
						map[string]any{"type": "tableCell", "content": []any{
							map[string]any{"type": "paragraph", "content": []any{
								map[string]any{"type": "text", "text": "Title (ES)"},
							}},
						}},
						map[string]any{"type": "tableCell", "content": []any{
							map[string]any{"type": "paragraph", "content": []any{
								map[string]any{"type": "text", "text": "Cobrar"},
							}},
						}},
					}},
				}},
				map[string]any{"type": "paragraph", "content": []any{
					map[string]any{"type": "text", "text": "design",
						"marks": []any{map[string]any{"type": "link",
							"attrs": map[string]any{"href": "https://figma.example/f/1"}}}},
				}},
				map[string]any{"type": "mediaSingle", "content": []any{
					map[string]any{"type": "media", "attrs": map[string]any{"id": "img"}},
				}},
			},
		},
	}

	got := describe(item)
	assert.Contains(t, got, "Title (ES) | Cobrar")
	assert.Contains(t, got, "https://figma.example/f/1")
	assert.Contains(t, got, "images or attachments")

	plain := &tracker.WorkItem{Description: "just text"}
	assert.Equal(t, "just text", describe(plain))
}

func TestBuildContextTruncates(t *testing.T) {
	item := &tracker.WorkItem{
		Summary:     "Story",
		Description: strings.Repeat("requirement text ", 100),
	}
	got := BuildContext(item, config.PromptConfig{MaxContextChars: 200})
	assert.True(t, strings.HasSuffix(got, "[...truncated...]"), "got: %q", got[len(got)-40:])
	assert.LessOrEqual(t, len(got), 200+len("\n\n[...truncated...]"))
}

func TestUserPromptFraming(t *testing.T) {
	item := &tracker.WorkItem{Key: "PROJ-1", Summary: "Charge modal"}
	got := UserPrompt(item, "CTX")
	assert.True(t, strings.HasPrefix(got, "--- START OF WORK ITEM CONTEXT ---"))
	assert.Contains(t, got, "**USER STORY SUMMARY:** Charge modal")
	assert.Contains(t, got, "CTX")
	assert.True(t, strings.HasSuffix(got, "--- END OF WORK ITEM CONTEXT ---"))
}
