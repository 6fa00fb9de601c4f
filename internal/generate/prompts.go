package generate

import (
	"strings"

	"casegen/internal/adf"
	"casegen/internal/config"
	"casegen/internal/tracker"
)

// System prompts. The model must answer with a single JSON object:
// {"scenarios": [{"title": ..., "steps": ...}]}.

const sysPromptScenarios = "You are a highly experienced Senior QA Analyst. Your task is to analyze the full context of a user story from the issue tracker and create a comprehensive set of test cases. You must be rigorous and cover all requirements provided.\n\n" +
	"**YOUR RULES:**\n" +
	"1.  **HOLISTIC ANALYSIS:** You will be given a context with multiple sections like 'Scenarios', 'Copys', and 'Amplitude'. You MUST treat every section as a source of requirements and create test cases for ALL of them. Do not stop after processing only the 'Scenarios' section.\n" +
	"2.  **GHERKIN (ENGLISH):** All test cases must be written in Gherkin format, in English, and from a third-person perspective.\n" +
	"3.  **REQUIREMENT-DRIVEN TESTS:**\n" +
	"    - For each 'Scenario' in the context, create a detailed Gherkin test case that validates it.\n" +
	"    - For the 'Copys' table, create **ONLY TWO** consolidated test cases: one for all Spanish texts and one for all English texts.\n" +
	"    - For each 'Amplitude' event, create a specific test case to verify the event is triggered correctly.\n" +
	"4.  **BE SPECIFIC:** Use concrete actions and verifiable outcomes. Avoid generic steps.\n" +
	"5.  **TITLES:** Every scenario title must start with 'Validate' and be descriptive. **Do not just copy the scenario title from the context.**\n" +
	"6.  **STRICT JSON OUTPUT:** Your final output must be a SINGLE, valid JSON object with one key: `scenarios`, containing a list of objects with a `title` (string) and `steps` (a single string with newlines `\\n`)."

const sysPromptAPITests = "You are a meticulous QA Engineer specializing in backend and API testing. Your task is to analyze technical requirements and create specific API test cases.\n\n" +
	"**YOUR RULES:**\n" +
	"1.  **ANALYZE TECHNICAL DETAILS:** Focus on changes to services, endpoints, request bodies, and data structures. If the user provides Gherkin scenarios, adopt them directly. Ignore UI/UX aspects.\n" +
	"2.  **API GHERKIN:** Write scenarios in Gherkin format that describe API interactions.\n" +
	"3.  **VALIDATE CONTRACTS:** Create tests for changes like adding or deprecating fields.\n" +
	"4.  **NEGATIVE PATHS:** Create tests for potential errors.\n" +
	"5.  **STRICT JSON OUTPUT:** Your final output must be a SINGLE, valid JSON object with one key: `scenarios`, containing a list of objects with `title` and `steps`."

// short acknowledgement comments carry no requirements
var noiseComments = map[string]bool{
	"listo": true, "hecho": true, "done": true, "ok": true,
	"gracias": true, "de acuerdo": true,
}

// IsBackendItem reports whether the work item is a backend task: "[be]" in
// the summary, or a backend label without a frontend one. Backend items get
// the API-test system prompt and an extra "api-test" label.
func IsBackendItem(item *tracker.WorkItem) bool {
	if strings.Contains(strings.ToLower(item.Summary), "[be]") {
		return true
	}
	backend, frontend := false, false
	for _, l := range item.Labels {
		switch strings.ToLower(l) {
		case "backend":
			backend = true
		case "frontend":
			frontend = true
		}
	}
	return backend && !frontend
}

// SystemPrompt picks the prompt for the work item.
func SystemPrompt(item *tracker.WorkItem) string {
	if IsBackendItem(item) {
		return sysPromptAPITests
	}
	return sysPromptScenarios
}

// FilterComments drops noise comments (acknowledgements, fewer than three
// words), caps the count and per-comment length, and renders the remainder
// as prompt lines.
func FilterComments(comments []tracker.Comment, limits config.PromptConfig) string {
	if len(comments) == 0 {
		return "No additional comments."
	}
	var out []string
	for i, c := range comments {
		if limits.MaxComments > 0 && i >= limits.MaxComments {
			break
		}
		body := strings.TrimSpace(c.Body)
		if body == "" || len(strings.Fields(body)) < 3 || noiseComments[strings.ToLower(body)] {
			continue
		}
		if limits.MaxCommentChars > 0 && len(body) > limits.MaxCommentChars {
			body = body[:limits.MaxCommentChars] + " [...]"
		}
		author := c.Author
		if author == "" {
			author = "User"
		}
		out = append(out, "- Comment from "+author+": "+body)
	}
	if len(out) == 0 {
		return "No relevant comments found."
	}
	return strings.Join(out, "\n")
}

// describe flattens the rich parts of the description that plain text loses:
// tables as pipe-separated rows, link targets, and a marker for embedded
// media the model cannot see.
func describe(item *tracker.WorkItem) string {
	out := item.Description
	if item.DescriptionADF == nil {
		return out
	}
	for _, table := range adf.ExtractTables(item.DescriptionADF) {
		var rows []string
		for _, row := range table {
			rows = append(rows, strings.Join(row, " | "))
		}
		out += "\n\nTABLE:\n" + strings.Join(rows, "\n")
	}
	if links := adf.CollectLinks(item.DescriptionADF); len(links) > 0 {
		out += "\n\nLINKED REFERENCES:\n- " + strings.Join(links, "\n- ")
	}
	if adf.HasMedia(item.DescriptionADF) {
		out += "\n\n[The description embeds images or attachments that are not included here.]"
	}
	return out
}

// BuildContext assembles the prompt context block: description plus filtered
// comments, truncated to the configured cap with an explicit marker.
func BuildContext(item *tracker.WorkItem, limits config.PromptConfig) string {
	full := "**USER STORY DESCRIPTION:**\n" + describe(item) +
		"\n\n**ADDITIONAL COMMENTS & CLARIFICATIONS:**\n" + FilterComments(item.Comments, limits)
	if limits.MaxContextChars > 0 && len(full) > limits.MaxContextChars {
		full = full[:limits.MaxContextChars] + "\n\n[...truncated...]"
	}
	return full
}

// UserPrompt wraps the context block with the issue framing the model sees.
func UserPrompt(item *tracker.WorkItem, context string) string {
	return "--- START OF WORK ITEM CONTEXT ---\n" +
		"**USER STORY SUMMARY:** " + item.Summary + "\n\n" +
		context + "\n--- END OF WORK ITEM CONTEXT ---"
}
