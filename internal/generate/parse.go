package generate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scenario is one generated test case: a canonical title and a newline-joined
// block of Given/When/Then steps. Scenarios are ephemeral; once filed they
// live only in the tracker.
type Scenario struct {
	Title string `json:"title"`
	Steps string `json:"steps"`
}

// ParseError means the model response was not the expected structure. It is
// fatal for the run: with no scenarios there is nothing to reconcile, so no
// tracker write may happen.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("malformed generation response: %s (content: %q)", e.Reason, raw)
}

// steps may arrive as a single string or as a list of step strings.
type rawScenario struct {
	Title string          `json:"title"`
	Steps json.RawMessage `json:"steps"`
}

type rawResponse struct {
	Scenarios []rawScenario `json:"scenarios"`
}

func stepsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "\n")
	}
	return ""
}

// firstJSONObject returns the first balanced {...} block in s, or "" when
// none closes. Models occasionally wrap the object in prose or markdown
// fences even when asked for raw JSON.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// ParseScenarios decodes the model output into an ordered scenario list,
// capped at maxTests. Responses that are not valid JSON objects with a
// non-empty "scenarios" list fail with *ParseError.
func ParseScenarios(raw string, maxTests int) ([]Scenario, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &ParseError{Reason: "response contained no text"}
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		candidate := firstJSONObject(text)
		if candidate == "" {
			return nil, &ParseError{Reason: "response was not a JSON object", Raw: text}
		}
		if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
			return nil, &ParseError{Reason: "embedded JSON object did not decode", Raw: text}
		}
	}
	if len(resp.Scenarios) == 0 {
		return nil, &ParseError{Reason: `response had no "scenarios" key`, Raw: text}
	}

	var scenarios []Scenario
	for _, sc := range resp.Scenarios {
		if maxTests > 0 && len(scenarios) >= maxTests {
			break
		}
		title := strings.TrimSpace(sc.Title)
		steps := stepsText(sc.Steps)
		if title == "" || steps == "" {
			continue
		}
		scenarios = append(scenarios, Scenario{Title: title, Steps: steps})
	}
	if len(scenarios) == 0 {
		return nil, &ParseError{Reason: "no valid scenarios in response", Raw: text}
	}
	return scenarios, nil
}
