package adf

import "strings"

// FromText builds a document with one paragraph per input line. Blank lines
// become empty paragraphs so vertical spacing survives the round trip.
func FromText(text string) Doc {
	var content []any
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			content = append(content, map[string]any{
				"type":    "paragraph",
				"content": []any{map[string]any{"type": "text", "text": line}},
			})
		} else {
			content = append(content, map[string]any{"type": "paragraph"})
		}
	}
	if len(content) == 0 {
		content = []any{map[string]any{"type": "paragraph"}}
	}
	return Doc{"type": "doc", "version": 1, "content": content}
}

// WithCodeBlock builds a document holding a level-3 heading (when title is
// non-empty) followed by a gherkin code block.
func WithCodeBlock(title, code string) Doc {
	var blocks []any
	if title != "" {
		blocks = append(blocks, map[string]any{
			"type":    "heading",
			"attrs":   map[string]any{"level": 3},
			"content": []any{map[string]any{"type": "text", "text": title}},
		})
	}
	blocks = append(blocks, map[string]any{
		"type":    "codeBlock",
		"attrs":   map[string]any{"language": "gherkin"},
		"content": []any{map[string]any{"type": "text", "text": code}},
	})
	return Doc{"type": "doc", "version": 1, "content": blocks}
}

// ExtractCodeBlocks returns the text of every code block whose language
// matches lang. An empty lang matches every code block.
func ExtractCodeBlocks(doc Doc, lang string) []string {
	var blocks []string
	var walk func(n any)
	walk = func(n any) {
		if nodeType(n) == "codeBlock" {
			language, _ := attrsOf(n)["language"].(string)
			if lang == "" || language == lang {
				var text strings.Builder
				for _, c := range children(n) {
					if nodeType(c) == "text" {
						text.WriteString(textOf(c))
					}
				}
				blocks = append(blocks, text.String())
			}
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(doc)
	return blocks
}
