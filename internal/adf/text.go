package adf

import "strings"

// ToText flattens a document to plain text. Paragraphs and headings become
// lines, list items become "- " lines, hard breaks become newlines. Marks
// and inline formatting are dropped.
func ToText(doc Doc) string {
	var parts []string

	var walk func(n any)
	walk = func(n any) {
		switch nodeType(n) {
		case "":
			return
		case "doc", "blockquote", "panel":
			for _, c := range children(n) {
				walk(c)
			}
		case "paragraph", "heading":
			var line strings.Builder
			for _, c := range children(n) {
				switch nodeType(c) {
				case "text":
					line.WriteString(textOf(c))
				case "hardBreak":
					line.WriteString("\n")
				}
			}
			parts = append(parts, strings.TrimSpace(line.String()))
		case "bulletList", "orderedList":
			for _, li := range children(n) {
				if nodeType(li) != "listItem" {
					continue
				}
				for _, c := range children(li) {
					if nodeType(c) == "paragraph" {
						var seg strings.Builder
						for _, cc := range children(c) {
							if nodeType(cc) == "text" {
								seg.WriteString(textOf(cc))
							}
						}
						if seg.Len() > 0 {
							parts = append(parts, "- "+strings.TrimSpace(seg.String()))
						}
					} else {
						walk(c)
					}
				}
			}
		default:
			for _, c := range children(n) {
				walk(c)
			}
		}
	}
	walk(doc)

	var lines []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		for _, line := range strings.Split(p, "\n") {
			lines = append(lines, strings.TrimRight(line, " \t"))
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// collectText gathers every text node under n, depth first.
func collectText(n any) string {
	var out strings.Builder
	var walk func(n any)
	walk = func(n any) {
		if nodeType(n) == "text" {
			out.WriteString(textOf(n))
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(out.String())
}

// ExtractTables returns every table as rows of flattened cell text.
func ExtractTables(doc Doc) [][][]string {
	var tables [][][]string
	if nodeType(doc) != "doc" {
		return tables
	}
	var walk func(n any)
	walk = func(n any) {
		if nodeType(n) == "table" {
			var rows [][]string
			for _, r := range children(n) {
				if nodeType(r) != "tableRow" {
					continue
				}
				var cells []string
				for _, c := range children(r) {
					cells = append(cells, collectText(c))
				}
				rows = append(rows, cells)
			}
			if len(rows) > 0 {
				tables = append(tables, rows)
			}
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(doc)
	return tables
}

// CollectLinks returns every link href in document order, deduplicated.
func CollectLinks(doc Doc) []string {
	var links []string
	seen := map[string]bool{}

	var walk func(n any)
	walk = func(n any) {
		if m, ok := n.(map[string]any); ok {
			if marks, ok := m["marks"].([]any); ok {
				for _, mk := range marks {
					if nodeType(mk) != "link" {
						continue
					}
					if href, _ := attrsOf(mk)["href"].(string); href != "" && !seen[href] {
						seen[href] = true
						links = append(links, href)
					}
				}
			}
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(doc)
	return links
}

// HasMedia reports whether the document embeds any media node.
func HasMedia(doc Doc) bool {
	var hit bool
	var walk func(n any)
	walk = func(n any) {
		if hit {
			return
		}
		switch nodeType(n) {
		case "media", "mediaSingle":
			hit = true
			return
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(doc)
	return hit
}
