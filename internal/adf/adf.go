// Package adf reads and builds Atlassian Document Format trees. Documents
// travel as untyped JSON, so the package works directly on map/slice values
// rather than a typed node hierarchy.
package adf

// Doc is an ADF node. It is an alias, not a named type, so decoded
// documents and hand-built ones interchange freely with map[string]any.
type Doc = map[string]any

func nodeType(n any) string {
	m, ok := n.(map[string]any)
	if !ok {
		return ""
	}
	t, _ := m["type"].(string)
	return t
}

func children(n any) []any {
	m, ok := n.(map[string]any)
	if !ok {
		return nil
	}
	c, _ := m["content"].([]any)
	return c
}

func textOf(n any) string {
	m, ok := n.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m["text"].(string)
	return s
}

func attrsOf(n any) map[string]any {
	m, ok := n.(map[string]any)
	if !ok {
		return nil
	}
	a, _ := m["attrs"].(map[string]any)
	return a
}
