package curator

import (
	"encoding/json"
	"strings"
)

// StripFences removes a single pair of markdown code fences around text,
// including an optional language tag on the opening fence. Text without
// fences is returned trimmed but otherwise unchanged.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = text[3:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ParseSelection parses an LLM response expected to be a JSON array of
// identifier strings. Markdown fences are tolerated. Any parse failure or
// a non-array top-level value yields an empty selection; non-string
// elements are silently dropped.
func ParseSelection(text string) []string {
	text = StripFences(text)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return []string{}
	}

	selected := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		selected = append(selected, s)
	}
	return selected
}
