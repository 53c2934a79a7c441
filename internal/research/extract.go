// Package research implements the AI-backed venue and offer research engine:
// prompt stages, reconciliation against the reference dataset, and the run
// orchestrator.
package research

import (
	"encoding/json"
	"strings"
)

// ExtractObject pulls the first JSON object out of free-form completion text
// and unmarshals it into v. The model is prompted to return pure JSON but will
// occasionally wrap it in code fences or commentary, so this scans from the
// first '{' to the last '}'. Returns false when no parseable object is found;
// callers treat that as zero results, never as an error.
func ExtractObject(text string, v any) bool {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return false
	}
	return json.Unmarshal([]byte(cleaned), v) == nil
}

func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
