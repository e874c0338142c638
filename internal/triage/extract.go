package triage

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// Extract pulls a JSON object out of free-form model output. The first fenced
// block tagged json wins; otherwise the whole trimmed text is parsed.
// It reports false when no JSON object can be decoded.
func Extract(text string) (map[string]any, bool) {
	candidate := strings.TrimSpace(text)
	if match := fencedJSON.FindStringSubmatch(text); match != nil {
		candidate = match[1]
	}
	if candidate == "" {
		return nil, false
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, false
	}
	if out == nil {
		return nil, false
	}
	return out, true
}
