package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject recovers a single well-formed JSON object from a model's
// free-form reply. Models routinely wrap their answer in code fences or
// chatter ("Sure! Here is the data: ..."), so we strip fences, and when the
// remainder is not already valid JSON we locate the first '{' and scan brace
// depth to the matching top-level '}', ignoring anything before or after.
func ExtractJSONObject(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	s = stripCodeFences(s)

	// Fast path: the whole reply is valid JSON. Arrays, nulls and scalars
	// are rejected outright rather than searched for an embedded object.
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
		return nil, ErrNotPlainObject
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, ErrNoJSONFound
	}

	depth := 0
	end := -1
scan:
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
				break scan
			}
		}
	}
	if end < 0 {
		return nil, ErrUnclosedJSON
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotPlainObject
	}
	return m, nil
}

func stripCodeFences(s string) string {
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// Truncate bounds s to at most n bytes. Stored raw responses go through this
// so a verbose or malformed model reply cannot blow up row storage.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
