package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("llm: no JSON object in response")

// StripCodeFences removes a surrounding ``` or ```json fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

// ExtractJSON decodes the first JSON object found in s into out. Models
// sometimes wrap the object in prose or code fences.
func ExtractJSON(s string, out any) error {
	s = StripCodeFences(s)
	if err := json.Unmarshal([]byte(s), out); err == nil {
		return nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}
