package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes reasoning-model think tags from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

// ParseResult parses a model response into a Result.
// Handles markdown code fences and surrounding prose.
func ParseResult(text string) (*Result, error) {
	cleaned := StripThinkTags(text)

	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, fmt.Errorf("empty analysis response")
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return &result, nil
	}

	// Try to extract a JSON object from surrounding text
	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart >= 0 && jsonEnd > jsonStart {
		substr := cleaned[jsonStart : jsonEnd+1]
		if err := json.Unmarshal([]byte(substr), &result); err == nil {
			return &result, nil
		}
	}

	return nil, fmt.Errorf("failed to parse analysis response as JSON: %.200s", cleaned)
}
