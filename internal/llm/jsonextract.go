package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject pulls the JSON object out of a model reply that may be
// wrapped in code fences or surrounded by prose. It returns the substring
// from the first '{' to the last '}' after fence stripping, or the stripped
// input when no such pair exists.
func ExtractJSONObject(s string) string {
	s = stripCodeFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && start < end {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	}
	if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// AccumulateBalanced is the second-chance extractor for replies where the
// object is interleaved with junk lines. It scans line by line from the
// first line opening a brace and stops once the braces balance.
func AccumulateBalanced(s string) string {
	var kept []string
	inObject := false
	depth := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inObject {
			if !strings.HasPrefix(trimmed, "{") {
				continue
			}
			inObject = true
		}
		depth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
		kept = append(kept, trimmed)
		if depth <= 0 {
			break
		}
	}
	return strings.Join(kept, "\n")
}

// DecodeObject parses a model reply into a generic map, trying the direct
// extraction first and the balanced-brace accumulation second.
func DecodeObject(reply string) (map[string]any, error) {
	candidate := ExtractJSONObject(reply)
	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return out, nil
	}
	candidate = AccumulateBalanced(stripCodeFences(reply))
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object found in reply")
	}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("decode reply object: %w", err)
	}
	return out, nil
}

// CoerceAnswer renders whatever ended up in an answer field as a single
// string. Models sometimes return an object or a list despite instructions.
func CoerceAnswer(v any) string {
	switch answer := v.(type) {
	case nil:
		return ""
	case string:
		return answer
	case []any:
		parts := make([]string, 0, len(answer))
		for _, item := range answer {
			parts = append(parts, CoerceAnswer(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if text, ok := answer["text"].(string); ok {
			return text
		}
		if inner, ok := answer["answer"]; ok {
			return CoerceAnswer(inner)
		}
		raw, err := json.Marshal(answer)
		if err != nil {
			return fmt.Sprintf("%v", answer)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", answer)
	}
}
