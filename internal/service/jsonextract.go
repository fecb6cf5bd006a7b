package service

import "fmt"

// extractJSONObject returns the first balanced JSON object embedded in text.
// The completion gateway is not guaranteed to return only JSON; graders often
// wrap the object in prose or markdown fences. Brace counting is string-aware
// so braces inside quoted values do not unbalance the scan.
func extractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}
