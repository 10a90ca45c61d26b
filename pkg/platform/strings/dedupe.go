// Package strings provides list helpers for configuration values and request payloads.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty entries, trimming each element.
// Order of first occurrence is preserved. Used for id lists in bulk payloads.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// SplitList parses a comma-separated configuration value such as
// "curl,sqlmap, nikto" into a deduplicated slice. An empty input yields nil.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}
