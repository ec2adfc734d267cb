// Package strings cleans string lists read from configuration.
package strings

import "strings"

// Normalize trims every value, applies fold when it is non-nil, and drops
// blanks and repeats. The first occurrence of each value keeps its place.
func Normalize(values []string, fold func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold != nil {
			v = fold(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeAndTrim is Normalize without case folding.
func DedupeAndTrim(values []string) []string {
	return Normalize(values, nil)
}
