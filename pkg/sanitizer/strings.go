// Package sanitizer provides input normalization for user-supplied text.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Invalid input degrades to the empty string
// rather than an error.
package sanitizer

import "strings"

// CollapseWhitespace trims the string and folds any run of whitespace
// (including newlines and tabs) into a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeFreeText prepares a free-text field (booking notes) for storage:
// whitespace is collapsed and control characters are stripped.
func NormalizeFreeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return CollapseWhitespace(b.String())
}
