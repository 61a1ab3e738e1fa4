// Package normalize provides text normalization shared by sorting, matching, and statistics.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var firstInteger = regexp.MustCompile(`\d+`)

// Fold returns s in a form suitable for case-insensitive comparison.
// Compatibility forms are composed first so "ﬁ" and "fi" fold alike.
func Fold(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	// cases.Caser is stateful; one per call.
	return cases.Fold().String(s)
}

// EqualFold reports whether a and b are equal under Fold.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Compare orders a and b case-insensitively.
func Compare(a, b string) int {
	return strings.Compare(Fold(a), Fold(b))
}

// RuntimeMinutes extracts the first integer from a runtime string such as "137 min".
// Returns 0 when none is present.
func RuntimeMinutes(runtime string) int {
	match := firstInteger.FindString(runtime)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// OrDefault returns s trimmed, or def when s is blank.
func OrDefault(s, def string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return def
}

// StripNull removes null bytes, which break JSON and SQLite text columns.
func StripNull(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
