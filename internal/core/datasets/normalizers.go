package datasets

import (
	"strings"
	"unicode"
)

// CollapseSpace replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTaskID upper-cases ids such as "t0001" and drops inner spaces
// left by hand-edited sheets ("T 0001").
func NormalizeTaskID(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// hasKSAPrefix reports whether id looks like a knowledge, skill or ability
// entry (K0.., S0.., A0..) rather than a task.
func hasKSAPrefix(id string) bool {
	if len(id) < 2 || id[1] != '0' {
		return false
	}
	switch id[0] {
	case 'K', 'S', 'A':
		return true
	}
	return false
}

var ksaPhrases = []string{"knowledge of", "skill in", "ability to"}

func isKSADescription(desc string) bool {
	lower := strings.ToLower(desc)
	for _, p := range ksaPhrases {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
