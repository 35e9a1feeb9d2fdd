package ui

import (
	"regexp"
	"strings"
)

// filterPattern builds the greedy interleaved-wildcard pattern for a
// conversation list filter string: ".*" plus each filter character plus
// ".*", case-insensitive.
func filterPattern(filter string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	for _, ch := range filter {
		b.WriteString(`.*`)
		b.WriteString(regexp.QuoteMeta(string(ch)))
	}
	b.WriteString(`.*$`)
	return regexp.MustCompile(b.String())
}

// MatchesFilter reports whether any whitespace-delimited token of a
// display name matches the filter pattern. An empty filter matches
// everything.
func MatchesFilter(displayName, filter string) bool {
	if filter == "" {
		return true
	}
	re := filterPattern(filter)
	for _, tok := range strings.Fields(displayName) {
		if re.MatchString(tok) {
			return true
		}
	}
	return false
}

// NearestMatch picks the match index closest to the cursor row: smaller
// index distance wins, and on equal distances the match above the cursor
// is preferred. Returns -1 for no matches.
func NearestMatch(matches []int, cursor int) int {
	best := -1
	bestDist := -1
	for _, m := range matches {
		dist := m - cursor
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist || (dist == bestDist && m < cursor) {
			best = m
			bestDist = dist
		}
	}
	return best
}
