package boolexp

import "strings"

// wildMatch performs case-insensitive wildcard matching with '*' (any run)
// and '?' (any single character).
func wildMatch(pattern, s string) bool {
	return wildMatchFold(strings.ToLower(pattern), strings.ToLower(s))
}

func wildMatchFold(pattern, s string) bool {
	// Iterative matcher with single-star backtracking.
	var starPat, starStr = -1, 0
	p, i := 0, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			starPat = p
			starStr = i
			p++
		case starPat >= 0:
			p = starPat + 1
			starStr++
			i = starStr
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
