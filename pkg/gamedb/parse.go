package gamedb

import (
	"strconv"
	"strings"
)

// ParseObjRef parses "#123" or the objid form "#123:1690000000". The short
// form yields Created == 0, which Matches treats as a wildcard against the
// current holder of the number.
func ParseObjRef(s string) (DBRef, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '#' {
		return Nothing, false
	}
	numPart, tsPart, hasTS := strings.Cut(s[1:], ":")
	num, err := strconv.Atoi(numPart)
	if err != nil || num < 0 {
		return Nothing, false
	}
	ref := DBRef{Num: num}
	if hasTS {
		ts, err := strconv.ParseInt(tsPart, 10, 64)
		if err != nil || ts < 0 {
			return Nothing, false
		}
		ref.Created = ts
	}
	return ref, true
}
