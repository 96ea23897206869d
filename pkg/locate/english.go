package locate

import (
	"regexp"
	"strconv"
	"strings"
)

var ordinalRE = regexp.MustCompile(`^(\d+)(st|nd|rd|th)$`)

// parseEnglish strips natural-language qualifiers from a match string.
// Leading "this here", "here", "this", "my", "me" and "toward" narrow the
// candidate pools by clearing flag bits; a leading valid ordinal ("2nd
// sword") is extracted as a count. If stripping would leave an empty name,
// the original name and flags are restored unchanged.
func parseEnglish(name string, flags Flags) (string, Flags, int) {
	saveName, saveFlags := name, flags

	if flags.HasAny(MatchObjectsInLookerLocation) {
		switch {
		case foldHasPrefix(name, "this here "):
			name = name[10:]
			flags &^= MatchObjectsInLookerInventory | ExitsInTheRoomOfLooker
		case foldHasPrefix(name, "here "), foldHasPrefix(name, "this "):
			name = name[5:]
			flags &^= MatchObjectsInLookerInventory | ExitsInTheRoomOfLooker |
				MatchAgainstLookerLocationName
		}
	}

	if flags.HasAny(MatchObjectsInLookerInventory) &&
		(foldHasPrefix(name, "my ") || foldHasPrefix(name, "me ")) {
		name = name[3:]
		flags &^= ExitsInTheRoomOfLooker | MatchAgainstLookerLocationName
	}

	if flags.HasAny(ExitsInTheRoomOfLooker|ExitsInsideOfLooker) &&
		foldHasPrefix(name, "toward ") {
		name = name[7:]
		flags &^= ExitsInTheRoomOfLooker | MatchObjectsInLookerInventory |
			MatchAgainstLookerLocationName
	}

	name = strings.TrimLeft(name, " ")
	if name == "" {
		return saveName, saveFlags, 0
	}
	if name[0] < '0' || name[0] > '9' {
		return name, flags, 0
	}

	word, rest, _ := strings.Cut(name, " ")
	m := ordinalRE.FindStringSubmatch(strings.ToLower(word))
	if m == nil {
		return name, flags, 0
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count < 1 || m[2] != ordinalSuffix(count) {
		return name, flags, 0
	}
	rest = strings.TrimLeft(rest, " ")
	if rest == "" {
		return saveName, saveFlags, 0
	}
	return rest, flags, count
}

// ordinalSuffix returns the English suffix for n: 1st, 2nd, 3rd, 4th,
// 11th through 13th, 21st and so on.
func ordinalSuffix(n int) string {
	if r := n % 100; r >= 11 && r <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func foldHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
