package locate

import "testing"

func TestParseEnglish(t *testing.T) {
	base := All | MatchAgainstLookerLocationName | ExitsInsideOfLooker

	tests := []struct {
		in        string
		flags     Flags
		wantName  string
		wantFlags Flags
		wantCount int
	}{
		{"sword", base, "sword", base, 0},
		{"2nd sword", base, "sword", base, 2},
		{"21st cloak", base, "cloak", base, 21},
		{"11th bell", base, "bell", base, 11},
		{"12th bell", base, "bell", base, 12},
		{"13th bell", base, "bell", base, 13},

		// A mismatched suffix is an ordinary name, not a count.
		{"2st sword", base, "2st sword", base, 0},
		{"0th sword", base, "0th sword", base, 0},

		// A bare ordinal with nothing after it restores the input.
		{"2nd", base, "2nd", base, 0},
		{"2nd   ", base, "2nd   ", base, 0},

		// Possessives narrow to the looker's inventory.
		{"my box", base, "box",
			base &^ (ExitsInTheRoomOfLooker | MatchAgainstLookerLocationName), 0},
		{"me box", base, "box",
			base &^ (ExitsInTheRoomOfLooker | MatchAgainstLookerLocationName), 0},

		// Deictics narrow to the looker's location.
		{"here sword", base, "sword",
			base &^ (MatchObjectsInLookerInventory | ExitsInTheRoomOfLooker | MatchAgainstLookerLocationName), 0},
		{"this sword", base, "sword",
			base &^ (MatchObjectsInLookerInventory | ExitsInTheRoomOfLooker | MatchAgainstLookerLocationName), 0},
		{"this here sword", base, "sword",
			base &^ (MatchObjectsInLookerInventory | ExitsInTheRoomOfLooker), 0},

		// "toward" narrows to exits.
		{"toward north", base, "north",
			base &^ (ExitsInTheRoomOfLooker | MatchObjectsInLookerInventory | MatchAgainstLookerLocationName), 0},

		// Qualifier plus ordinal stacks.
		{"my 2nd box", base, "box",
			base &^ (ExitsInTheRoomOfLooker | MatchAgainstLookerLocationName), 2},

		// A qualifier with nothing after it restores the input.
		{"my ", base, "my ", base, 0},

		// Qualifiers are inert when the corresponding pool bit is absent.
		{"my box", base &^ MatchObjectsInLookerInventory, "my box",
			base &^ MatchObjectsInLookerInventory, 0},
		{"here sword", base &^ MatchObjectsInLookerLocation, "here sword",
			base &^ MatchObjectsInLookerLocation, 0},
	}

	for _, tt := range tests {
		name, flags, count := parseEnglish(tt.in, tt.flags)
		if name != tt.wantName || flags != tt.wantFlags || count != tt.wantCount {
			t.Errorf("parseEnglish(%q, %v) = (%q, %v, %d), want (%q, %v, %d)",
				tt.in, tt.flags, name, flags, count, tt.wantName, tt.wantFlags, tt.wantCount)
		}
	}
}

func TestOrdinalSuffix(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "st"}, {2, "nd"}, {3, "rd"}, {4, "th"}, {10, "th"},
		{11, "th"}, {12, "th"}, {13, "th"}, {14, "th"},
		{21, "st"}, {22, "nd"}, {23, "rd"},
		{111, "th"}, {112, "th"}, {113, "th"}, {121, "st"},
	}
	for _, tt := range tests {
		if got := ordinalSuffix(tt.n); got != tt.want {
			t.Errorf("ordinalSuffix(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
