package locate

// Flags selects candidate pools, type preferences and tie-break policy for
// a resolution call. The bit layout is a stable contract consumed verbatim
// by scripting built-ins; never reorder.
type Flags uint32

const (
	NoTypePreference Flags = 1 << iota
	OnlyMatchTypePreference
	ExitsPreference
	PreferLockPass
	PlayersPreference
	RoomsPreference
	ThingsPreference
	FailIfNotPreferred
	UseLastIfAmbiguous
	AbsoluteMatch
	ExitsInTheRoomOfLooker
	ExitsInsideOfLooker
	MatchHereForLookerLocation
	MatchObjectsInLookerInventory
	MatchAgainstLookerLocationName
	OnlyMatchObjectsInLookerInventory
	MatchRemoteContents
	MatchMeForLooker
	OnlyMatchObjectsInLookerLocation
	MatchObjectsInLookerLocation
	MatchWildCardForPlayerName
	MatchOptionalWildCardForPlayerName
	EnglishStyleMatching
	NoPartialMatches
	OnlyMatchLookerControlledObjects

	None Flags = 0

	// All is the broad default pool set merged in by flag normalization.
	All = MatchMeForLooker | MatchHereForLookerLocation | AbsoluteMatch |
		MatchOptionalWildCardForPlayerName | MatchObjectsInLookerLocation |
		MatchObjectsInLookerInventory | ExitsInTheRoomOfLooker |
		EnglishStyleMatching
)

// typePrefs are the bits that restrict candidates by object type.
const typePrefs = ExitsPreference | PlayersPreference | RoomsPreference | ThingsPreference

// safeSubset are the bits that suppress normalization when present: a caller
// setting any of these is assumed to have chosen its pools deliberately.
const safeSubset = PreferLockPass | FailIfNotPreferred | NoPartialMatches |
	OnlyMatchLookerControlledObjects

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// HasAny reports whether any bit of mask is set.
func (f Flags) HasAny(mask Flags) bool { return f&mask != 0 }

// normalize applies the historical broad-default coercion. Callers whose
// flags carry none of the safe subset get the full default pool set merged
// in, and a query with no type preference at all is coerced to
// NoTypePreference rather than rejected.
func normalize(f Flags) Flags {
	if !f.HasAny(safeSubset) {
		f |= All | MatchAgainstLookerLocationName | ExitsInsideOfLooker
	}
	if !f.HasAny(typePrefs | NoTypePreference) {
		f |= NoTypePreference
	}
	return f
}
