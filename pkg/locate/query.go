package locate

// Query is the named-field form of Flags. Scripting built-ins keep the raw
// bitmask; command code should build a Query and convert. The two forms are
// loss-free in both directions.
type Query struct {
	// Candidate pools.
	MatchMe          bool // "me" keyword resolves to the looker
	MatchHere        bool // "here" keyword resolves to the looker's container
	Absolute         bool // "#dbref" resolves directly
	PlayerWildcard   bool // "*name" forces player lookup
	OptionalWildcard bool // "*name" allows player lookup
	Inventory        bool // looker's contents
	Neighbors        bool // contents of the looker's location
	LocationName     bool // the location's own name
	RemoteContents   bool // contents reachable remotely
	RoomExits        bool // exits in the looker's room
	InnerExits       bool // exits inside the looker itself

	// Type preference.
	NoPreference bool
	Players      bool
	Rooms        bool
	Things       bool
	Exits        bool
	TypeOnly     bool // preference is a hard requirement

	// Restrictions.
	InventoryOnly  bool // only objects the looker carries
	LocationOnly   bool // only objects in the looker's location
	ControlledOnly bool // only objects the looker controls

	// Tie-break policy.
	PreferLocks     bool // prefer candidates passing their Basic lock
	FailUnpreferred bool
	UseLast         bool // ambiguous resolves to the last candidate
	NoPartial       bool // exact name/alias matches only
	English         bool // "my 2nd sword" style qualifiers
}

// FromFlags expands a bitmask into its named form.
func FromFlags(f Flags) Query {
	return Query{
		MatchMe:          f.Has(MatchMeForLooker),
		MatchHere:        f.Has(MatchHereForLookerLocation),
		Absolute:         f.Has(AbsoluteMatch),
		PlayerWildcard:   f.Has(MatchWildCardForPlayerName),
		OptionalWildcard: f.Has(MatchOptionalWildCardForPlayerName),
		Inventory:        f.Has(MatchObjectsInLookerInventory),
		Neighbors:        f.Has(MatchObjectsInLookerLocation),
		LocationName:     f.Has(MatchAgainstLookerLocationName),
		RemoteContents:   f.Has(MatchRemoteContents),
		RoomExits:        f.Has(ExitsInTheRoomOfLooker),
		InnerExits:       f.Has(ExitsInsideOfLooker),
		NoPreference:     f.Has(NoTypePreference),
		Players:          f.Has(PlayersPreference),
		Rooms:            f.Has(RoomsPreference),
		Things:           f.Has(ThingsPreference),
		Exits:            f.Has(ExitsPreference),
		TypeOnly:         f.Has(OnlyMatchTypePreference),
		InventoryOnly:    f.Has(OnlyMatchObjectsInLookerInventory),
		LocationOnly:     f.Has(OnlyMatchObjectsInLookerLocation),
		ControlledOnly:   f.Has(OnlyMatchLookerControlledObjects),
		PreferLocks:      f.Has(PreferLockPass),
		FailUnpreferred:  f.Has(FailIfNotPreferred),
		UseLast:          f.Has(UseLastIfAmbiguous),
		NoPartial:        f.Has(NoPartialMatches),
		English:          f.Has(EnglishStyleMatching),
	}
}

// Flags packs the named form back into the bitmask.
func (q Query) Flags() Flags {
	var f Flags
	set := func(on bool, bit Flags) {
		if on {
			f |= bit
		}
	}
	set(q.MatchMe, MatchMeForLooker)
	set(q.MatchHere, MatchHereForLookerLocation)
	set(q.Absolute, AbsoluteMatch)
	set(q.PlayerWildcard, MatchWildCardForPlayerName)
	set(q.OptionalWildcard, MatchOptionalWildCardForPlayerName)
	set(q.Inventory, MatchObjectsInLookerInventory)
	set(q.Neighbors, MatchObjectsInLookerLocation)
	set(q.LocationName, MatchAgainstLookerLocationName)
	set(q.RemoteContents, MatchRemoteContents)
	set(q.RoomExits, ExitsInTheRoomOfLooker)
	set(q.InnerExits, ExitsInsideOfLooker)
	set(q.NoPreference, NoTypePreference)
	set(q.Players, PlayersPreference)
	set(q.Rooms, RoomsPreference)
	set(q.Things, ThingsPreference)
	set(q.Exits, ExitsPreference)
	set(q.TypeOnly, OnlyMatchTypePreference)
	set(q.InventoryOnly, OnlyMatchObjectsInLookerInventory)
	set(q.LocationOnly, OnlyMatchObjectsInLookerLocation)
	set(q.ControlledOnly, OnlyMatchLookerControlledObjects)
	set(q.PreferLocks, PreferLockPass)
	set(q.FailUnpreferred, FailIfNotPreferred)
	set(q.UseLast, UseLastIfAmbiguous)
	set(q.NoPartial, NoPartialMatches)
	set(q.English, EnglishStyleMatching)
	return f
}

// Default is the everyday command-matching preset: the broad pool set a
// bare query normalizes to.
func Default() Query {
	return FromFlags(normalize(None))
}

// PlayersOnly matches players by name or *wildcard, nothing else.
func PlayersOnly() Query {
	return FromFlags(playerFlags)
}

// AllTypes searches every pool with no type preference.
func AllTypes() Query {
	return FromFlags(All | MatchAgainstLookerLocationName | ExitsInsideOfLooker | NoTypePreference)
}

// playerFlags is the pool set the player-lookup wrappers use.
const playerFlags = PlayersPreference | OnlyMatchTypePreference |
	EnglishStyleMatching | MatchOptionalWildCardForPlayerName
