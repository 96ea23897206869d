package gamedb

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DBRef identifies a game object. Num alone is not enough: object numbers are
// recycled when objects are destroyed, so equality requires the creation
// timestamp to match as well. A parsed reference with Created == 0 (the short
// "#123" form) matches whatever object currently holds the number.
type DBRef struct {
	Num     int
	Created int64
}

// Nothing is the canonical "no object" reference.
var Nothing = DBRef{Num: -1}

// IsNothing reports whether the reference is a sentinel (negative number).
func (r DBRef) IsNothing() bool {
	return r.Num < 0
}

// SameNum reports whether two references name the same object number,
// ignoring the creation timestamp.
func (r DBRef) SameNum(o DBRef) bool {
	return r.Num == o.Num
}

// Matches reports whether r refers to the live object identified by live.
// A zero Created in r acts as a wildcard; a nonzero mismatch never matches.
func (r DBRef) Matches(live DBRef) bool {
	if r.Num != live.Num {
		return false
	}
	return r.Created == 0 || r.Created == live.Created
}

// String renders the short "#123" form.
func (r DBRef) String() string {
	return fmt.Sprintf("#%d", r.Num)
}

// ObjID renders the full "#123:1690000000" objid form.
func (r DBRef) ObjID() string {
	return fmt.Sprintf("#%d:%d", r.Num, r.Created)
}

// ObjectType represents the type of a game object.
type ObjectType int

const (
	TypeRoom ObjectType = iota
	TypeThing
	TypeExit
	TypePlayer
)

func (t ObjectType) String() string {
	switch t {
	case TypeRoom:
		return "ROOM"
	case TypeThing:
		return "THING"
	case TypeExit:
		return "EXIT"
	case TypePlayer:
		return "PLAYER"
	default:
		return "UNKNOWN"
	}
}

// NameSet is a case-insensitive set of names, used for flags and powers.
// Keys are stored upper-cased. The bool value is always true; a map keeps
// the set friendly to gob.
type NameSet map[string]bool

// NewNameSet builds a set from the given names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Has reports membership, case-insensitively.
func (s NameSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s[strings.ToUpper(name)]
	return ok
}

// Add inserts a name.
func (s NameSet) Add(name string) {
	s[strings.ToUpper(name)] = true
}

// Remove deletes a name.
func (s NameSet) Remove(name string) {
	delete(s, strings.ToUpper(name))
}

// Names returns the members sorted, for stable display.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s NameSet) Clone() NameSet {
	c := make(NameSet, len(s))
	for n := range s {
		c[n] = true
	}
	return c
}

// LockType names a lock on an object. The set is open: any string is a valid
// lock type, these are the standard kinds.
type LockType string

const (
	LockBasic    LockType = "Basic"
	LockEnter    LockType = "Enter"
	LockLeave    LockType = "Leave"
	LockUse      LockType = "Use"
	LockControl  LockType = "Control"
	LockExamine  LockType = "Examine"
	LockListen   LockType = "Listen"
	LockInteract LockType = "Interact"
	LockZone     LockType = "Zone"
	LockDrop     LockType = "Drop"
	LockTake     LockType = "Take"
	LockPage     LockType = "Page"
	LockTeleport LockType = "Teleport"
	LockSpeech   LockType = "Speech"
	LockFollow   LockType = "Follow"
	LockMail     LockType = "Mail"
)

// DefaultLockString is what an absent lock evaluates as: always passes.
const DefaultLockString = "#TRUE"

// LockFlag bits qualify a stored lock entry.
type LockFlag uint8

const (
	LockFlagVisual LockFlag = 1 << iota
	LockFlagPrivate
	LockFlagWizard
	LockFlagLocked
	LockFlagNoClone
	LockFlagOwner
	LockFlagDefault
)

// LockEntry is a stored lock: the textual predicate plus its flags.
type LockEntry struct {
	LockString string
	Flags      LockFlag
}

// DefaultLockEntry is the entry an absent lock defaults to.
func DefaultLockEntry() LockEntry {
	return LockEntry{LockString: DefaultLockString, Flags: LockFlagDefault}
}

// Attribute is a named text attribute on an object. Flags use the same
// case-insensitive set convention as object flags (WIZARD, LOCKED, VISUAL,
// PUBLIC, INHERITABLE, ...).
type Attribute struct {
	Name  string
	Value string
	Owner DBRef
	Flags NameSet
}

// IsWizard reports the wizard-only write restriction.
func (a Attribute) IsWizard() bool { return a.Flags.Has("WIZARD") }

// IsLocked reports the per-attribute write lock.
func (a Attribute) IsLocked() bool { return a.Flags.Has("LOCKED") }

// IsVisual reports whether anyone may read the attribute.
func (a Attribute) IsVisual() bool { return a.Flags.Has("VISUAL") }

// IsPublic reports whether anyone may evaluate the attribute.
func (a Attribute) IsPublic() bool { return a.Flags.Has("PUBLIC") }

// Object is a game database object: a player, room, thing, or exit.
//
// Location is the container for players and things. Exits keep their
// effective location in Home and their target in Destination. Rooms have
// neither.
type Object struct {
	Ref         DBRef
	Type        ObjectType
	Name        string
	Aliases     []string
	Location    DBRef
	Home        DBRef
	Destination DBRef
	Owner       DBRef
	Zone        DBRef
	Flags       NameSet
	Powers      NameSet
	Locks       map[LockType]LockEntry
	Attrs       map[string]Attribute
	Password    []byte // bcrypt hash; players only
	Pennies     int
	Modified    time.Time
}

// CreatedAt returns the creation time carried in the object's reference.
func (o *Object) CreatedAt() time.Time {
	return time.Unix(o.Ref.Created, 0)
}

func (o *Object) IsPlayer() bool { return o.Type == TypePlayer }
func (o *Object) IsRoom() bool   { return o.Type == TypeRoom }
func (o *Object) IsThing() bool  { return o.Type == TypeThing }
func (o *Object) IsExit() bool   { return o.Type == TypeExit }

// IsContainer reports whether the object can hold contents. Exits cannot.
func (o *Object) IsContainer() bool { return o.Type != TypeExit }

// HasFlag reports a flag by name, case-insensitively.
func (o *Object) HasFlag(name string) bool { return o.Flags.Has(name) }

// HasPower reports a power by name, case-insensitively.
func (o *Object) HasPower(name string) bool { return o.Powers.Has(name) }

// Lock returns the stored lock entry for the given type, defaulting to the
// always-pass entry when absent.
func (o *Object) Lock(t LockType) LockEntry {
	if e, ok := o.Locks[t]; ok {
		return e
	}
	return DefaultLockEntry()
}

// Attr returns the named attribute, case-insensitively.
func (o *Object) Attr(name string) (Attribute, bool) {
	a, ok := o.Attrs[strings.ToUpper(name)]
	return a, ok
}

// SetAttr stores an attribute under its upper-cased name.
func (o *Object) SetAttr(a Attribute) {
	if o.Attrs == nil {
		o.Attrs = make(map[string]Attribute)
	}
	o.Attrs[strings.ToUpper(a.Name)] = a
}

// NameMatch reports whether s exactly matches the object's name or one of
// its aliases, case-insensitively.
func (o *Object) NameMatch(s string) bool {
	if strings.EqualFold(o.Name, s) {
		return true
	}
	for _, alias := range o.Aliases {
		if strings.EqualFold(alias, s) {
			return true
		}
	}
	return false
}

// DisplayName is the object's name with its short dbref, e.g. "Sword(#5)".
func (o *Object) DisplayName() string {
	return fmt.Sprintf("%s(%s)", o.Name, o.Ref)
}
