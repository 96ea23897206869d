// Package locate resolves player-typed names ("sword", "me", "*Finn",
// "#123", "my 2nd box") to objects in the containment graph, gating every
// candidate and the final disclosure through the permission service.
package locate

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
	"github.com/silver-mush/gopennmush/pkg/perms"
)

// Notifier delivers user-facing text for the NotifyIfInvalid variants.
type Notifier interface {
	Notify(target gamedb.DBRef, message string)
}

// Resolver runs name resolution over a graph snapshot. It owns no mutable
// state beyond its counters; concurrent calls are safe.
type Resolver struct {
	db         gamedb.Snapshot
	perms      *perms.Service
	masterRoom gamedb.DBRef

	matches   atomic.Uint64
	notFounds atomic.Uint64
	ambigs    atomic.Uint64
	denials   atomic.Uint64
}

// Stats is a snapshot of resolution outcomes, for metrics export.
type Stats struct {
	Matches          uint64
	NotFound         uint64
	Ambiguous        uint64
	PermissionDenied uint64
}

// NewResolver builds a resolver. masterRoom designates the room whose exits
// are globally reachable; pass gamedb.Nothing to disable global exits.
func NewResolver(db gamedb.Snapshot, permSvc *perms.Service, masterRoom gamedb.DBRef) *Resolver {
	return &Resolver{db: db, perms: permSvc, masterRoom: masterRoom}
}

func (r *Resolver) Stats() Stats {
	return Stats{
		Matches:          r.matches.Load(),
		NotFound:         r.notFounds.Load(),
		Ambiguous:        r.ambigs.Load(),
		PermissionDenied: r.denials.Load(),
	}
}

// evalGuardPools are the pool bits that read state belonging to the looker.
const evalGuardPools = MatchObjectsInLookerLocation | MatchObjectsInLookerInventory |
	MatchHereForLookerLocation | ExitsPreference | ExitsInsideOfLooker

// Locate resolves name relative to looker on behalf of executor. The flags
// are normalized first; see Flags for the coercion rules.
func (r *Resolver) Locate(ctx context.Context, looker, executor *gamedb.Object, name string, flags Flags) Result {
	res := r.locate(ctx, looker, executor, name, flags)
	switch res.Kind {
	case KindMatch:
		r.matches.Add(1)
	case KindNotFound:
		r.notFounds.Add(1)
	case KindAmbiguous:
		r.ambigs.Add(1)
	case KindPermissionDenied:
		r.denials.Add(1)
	}
	return res
}

func (r *Resolver) locate(ctx context.Context, looker, executor *gamedb.Object, name string, flags Flags) Result {
	flags = normalize(flags)

	// Searching another object's surroundings requires the right to see
	// through its eyes.
	if flags.HasAny(evalGuardPools) &&
		executor.Ref != looker.Ref &&
		!r.perms.SeeAll(executor) &&
		!r.perms.Controls(ctx, executor, looker) {
		return permDenied(ErrorNoEval)
	}

	res := r.locateMatch(ctx, looker, executor, name, flags)
	if !res.IsMatch() {
		return res
	}

	return r.discloseGate(ctx, executor, res.Object)
}

// discloseGate re-checks visibility of an already-found candidate: the
// executor must be able to examine the candidate's container, or the
// candidate must be visible in the dark/light sense and interactable.
func (r *Resolver) discloseGate(ctx context.Context, executor, cur *gamedb.Object) Result {
	loc := r.whereObj(ctx, cur)
	if loc == nil {
		return notFound()
	}
	if r.perms.CanExamine(ctx, executor, loc) {
		return matched(cur)
	}
	visible := !cur.HasFlag("DARK") || loc.HasFlag("LIGHT") || cur.HasFlag("LIGHT")
	if visible && r.perms.CanInteract(ctx, cur, executor, perms.InteractSee) {
		return matched(cur)
	}
	return notFound()
}

// LocateAndNotifyIfInvalid is Locate plus a pushed message on any
// non-match outcome.
func (r *Resolver) LocateAndNotifyIfInvalid(ctx context.Context, n Notifier, looker, executor *gamedb.Object, name string, flags Flags) Result {
	res := r.Locate(ctx, looker, executor, name, flags)
	if !res.IsMatch() && n != nil {
		n.Notify(executor.Ref, res.Message)
	}
	return res
}

// LocatePlayer resolves a player by name or *wildcard.
func (r *Resolver) LocatePlayer(ctx context.Context, looker, executor *gamedb.Object, name string) Result {
	return r.Locate(ctx, looker, executor, name, playerFlags)
}

// LocatePlayerAndNotifyIfInvalid is LocatePlayer plus a pushed message on
// any non-match outcome.
func (r *Resolver) LocatePlayerAndNotifyIfInvalid(ctx context.Context, n Notifier, looker, executor *gamedb.Object, name string) Result {
	return r.LocateAndNotifyIfInvalid(ctx, n, looker, executor, name, playerFlags)
}

// LocateQuery is Locate with the named-field query form.
func (r *Resolver) LocateQuery(ctx context.Context, looker, executor *gamedb.Object, name string, q Query) Result {
	return r.Locate(ctx, looker, executor, name, q.Flags())
}

func (r *Resolver) locateMatch(ctx context.Context, looker, executor *gamedb.Object, name string, flags Flags) Result {
	location := r.whereObj(ctx, looker)

	// Keyword fast paths.
	if flags.Has(MatchMeForLooker) &&
		!flags.Has(OnlyMatchObjectsInLookerInventory) &&
		strings.EqualFold(name, "me") {
		if !flags.Has(OnlyMatchLookerControlledObjects) && r.perms.Controls(ctx, executor, looker) {
			return matched(looker)
		}
		return permDenied(ErrorPerm)
	}

	if flags.Has(MatchHereForLookerLocation) &&
		!flags.Has(OnlyMatchObjectsInLookerInventory) &&
		strings.EqualFold(name, "here") {
		if !flags.Has(OnlyMatchLookerControlledObjects) && r.perms.Controls(ctx, executor, looker) {
			if location == nil {
				return notFound()
			}
			return matched(location)
		}
		return permDenied(ErrorPerm)
	}

	// Player wildcard.
	if strings.HasPrefix(name, "*") &&
		flags.HasAny(MatchWildCardForPlayerName|MatchOptionalWildCardForPlayerName) &&
		flags.HasAny(PlayersPreference|NoTypePreference) {
		if p := r.playerByName(ctx, strings.TrimPrefix(name, "*")); p != nil {
			if !flags.Has(OnlyMatchObjectsInLookerLocation) ||
				r.perms.HasLongFingers(executor) ||
				Nearby(executor, p) ||
				r.perms.Controls(ctx, executor, p) {
				if !flags.Has(OnlyMatchLookerControlledObjects) && r.perms.Controls(ctx, executor, looker) {
					return matched(p)
				}
				return permDenied(ErrorPerm)
			}
		}
	}

	// Absolute reference.
	abs, absOK := gamedb.ParseObjRef(name)
	if absOK && flags.Has(AbsoluteMatch) {
		if obj, ok := r.db.GetObjectNode(ctx, abs); ok {
			if !flags.Has(OnlyMatchObjectsInLookerLocation) ||
				r.perms.HasLongFingers(executor) ||
				Nearby(executor, obj) ||
				r.perms.Controls(ctx, executor, obj) {
				if flags.Has(OnlyMatchLookerControlledObjects) && !r.perms.Controls(ctx, executor, looker) {
					return permDenied(ErrorPerm)
				}
				return matched(obj)
			}
		}
	}

	final := 0
	if flags.Has(EnglishStyleMatching) {
		name, flags, final = parseEnglish(name, flags)
	}

	st := rankState{final: final}
	var c flow

	for {
		// Pool: the looker's own contents. Exits are excluded here; the
		// dedicated exit pools below enumerate them, and scanning both
		// would count every exit twice.
		if flags.HasAny(MatchObjectsInLookerInventory|MatchRemoteContents) && looker.IsContainer() {
			st, c = r.matchList(ctx, nonExitsOf(r.db.GetContents(ctx, looker.Ref)), looker, executor, st, flags, name, abs, absOK)
			if c != flowContinue {
				break
			}
		}

		// Pool: contents of the looker's location.
		if flags.Has(MatchAgainstLookerLocationName) &&
			!flags.Has(MatchRemoteContents) &&
			location != nil && !location.Ref.SameNum(looker.Ref) {
			st, c = r.matchList(ctx, nonExitsOf(r.db.GetContents(ctx, location.Ref)), looker, executor, st, flags, name, abs, absOK)
			if c != flowContinue {
				break
			}
		}

		// Pools: global and local exits.
		if flags.HasAny(ExitsPreference|NoTypePreference) && location != nil && location.IsRoom() {
			if flags.Has(All) &&
				!flags.HasAny(OnlyMatchObjectsInLookerLocation|OnlyMatchObjectsInLookerInventory) &&
				!r.masterRoom.IsNothing() {
				st, c = r.matchList(ctx, exitsOf(r.db.GetContents(ctx, r.masterRoom)), looker, executor, st, flags, name, abs, absOK)
				if c != flowContinue {
					break
				}
			}
			st, c = r.matchList(ctx, exitsOf(r.db.GetContents(ctx, location.Ref)), looker, executor, st, flags, name, abs, absOK)
			if c != flowContinue {
				break
			}
		}

		// Pool: the container itself.
		if flags.Has(MatchObjectsInLookerInventory) && location != nil {
			st, c = r.matchList(ctx, []*gamedb.Object{location}, looker, executor, st, flags, name, abs, absOK)
			if c != flowContinue {
				break
			}
		}

		// Pool: exits inside the looker when it is itself a room.
		if flags.HasAny(ExitsPreference|NoTypePreference) &&
			flags.Has(ExitsInsideOfLooker) &&
			looker.IsRoom() &&
			(location == nil || !location.Ref.SameNum(looker.Ref) || !flags.Has(ExitsPreference)) {
			st, c = r.matchList(ctx, exitsOf(r.db.GetContents(ctx, looker.Ref)), looker, executor, st, flags, name, abs, absOK)
		}

		break
	}

	// A satisfied ordinal is terminal.
	if c == flowReturn && st.best != nil {
		return matched(st.best)
	}
	if st.final != 0 || st.curr < 1 || st.best == nil {
		return notFound()
	}
	if st.curr > 1 && st.rightType != 1 && !flags.Has(UseLastIfAmbiguous) {
		return ambiguous()
	}
	return matched(st.best)
}

// rankState is the accumulator folded across candidate pools: final is the
// requested ordinal (0 when none), curr counts equally ranked candidates,
// exact marks whether the running best is an exact name match, rightType
// counts candidates sharing the running best's type.
type rankState struct {
	best      *gamedb.Object
	final     int
	curr      int
	rightType int
	exact     bool
}

type flow int

const (
	flowContinue flow = iota
	flowReturn
)

func (r *Resolver) matchList(ctx context.Context, list []*gamedb.Object, looker, executor *gamedb.Object, st rankState, flags Flags, name string, abs gamedb.DBRef, absOK bool) (rankState, flow) {
	for _, cur := range list {
		if flags.Has(PlayersPreference) && !cur.IsPlayer() ||
			flags.Has(RoomsPreference) && !cur.IsRoom() ||
			flags.Has(ExitsPreference) && !cur.IsExit() ||
			flags.Has(ThingsPreference) && !cur.IsThing() {
			continue
		}

		byRef := absOK && abs.Matches(cur.Ref)
		full := byRef || cur.NameMatch(name)
		if !full {
			if flags.Has(NoPartialMatches) || cur.IsExit() || !foldHasPrefix(cur.Name, name) {
				continue
			}
			if !r.perms.CanInteract(ctx, cur, looker, perms.InteractMatch) {
				continue
			}
		} else if !byRef && !r.perms.CanInteract(ctx, cur, looker, perms.InteractMatch) {
			continue
		}

		var c flow
		st, c = r.matched(ctx, st, cur, full, looker, executor, flags)
		if c == flowReturn {
			return st, flowReturn
		}
	}
	return st, flowContinue
}

// matched folds one accepted candidate into the rank state.
func (r *Resolver) matched(ctx context.Context, st rankState, cur *gamedb.Object, full bool, looker, executor *gamedb.Object, flags Flags) (rankState, flow) {
	if flags.Has(OnlyMatchLookerControlledObjects) && !r.perms.Controls(ctx, executor, cur) {
		return st, flowContinue
	}

	if st.final != 0 {
		chosen := r.chooseThing(ctx, executor, flags, st.best, cur)
		if chosen != nil && !chosen.Ref.SameNum(cur.Ref) {
			st.best = chosen
			return st, flowContinue
		}
		st.best = cur
		st.curr++
		if st.curr == st.final {
			return st, flowReturn
		}
		return st, flowContinue
	}

	// A partial can never displace an exact match already in hand.
	if !full && st.exact {
		return st, flowContinue
	}

	prev := st.best
	chosen := r.chooseThing(ctx, executor, flags, st.best, cur)
	if chosen != nil && !chosen.Ref.SameNum(cur.Ref) {
		st.best = chosen
		return st, flowContinue
	}
	st.best = cur

	if full {
		if st.exact {
			st.curr++
		} else {
			// Forget earlier partial tallies once an exact match appears.
			st.exact = true
			st.curr = 1
			st.rightType = 0
		}
	} else {
		st.curr++
	}

	if !flags.Has(NoTypePreference) && prev != nil && prev.Type == cur.Type {
		st.rightType++
	}
	return st, flowContinue
}

// chooseThing picks between the running best and a new candidate: a
// preferred type wins, then lock passage when PreferLockPass is set, then
// the later-enumerated candidate.
func (r *Resolver) chooseThing(ctx context.Context, who *gamedb.Object, flags Flags, a, b *gamedb.Object) *gamedb.Object {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if preferredType(flags, a.Type) && !preferredType(flags, b.Type) {
		return a
	}
	if preferredType(flags, b.Type) && !preferredType(flags, a.Type) {
		return b
	}
	if !flags.Has(PreferLockPass) {
		return b
	}
	aKey := r.perms.CouldDoIt(ctx, who, a)
	bKey := r.perms.CouldDoIt(ctx, who, b)
	switch {
	case !aKey && bKey:
		return b
	case aKey && !bKey:
		return a
	default:
		return b
	}
}

func preferredType(flags Flags, t gamedb.ObjectType) bool {
	switch t {
	case gamedb.TypePlayer:
		return flags.Has(PlayersPreference)
	case gamedb.TypeRoom:
		return flags.Has(RoomsPreference)
	case gamedb.TypeThing:
		return flags.Has(ThingsPreference)
	case gamedb.TypeExit:
		return flags.Has(ExitsPreference)
	default:
		return false
	}
}

// playerByName returns the unique live player with the given name, nil when
// absent or ambiguous.
func (r *Resolver) playerByName(ctx context.Context, name string) *gamedb.Object {
	players := r.db.GetPlayersByName(ctx, name)
	if len(players) != 1 {
		return nil
	}
	return players[0]
}

func exitsOf(contents []*gamedb.Object) []*gamedb.Object {
	out := contents[:0:0]
	for _, o := range contents {
		if o.IsExit() {
			out = append(out, o)
		}
	}
	return out
}
