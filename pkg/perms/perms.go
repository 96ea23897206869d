// Package perms answers authorization queries over the containment graph.
// Every method is a pure decision against the graph snapshot; the only
// state consulted outside it is the lock service's predicate cache.
package perms

import (
	"context"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
	"github.com/silver-mush/gopennmush/pkg/locks"
)

// InteractType classifies what kind of interaction is being checked.
type InteractType int

const (
	InteractSee InteractType = iota
	InteractHear
	InteractMatch
	InteractPresence
)

// Config carries the policy knobs the permission ladder depends on.
type Config struct {
	// God is the unique maximal-authority object, conventionally #1.
	God gamedb.DBRef
	// ZoneNestLimit bounds recursive zone-lock chains.
	ZoneNestLimit int
	// ZoneControlZMPOnly disables zone-master-object control when set,
	// leaving only the shared-owner zone-master-player path.
	ZoneControlZMPOnly bool
}

// Service is the permission decision engine.
type Service struct {
	db    gamedb.Snapshot
	locks *locks.Service
	cfg   Config
}

// NewService builds a permission service over the graph and lock service.
func NewService(db gamedb.Snapshot, lockSvc *locks.Service, cfg Config) *Service {
	if cfg.God.IsNothing() {
		cfg.God = gamedb.DBRef{Num: 1}
	}
	if cfg.ZoneNestLimit <= 0 {
		cfg.ZoneNestLimit = 20
	}
	return &Service{db: db, locks: lockSvc, cfg: cfg}
}

// IsGod reports whether obj is the God object.
func (s *Service) IsGod(obj *gamedb.Object) bool {
	return obj.Ref.Num == s.cfg.God.Num
}

// IsWizard reports the WIZARD flag.
func (s *Service) IsWizard(obj *gamedb.Object) bool {
	return obj.HasFlag("WIZARD")
}

// IsRoyalty reports the ROYALTY flag.
func (s *Service) IsRoyalty(obj *gamedb.Object) bool {
	return obj.HasFlag("ROYALTY")
}

// IsPriv reports the privileged tiers: wizard or royalty.
func (s *Service) IsPriv(obj *gamedb.Object) bool {
	return s.IsWizard(obj) || s.IsRoyalty(obj)
}

// SeeAll reports whether obj bypasses normal visibility restrictions.
func (s *Service) SeeAll(obj *gamedb.Object) bool {
	return s.IsPriv(obj) || obj.HasPower("SEE_ALL")
}

// Inheritable reports whether obj passes privileges down to what it owns.
func (s *Service) Inheritable(obj *gamedb.Object) bool {
	return obj.HasFlag("INHERIT")
}

// HasLongFingers reports the remote-manipulation power.
func (s *Service) HasLongFingers(obj *gamedb.Object) bool {
	return obj.HasPower("LONG_FINGERS")
}

// ownerOf resolves the effective owner reference: players own themselves.
func ownerOf(obj *gamedb.Object) gamedb.DBRef {
	if obj.IsPlayer() {
		return obj.Ref
	}
	return obj.Owner
}

// owns reports whether who and target share an effective owner.
func owns(who, target *gamedb.Object) bool {
	return ownerOf(who).SameNum(ownerOf(target))
}

// Controls implements the control ladder. The rung order is load-bearing:
// the first rung that decides, decides.
func (s *Service) Controls(ctx context.Context, who, target *gamedb.Object) bool {
	if who.HasPower("GUEST") {
		return false
	}
	if who.Ref == target.Ref {
		return true
	}
	if s.IsGod(who) {
		return true
	}
	if s.IsGod(target) {
		return false
	}
	if s.IsWizard(who) {
		return true
	}
	if s.IsWizard(target) || (s.IsPriv(target) && !s.IsPriv(who)) {
		return false
	}
	if who.HasPower("MISTRUST") {
		return false
	}
	if owns(who, target) && (!s.Inheritable(target) || s.Inheritable(who)) {
		return true
	}
	if s.Inheritable(target) || target.IsPlayer() {
		return false
	}

	// Zone-master-object control: target's zone object may grant control
	// through its Zone lock. An unset Zone lock grants nothing; the
	// always-pass default applies to passage locks, not control grants.
	if !s.cfg.ZoneControlZMPOnly && !target.Zone.IsNothing() {
		if zone, ok := s.db.GetObjectNode(ctx, target.Zone); ok {
			if hasLockSet(zone, gamedb.LockZone) && s.locks.Evaluate(ctx, gamedb.LockZone, who, zone) {
				return true
			}
		}
	}

	// Zone-master-player control: a SHARED owner grants control through
	// the owner's Zone lock.
	if !target.IsPlayer() {
		if owner, ok := s.db.GetObjectNode(ctx, target.Owner); ok && owner.HasFlag("SHARED") {
			if hasLockSet(owner, gamedb.LockZone) && s.locks.Evaluate(ctx, gamedb.LockZone, who, owner) {
				return true
			}
		}
	}

	return hasLockSet(target, gamedb.LockControl) &&
		s.locks.Evaluate(ctx, gamedb.LockControl, who, target)
}

// hasLockSet reports an explicitly stored lock, ignoring the default entry.
func hasLockSet(obj *gamedb.Object, t gamedb.LockType) bool {
	_, ok := obj.Locks[t]
	return ok
}

// CanExamine reports whether examiner may examine examinee.
func (s *Service) CanExamine(ctx context.Context, examiner, examinee *gamedb.Object) bool {
	return examiner.Ref == examinee.Ref ||
		s.Controls(ctx, examiner, examinee) ||
		s.SeeAll(examiner) ||
		(examinee.HasFlag("VISUAL") && s.locks.Evaluate(ctx, gamedb.LockExamine, examiner, examinee))
}

// CanInteract reports whether from may interact with to. Hear interactions
// are gated by to's Interact lock; everything after that check is
// unconditionally permitted.
//
// TODO: the final return makes every non-Hear interaction succeed once the
// room/identity short-circuits don't apply; confirm with the product owner
// before tightening, since softcode may depend on the permissive behavior.
func (s *Service) CanInteract(ctx context.Context, from, to *gamedb.Object, typ InteractType) bool {
	if from.Ref == to.Ref || from.IsRoom() || to.IsRoom() {
		return true
	}
	if typ == InteractHear && !s.locks.Evaluate(ctx, gamedb.LockInteract, from, to) {
		return false
	}
	if from.Ref.SameNum(to.Location) || to.Ref.SameNum(from.Location) || s.Controls(ctx, to, from) {
		return true
	}
	return true
}

// CanSet reports whether executor may write the given attribute chain on
// target. The chain is merged last-wins with flags unioned across entries.
func (s *Service) CanSet(ctx context.Context, executor, target *gamedb.Object, attrs ...gamedb.Attribute) bool {
	if !s.Controls(ctx, executor, target) {
		return false
	}
	if len(attrs) == 0 {
		return true
	}
	merged := mergeAttrs(attrs)
	if s.IsGod(executor) || s.IsWizard(executor) {
		return true
	}
	return !merged.IsWizard() &&
		(!merged.IsLocked() || merged.Owner.SameNum(ownerOf(target)))
}

// CanViewAttribute reports whether viewer may read the attribute on target.
func (s *Service) CanViewAttribute(ctx context.Context, viewer, target *gamedb.Object, attrs ...gamedb.Attribute) bool {
	if s.CanExamine(ctx, viewer, target) {
		return true
	}
	return len(attrs) > 0 && attrs[len(attrs)-1].IsVisual()
}

// CanExecuteAttribute reports whether viewer may evaluate the attribute on
// target.
func (s *Service) CanExecuteAttribute(ctx context.Context, viewer, target *gamedb.Object, attrs ...gamedb.Attribute) bool {
	if s.CanEval(viewer, target) {
		return true
	}
	return len(attrs) > 0 && attrs[len(attrs)-1].IsPublic()
}

// CanEval reports whether evaluator may evaluate code in target's context.
// Non-privileged targets are always evaluable; privileged targets require
// rank at least matching the target's, and God is never evaluable by others.
func (s *Service) CanEval(evaluator, target *gamedb.Object) bool {
	if !s.IsPriv(target) {
		return true
	}
	if s.IsGod(evaluator) {
		return true
	}
	return (s.IsWizard(evaluator) || (s.IsRoyalty(evaluator) && !s.IsWizard(target))) &&
		!s.IsGod(target)
}

// CanNoSpoof reports whether executor may see true sources behind spoofed
// emits.
func (s *Service) CanNoSpoof(executor *gamedb.Object) bool {
	return executor.HasPower("NOSPOOF") || s.IsWizard(executor) || s.IsGod(executor)
}

// CanSee reports basic visibility of target to viewer, before the locate
// disclosure gate's dark/light reasoning.
func (s *Service) CanSee(viewer, target *gamedb.Object) bool {
	if s.IsPriv(viewer) || s.SeeAll(viewer) {
		return true
	}
	return !target.HasFlag("DARK")
}

// CanFind reports whether viewer may find target via player searches.
func (s *Service) CanFind(viewer, target *gamedb.Object) bool {
	if s.IsPriv(viewer) || s.SeeAll(viewer) {
		return true
	}
	return !target.HasFlag("UNFINDABLE")
}

// CanHide reports whether executor may hide from WHO.
func (s *Service) CanHide(executor *gamedb.Object) bool {
	return s.IsPriv(executor) || executor.HasPower("HIDE")
}

// CanLogin reports whether executor may log in during restricted access.
func (s *Service) CanLogin(executor *gamedb.Object) bool {
	return s.IsPriv(executor) || executor.HasPower("LOGIN")
}

// CanIdle reports whether executor is exempt from idle timeouts.
func (s *Service) CanIdle(executor *gamedb.Object) bool {
	return s.IsPriv(executor) || executor.HasPower("IDLE")
}

// CouldDoIt checks who against thing's Basic lock; a nil thing never passes.
func (s *Service) CouldDoIt(ctx context.Context, who, thing *gamedb.Object) bool {
	if thing == nil {
		return false
	}
	return s.locks.Evaluate(ctx, gamedb.LockBasic, who, thing)
}

// PassesLock checks who against target's lock of the given type.
func (s *Service) PassesLock(ctx context.Context, who, target *gamedb.Object, lockType gamedb.LockType) bool {
	return s.locks.Evaluate(ctx, lockType, who, target)
}

// PassesLockString checks who against an ad hoc lock string on target.
func (s *Service) PassesLockString(ctx context.Context, who, target *gamedb.Object, lockString string) bool {
	return s.locks.EvaluateString(ctx, lockString, who, target)
}

// mergeAttrs collapses an attribute chain: the last entry wins for identity
// and owner, flags union across the chain.
// inheritableAttrFlags are the attribute flags that carry down an attribute
// chain when write permissions are merged. Cosmetic and evaluation flags
// stay on the entry that declares them.
var inheritableAttrFlags = gamedb.NewNameSet("WIZARD", "LOCKED", "SAFE", "MORTAL_DARK", "VEILED")

func mergeAttrs(attrs []gamedb.Attribute) gamedb.Attribute {
	merged := attrs[len(attrs)-1]
	flags := gamedb.NewNameSet()
	for _, a := range attrs {
		for _, f := range a.Flags.Names() {
			if inheritableAttrFlags.Has(f) {
				flags.Add(f)
			}
		}
	}
	merged.Flags = flags
	return merged
}
