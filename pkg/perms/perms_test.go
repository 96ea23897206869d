package perms

import (
	"context"
	"testing"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
	"github.com/silver-mush/gopennmush/pkg/locks"
)

type permEnv struct {
	t   *testing.T
	db  *gamedb.Database
	ls  *locks.Service
	svc *Service

	god, wiz, royal, finn, jake *gamedb.Object
}

func newPermEnv(t *testing.T) *permEnv {
	t.Helper()
	db := gamedb.NewDatabase()
	ls := locks.NewService(db, db)
	env := &permEnv{t: t, db: db, ls: ls, svc: NewService(db, ls, Config{})}

	room := env.add(10, gamedb.TypeRoom, "Hall", gamedb.Nothing)
	env.god = env.add(1, gamedb.TypePlayer, "God", room.Ref, "WIZARD")
	env.wiz = env.add(4, gamedb.TypePlayer, "Wiz", room.Ref, "WIZARD")
	env.royal = env.add(5, gamedb.TypePlayer, "Royal", room.Ref, "ROYALTY")
	env.finn = env.add(2, gamedb.TypePlayer, "Finn", room.Ref)
	env.jake = env.add(3, gamedb.TypePlayer, "Jake", room.Ref)
	return env
}

func (env *permEnv) add(num int, typ gamedb.ObjectType, name string, loc gamedb.DBRef, flags ...string) *gamedb.Object {
	env.t.Helper()
	obj := &gamedb.Object{
		Ref:         gamedb.DBRef{Num: num, Created: 100},
		Type:        typ,
		Name:        name,
		Location:    loc,
		Home:        loc,
		Destination: gamedb.Nothing,
		Owner:       gamedb.DBRef{Num: num, Created: 100},
		Zone:        gamedb.Nothing,
		Flags:       gamedb.NewNameSet(flags...),
	}
	env.db.Add(obj)
	return obj
}

// thing creates a thing owned by owner.
func (env *permEnv) thing(num int, name string, owner *gamedb.Object, flags ...string) *gamedb.Object {
	obj := env.add(num, gamedb.TypeThing, name, owner.Location, flags...)
	obj.Owner = owner.Ref
	return obj
}

func (env *permEnv) setLock(obj *gamedb.Object, t gamedb.LockType, lockStr string) {
	env.t.Helper()
	if err := env.ls.Set(context.Background(), t, lockStr, obj); err != nil {
		env.t.Fatalf("set %s lock on %s: %v", t, obj.Name, err)
	}
}

func TestControlsLadder(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)

	guest := env.add(6, gamedb.TypePlayer, "Guest", gamedb.DBRef{Num: 10, Created: 100})
	guest.Powers = gamedb.NewNameSet("GUEST")
	mistrusted := env.add(7, gamedb.TypePlayer, "Shifty", gamedb.DBRef{Num: 10, Created: 100})
	mistrusted.Powers = gamedb.NewNameSet("MISTRUST")
	heir := env.add(8, gamedb.TypePlayer, "Heir", gamedb.DBRef{Num: 10, Created: 100}, "INHERIT")

	ball := env.thing(20, "ball", env.finn)
	heirloom := env.thing(21, "heirloom", env.finn, "INHERIT")
	heirBall := env.thing(22, "heirball", heir, "INHERIT")
	wand := env.thing(23, "wand", env.finn, "WIZARD")
	crown := env.thing(24, "crown", env.finn, "ROYALTY")
	royalCrown := env.thing(25, "royalcrown", env.royal, "ROYALTY")
	shiftyBag := env.thing(26, "bag", mistrusted)

	tests := []struct {
		name        string
		who, target *gamedb.Object
		want        bool
	}{
		{"guest controls nothing, not even itself", guest, guest, false},
		{"identity", env.finn, env.finn, true},
		{"god controls wizards", env.god, env.wiz, true},
		{"nobody controls god", env.wiz, env.god, false},
		{"wizard controls plain players", env.wiz, env.finn, true},
		{"wizard-flagged target blocks its owner", env.finn, wand, false},
		{"privilege gap blocks plain controllers", env.finn, crown, false},
		{"royalty crosses the gap to its own", env.royal, royalCrown, true},
		{"mistrust blocks even ownership", mistrusted, shiftyBag, false},
		{"ownership grants control", env.finn, ball, true},
		{"inheritable target needs an inheritable owner", env.finn, heirloom, false},
		{"inheritable owner keeps control", heir, heirBall, true},
		{"players are never controlled by ownership rules", env.finn, env.jake, false},
	}
	for _, tt := range tests {
		if got := env.svc.Controls(ctx, tt.who, tt.target); got != tt.want {
			t.Errorf("%s: Controls(%s, %s) = %v, want %v",
				tt.name, tt.who.Name, tt.target.Name, got, tt.want)
		}
	}
}

func TestZoneMasterObjectControl(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)

	zmo := env.thing(30, "zone master", env.wiz)
	env.setLock(zmo, gamedb.LockZone, "=#2")
	zoned := env.thing(31, "zoned chest", env.wiz)
	zoned.Zone = zmo.Ref

	if !env.svc.Controls(ctx, env.finn, zoned) {
		t.Error("Finn should control the zoned chest through the zone lock")
	}
	if env.svc.Controls(ctx, env.jake, zoned) {
		t.Error("Jake fails the zone lock and must not control the chest")
	}

	// A zone object with no explicit Zone lock grants nothing.
	bareZone := env.thing(32, "bare zone", env.wiz)
	bareZoned := env.thing(33, "bare chest", env.wiz)
	bareZoned.Zone = bareZone.Ref
	if env.svc.Controls(ctx, env.finn, bareZoned) {
		t.Error("an unset zone lock must not grant control")
	}

	// ZMP-only policy ignores zone-master objects entirely.
	strict := NewService(env.db, env.ls, Config{ZoneControlZMPOnly: true})
	if strict.Controls(ctx, env.finn, zoned) {
		t.Error("zone-master-object control should be off under the ZMP-only policy")
	}
}

func TestZoneMasterPlayerControl(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)

	zmp := env.add(9, gamedb.TypePlayer, "Bank", gamedb.DBRef{Num: 10, Created: 100}, "SHARED")
	env.setLock(zmp, gamedb.LockZone, "=#2")
	vaultDoor := env.thing(30, "vault door", zmp)

	if !env.svc.Controls(ctx, env.finn, vaultDoor) {
		t.Error("Finn should control the shared owner's object through its zone lock")
	}
	if env.svc.Controls(ctx, env.jake, vaultDoor) {
		t.Error("Jake fails the shared owner's zone lock")
	}

	// A SHARED owner with no explicit Zone lock grants nothing.
	zmpBare := env.add(11, gamedb.TypePlayer, "Till", gamedb.DBRef{Num: 10, Created: 100}, "SHARED")
	tillDrawer := env.thing(31, "drawer", zmpBare)
	if env.svc.Controls(ctx, env.finn, tillDrawer) {
		t.Error("an unset zone lock on a shared owner must not grant control")
	}
}

func TestControlLockExplicitOnly(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)

	granted := env.thing(30, "granted", env.jake)
	env.setLock(granted, gamedb.LockControl, "=#2")
	plain := env.thing(31, "plain", env.jake)

	if !env.svc.Controls(ctx, env.finn, granted) {
		t.Error("an explicit control lock should grant control")
	}
	if env.svc.Controls(ctx, env.royal, granted) {
		t.Error("Royal fails the control lock")
	}

	// No explicit control lock means no grant, despite the always-pass
	// default that passage locks get.
	if env.svc.Controls(ctx, env.finn, plain) {
		t.Error("an unset control lock must not grant control")
	}
}

func TestCanExamine(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)

	ball := env.thing(20, "ball", env.jake)
	statue := env.thing(21, "statue", env.jake, "VISUAL")

	if !env.svc.CanExamine(ctx, env.finn, env.finn) {
		t.Error("identity always examines")
	}
	if !env.svc.CanExamine(ctx, env.jake, ball) {
		t.Error("the controller examines its own object")
	}
	if env.svc.CanExamine(ctx, env.finn, ball) {
		t.Error("a bystander cannot examine a plain object")
	}
	if !env.svc.CanExamine(ctx, env.royal, ball) {
		t.Error("royalty sees everything")
	}
	if !env.svc.CanExamine(ctx, env.finn, statue) {
		t.Error("VISUAL opens examination when the examine lock passes")
	}

	env.setLock(statue, gamedb.LockExamine, "=#2")
	if !env.svc.CanExamine(ctx, env.finn, statue) {
		t.Error("Finn passes the examine lock")
	}
	maya := env.add(12, gamedb.TypePlayer, "Maya", gamedb.DBRef{Num: 10, Created: 100})
	if env.svc.CanExamine(ctx, maya, statue) {
		t.Error("Maya fails the examine lock on a VISUAL object")
	}
}

func TestCanEval(t *testing.T) {
	env := newPermEnv(t)
	tests := []struct {
		evaluator, target *gamedb.Object
		want              bool
	}{
		{env.finn, env.jake, true},
		{env.finn, env.wiz, false},
		{env.royal, env.royal, true},
		{env.royal, env.wiz, false},
		{env.wiz, env.royal, true},
		{env.wiz, env.god, false},
		{env.god, env.wiz, true},
	}
	for _, tt := range tests {
		if got := env.svc.CanEval(tt.evaluator, tt.target); got != tt.want {
			t.Errorf("CanEval(%s, %s) = %v, want %v",
				tt.evaluator.Name, tt.target.Name, got, tt.want)
		}
	}
}

func TestCanInteractHear(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)

	deaf := env.thing(20, "deaf statue", env.jake)
	env.setLock(deaf, gamedb.LockInteract, "#FALSE")

	if env.svc.CanInteract(ctx, env.finn, deaf, InteractHear) {
		t.Error("a failing interact lock must block hearing")
	}
	if !env.svc.CanInteract(ctx, env.finn, deaf, InteractSee) {
		t.Error("the interact lock gates hearing only")
	}
	if !env.svc.CanInteract(ctx, deaf, deaf, InteractHear) {
		t.Error("identity always interacts")
	}
}

func TestCanSet(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)
	ball := env.thing(20, "ball", env.finn)

	plain := gamedb.Attribute{Name: "DESC", Value: "round"}
	wizOnly := gamedb.Attribute{Name: "SECRET", Flags: gamedb.NewNameSet("WIZARD")}
	lockedOwn := gamedb.Attribute{Name: "SAFE", Owner: env.finn.Ref, Flags: gamedb.NewNameSet("LOCKED")}
	lockedOther := gamedb.Attribute{Name: "SEAL", Owner: env.jake.Ref, Flags: gamedb.NewNameSet("LOCKED")}

	if env.svc.CanSet(ctx, env.jake, ball, plain) {
		t.Error("a non-controller cannot set anything")
	}
	if !env.svc.CanSet(ctx, env.finn, ball) {
		t.Error("a controller with no attribute chain may set")
	}
	if !env.svc.CanSet(ctx, env.finn, ball, plain) {
		t.Error("a controller sets plain attributes")
	}
	if env.svc.CanSet(ctx, env.finn, ball, wizOnly) {
		t.Error("wizard-only attributes need a wizard")
	}
	if !env.svc.CanSet(ctx, env.wiz, ball, wizOnly) {
		t.Error("a wizard sets wizard-only attributes")
	}
	if !env.svc.CanSet(ctx, env.finn, ball, lockedOwn) {
		t.Error("a locked attribute owned by the target's owner is writable")
	}
	if env.svc.CanSet(ctx, env.finn, ball, lockedOther) {
		t.Error("a locked attribute owned elsewhere is not writable")
	}

	// Flags union across the chain: the wizard restriction survives a
	// plain final entry.
	if env.svc.CanSet(ctx, env.finn, ball, wizOnly, plain) {
		t.Error("a wizard-flagged entry anywhere in the chain restricts the write")
	}
}

func TestMergeAttrsInheritableOnly(t *testing.T) {
	parent := gamedb.Attribute{Name: "CMD", Flags: gamedb.NewNameSet("WIZARD", "VISUAL")}
	child := gamedb.Attribute{Name: "CMD`SUB", Flags: gamedb.NewNameSet("REGEXP")}
	merged := mergeAttrs([]gamedb.Attribute{parent, child})
	if !merged.Flags.Has("WIZARD") {
		t.Error("inheritable flags survive the merge")
	}
	if merged.Flags.Has("VISUAL") || merged.Flags.Has("REGEXP") {
		t.Errorf("non-inheritable flags leak into the merge: %v", merged.Flags.Names())
	}
	if merged.Name != "CMD`SUB" {
		t.Errorf("merge keeps the last entry's identity, got %q", merged.Name)
	}
}

func TestCanViewAttribute(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)
	ball := env.thing(20, "ball", env.jake)

	hidden := gamedb.Attribute{Name: "NOTE", Value: "private"}
	shown := gamedb.Attribute{Name: "SIGN", Value: "public", Flags: gamedb.NewNameSet("VISUAL")}

	if env.svc.CanViewAttribute(ctx, env.finn, ball, hidden) {
		t.Error("a bystander cannot read a plain attribute")
	}
	if !env.svc.CanViewAttribute(ctx, env.finn, ball, shown) {
		t.Error("VISUAL attributes are readable by anyone")
	}
	if !env.svc.CanViewAttribute(ctx, env.jake, ball, hidden) {
		t.Error("the controller reads everything")
	}
}

func TestVisibilityHelpers(t *testing.T) {
	env := newPermEnv(t)
	shade := env.thing(20, "shade", env.jake, "DARK")
	ghost := env.thing(21, "ghost", env.jake, "UNFINDABLE")

	if env.svc.CanSee(env.finn, shade) {
		t.Error("DARK hides from plain players")
	}
	if !env.svc.CanSee(env.wiz, shade) {
		t.Error("wizards see DARK objects")
	}
	if env.svc.CanFind(env.finn, ghost) {
		t.Error("UNFINDABLE hides from player searches")
	}
	if !env.svc.CanFind(env.royal, ghost) {
		t.Error("royalty finds UNFINDABLE objects")
	}
	if env.svc.CanHide(env.finn) || env.svc.CanIdle(env.finn) {
		t.Error("plain players get no hide or idle exemptions")
	}
	if !env.svc.CanHide(env.wiz) || !env.svc.CanLogin(env.wiz) || !env.svc.CanIdle(env.wiz) {
		t.Error("wizards get the full exemption set")
	}
}

func TestCouldDoIt(t *testing.T) {
	ctx := context.Background()
	env := newPermEnv(t)
	door := env.thing(20, "door", env.jake)

	if !env.svc.CouldDoIt(ctx, env.finn, door) {
		t.Error("an unlocked door passes everyone")
	}
	env.setLock(door, gamedb.LockBasic, "=#3")
	if env.svc.CouldDoIt(ctx, env.finn, door) {
		t.Error("Finn fails the basic lock")
	}
	if !env.svc.CouldDoIt(ctx, env.jake, door) {
		t.Error("Jake passes the basic lock")
	}
	if env.svc.CouldDoIt(ctx, env.finn, nil) {
		t.Error("a missing thing never passes")
	}
}
