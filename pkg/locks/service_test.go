package locks

import (
	"context"
	"errors"
	"testing"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

type lockEnv struct {
	db   *gamedb.Database
	svc  *Service
	wiz  *gamedb.Object
	finn *gamedb.Object
	door *gamedb.Object
}

func newLockEnv(t *testing.T) *lockEnv {
	t.Helper()
	db := gamedb.NewDatabase()
	add := func(num int, typ gamedb.ObjectType, name string, loc gamedb.DBRef) *gamedb.Object {
		obj := &gamedb.Object{
			Ref:         gamedb.DBRef{Num: num, Created: 100},
			Type:        typ,
			Name:        name,
			Location:    loc,
			Home:        loc,
			Destination: gamedb.Nothing,
			Owner:       gamedb.DBRef{Num: num, Created: 100},
			Zone:        gamedb.Nothing,
		}
		db.Add(obj)
		return obj
	}
	hall := add(10, gamedb.TypeRoom, "Hall", gamedb.Nothing)
	wiz := add(1, gamedb.TypePlayer, "Wiz", hall.Ref)
	finn := add(2, gamedb.TypePlayer, "Finn", hall.Ref)
	door := add(20, gamedb.TypeThing, "door", hall.Ref)
	return &lockEnv{db: db, svc: NewService(db, db), wiz: wiz, finn: finn, door: door}
}

func TestDefaultLockAlwaysPasses(t *testing.T) {
	env := newLockEnv(t)
	if got := env.svc.Get(gamedb.LockBasic, env.door); got != gamedb.DefaultLockString {
		t.Fatalf("Get on an unlocked object = %q, want %q", got, gamedb.DefaultLockString)
	}
	if !env.svc.Evaluate(context.Background(), gamedb.LockBasic, env.finn, env.door) {
		t.Error("an absent lock must pass everyone")
	}
}

func TestSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)

	if err := env.svc.Set(ctx, gamedb.LockBasic, "=#2", env.door); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := env.svc.Get(gamedb.LockBasic, env.door); got != "=#2" {
		t.Errorf("stored lock = %q, want %q", got, "=#2")
	}
	if !env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door) {
		t.Error("Finn should pass =#2")
	}
	if env.svc.Evaluate(ctx, gamedb.LockBasic, env.wiz, env.door) {
		t.Error("Wiz should fail =#2")
	}

	// Rewriting replaces the cached predicate immediately.
	if err := env.svc.Set(ctx, gamedb.LockBasic, "=#1", env.door); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door) {
		t.Error("Finn should fail after the rewrite")
	}
	if !env.svc.Evaluate(ctx, gamedb.LockBasic, env.wiz, env.door) {
		t.Error("Wiz should pass after the rewrite")
	}
}

func TestSetRejectsMalformedAndKeepsOldLock(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)

	if err := env.svc.Set(ctx, gamedb.LockBasic, "=#2", env.door); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := env.svc.Set(ctx, gamedb.LockBasic, "(#TRUE", env.door); err == nil {
		t.Fatal("Set accepted an unbalanced lock")
	}

	// The failed write changed nothing.
	if got := env.svc.Get(gamedb.LockBasic, env.door); got != "=#2" {
		t.Errorf("stored lock = %q after failed Set, want %q", got, "=#2")
	}
	if !env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door) {
		t.Error("prior lock should still admit Finn")
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)

	if err := env.svc.Set(ctx, gamedb.LockBasic, "=#1", env.door); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door) {
		t.Fatal("Finn should fail =#1")
	}

	// An out-of-band rewrite is invisible until the cache entry drops.
	env.db.ClearLock(env.door.Ref, gamedb.LockBasic)
	env.svc.Invalidate(env.door.Ref, gamedb.LockBasic)
	if !env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door) {
		t.Error("cleared lock should pass everyone")
	}
}

func TestEvaluateEFailsClosed(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)

	// A dangling owner reference fails evaluation, not compilation.
	if err := env.svc.Set(ctx, gamedb.LockBasic, "$#99", env.door); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := env.svc.EvaluateE(ctx, gamedb.LockBasic, env.finn, env.door)
	if ok {
		t.Error("a failing lock must evaluate closed")
	}
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("got %v, want *EvalError", err)
	}
	if ee.Target != env.door.Ref || ee.LockType != gamedb.LockBasic {
		t.Errorf("EvalError names %s/%s, want %s/%s", ee.Target, ee.LockType, env.door.Ref, gamedb.LockBasic)
	}
}

func TestEvaluateString(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)
	if !env.svc.EvaluateString(ctx, "=#2", env.finn, env.door) {
		t.Error("Finn should pass the ad hoc lock")
	}
	if env.svc.EvaluateString(ctx, "(#TRUE", env.finn, env.door) {
		t.Error("a malformed ad hoc lock must fail closed")
	}
}

func TestEvaluateAllCompilesOnce(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)
	_, _, before, _ := env.svc.Stats()

	got := env.svc.EvaluateAll(ctx, gamedb.LockBasic,
		[]*gamedb.Object{env.finn, env.wiz}, env.door)
	want := []bool{true, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subject %d: got %v, want %v", i, got[i], want[i])
		}
	}

	_, _, after, _ := env.svc.Stats()
	if after != before+1 {
		t.Errorf("compiles went %d to %d, want exactly one", before, after)
	}
}

func TestStatsCounters(t *testing.T) {
	ctx := context.Background()
	env := newLockEnv(t)

	env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door) // miss + compile
	env.svc.Evaluate(ctx, gamedb.LockBasic, env.wiz, env.door)  // hit

	hits, misses, compiles, evalErrors := env.svc.Stats()
	if hits != 1 || misses != 1 || compiles != 1 {
		t.Errorf("hits=%d misses=%d compiles=%d, want 1/1/1", hits, misses, compiles)
	}
	if evalErrors != 0 {
		t.Errorf("evalErrors = %d, want 0", evalErrors)
	}

	if err := env.svc.Set(ctx, gamedb.LockBasic, "$#99", env.door); err != nil {
		t.Fatalf("Set: %v", err)
	}
	env.svc.Evaluate(ctx, gamedb.LockBasic, env.finn, env.door)
	_, _, _, evalErrors = env.svc.Stats()
	if evalErrors != 1 {
		t.Errorf("evalErrors = %d after a dangling reference, want 1", evalErrors)
	}
}
