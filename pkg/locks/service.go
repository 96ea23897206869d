// Package locks evaluates and stores object locks. Compiled predicates are
// cached per (object, lock type); the cache entry is atomically replaced
// whenever a lock is rewritten, so evaluation never sees a stale predicate.
package locks

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/silver-mush/gopennmush/pkg/boolexp"
	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// cacheSize bounds the compiled-predicate cache.
const cacheSize = 128

// LockWriter persists a lock write. The in-memory database and the bolt
// store both implement it; the server wires them together.
type LockWriter interface {
	SetLock(ref gamedb.DBRef, lockType gamedb.LockType, lockString string) error
}

// EvalError reports a lock that could not be evaluated for a specific
// (subject, target) pair: the lock fails closed, and diagnostic tooling can
// surface the underlying cause.
type EvalError struct {
	Target   gamedb.DBRef
	LockType gamedb.LockType
	Err      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("lock %s on %s: %v", e.LockType, e.Target, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

type cacheKey struct {
	Num      int
	Created  int64
	LockType gamedb.LockType
}

// Service is the lock evaluator.
type Service struct {
	comp  *boolexp.Compiler
	cache *lru.Cache[cacheKey, boolexp.Predicate]
	store LockWriter

	hits       atomic.Uint64
	misses     atomic.Uint64
	compiles   atomic.Uint64
	evalErrors atomic.Uint64
}

// NewService builds a lock service over the given graph snapshot. store may
// be nil when lock writes need no persistence (tests).
func NewService(db gamedb.Snapshot, store LockWriter) *Service {
	cache, err := lru.New[cacheKey, boolexp.Predicate](cacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Service{
		comp:  &boolexp.Compiler{DB: db},
		cache: cache,
		store: store,
	}
}

// Get returns target's lock string for the given type, defaulting to the
// always-pass lock when absent.
func (s *Service) Get(lockType gamedb.LockType, target *gamedb.Object) string {
	return target.Lock(lockType).LockString
}

// EvaluateString compiles lockString ad hoc and applies it with target as the
// gated object and subject as the unlocker. Any failure fails the lock
// closed.
func (s *Service) EvaluateString(ctx context.Context, lockString string, subject, target *gamedb.Object) bool {
	pred, err := s.comp.Compile(ctx, lockString)
	if err != nil {
		return false
	}
	ok, err := pred(ctx, target, subject)
	if err != nil {
		s.evalErrors.Add(1)
		return false
	}
	return ok
}

// Evaluate applies target's lock of the given type to subject, failing
// closed on any compile or evaluation error.
func (s *Service) Evaluate(ctx context.Context, lockType gamedb.LockType, subject, target *gamedb.Object) bool {
	ok, _ := s.EvaluateE(ctx, lockType, subject, target)
	return ok
}

// EvaluateE is Evaluate with the failure cause preserved: a non-nil error is
// always *EvalError and always accompanies a false result.
func (s *Service) EvaluateE(ctx context.Context, lockType gamedb.LockType, subject, target *gamedb.Object) (bool, error) {
	pred, err := s.predicate(ctx, lockType, target)
	if err != nil {
		return false, &EvalError{Target: target.Ref, LockType: lockType, Err: err}
	}
	ok, err := pred(ctx, target, subject)
	if err != nil {
		s.evalErrors.Add(1)
		return false, &EvalError{Target: target.Ref, LockType: lockType, Err: err}
	}
	return ok, nil
}

// EvaluateAll applies target's lock of the given type to every subject,
// compiling the predicate at most once for the target.
func (s *Service) EvaluateAll(ctx context.Context, lockType gamedb.LockType, subjects []*gamedb.Object, target *gamedb.Object) []bool {
	out := make([]bool, len(subjects))
	pred, err := s.predicate(ctx, lockType, target)
	if err != nil {
		return out
	}
	for i, subj := range subjects {
		ok, err := pred(ctx, target, subj)
		if err != nil {
			s.evalErrors.Add(1)
			continue
		}
		out[i] = ok
	}
	return out
}

// Set validates lockString against lockee, and on success atomically
// replaces the cached predicate and persists the lock. On a validation
// failure nothing changes: not the cache, not the stored lock.
func (s *Service) Set(ctx context.Context, lockType gamedb.LockType, lockString string, lockee *gamedb.Object) error {
	if err := s.comp.Validate(ctx, lockString, lockee); err != nil {
		return err
	}
	pred, err := s.comp.Compile(ctx, lockString)
	if err != nil {
		return err
	}
	s.compiles.Add(1)
	s.cache.Add(s.key(lockee.Ref, lockType), pred)
	if s.store != nil {
		if err := s.store.SetLock(lockee.Ref, lockType, lockString); err != nil {
			return fmt.Errorf("persist lock %s on %s: %w", lockType, lockee.Ref, err)
		}
	}
	return nil
}

// Validate is a pure syntax/reference check; no state changes.
func (s *Service) Validate(ctx context.Context, lockString string, lockee *gamedb.Object) error {
	return s.comp.Validate(ctx, lockString, lockee)
}

// Invalidate drops the cached predicate for one lock. Callers that rewrite
// locks outside Set (e.g. @unlock) must call this immediately.
func (s *Service) Invalidate(ref gamedb.DBRef, lockType gamedb.LockType) {
	s.cache.Remove(s.key(ref, lockType))
}

// Stats returns cache hits, misses, compiles, and evaluation errors.
func (s *Service) Stats() (hits, misses, compiles, evalErrors uint64) {
	return s.hits.Load(), s.misses.Load(), s.compiles.Load(), s.evalErrors.Load()
}

func (s *Service) key(ref gamedb.DBRef, lockType gamedb.LockType) cacheKey {
	return cacheKey{Num: ref.Num, Created: ref.Created, LockType: lockType}
}

// predicate fetches or compiles target's predicate for lockType. Concurrent
// callers may compile the same lock twice; the cache keeps whichever lands
// last, which is harmless since both came from the same lock string.
func (s *Service) predicate(ctx context.Context, lockType gamedb.LockType, target *gamedb.Object) (boolexp.Predicate, error) {
	k := s.key(target.Ref, lockType)
	if pred, ok := s.cache.Get(k); ok {
		s.hits.Add(1)
		return pred, nil
	}
	s.misses.Add(1)
	pred, err := s.comp.Compile(ctx, target.Lock(lockType).LockString)
	if err != nil {
		return nil, err
	}
	s.compiles.Add(1)
	s.cache.Add(k, pred)
	return pred, nil
}
