package gamedb

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Snapshot is the read-only view of the containment graph the resolution
// engine depends on. Implementations must tolerate concurrent mutation of
// the underlying graph between calls; a reference that no longer resolves
// simply returns ok=false.
type Snapshot interface {
	// GetObjectNode resolves a reference, honoring the creation-timestamp
	// rule: a stale timestamp never matches a recycled number.
	GetObjectNode(ctx context.Context, ref DBRef) (*Object, bool)
	// GetContents returns the objects directly inside a container, in
	// stable per-call order.
	GetContents(ctx context.Context, container DBRef) []*Object
	// GetPlayersByName returns players whose name or alias matches name
	// exactly, case-insensitively.
	GetPlayersByName(ctx context.Context, name string) []*Object
}

// Database is the in-memory containment graph. Reads take the lock shared;
// mutation takes it exclusively, so a Locate call in flight sees a coherent
// graph per read even while commands move objects around.
type Database struct {
	mu       sync.RWMutex
	objects  map[int]*Object
	contents map[int][]DBRef
	nextNum  int
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		objects:  make(map[int]*Object),
		contents: make(map[int][]DBRef),
	}
}

// Add inserts an object, indexing it into its container's contents. The
// object's Ref must already carry its number and creation timestamp.
func (db *Database) Add(obj *Object) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.objects[obj.Ref.Num] = obj
	if obj.Ref.Num >= db.nextNum {
		db.nextNum = obj.Ref.Num + 1
	}
	if loc := db.containerOf(obj); !loc.IsNothing() {
		db.contents[loc.Num] = append(db.contents[loc.Num], obj.Ref)
	}
}

// NextRef allocates the next free object number with the current time as
// its creation timestamp.
func (db *Database) NextRef() DBRef {
	db.mu.Lock()
	defer db.mu.Unlock()
	ref := DBRef{Num: db.nextNum, Created: time.Now().Unix()}
	db.nextNum++
	return ref
}

// Remove deletes an object and unlinks it from its container.
func (db *Database) Remove(ref DBRef) {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref.Num]
	if !ok || !ref.Matches(obj.Ref) {
		return
	}
	if loc := db.containerOf(obj); !loc.IsNothing() {
		db.unlink(loc, obj.Ref)
	}
	delete(db.objects, ref.Num)
	delete(db.contents, ref.Num)
}

// Move relocates an object to a new container. For exits this rewrites Home.
func (db *Database) Move(ref, dest DBRef) {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref.Num]
	if !ok || !ref.Matches(obj.Ref) {
		return
	}
	if old := db.containerOf(obj); !old.IsNothing() {
		db.unlink(old, obj.Ref)
	}
	if obj.IsExit() {
		obj.Home = dest
	} else {
		obj.Location = dest
	}
	obj.Modified = time.Now()
	db.contents[dest.Num] = append(db.contents[dest.Num], obj.Ref)
}

// SetLock stores a lock entry on an object. Implements the write half of the
// lock service's persistence contract for the in-memory graph.
func (db *Database) SetLock(ref DBRef, lockType LockType, lockString string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref.Num]
	if !ok || !ref.Matches(obj.Ref) {
		return nil
	}
	if obj.Locks == nil {
		obj.Locks = make(map[LockType]LockEntry)
	}
	obj.Locks[lockType] = LockEntry{LockString: lockString}
	obj.Modified = time.Now()
	return nil
}

// ClearLock removes a lock entry, reverting the type to its default.
func (db *Database) ClearLock(ref DBRef, lockType LockType) {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref.Num]
	if ok && ref.Matches(obj.Ref) {
		delete(obj.Locks, lockType)
		obj.Modified = time.Now()
	}
}

// GetObjectNode implements Snapshot.
func (db *Database) GetObjectNode(_ context.Context, ref DBRef) (*Object, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref.Num]
	if !ok || !ref.Matches(obj.Ref) {
		return nil, false
	}
	return obj, true
}

// GetContents implements Snapshot.
func (db *Database) GetContents(_ context.Context, container DBRef) []*Object {
	db.mu.RLock()
	defer db.mu.RUnlock()
	refs := db.contents[container.Num]
	out := make([]*Object, 0, len(refs))
	for _, r := range refs {
		if obj, ok := db.objects[r.Num]; ok && r.Matches(obj.Ref) {
			out = append(out, obj)
		}
	}
	return out
}

// GetPlayersByName implements Snapshot.
func (db *Database) GetPlayersByName(_ context.Context, name string) []*Object {
	db.mu.RLock()
	defer db.mu.RUnlock()
	name = strings.TrimSpace(name)
	var out []*Object
	for _, obj := range db.objects {
		if obj.IsPlayer() && obj.NameMatch(name) {
			out = append(out, obj)
		}
	}
	return out
}

// All returns every object, for persistence sweeps and seeding checks.
func (db *Database) All() []*Object {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Object, 0, len(db.objects))
	for _, obj := range db.objects {
		out = append(out, obj)
	}
	return out
}

// Size returns the number of live objects.
func (db *Database) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.objects)
}

// containerOf mirrors the resolver's effective-container rule: rooms have
// none, exits live at their Home, everything else at its Location.
func (db *Database) containerOf(obj *Object) DBRef {
	switch {
	case obj.IsRoom():
		return Nothing
	case obj.IsExit():
		return obj.Home
	default:
		return obj.Location
	}
}

func (db *Database) unlink(container, ref DBRef) {
	refs := db.contents[container.Num]
	for i, r := range refs {
		if r.Num == ref.Num {
			db.contents[container.Num] = append(refs[:i], refs[i+1:]...)
			return
		}
	}
}
