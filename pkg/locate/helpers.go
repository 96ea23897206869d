package locate

import (
	"context"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// FriendlyWhereIs is the effective container reference: rooms are their own
// container, exits live in their Home, everything else in its Location.
func FriendlyWhereIs(obj *gamedb.Object) gamedb.DBRef {
	switch {
	case obj.IsRoom():
		return obj.Ref
	case obj.IsExit():
		return obj.Home
	default:
		return obj.Location
	}
}

// WhereIs is the raw location: Nothing for rooms, Home for exits, Location
// otherwise.
func WhereIs(obj *gamedb.Object) gamedb.DBRef {
	if obj.IsRoom() {
		return gamedb.Nothing
	}
	if obj.IsExit() {
		return obj.Home
	}
	return obj.Location
}

// nonExitsOf filters exits out of a contents list. Exits hang off their
// Home room's contents, but name matching reaches them only through the
// exit pools.
func nonExitsOf(contents []*gamedb.Object) []*gamedb.Object {
	out := contents[:0:0]
	for _, obj := range contents {
		if !obj.IsExit() {
			out = append(out, obj)
		}
	}
	return out
}

// whereObj resolves the effective container of obj to a live object.
func (r *Resolver) whereObj(ctx context.Context, obj *gamedb.Object) *gamedb.Object {
	ref := FriendlyWhereIs(obj)
	if ref == obj.Ref {
		return obj
	}
	loc, ok := r.db.GetObjectNode(ctx, ref)
	if !ok {
		return nil
	}
	return loc
}

// Room walks containers upward until it reaches a room. A dangling location
// or a containment cycle yields nil rather than an infinite walk.
func (r *Resolver) Room(ctx context.Context, content *gamedb.Object) *gamedb.Object {
	cur := r.whereObj(ctx, content)
	seen := make(map[int]bool)
	for cur != nil && !cur.IsRoom() {
		if seen[cur.Ref.Num] {
			return nil
		}
		seen[cur.Ref.Num] = true
		next, ok := r.db.GetObjectNode(ctx, FriendlyWhereIs(cur))
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Nearby reports whether a and b share an effective container or one
// contains the other. Symmetric by construction; two rooms are never nearby.
func Nearby(a, b *gamedb.Object) bool {
	if a == nil || b == nil {
		return false
	}
	if a.IsRoom() && b.IsRoom() {
		return false
	}
	loc1 := FriendlyWhereIs(a)
	if loc1.SameNum(b.Ref) {
		return true
	}
	loc2 := FriendlyWhereIs(b)
	return loc2.SameNum(a.Ref) || loc2.SameNum(loc1)
}
