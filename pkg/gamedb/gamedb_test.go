package gamedb

import (
	"context"
	"testing"
)

func TestDBRefMatches(t *testing.T) {
	live := DBRef{Num: 42, Created: 1690000000}

	if !(DBRef{Num: 42}).Matches(live) {
		t.Error("short-form reference should match the current holder of the number")
	}
	if !(DBRef{Num: 42, Created: 1690000000}).Matches(live) {
		t.Error("full objid should match when timestamps agree")
	}
	if (DBRef{Num: 42, Created: 1600000000}).Matches(live) {
		t.Error("stale objid must never match a recycled number")
	}
	if (DBRef{Num: 7, Created: 1690000000}).Matches(live) {
		t.Error("different numbers never match")
	}
}

func TestParseObjRef(t *testing.T) {
	tests := []struct {
		in   string
		want DBRef
		ok   bool
	}{
		{"#123", DBRef{Num: 123}, true},
		{"#123:1690000000", DBRef{Num: 123, Created: 1690000000}, true},
		{" #5 ", DBRef{Num: 5}, true},
		{"#", Nothing, false},
		{"#-1", Nothing, false},
		{"#abc", Nothing, false},
		{"#12:xyz", Nothing, false},
		{"#12:-3", Nothing, false},
		{"123", Nothing, false},
		{"", Nothing, false},
	}
	for _, tt := range tests {
		got, ok := ParseObjRef(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseObjRef(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNameMatch(t *testing.T) {
	obj := &Object{
		Name:    "Grand Hall",
		Aliases: []string{"hall", "gh"},
	}
	for _, name := range []string{"Grand Hall", "grand hall", "HALL", "gh"} {
		if !obj.NameMatch(name) {
			t.Errorf("NameMatch(%q) = false, want true", name)
		}
	}
	if obj.NameMatch("grand") {
		t.Error("NameMatch should require the full name or an alias, not a prefix")
	}
}

func TestMoveAndContents(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()

	room := &Object{Ref: DBRef{Num: 0, Created: 1}, Type: TypeRoom, Name: "Room", Location: Nothing, Home: Nothing}
	other := &Object{Ref: DBRef{Num: 1, Created: 1}, Type: TypeRoom, Name: "Other", Location: Nothing, Home: Nothing}
	box := &Object{Ref: DBRef{Num: 2, Created: 1}, Type: TypeThing, Name: "Box", Location: room.Ref, Home: room.Ref}
	db.Add(room)
	db.Add(other)
	db.Add(box)

	if got := db.GetContents(ctx, room.Ref); len(got) != 1 || got[0].Name != "Box" {
		t.Fatalf("room contents = %v, want [Box]", got)
	}

	db.Move(box.Ref, other.Ref)
	if got := db.GetContents(ctx, room.Ref); len(got) != 0 {
		t.Errorf("room still holds %d objects after move", len(got))
	}
	got := db.GetContents(ctx, other.Ref)
	if len(got) != 1 || !got[0].Ref.SameNum(box.Ref) {
		t.Fatalf("other contents = %v, want [Box]", got)
	}
	if !got[0].Location.SameNum(other.Ref) {
		t.Error("moved object's Location was not rewritten")
	}
}

func TestGetPlayersByName(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()

	finn := &Object{Ref: DBRef{Num: 1, Created: 1}, Type: TypePlayer, Name: "Finn",
		Aliases: []string{"F"}, Location: Nothing, Home: Nothing}
	thing := &Object{Ref: DBRef{Num: 2, Created: 1}, Type: TypeThing, Name: "Finn",
		Location: Nothing, Home: Nothing}
	db.Add(finn)
	db.Add(thing)

	for _, name := range []string{"Finn", "finn", "f"} {
		got := db.GetPlayersByName(ctx, name)
		if len(got) != 1 || !got[0].IsPlayer() {
			t.Errorf("GetPlayersByName(%q) = %v, want the player only", name, got)
		}
	}
	if got := db.GetPlayersByName(ctx, "Jake"); len(got) != 0 {
		t.Errorf("GetPlayersByName(Jake) = %v, want none", got)
	}
}

func TestNextRefSkipsLiveNumbers(t *testing.T) {
	db := NewDatabase()
	db.Add(&Object{Ref: DBRef{Num: 0, Created: 1}, Type: TypeRoom, Name: "R", Location: Nothing, Home: Nothing})
	db.Add(&Object{Ref: DBRef{Num: 1, Created: 1}, Type: TypePlayer, Name: "P", Location: Nothing, Home: Nothing})

	ref := db.NextRef()
	if ref.Num != 2 {
		t.Errorf("NextRef().Num = %d, want 2", ref.Num)
	}
	if ref.Created == 0 {
		t.Error("NextRef must stamp a creation time")
	}
}

func TestNameSet(t *testing.T) {
	s := NewNameSet("wizard", "Dark")
	if !s.Has("WIZARD") || !s.Has("dark") {
		t.Error("NameSet lookups should be case-insensitive")
	}
	s.Remove("WIZARD")
	if s.Has("wizard") {
		t.Error("Remove did not take")
	}
	c := s.Clone()
	c.Add("LIGHT")
	if s.Has("LIGHT") {
		t.Error("Clone must not share storage with the original")
	}
}
