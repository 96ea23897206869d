package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func sampleObject(num int, typ gamedb.ObjectType, name string) *gamedb.Object {
	return &gamedb.Object{
		Ref:         gamedb.DBRef{Num: num, Created: 100},
		Type:        typ,
		Name:        name,
		Location:    gamedb.Nothing,
		Home:        gamedb.Nothing,
		Destination: gamedb.Nothing,
		Owner:       gamedb.DBRef{Num: num, Created: 100},
		Zone:        gamedb.Nothing,
		Flags:       gamedb.NewNameSet("WIZARD"),
		Attrs: map[string]gamedb.Attribute{
			"DESCRIBE": {Name: "DESCRIBE", Value: "a test object"},
		},
		Locks: map[gamedb.LockType]gamedb.LockEntry{
			gamedb.LockBasic: {LockString: "=#1"},
		},
		Pennies:  42,
		Modified: time.Unix(1000, 0).UTC(),
	}
}

func TestPutAndLoadRoundTrip(t *testing.T) {
	store, path := openTestStore(t)

	obj := sampleObject(5, gamedb.TypePlayer, "Finn")
	obj.Aliases = []string{"F"}
	obj.Password = []byte("$2a$10$fakehash")
	if err := store.PutObject(obj); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	got, ok := reopened.DB().GetObjectNode(context.Background(), obj.Ref)
	if !ok {
		t.Fatal("object missing after reload")
	}
	if got.Name != "Finn" || got.Type != gamedb.TypePlayer || got.Pennies != 42 {
		t.Errorf("reloaded object = %+v", got)
	}
	if !got.Flags.Has("wizard") {
		t.Error("flag set lost its entries")
	}
	if a, ok := got.Attr("describe"); !ok || a.Value != "a test object" {
		t.Error("attribute lost in the round trip")
	}
	if got.Lock(gamedb.LockBasic).LockString != "=#1" {
		t.Error("lock entry lost in the round trip")
	}
	if string(got.Password) != "$2a$10$fakehash" {
		t.Error("password hash lost in the round trip")
	}
}

func TestHasData(t *testing.T) {
	store, _ := openTestStore(t)
	if store.HasData() {
		t.Error("a fresh store should report no data")
	}
	if err := store.PutObject(sampleObject(1, gamedb.TypeRoom, "Hall")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if !store.HasData() {
		t.Error("HasData should see the stored object")
	}
}

func TestDeleteObject(t *testing.T) {
	store, _ := openTestStore(t)
	obj := sampleObject(7, gamedb.TypeThing, "ball")
	store.DB().Add(obj)
	if err := store.PutObject(obj); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if err := store.DeleteObject(obj.Ref); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, ok := store.DB().GetObjectNode(context.Background(), obj.Ref); ok {
		t.Error("object still in the cache after delete")
	}
	if store.HasData() {
		t.Error("object still in bbolt after delete")
	}
}

func TestSetLockWritesThrough(t *testing.T) {
	store, path := openTestStore(t)
	obj := sampleObject(7, gamedb.TypeThing, "door")
	obj.Locks = nil
	store.DB().Add(obj)
	if err := store.PutObject(obj); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if err := store.SetLock(obj.Ref, gamedb.LockBasic, "=#2"); err != nil {
		t.Fatalf("SetLock: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	got, ok := reopened.DB().GetObjectNode(context.Background(), obj.Ref)
	if !ok {
		t.Fatal("object missing after reload")
	}
	if got.Lock(gamedb.LockBasic).LockString != "=#2" {
		t.Errorf("lock = %q after reload, want %q", got.Lock(gamedb.LockBasic).LockString, "=#2")
	}

	// Clearing restores the default.
	if err := reopened.ClearLock(obj.Ref, gamedb.LockBasic); err != nil {
		t.Fatalf("ClearLock: %v", err)
	}
	got, _ = reopened.DB().GetObjectNode(context.Background(), obj.Ref)
	if got.Lock(gamedb.LockBasic).LockString != gamedb.DefaultLockString {
		t.Error("cleared lock should fall back to the default")
	}
}

func TestImportFromDatabase(t *testing.T) {
	store, path := openTestStore(t)

	db := gamedb.NewDatabase()
	db.Add(sampleObject(0, gamedb.TypeRoom, "Room Zero"))
	db.Add(sampleObject(1, gamedb.TypePlayer, "God"))
	db.Add(sampleObject(2, gamedb.TypeThing, "ball"))

	if err := store.ImportFromDatabase(db); err != nil {
		t.Fatalf("ImportFromDatabase: %v", err)
	}
	if store.DB() != db {
		t.Error("import should adopt the database as the cache")
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if n := reopened.DB().Size(); n != 3 {
		t.Errorf("reloaded %d objects, want 3", n)
	}
}

func TestBackup(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.PutObject(sampleObject(1, gamedb.TypeRoom, "Hall")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	if err := store.Backup(backupPath); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	restored, err := Open(backupPath)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer restored.Close()
	if !restored.HasData() {
		t.Error("backup is missing the stored object")
	}
}
