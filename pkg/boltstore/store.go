// Package boltstore persists the containment graph to a bbolt file and
// keeps the in-memory gamedb.Database as a write-through cache.
package boltstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	bbolt "go.etcd.io/bbolt"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// Store wraps a bbolt database and an in-memory cache for ACID persistence.
type Store struct {
	bolt  *bbolt.DB
	cache *gamedb.Database
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketObjects, bucketPlayers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(keyFormat, numToKey(storeFormat))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{
		bolt:  db,
		cache: gamedb.NewDatabase(),
	}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// DB returns the in-memory database cache.
func (s *Store) DB() *gamedb.Database {
	return s.cache
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// PutObject persists a single object to bbolt (write-through).
func (s *Store) PutObject(obj *gamedb.Object) error {
	data, err := encodeObject(obj)
	if err != nil {
		return fmt.Errorf("boltstore: encode object %s: %w", obj.Ref, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).Put(numToKey(obj.Ref.Num), data)
	})
}

// PutObjects persists multiple objects in a single bbolt transaction.
func (s *Store) PutObjects(objs ...*gamedb.Object) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		for _, obj := range objs {
			if obj == nil {
				continue
			}
			data, err := encodeObject(obj)
			if err != nil {
				return fmt.Errorf("boltstore: encode object %s: %w", obj.Ref, err)
			}
			if err := b.Put(numToKey(obj.Ref.Num), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteObject removes an object from bbolt and the cache.
func (s *Store) DeleteObject(ref gamedb.DBRef) error {
	s.cache.Remove(ref)
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).Delete(numToKey(ref.Num))
	})
}

// SetLock writes a lock through to the cache and the bbolt file. This is the
// persistence half the lock service writes through after validation.
func (s *Store) SetLock(ref gamedb.DBRef, lockType gamedb.LockType, lockString string) error {
	if err := s.cache.SetLock(ref, lockType, lockString); err != nil {
		return err
	}
	obj, ok := s.cache.GetObjectNode(context.Background(), ref)
	if !ok {
		return nil
	}
	return s.PutObject(obj)
}

// ClearLock removes a lock through to the cache and the bbolt file.
func (s *Store) ClearLock(ref gamedb.DBRef, lockType gamedb.LockType) error {
	s.cache.ClearLock(ref, lockType)
	obj, ok := s.cache.GetObjectNode(context.Background(), ref)
	if !ok {
		return nil
	}
	return s.PutObject(obj)
}

// ImportFromDatabase bulk-loads an in-memory Database into bbolt, batching
// 1000 objects per transaction.
func (s *Store) ImportFromDatabase(db *gamedb.Database) error {
	s.cache = db

	all := db.All()
	count := 0
	for i := 0; i < len(all); i += 1000 {
		end := min(i+1000, len(all))
		if err := s.PutObjects(all[i:end]...); err != nil {
			return err
		}
		count += end - i
	}

	if err := s.rebuildPlayerIndex(db); err != nil {
		return fmt.Errorf("boltstore: import player index: %w", err)
	}

	log.Printf("BOLT: imported %d objects", count)
	return nil
}

// rebuildPlayerIndex writes all player name to dbref mappings.
func (s *Store) rebuildPlayerIndex(db *gamedb.Database) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		for _, obj := range db.All() {
			if obj.IsPlayer() {
				if err := b.Put([]byte(strings.ToLower(obj.Name)), numToKey(obj.Ref.Num)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// UpdatePlayerIndex updates the player name index. If oldName is non-empty,
// the old entry is removed first.
func (s *Store) UpdatePlayerIndex(obj *gamedb.Object, oldName string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		if oldName != "" {
			b.Delete([]byte(strings.ToLower(oldName)))
		}
		if obj.IsPlayer() {
			return b.Put([]byte(strings.ToLower(obj.Name)), numToKey(obj.Ref.Num))
		}
		return nil
	})
}

// LoadAll reads the entire bbolt database into the in-memory cache.
func (s *Store) LoadAll() error {
	count := 0
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		return b.ForEach(func(k, v []byte) error {
			obj, err := decodeObject(v)
			if err != nil {
				return fmt.Errorf("decode object #%d: %w", keyToNum(k), err)
			}
			s.cache.Add(obj)
			count++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("boltstore: load objects: %w", err)
	}

	log.Printf("BOLT: loaded %d objects", count)
	return nil
}

// HasData returns true if the bbolt database contains any objects.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketObjects).Stats().KeyN > 0 {
			hasData = true
		}
		return nil
	})
	return hasData
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("BOLT: backup written to %s", path)
		return nil
	})
}
