package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var aliasBucket = []byte("aliases")

// AliasStore is C3: the durable alias -> collection name mapping, rooted at
// <storage>/aliases/aliases.db. Resolution of a name that might be an alias
// happens above this type (ToC.Resolve in toc.go); AliasStore only owns the mapping
// itself, the same separation integration_registry.go draws between the
// name table and its RWMutex-guarded map.
type AliasStore struct {
	mu      sync.RWMutex
	db      *bolt.DB
	aliases map[string]string
}

// OpenAliasStore opens (creating if absent) the alias store under dir and
// loads its contents into memory.
func OpenAliasStore(dir string) (*AliasStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create alias store dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "aliases.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open alias store db: %w", err)
	}
	a := &AliasStore{db: db, aliases: make(map[string]string)}
	if err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(aliasBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			a.aliases[string(k)] = string(v)
			return nil
		})
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	return a, nil
}

// Resolve returns the collection name an alias points at, if alias is known.
func (a *AliasStore) Resolve(alias string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	name, ok := a.aliases[alias]
	return name, ok
}

// CreateAlias binds alias to collection, failing if the alias already
// exists (collections and their aliases share the same check-then-set
// discipline as registry.go's collection creation).
func (a *AliasStore) CreateAlias(alias, collection string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.aliases[alias]; exists {
		return errAliasAlreadyExists(alias)
	}
	if err := a.put(alias, collection); err != nil {
		return err
	}
	a.aliases[alias] = collection
	return nil
}

// RenameAlias renames the alias key itself from old to new, preserving
// whatever collection old pointed at; new is overwritten silently if it
// already existed. One bbolt Update transaction makes the delete+put atomic.
func (a *AliasStore) RenameAlias(old, new string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	collection, exists := a.aliases[old]
	if !exists {
		return errAliasNotFound(old)
	}
	if err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(aliasBucket)
		if err := b.Delete([]byte(old)); err != nil {
			return err
		}
		return b.Put([]byte(new), []byte(collection))
	}); err != nil {
		return errService("rename alias", err)
	}
	delete(a.aliases, old)
	a.aliases[new] = collection
	return nil
}

// DeleteAlias removes alias if present; deleting an unknown alias is a
// no-op, matching the distilled system's idempotent alias delete.
func (a *AliasStore) DeleteAlias(alias string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.aliases[alias]; !exists {
		return nil
	}
	if err := a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(aliasBucket).Delete([]byte(alias))
	}); err != nil {
		return errService("delete alias", err)
	}
	delete(a.aliases, alias)
	return nil
}

// DeleteAliasesForCollection drops every alias currently pointing at
// collection, used when the collection itself is deleted.
func (a *AliasStore) DeleteAliasesForCollection(collection string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var toDelete []string
	for alias, name := range a.aliases {
		if name == collection {
			toDelete = append(toDelete, alias)
		}
	}
	if len(toDelete) == 0 {
		return nil
	}
	if err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(aliasBucket)
		for _, alias := range toDelete {
			if err := b.Delete([]byte(alias)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return errService("delete aliases for collection", err)
	}
	for _, alias := range toDelete {
		delete(a.aliases, alias)
	}
	return nil
}

// AliasesForCollection lists every alias currently pointing at collection.
func (a *AliasStore) AliasesForCollection(collection string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []string
	for alias, name := range a.aliases {
		if name == collection {
			out = append(out, alias)
		}
	}
	return out
}

// ListAll returns a copy of the full alias -> collection mapping.
func (a *AliasStore) ListAll() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cp := make(map[string]string, len(a.aliases))
	for k, v := range a.aliases {
		cp[k] = v
	}
	return cp
}

// ReplaceAll atomically overwrites the whole alias table, used when
// applying a cluster snapshot.
func (a *AliasStore) ReplaceAll(next map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(aliasBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucket(aliasBucket)
		if err != nil {
			return err
		}
		for alias, collection := range next {
			if err := b.Put([]byte(alias), []byte(collection)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return errService("replace alias table", err)
	}
	cp := make(map[string]string, len(next))
	for k, v := range next {
		cp[k] = v
	}
	a.aliases = cp
	return nil
}

func (a *AliasStore) put(alias, collection string) error {
	if err := a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(aliasBucket).Put([]byte(alias), []byte(collection))
	}); err != nil {
		return errService("write alias", err)
	}
	return nil
}

// Close releases the underlying bbolt file.
func (a *AliasStore) Close() error {
	return a.db.Close()
}
