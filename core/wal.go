package core

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var (
	walEntriesBucket = []byte("entries")
	walMetaBucket    = []byte("meta")
	walNumEntriesKey = []byte("num_entries")
)

// MetaWAL is the append-only, random-read log of serialized consensus
// entries rooted at <storage>/collections_meta_wal (C1). It is backed by a
// single bbolt file; bbolt's commit-time fsync gives the "durable on
// return" guarantee append() requires without any manual flushing.
//
// This implementation never compacts, so first_index() is always 0 — kept
// as an explicit method rather than a hardcoded constant at call sites so a
// future truncation feature has one place to change.
type MetaWAL struct {
	mu         sync.Mutex
	db         *bolt.DB
	numEntries uint64
}

// OpenMetaWAL opens (creating if absent) the metadata WAL at dir/wal.db.
func OpenMetaWAL(dir string) (*MetaWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create wal dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "wal.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open wal db: %w", err)
	}
	w := &MetaWAL{db: db}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(walEntriesBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists(walMetaBucket)
		if err != nil {
			return err
		}
		if v := b.Get(walNumEntriesKey); v != nil {
			w.numEntries = binary.BigEndian.Uint64(v)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init wal buckets: %w", err)
	}
	return w, nil
}

func walKey(index uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, index)
	return k
}

// Append writes data as the next entry and returns its 0-based position.
// Callers deriving a 1-based log index (e.g. a raft entry's Index field)
// use index+1.
func (w *MetaWAL) Append(data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	index := w.numEntries
	err := w.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(walEntriesBucket).Put(walKey(index), data); err != nil {
			return err
		}
		newCount := index + 1
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, newCount)
		return tx.Bucket(walMetaBucket).Put(walNumEntriesKey, buf)
	})
	if err != nil {
		return 0, fmt.Errorf("append wal entry: %w", err)
	}
	w.numEntries = index + 1
	return index, nil
}

// Entry returns the raw bytes at a 0-based position, or ok=false if the
// index is past num_entries (a truncated/never-written tail).
func (w *MetaWAL) Entry(index uint64) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index >= w.numEntries {
		return nil, false
	}
	var out []byte
	_ = w.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(walEntriesBucket).Get(walKey(index))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil
}

// FirstIndex is the 0-based position of the oldest retained entry.
func (w *MetaWAL) FirstIndex() uint64 {
	return 0
}

// NumEntries is the count of entries ever appended (== last 0-based
// position + 1).
func (w *MetaWAL) NumEntries() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.numEntries
}

// Close releases the underlying bbolt file.
func (w *MetaWAL) Close() error {
	return w.db.Close()
}
