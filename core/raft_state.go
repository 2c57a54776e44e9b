package core

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	raft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

var (
	raftStateBucket = []byte("state")
	raftStateKey    = []byte("current")
)

// UnappliedCursor tracks which committed WAL entries still need applying.
// Cursor ranges over [First, Last+1]; Cursor == Last+1 means fully caught up.
type UnappliedCursor struct {
	First  uint64 `cbor:"first"`
	Last   uint64 `cbor:"last"`
	Cursor uint64 `cbor:"cursor"`
}

// raftStateDisk is the CBOR-serializable form persisted in bbolt. HardState
// and ConfState are the plain protobuf-generated structs from raftpb; cbor
// encodes their exported fields directly (the same way fxamacker/cbor is
// used elsewhere in this module for ConsensusOperation and StateSnapshot).
type raftStateDisk struct {
	HardState       raftpb.HardState  `cbor:"hard_state"`
	ConfState       raftpb.ConfState  `cbor:"conf_state"`
	PeerAddressByID map[uint64]string `cbor:"peer_address_by_id"`
	ThisPeerID      uint64            `cbor:"this_peer_id"`
	Unapplied       UnappliedCursor   `cbor:"unapplied"`
}

// RaftPersistentState is C2: durable hard-state, conf-state, peer-address
// map, and applied-index cursor for one peer.
type RaftPersistentState struct {
	mu    sync.Mutex
	db    *bolt.DB
	state raftStateDisk
}

// LoadOrInit opens (or creates) the persistent raft state under dir. If no
// state exists yet, a fresh random peer identity is minted, whether or not
// firstPeer is set; firstPeer is not read here. An existing identity is
// always preserved as-is.
func LoadOrInit(dir string, firstPeer *bool) (*RaftPersistentState, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raft state dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "state.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open raft state db: %w", err)
	}
	s := &RaftPersistentState{db: db}

	var existing []byte
	if err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(raftStateBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(raftStateKey); v != nil {
			existing = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("read raft state: %w", err)
	}

	if existing != nil {
		if err := cbor.Unmarshal(existing, &s.state); err != nil {
			db.Close()
			return nil, fmt.Errorf("decode raft state: %w", err)
		}
		return s, nil
	}

	peerID, err := randomPeerID()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mint peer id: %w", err)
	}
	s.state = raftStateDisk{
		PeerAddressByID: make(map[uint64]string),
		ThisPeerID:      peerID,
	}
	_ = firstPeer // recorded by the caller's ConsensusEnabled wiring, not needed again here
	if err := s.persist(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist initial raft state: %w", err)
	}
	return s, nil
}

func randomPeerID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// persist must be called with mu held.
func (s *RaftPersistentState) persist() error {
	data, err := cbor.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("encode raft state: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(raftStateBucket)
		if err != nil {
			return err
		}
		return b.Put(raftStateKey, data)
	})
}

// State returns a copy of the current raft.RaftState (hard state + conf
// state), as consumed by the consensus engine's InitialState query.
func (s *RaftPersistentState) State() raft.RaftState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return raft.RaftState{
		HardState: s.state.HardState,
		ConfState: s.state.ConfState,
	}
}

// ApplyStateUpdate mutates the in-memory hard/conf state via fn, persists
// the result, and only then commits the mutation to the in-memory copy that
// subsequent readers observe.
func (s *RaftPersistentState) ApplyStateUpdate(fn func(*raftStateDisk)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	fn(&next)
	prev := s.state
	s.state = next
	if err := s.persist(); err != nil {
		s.state = prev
		return errService("persist raft state update", err)
	}
	return nil
}

// SetPeerAddressByID replaces the whole peer address map (used on snapshot
// apply).
func (s *RaftPersistentState) SetPeerAddressByID(addrs map[uint64]string) error {
	return s.ApplyStateUpdate(func(st *raftStateDisk) {
		cp := make(map[uint64]string, len(addrs))
		for k, v := range addrs {
			cp[k] = v
		}
		st.PeerAddressByID = cp
	})
}

// InsertPeer records or overwrites one peer's URI.
func (s *RaftPersistentState) InsertPeer(id uint64, uri string) error {
	return s.ApplyStateUpdate(func(st *raftStateDisk) {
		cp := make(map[uint64]string, len(st.PeerAddressByID)+1)
		for k, v := range st.PeerAddressByID {
			cp[k] = v
		}
		cp[id] = uri
		st.PeerAddressByID = cp
	})
}

// PeerAddressByID returns a copy of the peer address map.
func (s *RaftPersistentState) PeerAddressByID() map[uint64]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[uint64]string, len(s.state.PeerAddressByID))
	for k, v := range s.state.PeerAddressByID {
		cp[k] = v
	}
	return cp
}

// ThisPeerID returns this peer's frozen identity.
func (s *RaftPersistentState) ThisPeerID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ThisPeerID
}

// SetUnappliedEntries marks [first, last] as the range awaiting apply and
// resets the cursor to first.
func (s *RaftPersistentState) SetUnappliedEntries(first, last uint64) error {
	return s.ApplyStateUpdate(func(st *raftStateDisk) {
		st.Unapplied = UnappliedCursor{First: first, Last: last, Cursor: first}
	})
}

// CurrentUnappliedEntry returns the next index awaiting apply, or ok=false
// once the cursor has passed Last.
func (s *RaftPersistentState) CurrentUnappliedEntry() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.state.Unapplied
	if u.Cursor > u.Last || u.Last == 0 {
		return 0, false
	}
	return u.Cursor, true
}

// EntryApplied advances the cursor by exactly one.
func (s *RaftPersistentState) EntryApplied() error {
	return s.ApplyStateUpdate(func(st *raftStateDisk) {
		st.Unapplied.Cursor++
	})
}

// Close releases the underlying bbolt file.
func (s *RaftPersistentState) Close() error {
	return s.db.Close()
}
