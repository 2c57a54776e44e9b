package core

import (
	"os"
	"path/filepath"

	raft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

// StoreOtherError wraps any lock-poisoning-equivalent or decode failure
// surfaced through the raft storage adapter into a single variant, matching
// "All lock poisoning and decoding errors are mapped to a single StoreOther
// variant" (§4.7) and the original's raft_error_other helper.
type StoreOtherError struct {
	Err error
}

func (e *StoreOtherError) Error() string { return "raft storage: " + e.Err.Error() }
func (e *StoreOtherError) Unwrap() error { return e.Err }

func errOther(err error) error { return &StoreOtherError{Err: err} }

// ErrSnapshotTemporarilyUnavailable is returned by Snapshot when the
// requested index has not yet committed locally.
var ErrSnapshotTemporarilyUnavailable = errStorageUnavailable("snapshot temporarily unavailable", nil)

// InitialState returns a copy of C2's hard/conf state, run on the
// management executor so a synchronous raft callback never races a
// concurrent ApplyEntries.
func (t *ToC) InitialState() (raftpb.HardState, raftpb.ConfState, error) {
	value, err := t.mgmtExec.Submit(func() (interface{}, error) {
		s := t.raftState.State()
		return s, nil
	})
	if err != nil {
		return raftpb.HardState{}, raftpb.ConfState{}, errOther(err)
	}
	state := value.(raft.RaftState)
	return state.HardState, state.ConfState, nil
}

// Entries decodes the half-open WAL range [low, high) as raftpb.Entry
// values, bounded in count (not bytes) by maxSize.
func (t *ToC) Entries(low, high, maxSize uint64) ([]raftpb.Entry, error) {
	value, err := t.mgmtExec.Submit(func() (interface{}, error) {
		var out []raftpb.Entry
		for idx := low; idx < high; idx++ {
			if maxSize > 0 && uint64(len(out)) >= maxSize {
				break
			}
			raw, ok := t.wal.Entry(idx - 1)
			if !ok {
				return nil, errStorageUnavailable("wal index out of range", nil)
			}
			var e raftpb.Entry
			if err := e.Unmarshal(raw); err != nil {
				return nil, errOther(err)
			}
			out = append(out, e)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]raftpb.Entry), nil
}

// Term returns the term of the entry at idx: the fast path short-circuits
// when idx is the already-committed index (hard_state.commit), otherwise
// the entry is decoded from the WAL.
func (t *ToC) Term(idx uint64) (uint64, error) {
	value, err := t.mgmtExec.Submit(func() (interface{}, error) {
		hardState := t.raftState.State().HardState
		if idx == hardState.Commit {
			return hardState.Term, nil
		}
		raw, ok := t.wal.Entry(idx - 1)
		if !ok {
			return uint64(0), errStorageUnavailable("wal index out of range", nil)
		}
		var e raftpb.Entry
		if err := e.Unmarshal(raw); err != nil {
			return uint64(0), errOther(err)
		}
		return e.Term, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(uint64), nil
}

// FirstIndex is the 1-based index of the oldest queryable WAL entry.
func (t *ToC) FirstIndex() uint64 {
	return t.wal.FirstIndex() + 1
}

// LastIndex is the 1-based index of the newest WAL entry.
func (t *ToC) LastIndex() uint64 {
	return t.wal.NumEntries()
}

// Snapshot builds a StateSnapshot from the registry, alias store, and raft
// state if the local commit index has caught up to requestIndex; otherwise
// it fails with ErrSnapshotTemporarilyUnavailable.
func (t *ToC) Snapshot(requestIndex uint64) (raftpb.Snapshot, error) {
	value, err := t.mgmtExec.Submit(func() (interface{}, error) {
		hardState, confState := t.raftState.State().HardState, t.raftState.State().ConfState
		if hardState.Commit < requestIndex {
			return nil, ErrSnapshotTemporarilyUnavailable
		}

		collections := make(map[string]CollectionState)
		for name, col := range t.registry.Snapshot() {
			collections[name] = col.State()
		}
		snap := &StateSnapshot{
			Collections: collections,
			Aliases:     t.aliases.ListAll(),
			AddressByID: t.raftState.PeerAddressByID(),
		}
		data, err := snap.Encode()
		if err != nil {
			return nil, errOther(err)
		}
		return raftpb.Snapshot{
			Data: data,
			Metadata: raftpb.SnapshotMetadata{
				ConfState: confState,
				Index:     hardState.Commit,
				Term:      hardState.Term,
			},
		}, nil
	})
	if err != nil {
		return raftpb.Snapshot{}, err
	}
	return value.(raftpb.Snapshot), nil
}

// ApplyEntries drains every committed-but-unapplied WAL entry in order,
// dispatching Normal entries to ApplyNormalEntry and ConfChangeV2 entries to
// applyConfChange (the caller's *raft.RawNode.ApplyConfChange, kept
// parameterized here since the raft core algorithm itself is an
// out-of-scope collaborator). Per-entry errors are logged and the loop
// continues; consensus progress must never stall on one bad entry.
func (t *ToC) ApplyEntries(applyConfChange func(raftpb.ConfChangeV2) (*raftpb.ConfState, error)) error {
	for {
		idx, ok := t.raftState.CurrentUnappliedEntry()
		if !ok {
			return nil
		}

		raw, ok := t.wal.Entry(idx - 1)
		if !ok {
			t.logApplyError(idx, errStorageUnavailable("wal entry missing during apply", nil))
			if err := t.raftState.EntryApplied(); err != nil {
				return err
			}
			continue
		}

		var entry raftpb.Entry
		if err := entry.Unmarshal(raw); err != nil {
			t.logApplyError(idx, err)
			if err := t.raftState.EntryApplied(); err != nil {
				return err
			}
			continue
		}

		if len(entry.Data) == 0 {
			// Leader-election no-op marker: nothing to apply.
		} else {
			switch entry.Type {
			case raftpb.EntryNormal:
				if _, err := t.ApplyNormalEntry(entry.Data); err != nil {
					t.logApplyError(idx, err)
				}
			case raftpb.EntryConfChangeV2:
				var cc raftpb.ConfChangeV2
				if err := cc.Unmarshal(entry.Data); err != nil {
					t.logApplyError(idx, err)
				} else if applyConfChange != nil {
					confState, err := applyConfChange(cc)
					if err != nil {
						t.logApplyError(idx, err)
					} else if confState != nil {
						_ = t.raftState.ApplyStateUpdate(func(s *raftStateDisk) {
							s.ConfState = *confState
						})
					}
				}
			}
		}

		if err := t.raftState.EntryApplied(); err != nil {
			return err
		}
	}
}

func (t *ToC) logApplyError(idx uint64, err error) {
	if t.log != nil {
		t.log.WithError(err).WithField("index", idx).Warn("apply_entries: skipping malformed entry")
	}
}

// AppendEntries takes the WAL mutex implicitly (MetaWAL.Append is
// serialized internally) and appends each entry in turn, asserting the WAL
// ordering invariant appended_index+1 == entry.Index. A violation is a
// programmer error and panics rather than returning an error, matching
// §4.8's "Any violation is a fatal programmer error".
func (t *ToC) AppendEntries(entries []raftpb.Entry) error {
	for _, e := range entries {
		data, err := e.Marshal()
		if err != nil {
			return errOther(err)
		}
		pos, err := t.wal.Append(data)
		if err != nil {
			return errStorageUnavailable("append wal entry", err)
		}
		if pos+1 != e.Index {
			panic("wal ordering invariant violated: appended index does not match entry.Index")
		}
	}
	return nil
}

// ApplySnapshot decodes a StateSnapshot and reconciles local state against
// it entirely on the management executor, so it is never interleaved with a
// concurrent CreateCollection (§E.3).
func (t *ToC) ApplySnapshot(data []byte, confState raftpb.ConfState, commit, term uint64) error {
	_, err := t.mgmtExec.Submit(func() (interface{}, error) {
		snap, err := DecodeStateSnapshot(data)
		if err != nil {
			return nil, err
		}

		if err := t.raftState.SetPeerAddressByID(snap.AddressByID); err != nil {
			return nil, err
		}

		removed, err := t.registry.ApplySnapshot(
			snap.Collections,
			func(name string, state CollectionState) (*Collection, error) {
				// StateSnapshot carries only lifecycle state per §3, not full
				// collection params — a snapshot is registry/alias catch-up,
				// not a substitute for the Create operation that normally
				// precedes it. A single-shard placeholder is created here;
				// the real geometry arrives (or already arrived) via a
				// replicated CreateCollection entry.
				dir := filepath.Join(t.storageCfg.StoragePath, "collections", name)
				placeholder := CollectionParams{VectorSize: 0, Distance: DistanceCosine, ShardNumber: 1}
				col, err := NewCollection(dir, name, placeholder, t.storageCfg.WAL, t.storageCfg.Optimizers, t.storageCfg.HnswIndex, t.pipeline)
				if err != nil {
					return nil, err
				}
				col.SetState(state)
				return col, nil
			},
			func(col *Collection, state CollectionState) bool {
				return col.State() != state
			},
			func(col *Collection, state CollectionState) error {
				col.SetState(state)
				return nil
			},
		)
		if err != nil {
			return nil, err
		}
		for _, col := range removed {
			if err := os.RemoveAll(col.Dir()); err != nil && t.log != nil {
				t.log.WithError(err).WithField("collection", col.Name()).Warn("apply_snapshot: failed removing stale collection dir")
			}
		}

		if err := t.aliases.ReplaceAll(snap.Aliases); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	return t.raftState.ApplyStateUpdate(func(s *raftStateDisk) {
		s.HardState.Commit = commit
		s.HardState.Term = term
		s.ConfState = confState
	})
}
