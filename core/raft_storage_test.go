package core

import (
	"testing"

	"go.etcd.io/raft/v3/raftpb"
)

func TestToC_InitialStateDefaultsToZeroValue(t *testing.T) {
	toc := newTestToC(t)
	hardState, confState, err := toc.InitialState()
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if hardState.Commit != 0 || hardState.Term != 0 {
		t.Fatalf("fresh hard state = %+v, want zero value", hardState)
	}
	if len(confState.Voters) != 0 {
		t.Fatalf("fresh conf state should have no voters, got %+v", confState)
	}
}

func TestToC_AppendEntriesThenEntriesAndTerm(t *testing.T) {
	toc := newTestToC(t)

	entries := []raftpb.Entry{
		{Index: 1, Term: 1, Type: raftpb.EntryNormal, Data: []byte("a")},
		{Index: 2, Term: 1, Type: raftpb.EntryNormal, Data: []byte("b")},
	}
	if err := toc.AppendEntries(entries); err != nil {
		t.Fatalf("AppendEntries: %v", err)
	}

	if got := toc.LastIndex(); got != 2 {
		t.Fatalf("LastIndex = %d, want 2", got)
	}
	if got := toc.FirstIndex(); got != 1 {
		t.Fatalf("FirstIndex = %d, want 1", got)
	}

	got, err := toc.Entries(1, 3, 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 2 || string(got[0].Data) != "a" || string(got[1].Data) != "b" {
		t.Fatalf("Entries = %+v", got)
	}

	term, err := toc.Term(2)
	if err != nil {
		t.Fatalf("Term: %v", err)
	}
	if term != 1 {
		t.Fatalf("Term(2) = %d, want 1", term)
	}
}

func TestToC_AppendEntriesPanicsOnOrderingViolation(t *testing.T) {
	toc := newTestToC(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected AppendEntries to panic on an out-of-order index")
		}
	}()
	_ = toc.AppendEntries([]raftpb.Entry{{Index: 5, Term: 1, Type: raftpb.EntryNormal, Data: []byte("x")}})
}

func TestToC_SnapshotUnavailableUntilCommitCatchesUp(t *testing.T) {
	toc := newTestToC(t)
	if _, err := toc.Snapshot(10); err == nil {
		t.Fatalf("expected snapshot unavailable error when commit index has not caught up")
	}
}

func TestToC_SnapshotSucceedsAtCurrentCommit(t *testing.T) {
	toc := newTestToC(t)
	snap, err := toc.Snapshot(0)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	decoded, err := DecodeStateSnapshot(snap.Data)
	if err != nil {
		t.Fatalf("DecodeStateSnapshot: %v", err)
	}
	if decoded.Collections == nil {
		t.Fatalf("expected a (possibly empty) collections map in the snapshot")
	}
}

func TestToC_ApplyEntriesDrainsNormalEntries(t *testing.T) {
	toc := newTestToC(t)

	op := &ConsensusOperation{
		Kind:   OpCollectionCreate,
		Create: &CreateCollectionOp{Name: "widgets", Params: CollectionParams{VectorSize: 4, Distance: DistanceCosine, ShardNumber: 1}},
	}
	data, err := op.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if err := toc.AppendEntries([]raftpb.Entry{{Index: 1, Term: 1, Type: raftpb.EntryNormal, Data: data}}); err != nil {
		t.Fatalf("AppendEntries: %v", err)
	}
	if err := toc.raftState.SetUnappliedEntries(1, 1); err != nil {
		t.Fatalf("SetUnappliedEntries: %v", err)
	}

	if err := toc.ApplyEntries(nil); err != nil {
		t.Fatalf("ApplyEntries: %v", err)
	}

	if _, err := toc.GetCollection("widgets"); err != nil {
		t.Fatalf("expected collection applied from the WAL entry: %v", err)
	}
}

func TestToC_ApplySnapshotReconcilesRegistryAndAliases(t *testing.T) {
	toc := newTestToC(t)

	snap := &StateSnapshot{
		Collections: map[string]CollectionState{"widgets": StateCreated},
		Aliases:     map[string]string{"prod": "widgets"},
		AddressByID: map[uint64]string{2: "http://peer-2:6335"},
	}
	data, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if err := toc.ApplySnapshot(data, raftpb.ConfState{}, 5, 1); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	if _, err := toc.GetCollection("widgets"); err != nil {
		t.Fatalf("expected widgets collection created by snapshot reconciliation: %v", err)
	}
	resolved, err := toc.Resolve("prod")
	if err != nil || resolved != "widgets" {
		t.Fatalf("Resolve(prod) = %q, %v, want widgets", resolved, err)
	}
	if toc.PeerAddressByID()[2] != "http://peer-2:6335" {
		t.Fatalf("expected peer address map updated from snapshot")
	}
}
