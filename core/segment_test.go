package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShard_AppendAndReplaySince(t *testing.T) {
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}

	if got := shard.WALOffset(); got != 0 {
		t.Fatalf("fresh shard WALOffset = %d, want 0", got)
	}

	checkpoint := shard.WALOffset()
	shard.Append([]byte("a"))
	shard.Append([]byte("b"))

	replayed := shard.ReplaySince(checkpoint)
	if len(replayed) != 2 {
		t.Fatalf("ReplaySince returned %d entries, want 2", len(replayed))
	}
}

func TestShard_PublishSegmentAtomicRename(t *testing.T) {
	dir := t.TempDir()
	shard, err := NewShard(dir)
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}

	old := SegmentMeta{ID: "old-1", NumVectors: 10}
	shard.AddSegment(old)

	newSeg := SegmentMeta{ID: NewSegmentID(), NumVectors: 10}
	if err := shard.PublishSegment([]SegmentID{old.ID}, newSeg); err != nil {
		t.Fatalf("PublishSegment: %v", err)
	}

	segments := shard.Segments()
	if len(segments) != 1 || segments[0].ID != newSeg.ID {
		t.Fatalf("segments after publish = %+v, want only %v", segments, newSeg.ID)
	}

	if _, err := os.Stat(filepath.Join(shard.SegmentsDir(), string(newSeg.ID))); err != nil {
		t.Fatalf("published segment directory missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(shard.TempDir(), string(newSeg.ID))); !os.IsNotExist(err) {
		t.Fatalf("temp segment directory should be gone after rename, err = %v", err)
	}
}

func TestShard_PurgeTemp(t *testing.T) {
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}
	id := NewSegmentID()
	tempPath := filepath.Join(shard.TempDir(), string(id))
	if err := os.MkdirAll(tempPath, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := shard.PurgeTemp(id); err != nil {
		t.Fatalf("PurgeTemp: %v", err)
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir purged, err = %v", err)
	}
}
