package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Shard is a horizontal partition of a Collection. It owns one segments/
// directory (published, queryable state) and one temp_segments/ directory
// (optimizer staging area); publishing a rewrite is a single directory
// rename between the two, matching §4.6's atomic-publish contract.
type Shard struct {
	mu       sync.RWMutex
	dir      string
	segments []SegmentMeta

	walOffset uint64 // monotonic counter standing in for the out-of-scope data-plane WAL
	walLog    [][]byte
}

// NewShard creates the segments/ and temp_segments/ directories for a fresh
// shard rooted at dir.
func NewShard(dir string) (*Shard, error) {
	if err := os.MkdirAll(filepath.Join(dir, "segments"), 0o755); err != nil {
		return nil, fmt.Errorf("create segments dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "temp_segments"), 0o755); err != nil {
		return nil, fmt.Errorf("create temp_segments dir: %w", err)
	}
	return &Shard{dir: dir}, nil
}

// SegmentsDir / TempDir are the two staging roots optimizers publish between.
func (s *Shard) SegmentsDir() string { return filepath.Join(s.dir, "segments") }
func (s *Shard) TempDir() string     { return filepath.Join(s.dir, "temp_segments") }

// Segments returns a copy of the currently published segment metadata.
func (s *Shard) Segments() []SegmentMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SegmentMeta, len(s.segments))
	copy(out, s.segments)
	return out
}

// AddSegment registers a freshly published segment, e.g. after an insert
// flush. Exported mainly for tests seeding shard state.
func (s *Shard) AddSegment(m SegmentMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, m)
}

// Append records one data-plane write and returns its WAL offset. The real
// per-shard WAL is an out-of-scope collaborator (§1); this in-memory log
// only needs to support the checkpoint/replay contract optimizers rely on.
func (s *Shard) Append(data []byte) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := uint64(len(s.walLog))
	s.walLog = append(s.walLog, data)
	atomic.StoreUint64(&s.walOffset, off+1)
	return off
}

// WALOffset returns the current write offset, used by an optimizer as its
// start-of-run checkpoint.
func (s *Shard) WALOffset() uint64 {
	return atomic.LoadUint64(&s.walOffset)
}

// ReplaySince returns every write appended after checkpoint, in order. An
// optimizer calls this immediately before publish to fold in writes that
// landed on an input segment while the rewrite was running.
func (s *Shard) ReplaySince(checkpoint uint64) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if checkpoint >= uint64(len(s.walLog)) {
		return nil
	}
	out := make([][]byte, len(s.walLog)-int(checkpoint))
	copy(out, s.walLog[checkpoint:])
	return out
}

// PublishSegment atomically replaces the inputIDs segments with newSegment:
// the new segment is built under TempDir()/newSegment.ID, then the whole
// directory is renamed into SegmentsDir() in one os.Rename call, and the
// input segments are dropped from the in-memory set. Readers calling
// Segments() concurrently observe either the full old set or the full new
// set, never a mix.
func (s *Shard) PublishSegment(inputIDs []SegmentID, newSegment SegmentMeta) error {
	tempPath := filepath.Join(s.TempDir(), string(newSegment.ID))
	finalPath := filepath.Join(s.SegmentsDir(), string(newSegment.ID))
	if err := os.MkdirAll(tempPath, 0o755); err != nil {
		return errService("create temp segment dir", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return errService("publish segment rename", err)
	}
	newSegment.Path = finalPath

	s.mu.Lock()
	defer s.mu.Unlock()
	remove := make(map[SegmentID]bool, len(inputIDs))
	for _, id := range inputIDs {
		remove[id] = true
	}
	kept := s.segments[:0:0]
	for _, seg := range s.segments {
		if !remove[seg.ID] {
			kept = append(kept, seg)
		}
	}
	s.segments = append(kept, newSegment)
	return nil
}

// PurgeTemp removes a cancelled rewrite's staging directory.
func (s *Shard) PurgeTemp(id SegmentID) error {
	return os.RemoveAll(filepath.Join(s.TempDir(), string(id)))
}

// Flush is the independent, timer-driven request to persist in-memory
// deltas regardless of optimization activity (§4.6 "forced flush cadence").
// The actual data-plane flush target is out of scope; this stand-in does
// nothing and always returns nil.
func (s *Shard) Flush() error {
	return nil
}

// NewSegmentID mints a fresh, collision-free segment identifier for an
// optimizer's output, the way core/storage.go uses uuid.New() for temp
// listing names.
func NewSegmentID() SegmentID {
	return SegmentID(uuid.New().String())
}
