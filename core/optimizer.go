package core

import (
	"context"
	"sync"
)

// SegmentID identifies one on-disk segment within a shard's segments/ dir.
type SegmentID string

// SegmentMeta describes one segment: how many vectors it holds, how many of
// those are tombstoned, and which optional representations (vector index,
// memory-mapped storage, payload index) have been built for it.
type SegmentMeta struct {
	ID                SegmentID
	Path              string
	NumVectors        uint64
	NumDeletedVectors uint64
	Indexed           bool
	Mmap              bool
	PayloadIndexed    bool
}

// DeletedFraction is the live-vector-agnostic tombstone ratio VacuumOptimizer
// compares against deleted_threshold.
func (m SegmentMeta) DeletedFraction() float64 {
	if m.NumVectors == 0 {
		return 0
	}
	return float64(m.NumDeletedVectors) / float64(m.NumVectors)
}

// OptimizerThresholds is the single threshold record all three optimizers
// for a shard are built against (optimizers_builder.rs constructs one and
// shares it by reference across Merge/Indexing/Vacuum), so an UpdateCollection
// config change is observed by every running optimizer without rebuilding
// any of them.
type OptimizerThresholds struct {
	mu  sync.RWMutex
	cfg OptimizersConfig
}

// NewOptimizerThresholds wraps cfg for shared, mutable access.
func NewOptimizerThresholds(cfg OptimizersConfig) *OptimizerThresholds {
	return &OptimizerThresholds{cfg: cfg}
}

// Get returns a snapshot of the current thresholds.
func (t *OptimizerThresholds) Get() OptimizersConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Set replaces the thresholds, e.g. on UpdateCollection's optimizers_config diff.
func (t *OptimizerThresholds) Set(cfg OptimizersConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// Optimizer is the capability every background rewriter exposes: decide
// whether there is work, then do it. Modeled as an interface (a polymorphic
// set over {Candidate, Optimize}), not a type hierarchy — see DESIGN.md.
type Optimizer interface {
	// Name identifies the optimizer for logging ("merge", "indexing", "vacuum").
	Name() string

	// Candidate inspects the current segment set and returns the segment ids
	// it wants to rewrite, or ok=false if there is nothing to do right now.
	Candidate(segments []SegmentMeta) (ids []SegmentID, ok bool)

	// Optimize rewrites ids into one replacement segment, publishing it via
	// shard.PublishSegment before returning. stop is polled cooperatively;
	// a signal on it aborts the rewrite and purges the temp directory.
	Optimize(ctx context.Context, shard *Shard, ids []SegmentID, stop <-chan struct{}) (SegmentMeta, error)
}
