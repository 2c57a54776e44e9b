package core

import (
	"context"
	"testing"
)

func TestVacuumOptimizer_CandidateRequiresThresholdAndFloor(t *testing.T) {
	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewVacuumOptimizer(thresholds)

	segments := []SegmentMeta{
		{ID: "below-threshold", NumVectors: 1000, NumDeletedVectors: 10},
		{ID: "too-few-live", NumVectors: 120, NumDeletedVectors: 100},
		{ID: "ripe", NumVectors: 1000, NumDeletedVectors: 300},
	}
	ids, ok := o.Candidate(segments)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if len(ids) != 1 || ids[0] != "ripe" {
		t.Fatalf("Candidate = %v, want [ripe]", ids)
	}
}

func TestVacuumOptimizer_CandidateNoneWhenClean(t *testing.T) {
	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewVacuumOptimizer(thresholds)

	segments := []SegmentMeta{{ID: "clean", NumVectors: 1000, NumDeletedVectors: 0}}
	if _, ok := o.Candidate(segments); ok {
		t.Fatalf("expected no candidate with zero deletions")
	}
}

func TestVacuumOptimizer_OptimizeDropsTombstones(t *testing.T) {
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}
	shard.AddSegment(SegmentMeta{ID: "seg", NumVectors: 1000, NumDeletedVectors: 300, Indexed: true})

	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewVacuumOptimizer(thresholds)

	rebuilt, err := o.Optimize(context.Background(), shard, []SegmentID{"seg"}, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if rebuilt.NumVectors != 700 {
		t.Fatalf("rebuilt.NumVectors = %d, want 700", rebuilt.NumVectors)
	}
	if rebuilt.NumDeletedVectors != 0 {
		t.Fatalf("rebuilt.NumDeletedVectors = %d, want 0", rebuilt.NumDeletedVectors)
	}
	if !rebuilt.Indexed {
		t.Fatalf("rebuilt segment should carry over its Indexed flag")
	}
}
