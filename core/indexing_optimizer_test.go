package core

import (
	"context"
	"testing"
)

func TestIndexingOptimizer_CandidateFindsFirstUnindexed(t *testing.T) {
	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewIndexingOptimizer(thresholds)

	segments := []SegmentMeta{
		{ID: "low", NumVectors: 50},
		{ID: "needs-index", NumVectors: 250},
		{ID: "already-indexed", NumVectors: 999, Indexed: true, Mmap: true, PayloadIndexed: true},
	}
	ids, ok := o.Candidate(segments)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if len(ids) != 1 || ids[0] != "needs-index" {
		t.Fatalf("Candidate = %v, want [needs-index]", ids)
	}
}

func TestIndexingOptimizer_CandidateNoneWhenAllThresholdsUnmet(t *testing.T) {
	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewIndexingOptimizer(thresholds)

	segments := []SegmentMeta{{ID: "small", NumVectors: 10}}
	if _, ok := o.Candidate(segments); ok {
		t.Fatalf("expected no candidate below every threshold")
	}
}

func TestIndexingOptimizer_OptimizePromotesFlags(t *testing.T) {
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}
	shard.AddSegment(SegmentMeta{ID: "seg", NumVectors: 600})

	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewIndexingOptimizer(thresholds)

	rebuilt, err := o.Optimize(context.Background(), shard, []SegmentID{"seg"}, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !rebuilt.Indexed || !rebuilt.Mmap || !rebuilt.PayloadIndexed {
		t.Fatalf("rebuilt segment should have crossed every threshold: %+v", rebuilt)
	}
	if rebuilt.ID == "seg" {
		t.Fatalf("rebuilt segment should have a fresh id")
	}
}

func TestIndexingOptimizer_OptimizeRejectsMultipleIDs(t *testing.T) {
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}
	thresholds := NewOptimizerThresholds(baseOptimizersConfig())
	o := NewIndexingOptimizer(thresholds)

	if _, err := o.Optimize(context.Background(), shard, []SegmentID{"a", "b"}, nil); err == nil {
		t.Fatalf("expected error for more than one candidate id")
	}
}
