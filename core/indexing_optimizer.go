package core

import "context"

// IndexingOptimizer promotes a single segment past indexing_threshold,
// memmap_threshold, or payload_indexing_threshold to its indexed / mmaped /
// payload-indexed form. It never combines segments — Optimize always works
// on exactly one input id.
type IndexingOptimizer struct {
	thresholds *OptimizerThresholds
}

// NewIndexingOptimizer builds an IndexingOptimizer sharing thresholds.
func NewIndexingOptimizer(thresholds *OptimizerThresholds) *IndexingOptimizer {
	return &IndexingOptimizer{thresholds: thresholds}
}

func (o *IndexingOptimizer) Name() string { return "indexing" }

// Candidate returns the first segment that has crossed a threshold it has
// not yet been promoted for.
func (o *IndexingOptimizer) Candidate(segments []SegmentMeta) ([]SegmentID, bool) {
	cfg := o.thresholds.Get()
	for _, seg := range segments {
		needsIndex := !seg.Indexed && seg.NumVectors >= cfg.IndexingThreshold
		needsMmap := !seg.Mmap && seg.NumVectors >= cfg.MemmapThreshold
		needsPayloadIndex := !seg.PayloadIndexed && seg.NumVectors >= cfg.PayloadIndexingThreshold
		if needsIndex || needsMmap || needsPayloadIndex {
			return []SegmentID{seg.ID}, true
		}
	}
	return nil, false
}

// Optimize rebuilds the single input segment as a new segment with a fresh
// id that replaces it, flipping whichever representation flags have crossed
// their threshold.
func (o *IndexingOptimizer) Optimize(ctx context.Context, shard *Shard, ids []SegmentID, stop <-chan struct{}) (SegmentMeta, error) {
	if len(ids) != 1 {
		return SegmentMeta{}, errBadInput("indexing optimizer expects exactly one candidate segment")
	}

	var original SegmentMeta
	found := false
	for _, seg := range shard.Segments() {
		if seg.ID == ids[0] {
			original = seg
			found = true
			break
		}
	}
	if !found {
		return SegmentMeta{}, errService("indexing optimizer: segment vanished before optimize", nil)
	}

	select {
	case <-stop:
		return SegmentMeta{}, errService("indexing optimizer cancelled", nil)
	case <-ctx.Done():
		return SegmentMeta{}, errService("indexing optimizer cancelled", ctx.Err())
	default:
	}

	cfg := o.thresholds.Get()
	checkpoint := shard.WALOffset()

	rebuilt := original
	rebuilt.ID = NewSegmentID()
	if rebuilt.NumVectors >= cfg.IndexingThreshold {
		rebuilt.Indexed = true
	}
	if rebuilt.NumVectors >= cfg.MemmapThreshold {
		rebuilt.Mmap = true
	}
	if rebuilt.NumVectors >= cfg.PayloadIndexingThreshold {
		rebuilt.PayloadIndexed = true
	}

	for range shard.ReplaySince(checkpoint) {
		rebuilt.NumVectors++
	}

	if err := shard.PublishSegment(ids, rebuilt); err != nil {
		return SegmentMeta{}, err
	}
	return rebuilt, nil
}
