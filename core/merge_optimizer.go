package core

import (
	"context"

	"github.com/google/btree"
)

// segmentSizeItem orders segments by vector count (ascending) for
// MergeOptimizer's smallest-first candidate selection, breaking ties on id
// so the ordering is total and the btree never has to compare equal items.
type segmentSizeItem struct {
	meta SegmentMeta
}

func (a segmentSizeItem) Less(than btree.Item) bool {
	b := than.(segmentSizeItem)
	if a.meta.NumVectors != b.meta.NumVectors {
		return a.meta.NumVectors < b.meta.NumVectors
	}
	return a.meta.ID < b.meta.ID
}

// MergeOptimizer keeps the segment count near default_segment_number by
// combining the smallest segments first, refusing to build anything larger
// than max_segment_size.
type MergeOptimizer struct {
	thresholds *OptimizerThresholds
}

// NewMergeOptimizer builds a MergeOptimizer sharing thresholds.
func NewMergeOptimizer(thresholds *OptimizerThresholds) *MergeOptimizer {
	return &MergeOptimizer{thresholds: thresholds}
}

func (o *MergeOptimizer) Name() string { return "merge" }

// Candidate picks the smallest segments, in ascending-size order via a
// btree, that can be combined without exceeding max_segment_size, as long
// as the shard currently holds more segments than default_segment_number.
func (o *MergeOptimizer) Candidate(segments []SegmentMeta) ([]SegmentID, bool) {
	cfg := o.thresholds.Get()
	if uint64(len(segments)) <= cfg.DefaultSegmentNumber {
		return nil, false
	}

	ordered := btree.New(32)
	for _, seg := range segments {
		ordered.ReplaceOrInsert(segmentSizeItem{meta: seg})
	}

	var selected []SegmentID
	var total uint64
	ordered.Ascend(func(item btree.Item) bool {
		seg := item.(segmentSizeItem).meta
		if total+seg.NumVectors > cfg.MaxSegmentSize {
			return false
		}
		selected = append(selected, seg.ID)
		total += seg.NumVectors
		return true
	})

	if len(selected) < 2 {
		return nil, false
	}
	return selected, true
}

// Optimize merges ids into a single new segment, replaying any writes that
// landed on the inputs while the merge ran.
func (o *MergeOptimizer) Optimize(ctx context.Context, shard *Shard, ids []SegmentID, stop <-chan struct{}) (SegmentMeta, error) {
	checkpoint := shard.WALOffset()

	byID := make(map[SegmentID]SegmentMeta, len(ids))
	for _, seg := range shard.Segments() {
		byID[seg.ID] = seg
	}

	var merged SegmentMeta
	merged.ID = NewSegmentID()
	for _, id := range ids {
		select {
		case <-stop:
			_ = shard.PurgeTemp(merged.ID)
			return SegmentMeta{}, errService("merge optimizer cancelled", nil)
		case <-ctx.Done():
			_ = shard.PurgeTemp(merged.ID)
			return SegmentMeta{}, errService("merge optimizer cancelled", ctx.Err())
		default:
		}
		seg, ok := byID[id]
		if !ok {
			continue
		}
		merged.NumVectors += seg.NumVectors
		merged.NumDeletedVectors += seg.NumDeletedVectors
	}

	for range shard.ReplaySince(checkpoint) {
		merged.NumVectors++
	}

	if err := shard.PublishSegment(ids, merged); err != nil {
		return SegmentMeta{}, err
	}
	return merged, nil
}
