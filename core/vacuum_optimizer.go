package core

import "context"

// VacuumOptimizer rewrites a segment whose tombstone fraction has crossed
// deleted_threshold, dropping the dead vectors, as long as it still holds at
// least vacuum_min_vector_number live vectors (vacuuming a near-empty
// segment is not worth the rewrite cost).
type VacuumOptimizer struct {
	thresholds *OptimizerThresholds
}

// NewVacuumOptimizer builds a VacuumOptimizer sharing thresholds.
func NewVacuumOptimizer(thresholds *OptimizerThresholds) *VacuumOptimizer {
	return &VacuumOptimizer{thresholds: thresholds}
}

func (o *VacuumOptimizer) Name() string { return "vacuum" }

// Candidate returns the first segment whose deleted fraction has crossed
// the threshold and whose live count still clears the vacuum floor.
func (o *VacuumOptimizer) Candidate(segments []SegmentMeta) ([]SegmentID, bool) {
	cfg := o.thresholds.Get()
	for _, seg := range segments {
		live := seg.NumVectors - seg.NumDeletedVectors
		if seg.DeletedFraction() >= cfg.DeletedThreshold && live >= cfg.VacuumMinVectorNumber {
			return []SegmentID{seg.ID}, true
		}
	}
	return nil, false
}

// Optimize rewrites the single input segment with its tombstones dropped.
func (o *VacuumOptimizer) Optimize(ctx context.Context, shard *Shard, ids []SegmentID, stop <-chan struct{}) (SegmentMeta, error) {
	if len(ids) != 1 {
		return SegmentMeta{}, errBadInput("vacuum optimizer expects exactly one candidate segment")
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
		return SegmentMeta{}, errService("vacuum optimizer: segment vanished before optimize", nil)
	}

	select {
	case <-stop:
		return SegmentMeta{}, errService("vacuum optimizer cancelled", nil)
	case <-ctx.Done():
		return SegmentMeta{}, errService("vacuum optimizer cancelled", ctx.Err())
	default:
	}

	checkpoint := shard.WALOffset()

	rebuilt := SegmentMeta{
		ID:             NewSegmentID(),
		NumVectors:     original.NumVectors - original.NumDeletedVectors,
		Indexed:        original.Indexed,
		Mmap:           original.Mmap,
		PayloadIndexed: original.PayloadIndexed,
	}

	for range shard.ReplaySince(checkpoint) {
		rebuilt.NumVectors++
	}

	if err := shard.PublishSegment(ids, rebuilt); err != nil {
		return SegmentMeta{}, err
	}
	return rebuilt, nil
}
