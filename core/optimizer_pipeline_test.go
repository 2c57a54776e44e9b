package core

import (
	"context"
	"testing"
	"time"
)

func TestPipeline_RegisterUnregister(t *testing.T) {
	p := NewPipeline(nil, 2, time.Second)
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}
	p.Register("c1/0", shard, nil)

	p.mu.Lock()
	_, ok := p.shards["c1/0"]
	p.mu.Unlock()
	if !ok {
		t.Fatalf("shard was not registered")
	}

	p.Unregister("c1/0")
	p.mu.Lock()
	_, ok = p.shards["c1/0"]
	p.mu.Unlock()
	if ok {
		t.Fatalf("shard should have been unregistered")
	}
}

func TestPipeline_TickDispatchesHighestPriorityCandidate(t *testing.T) {
	shard, err := NewShard(t.TempDir())
	if err != nil {
		t.Fatalf("NewShard: %v", err)
	}
	shard.AddSegment(SegmentMeta{ID: "a", NumVectors: 10})
	shard.AddSegment(SegmentMeta{ID: "b", NumVectors: 20})
	shard.AddSegment(SegmentMeta{ID: "c", NumVectors: 30})

	cfg := baseOptimizersConfig()
	cfg.DefaultSegmentNumber = 1
	thresholds := NewOptimizerThresholds(cfg)
	optimizers := []Optimizer{NewMergeOptimizer(thresholds), NewIndexingOptimizer(thresholds), NewVacuumOptimizer(thresholds)}

	p := NewPipeline(nil, 2, time.Second)
	p.Register("c1/0", shard, optimizers)

	p.tick(context.Background())
	p.wg.Wait()

	segments := shard.Segments()
	if len(segments) != 1 {
		t.Fatalf("expected merge to collapse all three segments into one, got %+v", segments)
	}
}

func TestPipeline_CancelShardSignalsStop(t *testing.T) {
	p := NewPipeline(nil, 1, time.Second)
	stop := make(chan struct{})
	p.mu.Lock()
	p.stops["c1/0"] = stop
	p.mu.Unlock()

	p.CancelShard("c1/0")

	select {
	case <-stop:
	default:
		t.Fatalf("expected CancelShard to close the stop channel")
	}
}
