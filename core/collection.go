package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CollectionState is the lifecycle of a Collection handle.
type CollectionState int

const (
	StateCreated CollectionState = iota
	StateMutated
	StateDraining
	StateDestroyed
)

func (s CollectionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateMutated:
		return "mutated"
	case StateDraining:
		return "draining"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

type collectionMeta struct {
	Params     CollectionParams `json:"params"`
	WAL        WALConfig        `json:"wal"`
	Optimizers OptimizersConfig `json:"optimizers"`
	Hnsw       HnswConfig       `json:"hnsw"`
}

// Collection is the handle owning one or more Shards, a configuration
// record, and a lifecycle state, matching §3's "Collection (handle)" entity.
type Collection struct {
	mu sync.RWMutex

	name string
	dir  string

	params     CollectionParams
	wal        WALConfig
	optimizers OptimizersConfig
	hnsw       HnswConfig
	state      CollectionState

	shards     []*Shard
	thresholds []*OptimizerThresholds
	index      VectorIndex

	pipeline *Pipeline
}

// NewCollection creates a fresh collection rooted at dir: shard_number
// shards, each registered with pipeline's optimizer set, and persists its
// configuration to meta.json.
func NewCollection(dir, name string, params CollectionParams, wal WALConfig, opt OptimizersConfig, hnsw HnswConfig, pipeline *Pipeline) (*Collection, error) {
	if params.ShardNumber == 0 {
		return nil, errBadInput("shard_number must be >= 1")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create collection dir: %w", err)
	}

	c := &Collection{
		name:       name,
		dir:        dir,
		params:     params,
		wal:        wal,
		optimizers: opt,
		hnsw:       hnsw,
		state:      StateCreated,
		index:      NewBruteForceIndex(params.Distance),
		pipeline:   pipeline,
	}

	for i := uint32(0); i < params.ShardNumber; i++ {
		shardDir := filepath.Join(dir, fmt.Sprintf("shard-%d", i))
		shard, err := NewShard(shardDir)
		if err != nil {
			return nil, err
		}
		thresholds, optimizers := BuildOptimizers(shardDir, params, opt, hnsw)
		c.shards = append(c.shards, shard)
		c.thresholds = append(c.thresholds, thresholds)
		if pipeline != nil {
			pipeline.Register(c.pipelineKey(i), shard, optimizers)
		}
	}

	if err := c.persistMeta(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCollection reconstructs a Collection from an existing directory built
// by NewCollection in an earlier process, re-registering every shard with
// pipeline.
func LoadCollection(dir, name string, pipeline *Pipeline) (*Collection, error) {
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return nil, fmt.Errorf("read collection meta: %w", err)
	}
	var meta collectionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode collection meta: %w", err)
	}

	c := &Collection{
		name:       name,
		dir:        dir,
		params:     meta.Params,
		wal:        meta.WAL,
		optimizers: meta.Optimizers,
		hnsw:       meta.Hnsw,
		state:      StateCreated,
		index:      NewBruteForceIndex(meta.Params.Distance),
		pipeline:   pipeline,
	}

	for i := uint32(0); i < meta.Params.ShardNumber; i++ {
		shardDir := filepath.Join(dir, fmt.Sprintf("shard-%d", i))
		shard, err := NewShard(shardDir)
		if err != nil {
			return nil, err
		}
		thresholds, optimizers := BuildOptimizers(shardDir, meta.Params, meta.Optimizers, meta.Hnsw)
		c.shards = append(c.shards, shard)
		c.thresholds = append(c.thresholds, thresholds)
		if pipeline != nil {
			pipeline.Register(c.pipelineKey(i), shard, optimizers)
		}
	}
	return c, nil
}

func (c *Collection) pipelineKey(shardIndex uint32) string {
	return fmt.Sprintf("%s/%d", c.name, shardIndex)
}

func (c *Collection) persistMeta() error {
	meta := collectionMeta{Params: c.params, WAL: c.wal, Optimizers: c.optimizers, Hnsw: c.hnsw}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode collection meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, "meta.json"), data, 0o644); err != nil {
		return fmt.Errorf("write collection meta: %w", err)
	}
	return nil
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Dir returns the collection's root directory.
func (c *Collection) Dir() string { return c.dir }

// State returns the current lifecycle state.
func (c *Collection) State() CollectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState transitions the lifecycle state.
func (c *Collection) SetState(s CollectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Params returns the immutable geometry parameters.
func (c *Collection) Params() CollectionParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// OptimizersConfig returns the current optimizer config.
func (c *Collection) OptimizersConfig() OptimizersConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.optimizers
}

// UpdateOptimizers applies diff against the stored optimizers config and
// every shard's live OptimizerThresholds — the only mutable part of a
// collection's config per §4.8 "Update: only optimizers_config is mutable".
func (c *Collection) UpdateOptimizers(diff *OptimizersConfigDiff) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optimizers = diff.Update(c.optimizers)
	for _, t := range c.thresholds {
		t.Set(c.optimizers)
	}
	c.state = StateMutated
	return c.persistMeta()
}

// PreDrop quiesces every shard's optimizer activity and flushes, ahead of
// directory removal. It runs on the caller's executor, matching the
// original's async pre_drop.
func (c *Collection) PreDrop(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateDraining
	c.mu.Unlock()

	for i, shard := range c.shards {
		if c.pipeline != nil {
			key := c.pipelineKey(uint32(i))
			c.pipeline.CancelShard(key)
			c.pipeline.Unregister(key)
		}
		if err := shard.Flush(); err != nil {
			return errService("flush shard during pre-drop", err)
		}
	}

	c.mu.Lock()
	c.state = StateDestroyed
	c.mu.Unlock()
	return nil
}

// Search runs a nearest-neighbor query over the collection's data plane.
func (c *Collection) Search(ctx context.Context, query []float32, limit int) ([]ScoredPoint, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()
	return idx.Search(query, limit)
}

// Recommend scores by proximity to a positive/negative example set.
func (c *Collection) Recommend(ctx context.Context, positive, negative []uint64, limit int) ([]ScoredPoint, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()
	return idx.Recommend(positive, negative, limit)
}

// Retrieve fetches points by id.
func (c *Collection) Retrieve(ctx context.Context, ids []uint64) ([]Point, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()
	return idx.Get(ids)
}

// Scroll pages through the collection in id order.
func (c *Collection) Scroll(ctx context.Context, offset uint64, limit int) ([]Point, uint64, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()
	return idx.Scroll(offset, limit)
}

// Update applies an upsert or delete to the data plane and records the
// write against shard 0's WAL offset counter (shard-aware point routing is
// out of scope per §1; see DESIGN.md).
func (c *Collection) Update(ctx context.Context, upsert []Point, deleteIDs []uint64) error {
	c.mu.RLock()
	idx := c.index
	shard := c.shards[0]
	c.mu.RUnlock()

	if len(upsert) > 0 {
		if err := idx.Upsert(upsert); err != nil {
			return errService("upsert points", err)
		}
	}
	if len(deleteIDs) > 0 {
		if err := idx.Delete(deleteIDs); err != nil {
			return errService("delete points", err)
		}
	}
	shard.Append(nil)

	c.mu.Lock()
	c.state = StateMutated
	c.mu.Unlock()
	return nil
}
