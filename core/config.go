package core

import "time"

// Distance is the vector similarity metric a collection scores points with.
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceEuclidean Distance = "euclidean"
	DistanceDot       Distance = "dot"
)

// CollectionParams are the immutable geometry parameters of a collection.
type CollectionParams struct {
	VectorSize  uint64   `mapstructure:"vector_size" json:"vector_size"`
	Distance    Distance `mapstructure:"distance" json:"distance"`
	ShardNumber uint32   `mapstructure:"shard_number" json:"shard_number"`
}

// WALConfig governs the per-shard data-plane write-ahead log (distinct from
// the cluster metadata WAL in wal.go).
type WALConfig struct {
	WALCapacityMB    uint64 `mapstructure:"wal_capacity_mb" json:"wal_capacity_mb"`
	WALSegmentsAhead uint64 `mapstructure:"wal_segments_ahead" json:"wal_segments_ahead"`
}

// HnswConfig governs the (out-of-scope, black-box) vector index.
type HnswConfig struct {
	M                  uint64 `mapstructure:"m" json:"m"`
	EfConstruct        uint64 `mapstructure:"ef_construct" json:"ef_construct"`
	FullScanThreshold  uint64 `mapstructure:"full_scan_threshold" json:"full_scan_threshold"`
}

// OptimizersConfig governs the segment optimization pipeline (C5, C6).
type OptimizersConfig struct {
	DeletedThreshold         float64       `mapstructure:"deleted_threshold" json:"deleted_threshold"`
	VacuumMinVectorNumber    uint64        `mapstructure:"vacuum_min_vector_number" json:"vacuum_min_vector_number"`
	DefaultSegmentNumber     uint64        `mapstructure:"default_segment_number" json:"default_segment_number"`
	MaxSegmentSize           uint64        `mapstructure:"max_segment_size" json:"max_segment_size"`
	MemmapThreshold          uint64        `mapstructure:"memmap_threshold" json:"memmap_threshold"`
	IndexingThreshold        uint64        `mapstructure:"indexing_threshold" json:"indexing_threshold"`
	PayloadIndexingThreshold uint64        `mapstructure:"payload_indexing_threshold" json:"payload_indexing_threshold"`
	FlushIntervalSec         uint64        `mapstructure:"flush_interval_sec" json:"flush_interval_sec"`
	MaxOptimizationThreads   uint64        `mapstructure:"max_optimization_threads" json:"max_optimization_threads"`
}

// FlushInterval returns the configured flush cadence as a duration.
func (c *OptimizersConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSec) * time.Second
}

// StorageConfig aggregates the storage path and the per-collection defaults
// applied when a CreateCollection operation omits a partial config.
type StorageConfig struct {
	StoragePath string           `mapstructure:"storage_path" json:"storage_path"`
	WAL         WALConfig        `mapstructure:"wal" json:"wal"`
	HnswIndex   HnswConfig       `mapstructure:"hnsw_index" json:"hnsw_index"`
	Optimizers  OptimizersConfig `mapstructure:"optimizers" json:"optimizers"`
}

// WALConfigDiff / HnswConfigDiff / OptimizersConfigDiff are partial overlays
// merged against StorageConfig defaults on collection Create/Update, mirroring
// collection::operations::config_diff::DiffConfig from the distilled system.

type WALConfigDiff struct {
	WALCapacityMB    *uint64
	WALSegmentsAhead *uint64
}

func (d *WALConfigDiff) Update(base WALConfig) WALConfig {
	if d == nil {
		return base
	}
	if d.WALCapacityMB != nil {
		base.WALCapacityMB = *d.WALCapacityMB
	}
	if d.WALSegmentsAhead != nil {
		base.WALSegmentsAhead = *d.WALSegmentsAhead
	}
	return base
}

type HnswConfigDiff struct {
	M                 *uint64
	EfConstruct       *uint64
	FullScanThreshold *uint64
}

func (d *HnswConfigDiff) Update(base HnswConfig) HnswConfig {
	if d == nil {
		return base
	}
	if d.M != nil {
		base.M = *d.M
	}
	if d.EfConstruct != nil {
		base.EfConstruct = *d.EfConstruct
	}
	if d.FullScanThreshold != nil {
		base.FullScanThreshold = *d.FullScanThreshold
	}
	return base
}

type OptimizersConfigDiff struct {
	DeletedThreshold         *float64
	VacuumMinVectorNumber    *uint64
	DefaultSegmentNumber     *uint64
	MaxSegmentSize           *uint64
	MemmapThreshold          *uint64
	IndexingThreshold        *uint64
	PayloadIndexingThreshold *uint64
	FlushIntervalSec         *uint64
	MaxOptimizationThreads   *uint64
}

func (d *OptimizersConfigDiff) Update(base OptimizersConfig) OptimizersConfig {
	if d == nil {
		return base
	}
	if d.DeletedThreshold != nil {
		base.DeletedThreshold = *d.DeletedThreshold
	}
	if d.VacuumMinVectorNumber != nil {
		base.VacuumMinVectorNumber = *d.VacuumMinVectorNumber
	}
	if d.DefaultSegmentNumber != nil {
		base.DefaultSegmentNumber = *d.DefaultSegmentNumber
	}
	if d.MaxSegmentSize != nil {
		base.MaxSegmentSize = *d.MaxSegmentSize
	}
	if d.MemmapThreshold != nil {
		base.MemmapThreshold = *d.MemmapThreshold
	}
	if d.IndexingThreshold != nil {
		base.IndexingThreshold = *d.IndexingThreshold
	}
	if d.PayloadIndexingThreshold != nil {
		base.PayloadIndexingThreshold = *d.PayloadIndexingThreshold
	}
	if d.FlushIntervalSec != nil {
		base.FlushIntervalSec = *d.FlushIntervalSec
	}
	if d.MaxOptimizationThreads != nil {
		base.MaxOptimizationThreads = *d.MaxOptimizationThreads
	}
	return base
}
