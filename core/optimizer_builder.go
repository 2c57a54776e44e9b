package core

// BuildOptimizers returns the shared OptimizerThresholds and the ordered,
// immutable optimizer set for one shard: merge first, then indexing, then
// vacuum — the priority order the pipeline walks every tick. All three
// share the returned OptimizerThresholds, built from cfg, so a later config
// update (UpdateOptimizers calling Set on it) is observed by every
// optimizer without rebuilding the set. The caller holds on to the
// thresholds to drive that update; hnsw is accepted for symmetry with the
// original's build_optimizers signature; this module's IndexingOptimizer
// derives its promotion thresholds from cfg alone since the HNSW index
// itself is a black-box collaborator.
func BuildOptimizers(shardPath string, params CollectionParams, cfg OptimizersConfig, hnsw HnswConfig) (*OptimizerThresholds, []Optimizer) {
	thresholds := NewOptimizerThresholds(cfg)
	return thresholds, []Optimizer{
		NewMergeOptimizer(thresholds),
		NewIndexingOptimizer(thresholds),
		NewVacuumOptimizer(thresholds),
	}
}
