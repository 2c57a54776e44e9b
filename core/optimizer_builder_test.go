package core

import "testing"

func TestBuildOptimizers_ReturnsMergeIndexingVacuumInOrder(t *testing.T) {
	thresholds, optimizers := BuildOptimizers(
		t.TempDir(),
		CollectionParams{VectorSize: 128, Distance: DistanceCosine, ShardNumber: 1},
		baseOptimizersConfig(),
		HnswConfig{M: 16, EfConstruct: 100, FullScanThreshold: 10000},
	)

	if thresholds == nil {
		t.Fatalf("BuildOptimizers returned nil thresholds")
	}
	if len(optimizers) != 3 {
		t.Fatalf("BuildOptimizers returned %d optimizers, want 3", len(optimizers))
	}
	names := []string{optimizers[0].Name(), optimizers[1].Name(), optimizers[2].Name()}
	want := []string{"merge", "indexing", "vacuum"}
	for i, name := range names {
		if name != want[i] {
			t.Fatalf("optimizers[%d].Name() = %q, want %q", i, name, want[i])
		}
	}
}
