package core

import (
	"math"
	"sort"
	"sync"
)

// Point is one stored vector plus its arbitrary JSON-ish payload.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a single hit from Search/Recommend, carrying the distance
// score relative to the query.
type ScoredPoint struct {
	Point
	Score float32
}

// VectorIndex is the black-box collaborator per §1: the real system's HNSW
// index lives behind this seam. BruteForceIndex below is a minimal
// in-memory stand-in sufficient to exercise Collection's delegation methods
// and their tests; it is not a production vector index.
type VectorIndex interface {
	Upsert(points []Point) error
	Delete(ids []uint64) error
	Get(ids []uint64) ([]Point, error)
	Search(query []float32, limit int) ([]ScoredPoint, error)
	Recommend(positive, negative []uint64, limit int) ([]ScoredPoint, error)
	Scroll(offset uint64, limit int) ([]Point, uint64, error)
}

// BruteForceIndex is an O(n) VectorIndex over an in-memory point set, scored
// by the collection's configured Distance metric.
type BruteForceIndex struct {
	mu       sync.RWMutex
	distance Distance
	points   map[uint64]Point
	order    []uint64
}

// NewBruteForceIndex builds an empty index scoring by distance.
func NewBruteForceIndex(distance Distance) *BruteForceIndex {
	return &BruteForceIndex{distance: distance, points: make(map[uint64]Point)}
}

func (b *BruteForceIndex) Upsert(points []Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range points {
		if _, exists := b.points[p.ID]; !exists {
			b.order = append(b.order, p.ID)
		}
		b.points[p.ID] = p
	}
	return nil
}

func (b *BruteForceIndex) Delete(ids []uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.points, id)
	}
	kept := b.order[:0:0]
	for _, id := range b.order {
		if _, ok := b.points[id]; ok {
			kept = append(kept, id)
		}
	}
	b.order = kept
	return nil
}

func (b *BruteForceIndex) Get(ids []uint64) ([]Point, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := b.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *BruteForceIndex) score(a, v []float32) float32 {
	switch b.distance {
	case DistanceEuclidean:
		var sum float32
		for i := range a {
			d := a[i] - v[i]
			sum += d * d
		}
		return -float32(math.Sqrt(float64(sum)))
	case DistanceDot:
		var sum float32
		for i := range a {
			sum += a[i] * v[i]
		}
		return sum
	default: // DistanceCosine
		var dot, na, nv float32
		for i := range a {
			dot += a[i] * v[i]
			na += a[i] * a[i]
			nv += v[i] * v[i]
		}
		if na == 0 || nv == 0 {
			return 0
		}
		return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nv)))
	}
}

func (b *BruteForceIndex) Search(query []float32, limit int) ([]ScoredPoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ScoredPoint, 0, len(b.points))
	for _, p := range b.points {
		out = append(out, ScoredPoint{Point: p, Score: b.score(p.Vector, query)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recommend averages the positive examples' vectors (scoring works the same
// regardless of metric since it's a simple centroid), then searches with
// that as the query; negatives are excluded from results outright.
func (b *BruteForceIndex) Recommend(positive, negative []uint64, limit int) ([]ScoredPoint, error) {
	b.mu.RLock()
	var dim int
	centroid := []float32(nil)
	for _, id := range positive {
		p, ok := b.points[id]
		if !ok {
			continue
		}
		if centroid == nil {
			dim = len(p.Vector)
			centroid = make([]float32, dim)
		}
		for i, v := range p.Vector {
			centroid[i] += v
		}
	}
	b.mu.RUnlock()
	if centroid == nil || len(positive) == 0 {
		return nil, errBadInput("recommend requires at least one resolvable positive example")
	}
	for i := range centroid {
		centroid[i] /= float32(len(positive))
	}

	exclude := make(map[uint64]bool, len(negative)+len(positive))
	for _, id := range negative {
		exclude[id] = true
	}
	for _, id := range positive {
		exclude[id] = true
	}

	results, err := b.Search(centroid, 0)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		if exclude[r.ID] {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *BruteForceIndex) Scroll(offset uint64, limit int) ([]Point, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := append([]uint64(nil), b.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := 0
	for start < len(ids) && ids[start] < offset {
		start++
	}
	end := start + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}
	out := make([]Point, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, b.points[id])
	}
	var next uint64
	if end < len(ids) {
		next = ids[end]
	}
	return out, next, nil
}
