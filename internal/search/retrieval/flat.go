package retrieval

import (
	"fmt"
	"sort"
)

// FlatIndex 暴力扫描的 L2 向量索引。
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex 创建指定维度的索引。
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim 返回向量维度。
func (f *FlatIndex) Dim() int { return f.dim }

// Len 返回向量数量。
func (f *FlatIndex) Len() int { return len(f.vectors) }

// Add 追加向量，维度必须一致。
func (f *FlatIndex) Add(vecs ...[]float32) error {
	for i, v := range vecs {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), f.dim)
		}
	}
	f.vectors = append(f.vectors, vecs...)
	return nil
}

// Hit 一次近邻命中。
type Hit struct {
	ID       int
	Distance float32
}

// Search 返回距离最小的 min(k, Len()) 个向量，距离相同按插入顺序。
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), f.dim)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{ID: i, Distance: SquaredL2(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})

	if k < len(hits) {
		hits = hits[:max(k, 0)]
	}
	return hits, nil
}

// SquaredL2 平方欧氏距离。
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
