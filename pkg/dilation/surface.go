// Package dilation fills invalid elements of surface and volume data with the
// value of the nearest valid element within a radius in millimetres.
package dilation

import (
	"container/heap"

	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
)

// Stats counts the outcome of one dilation
type Stats struct {
	// Filled is the number of elements that received a value
	Filled int

	// Unfilled is the number of elements still invalid afterwards
	Unfilled int
}

// front is one tentative assignment in the surface search
type front struct {
	dist   float64
	source int
	vertex int
}

// frontier is a min-heap of fronts ordered by distance, then source index,
// then vertex index
type frontier []front

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	if f[i].source != f[j].source {
		return f[i].source < f[j].source
	}
	return f[i].vertex < f[j].vertex
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x interface{}) { *f = append(*f, x.(front)) }

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// Surface fills the invalid vertices of s. data holds comps values per vertex
// and valid marks the vertices holding source data; both are updated in
// place. Each invalid vertex takes the value of the valid vertex closest to it
// along mesh edges, if that distance is at most radius. Equal distances go to
// the lowest valid vertex index.
func Surface(s *models.Surface, data []float64, comps int, valid []bool, radius float64) Stats {
	n := s.NumVertices()
	stats := Stats{}
	for _, ok := range valid[:n] {
		if !ok {
			stats.Unfilled++
		}
	}
	if radius <= 0 || stats.Unfilled == 0 || stats.Unfilled == n {
		return stats
	}

	neighbors := s.Neighbors()
	source := make([]int, n)
	settled := make([]bool, n)
	pq := make(frontier, 0, n)
	for v := 0; v < n; v++ {
		if valid[v] {
			pq = append(pq, front{dist: 0, source: v, vertex: v})
		}
	}
	heap.Init(&pq)

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(front)
		if settled[cur.vertex] {
			continue
		}
		settled[cur.vertex] = true
		source[cur.vertex] = cur.source
		for _, next := range neighbors[cur.vertex] {
			if settled[next] || valid[next] {
				continue
			}
			d := cur.dist + r3.Norm(r3.Sub(s.Coords[next], s.Coords[cur.vertex]))
			if d > radius {
				continue
			}
			heap.Push(&pq, front{dist: d, source: cur.source, vertex: next})
		}
	}

	for v := 0; v < n; v++ {
		if valid[v] || !settled[v] {
			continue
		}
		copy(data[v*comps:(v+1)*comps], data[source[v]*comps:(source[v]+1)*comps])
		stats.Filled++
	}
	for v := 0; v < n; v++ {
		if settled[v] {
			valid[v] = true
		}
	}
	stats.Unfilled -= stats.Filled
	return stats
}
