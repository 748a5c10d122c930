package models

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Surface represents a triangulated mesh: a sphere or an anatomical surface
// of one structure.
type Surface struct {
	// Coords holds the vertex coordinates in mm
	Coords []r3.Vec

	// Triangles holds vertex index triples
	Triangles [][3]int
}

// NewSurface creates a surface, checking that every triangle references an
// existing vertex.
func NewSurface(coords []r3.Vec, triangles [][3]int) (*Surface, error) {
	n := len(coords)
	for t, tri := range triangles {
		for _, v := range tri {
			if v < 0 || v >= n {
				return nil, fmt.Errorf("triangle %d references vertex %d, surface has %d vertices", t, v, n)
			}
		}
	}
	return &Surface{Coords: coords, Triangles: triangles}, nil
}

// NumVertices returns the number of vertices of the surface.
func (s *Surface) NumVertices() int {
	return len(s.Coords)
}

// VertexTriangles returns, for every vertex, the indices of the triangles
// using it in ascending order.
func (s *Surface) VertexTriangles() [][]int {
	incident := make([][]int, len(s.Coords))
	for t, tri := range s.Triangles {
		for _, v := range tri {
			incident[v] = append(incident[v], t)
		}
	}
	return incident
}

// Neighbors returns the sorted, de-duplicated edge neighbours of each vertex.
func (s *Surface) Neighbors() [][]int {
	seen := make([]map[int]struct{}, len(s.Coords))
	for _, tri := range s.Triangles {
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			if seen[a] == nil {
				seen[a] = make(map[int]struct{})
			}
			if seen[b] == nil {
				seen[b] = make(map[int]struct{})
			}
			seen[a][b] = struct{}{}
			seen[b][a] = struct{}{}
		}
	}
	neighbors := make([][]int, len(s.Coords))
	for v, set := range seen {
		list := make([]int, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Ints(list)
		neighbors[v] = list
	}
	return neighbors
}
