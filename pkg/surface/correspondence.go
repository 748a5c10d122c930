package surface

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
	"dconnresample/pkg/workers"
)

// pruneWeight is the smallest barycentric weight kept in a correspondence
const pruneWeight = 1e-9

// Weight is the contribution of one source vertex to a target vertex
type Weight struct {
	Source int
	Weight float64
}

// Correspondence maps each target vertex to the weighted source vertices it
// is interpolated from. An empty list means the target has no source data.
type Correspondence [][]Weight

// spherePoint is a vertex of the current sphere stored in the KD-tree
type spherePoint struct {
	r3.Vec
	index int
}

// Compare implements the kdtree.Comparable interface
func (p spherePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(spherePoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p spherePoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p spherePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(spherePoint)
	return r3.Norm2(r3.Sub(p.Vec, q.Vec))
}

// spherePoints is a collection of spherePoint that satisfies kdtree.Interface
type spherePoints []spherePoint

func (p spherePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p spherePoints) Len() int                              { return len(p) }
func (p spherePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p spherePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{spherePoints: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{spherePoints: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for spherePoints
type pointPlane struct {
	spherePoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.spherePoints[i].Compare(p.spherePoints[j], p.Dim) < 0
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{spherePoints: p.spherePoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.spherePoints[i], p.spherePoints[j] = p.spherePoints[j], p.spherePoints[i]
}

// Resolver finds, for points on the unit sphere, the containing triangle of
// the current sphere and the barycentric weights inside it.
type Resolver struct {
	coords    []r3.Vec
	triangles [][3]int
	incident  [][]int
	tree      *kdtree.Tree
	// searchDist2 is the squared radius guaranteed to reach every vertex of
	// any triangle containing a query point
	searchDist2 float64
}

// NewResolver indexes the current sphere. The sphere must already have passed
// CheckSphere.
func NewResolver(current *models.Surface) *Resolver {
	r := &Resolver{
		coords:    unitCoords(current),
		triangles: current.Triangles,
		incident:  current.VertexTriangles(),
	}
	points := make(spherePoints, len(r.coords))
	for i, c := range r.coords {
		points[i] = spherePoint{Vec: c, index: i}
	}
	r.tree = kdtree.New(points, false)

	reach := 1.1*maxEdgeLength(r.coords, r.triangles) + 1e-6
	r.searchDist2 = reach * reach
	return r
}

// candidateTriangles returns, in ascending order, every triangle with a vertex
// within the search radius of p. The set does not depend on the tree layout,
// which keeps triangle choice reproducible.
func (r *Resolver) candidateTriangles(p r3.Vec) []int {
	keeper := kdtree.NewDistKeeper(r.searchDist2)
	r.tree.NearestSet(keeper, spherePoint{Vec: p, index: -1})

	seen := make(map[int]struct{})
	var tris []int
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		v := item.Comparable.(spherePoint).index
		for _, t := range r.incident[v] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tris = append(tris, t)
			}
		}
	}
	sort.Ints(tris)
	return tris
}

// barycentric returns the weights of the central projection of p onto the
// plane of triangle t, and whether they are all non-negative.
func (r *Resolver) barycentric(t int, p r3.Vec) ([3]float64, bool) {
	tri := r.triangles[t]
	a, b, c := r.coords[tri[0]], r.coords[tri[1]], r.coords[tri[2]]

	// signed volumes of the tetrahedra formed with the origin
	w := [3]float64{
		r3.Dot(p, r3.Cross(b, c)),
		r3.Dot(a, r3.Cross(p, c)),
		r3.Dot(a, r3.Cross(b, p)),
	}
	if r3.Dot(a, r3.Cross(b, c)) < 0 {
		w[0], w[1], w[2] = -w[0], -w[1], -w[2]
	}
	sum := w[0] + w[1] + w[2]
	if sum <= 0 {
		return [3]float64{}, false
	}
	tol := 1e-10 * (math.Abs(w[0]) + math.Abs(w[1]) + math.Abs(w[2]))
	inside := true
	for i := range w {
		if w[i] < -tol {
			inside = false
		}
		w[i] /= sum
	}
	return w, inside
}

// containing returns the lowest-index triangle containing p with its
// barycentric weights. With no containing triangle it returns the one p is
// least outside of, or -1 when no candidate faces p.
func (r *Resolver) containing(p r3.Vec) (int, [3]float64) {
	best, bestMin := -1, math.Inf(-1)
	var bestW [3]float64
	for _, t := range r.candidateTriangles(p) {
		w, inside := r.barycentric(t, p)
		if inside {
			return t, w
		}
		lowest := math.Min(w[0], math.Min(w[1], w[2]))
		if w != ([3]float64{}) && lowest > bestMin {
			best, bestMin, bestW = t, lowest, w
		}
	}
	return best, bestW
}

// Locate returns the weights of the current-sphere vertices interpolating
// the point p, which must lie on the unit sphere.
func (r *Resolver) Locate(p r3.Vec) []Weight {
	best, bestW := r.containing(p)
	if best < 0 {
		nearest, _ := r.tree.Nearest(spherePoint{Vec: p, index: -1})
		return []Weight{{Source: nearest.(spherePoint).index, Weight: 1}}
	}

	tri := r.triangles[best]
	weights := make([]Weight, 0, 3)
	total := 0.0
	for i := 0; i < 3; i++ {
		if bestW[i] > pruneWeight {
			weights = append(weights, Weight{Source: tri[i], Weight: bestW[i]})
			total += bestW[i]
		}
	}
	for i := range weights {
		weights[i].Weight /= total
	}
	return weights
}

// Resolve builds the correspondence from every vertex of the new sphere to the
// current sphere. Both surfaces must be spheres.
func Resolve(current, next *models.Surface, pool *workers.Pool) (Correspondence, error) {
	if _, err := CheckSphere(current); err != nil {
		return nil, fmt.Errorf("current sphere: %w", err)
	}
	if _, err := CheckSphere(next); err != nil {
		return nil, fmt.Errorf("new sphere: %w", err)
	}

	r := NewResolver(current)
	targets := unitCoords(next)
	corr := make(Correspondence, len(targets))
	pool.ForEach(len(targets), func(i int) {
		corr[i] = r.Locate(targets[i])
	})
	return corr, nil
}
