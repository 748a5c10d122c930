package dilation

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
	"dconnresample/pkg/workers"
)

// tieTolerance is the relative slack within which two squared distances are
// considered equal
const tieTolerance = 1e-9

// voxelPoint is the physical centre of a valid voxel
type voxelPoint struct {
	r3.Vec
	index int
}

// Compare implements the kdtree.Comparable interface
func (p voxelPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(voxelPoint)
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
func (p voxelPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p voxelPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(voxelPoint)
	return r3.Norm2(r3.Sub(p.Vec, q.Vec))
}

type voxelPoints []voxelPoint

func (p voxelPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p voxelPoints) Len() int                              { return len(p) }
func (p voxelPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p voxelPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(voxelPlane{voxelPoints: p, Dim: d}, kdtree.MedianOfRandoms(voxelPlane{voxelPoints: p, Dim: d}, 100))
}

type voxelPlane struct {
	voxelPoints
	kdtree.Dim
}

func (p voxelPlane) Less(i, j int) bool {
	return p.voxelPoints[i].Compare(p.voxelPoints[j], p.Dim) < 0
}

func (p voxelPlane) Slice(start, end int) kdtree.SortSlicer {
	return voxelPlane{voxelPoints: p.voxelPoints[start:end], Dim: p.Dim}
}

func (p voxelPlane) Swap(i, j int) {
	p.voxelPoints[i], p.voxelPoints[j] = p.voxelPoints[j], p.voxelPoints[i]
}

// Volume fills the invalid voxels of grid. data holds comps values per voxel
// in grid index order and valid marks voxels holding source data; both are
// updated in place. Each invalid voxel takes the value of the valid voxel
// whose centre is nearest in physical space, if it lies within radius. Equal
// distances go to the lowest voxel index.
func Volume(grid *models.Grid, data []float64, comps int, valid []bool, radius float64, pool *workers.Pool) Stats {
	n := grid.NumVoxels()
	var points voxelPoints
	var targets []int
	for idx := 0; idx < n; idx++ {
		if valid[idx] {
			points = append(points, voxelPoint{Vec: voxelCentre(grid, idx), index: idx})
		} else {
			targets = append(targets, idx)
		}
	}
	stats := Stats{Unfilled: len(targets)}
	if radius <= 0 || len(targets) == 0 || len(points) == 0 {
		return stats
	}

	tree := kdtree.New(points, false)
	maxDist2 := radius * radius * (1 + tieTolerance)
	nearest := make([]int, len(targets))
	pool.ForEach(len(targets), func(t int) {
		nearest[t] = -1
		q := voxelPoint{Vec: voxelCentre(grid, targets[t]), index: -1}
		_, best := tree.Nearest(q)
		if best > maxDist2 {
			return
		}
		keeper := kdtree.NewDistKeeper(best*(1+tieTolerance) + 1e-12)
		tree.NearestSet(keeper, q)
		for _, item := range keeper.Heap {
			// Skip the sentinel value
			if item.Comparable == nil {
				continue
			}
			idx := item.Comparable.(voxelPoint).index
			if nearest[t] < 0 || idx < nearest[t] {
				nearest[t] = idx
			}
		}
	})

	for t, idx := range targets {
		src := nearest[t]
		if src < 0 {
			continue
		}
		copy(data[idx*comps:(idx+1)*comps], data[src*comps:(src+1)*comps])
		valid[idx] = true
		stats.Filled++
	}
	stats.Unfilled -= stats.Filled
	return stats
}

// voxelCentre returns the physical coordinate of the voxel at linear index idx
func voxelCentre(grid *models.Grid, idx int) r3.Vec {
	i := idx % grid.Dims[0]
	j := (idx / grid.Dims[0]) % grid.Dims[1]
	k := idx / (grid.Dims[0] * grid.Dims[1])
	return grid.IndexToSpace(float64(i), float64(j), float64(k))
}
