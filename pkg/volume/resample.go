package volume

import (
	"math"

	"dconnresample/internal/models"
	"dconnresample/pkg/workers"
)

// Padding returns the voxel margin to add around a structure's bounding box:
// the dilation distance converted to voxels along each axis, plus the
// interpolation kernel support.
func Padding(grid *models.Grid, dilateMM float64, method Method) [3]int {
	var pad [3]int
	spacing := grid.Spacing()
	for axis := 0; axis < 3; axis++ {
		pad[axis] = method.Support()
		if dilateMM > 0 && spacing[axis] > 0 {
			pad[axis] += int(math.Ceil(dilateMM / spacing[axis]))
		}
	}
	return pad
}

// BoundingBox returns the grid covering the listed voxels enlarged by pad on
// every side, and the offset of its first voxel in the original grid. The box
// may extend past the original grid.
func BoundingBox(grid *models.Grid, voxels [][3]int, pad [3]int) (*models.Grid, [3]int) {
	lo := [3]int{math.MaxInt32, math.MaxInt32, math.MaxInt32}
	hi := [3]int{math.MinInt32, math.MinInt32, math.MinInt32}
	for _, v := range voxels {
		for axis := 0; axis < 3; axis++ {
			if v[axis] < lo[axis] {
				lo[axis] = v[axis]
			}
			if v[axis] > hi[axis] {
				hi[axis] = v[axis]
			}
		}
	}
	if len(voxels) == 0 {
		lo, hi = [3]int{}, [3]int{}
	}

	var offset, dims [3]int
	for axis := 0; axis < 3; axis++ {
		offset[axis] = lo[axis] - pad[axis]
		dims[axis] = hi[axis] - lo[axis] + 1 + 2*pad[axis]
	}
	return grid.Shifted(offset, dims), offset
}

// Fill builds a box volume holding vectors(i) at voxels[i], and the mask of
// voxels that received data. The mask is also the volume's Mask, so marking
// more voxels valid, as dilation does, makes them count when sampling.
func Fill(box *models.Grid, offset [3]int, voxels [][3]int, components int, vectors func(i int) []float64) (*Volume, []bool) {
	vol := New(box, components)
	valid := make([]bool, box.NumVoxels())
	for i, v := range voxels {
		idx := box.Index(v[0]-offset[0], v[1]-offset[1], v[2]-offset[2])
		copy(vol.Voxel(idx), vectors(i))
		valid[idx] = true
	}
	vol.Mask = valid
	return vol, valid
}

// ResampleVoxels samples src for every listed voxel of the target grid,
// mapping target voxel centres through tr. The result holds one vector of
// src.Components values per target voxel; targets mapping outside the source,
// or drawing only on voxels outside src.Mask, are left zero and marked invalid.
func ResampleVoxels(src *Volume, tr Transform, method Method, target *models.Grid, voxels [][3]int, pool *workers.Pool) ([]float64, []bool) {
	comps := src.Components
	out := make([]float64, len(voxels)*comps)
	valid := make([]bool, len(voxels))
	pool.ForEach(len(voxels), func(i int) {
		v := voxels[i]
		p := target.IndexToSpace(float64(v[0]), float64(v[1]), float64(v[2]))
		q, ok := tr.Apply(p)
		if !ok {
			return
		}
		valid[i] = src.Sample(method, src.Grid.SpaceToIndex(q), out[i*comps:(i+1)*comps])
	})
	return out, valid
}
