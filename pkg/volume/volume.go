package volume

import (
	"fmt"
	"math"

	"dconnresample/internal/models"
)

// snapTolerance is how close to an integer a voxel coordinate must be to be
// treated as lying exactly on the voxel centre
const snapTolerance = 1e-6

// Volume is a vector-valued volume: Components values per voxel, stored voxel
// by voxel with i varying fastest.
type Volume struct {
	Grid       *models.Grid
	Components int
	Data       []float64

	// Mask marks the voxels holding data; nil means every voxel does
	Mask []bool
}

// New allocates a zeroed volume.
func New(grid *models.Grid, components int) *Volume {
	return &Volume{
		Grid:       grid,
		Components: components,
		Data:       make([]float64, grid.NumVoxels()*components),
	}
}

// NewFromData wraps existing data, checking its length.
func NewFromData(grid *models.Grid, components int, data []float64) (*Volume, error) {
	if len(data) != grid.NumVoxels()*components {
		return nil, fmt.Errorf("volume data has %d values, expected %d voxels x %d components", len(data), grid.NumVoxels(), components)
	}
	return &Volume{Grid: grid, Components: components, Data: data}, nil
}

// Voxel returns the component slice of the voxel at linear index idx.
func (v *Volume) Voxel(idx int) []float64 {
	return v.Data[idx*v.Components : (idx+1)*v.Components]
}

func snap(x float64) float64 {
	r := math.Round(x)
	if math.Abs(x-r) < snapTolerance {
		return r
	}
	return x
}

// inRange reports whether a coordinate is within the span of voxel centres.
func inRange(x float64, dim int) bool {
	return x >= 0 && x <= float64(dim-1)
}

// Sample interpolates every component at fractional voxel coordinates and
// writes the result to out. It returns false, leaving out zeroed, when the
// point falls outside the volume or every voxel it draws on with a nonzero
// weight is outside Mask.
func (v *Volume) Sample(method Method, ijk [3]float64, out []float64) bool {
	for c := range out {
		out[c] = 0
	}
	for axis := range ijk {
		ijk[axis] = snap(ijk[axis])
	}
	dims := v.Grid.Dims

	switch method {
	case EnclosingVoxel:
		var idx [3]int
		for axis := 0; axis < 3; axis++ {
			idx[axis] = int(math.Floor(ijk[axis] + 0.5))
		}
		if !v.Grid.Contains(idx) {
			return false
		}
		n := v.Grid.Index(idx[0], idx[1], idx[2])
		if !v.has(n) {
			return false
		}
		copy(out, v.Voxel(n))
		return true

	case Trilinear:
		var lo [3]int
		var frac [3]float64
		for axis := 0; axis < 3; axis++ {
			if !inRange(ijk[axis], dims[axis]) {
				return false
			}
			lo[axis] = int(math.Floor(ijk[axis]))
			if lo[axis] >= dims[axis]-1 {
				lo[axis] = dims[axis] - 1
			}
			frac[axis] = ijk[axis] - float64(lo[axis])
		}
		hit := false
		for dk := 0; dk < 2; dk++ {
			wk := linearWeight(frac[2], dk)
			if wk == 0 {
				continue
			}
			for dj := 0; dj < 2; dj++ {
				wj := linearWeight(frac[1], dj)
				if wj == 0 {
					continue
				}
				for di := 0; di < 2; di++ {
					wi := linearWeight(frac[0], di)
					if wi == 0 {
						continue
					}
					hit = v.accumulate(out, wi*wj*wk, lo[0]+di, lo[1]+dj, lo[2]+dk) || hit
				}
			}
		}
		if !hit {
			clear(out)
		}
		return hit

	case Cubic:
		var base [3]int
		var weights [3][4]float64
		for axis := 0; axis < 3; axis++ {
			if !inRange(ijk[axis], dims[axis]) {
				return false
			}
			base[axis] = int(math.Floor(ijk[axis]))
			weights[axis] = cubicWeights(ijk[axis] - float64(base[axis]))
		}
		hit := false
		for dk := 0; dk < 4; dk++ {
			if weights[2][dk] == 0 {
				continue
			}
			k := clamp(base[2]+dk-1, dims[2])
			for dj := 0; dj < 4; dj++ {
				if weights[1][dj] == 0 {
					continue
				}
				j := clamp(base[1]+dj-1, dims[1])
				for di := 0; di < 4; di++ {
					if weights[0][di] == 0 {
						continue
					}
					i := clamp(base[0]+di-1, dims[0])
					hit = v.accumulate(out, weights[0][di]*weights[1][dj]*weights[2][dk], i, j, k) || hit
				}
			}
		}
		if !hit {
			clear(out)
		}
		return hit
	}
	return false
}

func (v *Volume) has(idx int) bool {
	return v.Mask == nil || v.Mask[idx]
}

// accumulate adds w times the voxel to out and reports whether the voxel
// holds data.
func (v *Volume) accumulate(out []float64, w float64, i, j, k int) bool {
	idx := v.Grid.Index(i, j, k)
	vox := v.Voxel(idx)
	for c := range out {
		out[c] += w * vox[c]
	}
	return v.has(idx)
}

func linearWeight(frac float64, step int) float64 {
	if step == 0 {
		return 1 - frac
	}
	return frac
}

// cubicWeights returns the Catmull-Rom weights of the samples at offsets
// -1, 0, 1 and 2 from the base voxel.
func cubicWeights(f float64) [4]float64 {
	f2 := f * f
	f3 := f2 * f
	return [4]float64{
		(-f3 + 2*f2 - f) / 2,
		(3*f3 - 5*f2 + 2) / 2,
		(-3*f3 + 4*f2 + f) / 2,
		(f3 - f2) / 2,
	}
}

func clamp(i, dim int) int {
	if i < 0 {
		return 0
	}
	if i >= dim {
		return dim - 1
	}
	return i
}
