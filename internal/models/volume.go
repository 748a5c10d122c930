package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Grid describes a regularly sampled volume: its dimensions in voxels and the
// affine (sform) mapping voxel indices to physical millimetre coordinates.
type Grid struct {
	// Dims is the number of voxels along i, j and k
	Dims [3]int

	// Sform is the 4x4 voxel-to-physical affine
	Sform *mat.Dense

	// fwd and inv cache the top three rows of Sform and its inverse
	fwd [3][4]float64
	inv [3][4]float64
}

// NewGrid creates a grid from its dimensions and a row-major 4x4 sform.
func NewGrid(dims [3]int, sform []float64) (*Grid, error) {
	if len(sform) != 16 {
		return nil, fmt.Errorf("sform must have 16 values, got %d", len(sform))
	}
	for axis, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("grid dimension %d must be positive, got %d", axis, d)
		}
	}
	return NewGridFromMatrix(dims, mat.NewDense(4, 4, append([]float64(nil), sform...)))
}

// NewGridFromMatrix creates a grid from an existing 4x4 matrix. The matrix is
// copied.
func NewGridFromMatrix(dims [3]int, sform mat.Matrix) (*Grid, error) {
	r, c := sform.Dims()
	if r != 4 || c != 4 {
		return nil, fmt.Errorf("sform must be 4x4, got %dx%d", r, c)
	}
	g := &Grid{Dims: dims, Sform: mat.DenseCopyOf(sform)}
	if g.Sform.At(3, 0) != 0 || g.Sform.At(3, 1) != 0 || g.Sform.At(3, 2) != 0 || g.Sform.At(3, 3) != 1 {
		return nil, fmt.Errorf("sform last row must be 0 0 0 1")
	}

	var inv mat.Dense
	if err := inv.Inverse(g.Sform); err != nil {
		return nil, fmt.Errorf("sform is not invertible: %w", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			g.fwd[i][j] = g.Sform.At(i, j)
			g.inv[i][j] = inv.At(i, j)
		}
	}
	return g, nil
}

// NumVoxels returns the total number of voxels in the grid.
func (g *Grid) NumVoxels() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Index returns the linear index of a voxel, with i varying fastest.
func (g *Grid) Index(i, j, k int) int {
	return i + g.Dims[0]*(j+g.Dims[1]*k)
}

// Contains reports whether a voxel index lies inside the grid.
func (g *Grid) Contains(ijk [3]int) bool {
	for axis := 0; axis < 3; axis++ {
		if ijk[axis] < 0 || ijk[axis] >= g.Dims[axis] {
			return false
		}
	}
	return true
}

// IndexToSpace maps (possibly fractional) voxel coordinates to physical space.
func (g *Grid) IndexToSpace(i, j, k float64) r3.Vec {
	m := &g.fwd
	return r3.Vec{
		X: m[0][0]*i + m[0][1]*j + m[0][2]*k + m[0][3],
		Y: m[1][0]*i + m[1][1]*j + m[1][2]*k + m[1][3],
		Z: m[2][0]*i + m[2][1]*j + m[2][2]*k + m[2][3],
	}
}

// SpaceToIndex maps a physical coordinate to fractional voxel coordinates.
func (g *Grid) SpaceToIndex(p r3.Vec) [3]float64 {
	m := &g.inv
	return [3]float64{
		m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// Spacing returns the physical length of one voxel step along each axis.
func (g *Grid) Spacing() [3]float64 {
	var s [3]float64
	for axis := 0; axis < 3; axis++ {
		s[axis] = math.Sqrt(g.fwd[0][axis]*g.fwd[0][axis] + g.fwd[1][axis]*g.fwd[1][axis] + g.fwd[2][axis]*g.fwd[2][axis])
	}
	return s
}

// Shifted returns a grid with new dimensions whose voxel (0,0,0) sits at
// voxel offset of this grid. It is used to build padded bounding boxes.
func (g *Grid) Shifted(offset [3]int, dims [3]int) *Grid {
	sform := mat.DenseCopyOf(g.Sform)
	origin := g.IndexToSpace(float64(offset[0]), float64(offset[1]), float64(offset[2]))
	sform.Set(0, 3, origin.X)
	sform.Set(1, 3, origin.Y)
	sform.Set(2, 3, origin.Z)
	shifted, err := NewGridFromMatrix(dims, sform)
	if err != nil {
		// the linear part is unchanged, so the shifted sform stays invertible
		panic(err)
	}
	return shifted
}

// Equal reports whether two grids have the same dimensions and sform.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.Dims == o.Dims && mat.EqualApprox(g.Sform, o.Sform, 1e-6)
}
