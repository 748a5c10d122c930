package volume

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
)

// ErrBadTransform is returned when a transform source cannot be resolved
var ErrBadTransform = errors.New("invalid volume transform")

// Transform maps a physical coordinate in target space to the physical
// coordinate in source space whose value it should take.
type Transform interface {
	// Apply returns the source coordinate, or false when the transform is
	// undefined at p.
	Apply(p r3.Vec) (r3.Vec, bool)
}

// SourceKind tells affine transform sources from deformation fields
type SourceKind int

const (
	AffineKind SourceKind = iota
	DeformationKind
)

// TransformSource is one of the supported ways of specifying the volume
// transform. It is resolved once, before any sampling, into a Transform.
type TransformSource interface {
	Kind() SourceKind
	Resolve() (Transform, error)
}

// Affine is a 4x4 matrix mapping source physical space to target physical
// space.
type Affine struct {
	Matrix *mat.Dense
}

// AffineFlirt is an affine written by FLIRT, which works in the scaled voxel
// coordinates of the volumes it registered.
type AffineFlirt struct {
	Matrix *mat.Dense
	Source *models.Grid
	Target *models.Grid
}

// Deformation is a 3-component field on a target-space grid holding, for each
// voxel, the absolute source physical coordinate.
type Deformation struct {
	Field *Volume
}

// DeformationFnirt is a FNIRT relative displacement field in FSL coordinates.
type DeformationFnirt struct {
	Field  *Volume
	Source *models.Grid
}

func (Affine) Kind() SourceKind           { return AffineKind }
func (AffineFlirt) Kind() SourceKind      { return AffineKind }
func (Deformation) Kind() SourceKind      { return DeformationKind }
func (DeformationFnirt) Kind() SourceKind { return DeformationKind }

// Identity returns the affine source used when no transform is given.
func Identity() Affine {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return Affine{Matrix: m}
}

type affineTransform struct {
	inv [3][4]float64
}

func (t *affineTransform) Apply(p r3.Vec) (r3.Vec, bool) {
	m := &t.inv
	return r3.Vec{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}, true
}

// Resolve inverts the matrix, since sampling walks from target to source.
func (a Affine) Resolve() (Transform, error) {
	if a.Matrix == nil {
		return nil, fmt.Errorf("%w: affine matrix is missing", ErrBadTransform)
	}
	if r, c := a.Matrix.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("%w: affine must be 4x4, got %dx%d", ErrBadTransform, r, c)
	}
	var inv mat.Dense
	if err := inv.Inverse(a.Matrix); err != nil {
		return nil, fmt.Errorf("%w: affine is not invertible: %v", ErrBadTransform, err)
	}
	t := &affineTransform{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			t.inv[i][j] = inv.At(i, j)
		}
	}
	return t, nil
}

// fslScale returns the matrix from voxel indices to FSL scaled coordinates:
// voxel indices times spacing, with i flipped when the sform has a positive
// determinant.
func fslScale(g *models.Grid) *mat.Dense {
	spacing := g.Spacing()
	m := mat.NewDense(4, 4, []float64{
		spacing[0], 0, 0, 0,
		0, spacing[1], 0, 0,
		0, 0, spacing[2], 0,
		0, 0, 0, 1,
	})
	if mat.Det(g.Sform.Slice(0, 3, 0, 3)) > 0 {
		m.Set(0, 0, -spacing[0])
		m.Set(0, 3, float64(g.Dims[0]-1)*spacing[0])
	}
	return m
}

// fslToWorld returns the matrix from FSL coordinates of g to physical space.
func fslToWorld(g *models.Grid) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(fslScale(g)); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(g.Sform, &inv)
	return &out, nil
}

// WorldMatrix converts the FLIRT matrix into a physical-space affine:
// target sform * FSL(target)^-1 * flirt * FSL(source) * source sform^-1.
func (a AffineFlirt) WorldMatrix() (*mat.Dense, error) {
	if a.Matrix == nil || a.Source == nil || a.Target == nil {
		return nil, fmt.Errorf("%w: flirt affine needs a matrix, a source and a target volume", ErrBadTransform)
	}
	if r, c := a.Matrix.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("%w: affine must be 4x4, got %dx%d", ErrBadTransform, r, c)
	}
	toWorld, err := fslToWorld(a.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: target volume: %v", ErrBadTransform, err)
	}
	var srcInv mat.Dense
	if err := srcInv.Inverse(a.Source.Sform); err != nil {
		return nil, fmt.Errorf("%w: source volume: %v", ErrBadTransform, err)
	}
	var world mat.Dense
	world.Product(toWorld, a.Matrix, fslScale(a.Source), &srcInv)
	return &world, nil
}

// Resolve converts the matrix to physical space and inverts it.
func (a AffineFlirt) Resolve() (Transform, error) {
	world, err := a.WorldMatrix()
	if err != nil {
		return nil, err
	}
	return Affine{Matrix: world}.Resolve()
}

type fieldTransform struct {
	field *Volume
}

func (t *fieldTransform) Apply(p r3.Vec) (r3.Vec, bool) {
	var buf [3]float64
	if !t.field.Sample(Trilinear, t.field.Grid.SpaceToIndex(p), buf[:]) {
		return r3.Vec{}, false
	}
	return r3.Vec{X: buf[0], Y: buf[1], Z: buf[2]}, true
}

// Resolve checks the field shape.
func (d Deformation) Resolve() (Transform, error) {
	if d.Field == nil || d.Field.Grid == nil {
		return nil, fmt.Errorf("%w: deformation field is missing", ErrBadTransform)
	}
	if d.Field.Components != 3 {
		return nil, fmt.Errorf("%w: deformation field needs 3 components, got %d", ErrBadTransform, d.Field.Components)
	}
	return &fieldTransform{field: d.Field}, nil
}

// Absolute converts the FNIRT displacements into a field of absolute source
// physical coordinates.
func (d DeformationFnirt) Absolute() (*Volume, error) {
	if d.Field == nil || d.Field.Grid == nil || d.Source == nil {
		return nil, fmt.Errorf("%w: fnirt warpfield needs a field and a source volume", ErrBadTransform)
	}
	if d.Field.Components != 3 {
		return nil, fmt.Errorf("%w: fnirt warpfield needs 3 components, got %d", ErrBadTransform, d.Field.Components)
	}
	toWorld, err := fslToWorld(d.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: source volume: %v", ErrBadTransform, err)
	}
	scale := fslScale(d.Field.Grid)
	grid := d.Field.Grid
	out := New(grid, 3)
	for k := 0; k < grid.Dims[2]; k++ {
		for j := 0; j < grid.Dims[1]; j++ {
			for i := 0; i < grid.Dims[0]; i++ {
				idx := grid.Index(i, j, k)
				disp := d.Field.Voxel(idx)
				ijk := mat.NewVecDense(4, []float64{float64(i), float64(j), float64(k), 1})
				var fsl, world mat.VecDense
				fsl.MulVec(scale, ijk)
				fsl.SetVec(0, fsl.AtVec(0)+disp[0])
				fsl.SetVec(1, fsl.AtVec(1)+disp[1])
				fsl.SetVec(2, fsl.AtVec(2)+disp[2])
				world.MulVec(toWorld, &fsl)
				copy(out.Voxel(idx), world.RawVector().Data[:3])
			}
		}
	}
	return out, nil
}

// Resolve converts the displacements to absolute coordinates.
func (d DeformationFnirt) Resolve() (Transform, error) {
	abs, err := d.Absolute()
	if err != nil {
		return nil, err
	}
	return Deformation{Field: abs}.Resolve()
}
