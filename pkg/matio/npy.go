// Package matio reads and writes the NumPy .npy arrays used by the command
// line tool for matrices, meshes, vertex areas and transforms. Arrays are
// always stored as little endian float64.
package matio

import (
	"fmt"
	"math"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
)

// ReadArray reads a float64 array and its shape. Column-major arrays are
// returned in row-major order.
func ReadArray(path string) ([]float64, []int, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	data, err := r.GetFloat64()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	shape := append([]int(nil), r.Shape...)
	if r.ColumnMajor && len(shape) == 2 {
		var t mat.Dense
		t.CloneFrom(mat.NewDense(shape[1], shape[0], data).T())
		data = t.RawMatrix().Data
	} else if r.ColumnMajor && len(shape) > 2 {
		return nil, nil, fmt.Errorf("%s: column-major arrays with %d dimensions are not supported", path, len(shape))
	}
	return data, shape, nil
}

// WriteArray writes a float64 array with the given shape.
func WriteArray(path string, shape []int, data []float64) error {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w.Shape = shape
	w.Version = 2
	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadDense reads a 2-D array as a matrix.
func ReadDense(path string) (*mat.Dense, error) {
	data, shape, err := ReadArray(path)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 || shape[0] == 0 || shape[1] == 0 {
		return nil, fmt.Errorf("%s: expected a non-empty 2-D array, got shape %v", path, shape)
	}
	return mat.NewDense(shape[0], shape[1], data), nil
}

// WriteDense writes a matrix as a 2-D array.
func WriteDense(path string, m *mat.Dense) error {
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return WriteArray(path, []int{rows, cols}, data)
}

// ReadVector reads a 1-D array, or a 2-D array with a single column.
func ReadVector(path string) ([]float64, error) {
	data, shape, err := ReadArray(path)
	if err != nil {
		return nil, err
	}
	if len(shape) == 1 || (len(shape) == 2 && shape[1] == 1) {
		return data, nil
	}
	return nil, fmt.Errorf("%s: expected a 1-D array, got shape %v", path, shape)
}

// ReadAffine reads a 4x4 affine matrix.
func ReadAffine(path string) (*mat.Dense, error) {
	m, err := ReadDense(path)
	if err != nil {
		return nil, err
	}
	if r, c := m.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("%s: expected a 4x4 affine, got %dx%d", path, r, c)
	}
	return m, nil
}

// ReadSurface reads a mesh from an N x 3 coordinate array and an M x 3
// triangle array holding integral vertex indices.
func ReadSurface(coordsPath, trianglesPath string) (*models.Surface, error) {
	coords, err := ReadDense(coordsPath)
	if err != nil {
		return nil, err
	}
	tris, err := ReadDense(trianglesPath)
	if err != nil {
		return nil, err
	}
	if _, c := coords.Dims(); c != 3 {
		return nil, fmt.Errorf("%s: coordinates need 3 columns, got %d", coordsPath, c)
	}
	if _, c := tris.Dims(); c != 3 {
		return nil, fmt.Errorf("%s: triangles need 3 columns, got %d", trianglesPath, c)
	}

	n, _ := coords.Dims()
	vertices := make([]r3.Vec, n)
	for i := range vertices {
		vertices[i] = r3.Vec{X: coords.At(i, 0), Y: coords.At(i, 1), Z: coords.At(i, 2)}
	}
	m, _ := tris.Dims()
	triangles := make([][3]int, m)
	for i := range triangles {
		for j := 0; j < 3; j++ {
			v := tris.At(i, j)
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("%s: triangle %d has non-integral vertex index %g", trianglesPath, i, v)
			}
			triangles[i][j] = int(v)
		}
	}
	return models.NewSurface(vertices, triangles)
}

// WriteSurface writes a mesh as coordinate and triangle arrays.
func WriteSurface(coordsPath, trianglesPath string, s *models.Surface) error {
	coords := make([]float64, 0, 3*len(s.Coords))
	for _, c := range s.Coords {
		coords = append(coords, c.X, c.Y, c.Z)
	}
	if err := WriteArray(coordsPath, []int{len(s.Coords), 3}, coords); err != nil {
		return err
	}
	tris := make([]float64, 0, 3*len(s.Triangles))
	for _, t := range s.Triangles {
		tris = append(tris, float64(t[0]), float64(t[1]), float64(t[2]))
	}
	return WriteArray(trianglesPath, []int{len(s.Triangles), 3}, tris)
}
