// Package surface computes surface resampling weights: the correspondence
// between two registered spheres, vertex-area correction and the
// largest-weight collapse.
package surface

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"dconnresample/internal/models"
)

var (
	// ErrNotASphere is returned when vertices are not equidistant from the origin
	ErrNotASphere = errors.New("surface is not a sphere")

	// ErrTopologyMismatch is returned when meshes or vertex counts disagree
	ErrTopologyMismatch = errors.New("surface topology mismatch")
)

// SphereTolerance is the largest allowed relative deviation of a vertex
// radius from the mean radius.
const SphereTolerance = 0.05

// CheckSphere verifies that every vertex lies at the same distance from the
// origin and returns the mean radius.
func CheckSphere(s *models.Surface) (float64, error) {
	n := s.NumVertices()
	if n < 4 || len(s.Triangles) < 4 {
		return 0, fmt.Errorf("%w: %d vertices and %d triangles cannot enclose a sphere", ErrNotASphere, n, len(s.Triangles))
	}
	radii := make([]float64, n)
	for i, c := range s.Coords {
		radii[i] = r3.Norm(c)
	}
	mean, variance := stat.MeanVariance(radii, nil)
	if mean <= 0 {
		return 0, fmt.Errorf("%w: mean radius is %g", ErrNotASphere, mean)
	}
	if math.Sqrt(variance)/mean > SphereTolerance/2 {
		return 0, fmt.Errorf("%w: radius standard deviation %.4g exceeds tolerance for mean radius %.4g", ErrNotASphere, math.Sqrt(variance), mean)
	}
	for i, r := range radii {
		if math.Abs(r-mean) > SphereTolerance*mean {
			return 0, fmt.Errorf("%w: vertex %d has radius %.4g, mean radius is %.4g", ErrNotASphere, i, r, mean)
		}
	}
	return mean, nil
}

// unitCoords projects every vertex onto the unit sphere.
func unitCoords(s *models.Surface) []r3.Vec {
	out := make([]r3.Vec, len(s.Coords))
	for i, c := range s.Coords {
		out[i] = r3.Unit(c)
	}
	return out
}

// maxEdgeLength returns the length of the longest triangle edge.
func maxEdgeLength(coords []r3.Vec, triangles [][3]int) float64 {
	longest := 0.0
	for _, tri := range triangles {
		for e := 0; e < 3; e++ {
			d := r3.Norm(r3.Sub(coords[tri[e]], coords[tri[(e+1)%3]]))
			if d > longest {
				longest = d
			}
		}
	}
	return longest
}
