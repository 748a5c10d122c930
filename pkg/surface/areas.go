package surface

import (
	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
)

// VertexAreas returns the area associated with each vertex: one third of the
// area of every triangle using it.
func VertexAreas(s *models.Surface) []float64 {
	areas := make([]float64, s.NumVertices())
	for _, tri := range s.Triangles {
		a, b, c := s.Coords[tri[0]], s.Coords[tri[1]], s.Coords[tri[2]]
		third := r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 6
		areas[tri[0]] += third
		areas[tri[1]] += third
		areas[tri[2]] += third
	}
	return areas
}
