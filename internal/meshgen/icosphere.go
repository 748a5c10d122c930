// Package meshgen builds synthetic spheres and grids for exercising the
// resampling engine.
package meshgen

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/models"
)

// Icosphere returns a subdivided icosahedron of the given radius. It has
// 10*4^subdivisions+2 vertices.
func Icosphere(subdivisions int, radius float64) *models.Surface {
	t := (1 + math.Sqrt(5)) / 2
	coords := []r3.Vec{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	for i := range coords {
		coords[i] = r3.Unit(coords[i])
	}
	triangles := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for s := 0; s < subdivisions; s++ {
		midpoints := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
			}
			if m, ok := midpoints[key]; ok {
				return m
			}
			coords = append(coords, r3.Unit(r3.Add(coords[a], coords[b])))
			midpoints[key] = len(coords) - 1
			return len(coords) - 1
		}
		next := make([][3]int, 0, 4*len(triangles))
		for _, tri := range triangles {
			ab := midpoint(tri[0], tri[1])
			bc := midpoint(tri[1], tri[2])
			ca := midpoint(tri[2], tri[0])
			next = append(next,
				[3]int{tri[0], ab, ca},
				[3]int{tri[1], bc, ab},
				[3]int{tri[2], ca, bc},
				[3]int{ab, bc, ca},
			)
		}
		triangles = next
	}

	for i := range coords {
		coords[i] = r3.Scale(radius, coords[i])
	}
	return &models.Surface{Coords: coords, Triangles: triangles}
}

// Rotated returns a copy of the surface rotated about the z axis and then the
// x axis by the given angles in radians.
func Rotated(s *models.Surface, aboutZ, aboutX float64) *models.Surface {
	cz, sz := math.Cos(aboutZ), math.Sin(aboutZ)
	cx, sx := math.Cos(aboutX), math.Sin(aboutX)
	coords := make([]r3.Vec, len(s.Coords))
	for i, p := range s.Coords {
		q := r3.Vec{X: cz*p.X - sz*p.Y, Y: sz*p.X + cz*p.Y, Z: p.Z}
		coords[i] = r3.Vec{X: q.X, Y: cx*q.Y - sx*q.Z, Z: sx*q.Y + cx*q.Z}
	}
	triangles := make([][3]int, len(s.Triangles))
	copy(triangles, s.Triangles)
	return &models.Surface{Coords: coords, Triangles: triangles}
}

// Grid returns a grid with isotropic spacing and the given origin.
func Grid(dims [3]int, spacing float64, origin r3.Vec) *models.Grid {
	g, err := models.NewGrid(dims, []float64{
		spacing, 0, 0, origin.X,
		0, spacing, 0, origin.Y,
		0, 0, spacing, origin.Z,
		0, 0, 0, 1,
	})
	if err != nil {
		panic(err)
	}
	return g
}

// UVSphere returns a latitude/longitude sphere with the given number of
// latitude rings between the poles and vertices per ring. It has
// rings*segments+2 vertices, which allows vertex counts an icosphere cannot
// reach.
func UVSphere(rings, segments int, radius float64) *models.Surface {
	coords := []r3.Vec{{Z: radius}}
	for r := 1; r <= rings; r++ {
		theta := math.Pi * float64(r) / float64(rings+1)
		for s := 0; s < segments; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segments)
			coords = append(coords, r3.Vec{
				X: radius * math.Sin(theta) * math.Cos(phi),
				Y: radius * math.Sin(theta) * math.Sin(phi),
				Z: radius * math.Cos(theta),
			})
		}
	}
	coords = append(coords, r3.Vec{Z: -radius})
	south := len(coords) - 1

	ring := func(r, s int) int { return 1 + (r-1)*segments + s%segments }
	var triangles [][3]int
	for s := 0; s < segments; s++ {
		triangles = append(triangles, [3]int{0, ring(1, s), ring(1, s+1)})
	}
	for r := 1; r < rings; r++ {
		for s := 0; s < segments; s++ {
			triangles = append(triangles,
				[3]int{ring(r, s), ring(r+1, s), ring(r+1, s+1)},
				[3]int{ring(r, s), ring(r+1, s+1), ring(r, s+1)},
			)
		}
	}
	for s := 0; s < segments; s++ {
		triangles = append(triangles, [3]int{south, ring(rings, s+1), ring(rings, s)})
	}
	return &models.Surface{Coords: coords, Triangles: triangles}
}
