package surface

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/meshgen"
	"dconnresample/internal/models"
	"dconnresample/pkg/workers"
)

// TestCheckSphere verifies sphere detection on good and distorted meshes
func TestCheckSphere(t *testing.T) {
	s := meshgen.Icosphere(2, 100)
	radius, err := CheckSphere(s)
	if err != nil {
		t.Fatalf("Expected icosphere to pass, got %v", err)
	}
	if math.Abs(radius-100) > 1e-9 {
		t.Errorf("Expected radius 100, got %f", radius)
	}

	distorted := meshgen.Rotated(s, 0, 0)
	distorted.Coords[5] = r3.Scale(1.5, distorted.Coords[5])
	if _, err := CheckSphere(distorted); !errors.Is(err, ErrNotASphere) {
		t.Errorf("Expected ErrNotASphere, got %v", err)
	}

	flat := &models.Surface{
		Coords:    []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	if _, err := CheckSphere(flat); !errors.Is(err, ErrNotASphere) {
		t.Errorf("Expected ErrNotASphere for a single triangle, got %v", err)
	}
}

// TestVertexAreas verifies that vertex areas partition the surface area
func TestVertexAreas(t *testing.T) {
	s := meshgen.Icosphere(2, 1)
	areas := VertexAreas(s)
	if len(areas) != s.NumVertices() {
		t.Fatalf("Expected %d areas, got %d", s.NumVertices(), len(areas))
	}

	total := 0.0
	for _, tri := range s.Triangles {
		a, b, c := s.Coords[tri[0]], s.Coords[tri[1]], s.Coords[tri[2]]
		total += r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
	}
	sum := 0.0
	for _, a := range areas {
		if a <= 0 {
			t.Errorf("Expected positive vertex area, got %f", a)
		}
		sum += a
	}
	if math.Abs(sum-total) > 1e-9 {
		t.Errorf("Expected vertex areas to sum to %f, got %f", total, sum)
	}
	// an inscribed polyhedron is a little smaller than the sphere
	if sum > 4*math.Pi || sum < 0.9*4*math.Pi {
		t.Errorf("Expected area close to 4*pi, got %f", sum)
	}
}

// TestResolveIdentity verifies that resampling a sphere onto itself maps every
// vertex to itself with weight 1
func TestResolveIdentity(t *testing.T) {
	s := meshgen.Icosphere(2, 100)
	corr, err := Resolve(s, s, workers.New(4))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for v, weights := range corr {
		if len(weights) != 1 {
			t.Errorf("Vertex %d: expected a single weight, got %v", v, weights)
			continue
		}
		if weights[0].Source != v || math.Abs(weights[0].Weight-1) > 1e-12 {
			t.Errorf("Vertex %d: expected {%d 1}, got %v", v, v, weights[0])
		}
	}
}

// TestResolveWeightsSumToOne verifies the partition of unity across meshes
func TestResolveWeightsSumToOne(t *testing.T) {
	current := meshgen.Icosphere(2, 100)
	next := meshgen.Rotated(meshgen.Icosphere(3, 80), 0.3, 0.7)
	corr, err := Resolve(current, next, workers.New(0))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(corr) != next.NumVertices() {
		t.Fatalf("Expected %d targets, got %d", next.NumVertices(), len(corr))
	}
	for v, weights := range corr {
		if len(weights) == 0 || len(weights) > 3 {
			t.Errorf("Vertex %d: expected 1 to 3 weights, got %d", v, len(weights))
		}
		for _, w := range weights {
			if w.Weight < 0 {
				t.Errorf("Vertex %d: negative weight %f", v, w.Weight)
			}
		}
		if math.Abs(Sum(weights)-1) > 1e-5 {
			t.Errorf("Vertex %d: weights sum to %f", v, Sum(weights))
		}
	}
}

// TestResolveInterpolatesLinearField verifies that barycentric weights reproduce
// a smooth field sampled on the current sphere
func TestResolveInterpolatesLinearField(t *testing.T) {
	current := meshgen.Icosphere(4, 1)
	next := meshgen.Rotated(meshgen.Icosphere(2, 1), 0.2, 0.4)
	corr, err := Resolve(current, next, workers.New(2))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for v, weights := range corr {
		got := 0.0
		for _, w := range weights {
			got += w.Weight * current.Coords[w.Source].Z
		}
		if math.Abs(got-next.Coords[v].Z) > 0.02 {
			t.Errorf("Vertex %d: expected z %f, got %f", v, next.Coords[v].Z, got)
		}
	}
}

// TestSharedEdgeLowestTriangle verifies that a point on an edge or vertex
// shared by several triangles is assigned to the lowest-index one
func TestSharedEdgeLowestTriangle(t *testing.T) {
	// octahedron: +X, -X, +Y, -Y, +Z, -Z
	octa, err := models.NewSurface(
		[]r3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}},
		[][3]int{
			{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
			{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
		},
	)
	if err != nil {
		t.Fatalf("NewSurface failed: %v", err)
	}
	r := NewResolver(octa)
	h := 1 / math.Sqrt2

	cases := []struct {
		name string
		p    r3.Vec
		want int
	}{
		{"edge +X +Y", r3.Vec{X: h, Y: h}, 0},
		{"edge -X +Y", r3.Vec{X: -h, Y: h}, 1},
		{"edge -X -Y", r3.Vec{X: -h, Y: -h}, 2},
		{"edge +X -Z", r3.Vec{X: h, Z: -h}, 4},
		{"vertex +Z", r3.Vec{Z: 1}, 0},
		{"vertex -Z", r3.Vec{Z: -1}, 4},
	}
	for _, c := range cases {
		got, w := r.containing(c.p)
		if got != c.want {
			t.Errorf("%s: expected triangle %d, got %d", c.name, c.want, got)
		}
		if math.Abs(w[0]+w[1]+w[2]-1) > 1e-12 {
			t.Errorf("%s: expected weights summing to 1, got %v", c.name, w)
		}
	}

	// the shared edge splits evenly between its two vertices
	weights := r.Locate(r3.Vec{X: h, Y: h})
	if len(weights) != 2 || weights[0].Source != 0 || weights[1].Source != 2 ||
		math.Abs(weights[0].Weight-0.5) > 1e-12 || math.Abs(weights[1].Weight-0.5) > 1e-12 {
		t.Errorf("Expected vertices 0 and 2 at 0.5 each, got %v", weights)
	}
}

// TestResolveDeterministic verifies that worker count does not change the result
func TestResolveDeterministic(t *testing.T) {
	current := meshgen.Icosphere(2, 100)
	// every other vertex of this mesh sits on a current edge midpoint
	next := meshgen.Icosphere(3, 100)
	a, err := Resolve(current, next, workers.New(1))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := Resolve(current, next, workers.New(8))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for v := range a {
		if len(a[v]) != len(b[v]) {
			t.Fatalf("Vertex %d: %v vs %v", v, a[v], b[v])
		}
		for i := range a[v] {
			if a[v][i] != b[v][i] {
				t.Errorf("Vertex %d: %v vs %v", v, a[v], b[v])
			}
		}
	}
}

// TestResolveRejectsNonSphere verifies the error for distorted inputs
func TestResolveRejectsNonSphere(t *testing.T) {
	s := meshgen.Icosphere(1, 10)
	bad := meshgen.Rotated(s, 0, 0)
	for i := range bad.Coords {
		bad.Coords[i].Z *= 3
	}
	if _, err := Resolve(s, bad, workers.New(1)); !errors.Is(err, ErrNotASphere) {
		t.Errorf("Expected ErrNotASphere, got %v", err)
	}
}

// TestLargest verifies that exactly one weight of 1 remains per target
func TestLargest(t *testing.T) {
	current := meshgen.Icosphere(2, 100)
	next := meshgen.Rotated(meshgen.Icosphere(2, 100), 0.1, 0.2)
	corr, err := Resolve(current, next, workers.New(0))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	largest := Largest(corr)
	for v, weights := range largest {
		if len(weights) != 1 || weights[0].Weight != 1 {
			t.Errorf("Vertex %d: expected a single weight of 1, got %v", v, weights)
			continue
		}
		for _, w := range corr[v] {
			if w.Weight > 0.5 && w.Source != weights[0].Source {
				t.Errorf("Vertex %d: picked %d but %d has weight %f", v, weights[0].Source, w.Source, w.Weight)
			}
		}
	}

	tie := Largest(Correspondence{{{Source: 7, Weight: 0.5}, {Source: 3, Weight: 0.5}}})
	if tie[0][0].Source != 3 {
		t.Errorf("Expected tie to go to vertex 3, got %d", tie[0][0].Source)
	}
}

// TestAreaCorrectPreservesSum verifies renormalization after area correction
func TestAreaCorrectPreservesSum(t *testing.T) {
	current := meshgen.Icosphere(2, 100)
	next := meshgen.Rotated(meshgen.Icosphere(3, 100), 0.5, 0.1)
	corr, err := Resolve(current, next, workers.New(0))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	currentAreas := VertexAreas(current)
	for i := range currentAreas {
		// make the correction non-trivial
		currentAreas[i] *= 1 + float64(i%5)
	}
	corrected := AreaCorrect(corr, currentAreas, VertexAreas(next))
	for v, weights := range corrected {
		if math.Abs(Sum(weights)-1) > 1e-5 {
			t.Errorf("Vertex %d: corrected weights sum to %f", v, Sum(weights))
		}
	}

	// a single pair makes the effect of the ratio easy to see
	simple := AreaCorrect(Correspondence{{{Source: 0, Weight: 0.5}, {Source: 1, Weight: 0.5}}}, []float64{1, 3}, []float64{2})
	if math.Abs(simple[0][0].Weight-0.25) > 1e-12 || math.Abs(simple[0][1].Weight-0.75) > 1e-12 {
		t.Errorf("Expected weights 0.25 and 0.75, got %v", simple[0])
	}

	zero := AreaCorrect(Correspondence{{{Source: 0, Weight: 1}}}, []float64{0}, []float64{1})
	if zero[0][0].Weight != 1 {
		t.Errorf("Expected uncorrected fallback, got %v", zero[0])
	}
}

// TestRestrict verifies that sources outside the valid set are removed
func TestRestrict(t *testing.T) {
	corr := Correspondence{
		{{Source: 0, Weight: 0.5}, {Source: 1, Weight: 0.5}},
		{{Source: 1, Weight: 1}},
		{{Source: 2, Weight: 0.2}, {Source: 0, Weight: 0.8}},
	}
	out, mask := Restrict(corr, []bool{true, false, true})
	if !mask[0] || mask[1] || !mask[2] {
		t.Errorf("Expected mask [true false true], got %v", mask)
	}
	if len(out[0]) != 1 || out[0][0].Source != 0 || out[0][0].Weight != 1 {
		t.Errorf("Expected target 0 to map to vertex 0 alone, got %v", out[0])
	}
	if len(out[1]) != 0 {
		t.Errorf("Expected target 1 to be empty, got %v", out[1])
	}
	if math.Abs(Sum(out[2])-1) > 1e-12 {
		t.Errorf("Expected target 2 to sum to 1, got %f", Sum(out[2]))
	}
}

func BenchmarkResolve(b *testing.B) {
	current := meshgen.Icosphere(4, 100)
	next := meshgen.Rotated(meshgen.Icosphere(4, 100), 0.3, 0.3)
	pool := workers.New(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Resolve(current, next, pool); err != nil {
			b.Fatal(err)
		}
	}
}
