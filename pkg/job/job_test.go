package job

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"dconnresample/internal/meshgen"
	"dconnresample/internal/models"
	"dconnresample/pkg/config"
	"dconnresample/pkg/matio"
	"dconnresample/pkg/resample"
	"dconnresample/pkg/volume"
)

const jobYAML = `input: conn.npy
output: out/conn.npy
source:
  rows:
    - structure: CORTEX_LEFT
      vertexCount: 42
    - structure: THALAMUS_LEFT
      grid: {dims: [4, 4, 4], sform: [2, 0, 0, -4, 0, 2, 0, -4, 0, 0, 2, -4, 0, 0, 0, 1]}
      voxels: [[1, 1, 1], [2, 1, 1]]
    - structure: THALAMUS_RIGHT
      grid: {dims: [4, 4, 4], sform: [2, 0, 0, -4, 0, 2, 0, -4, 0, 0, 2, -4, 0, 0, 0, 1]}
      voxelsFile: voxels.npy
template:
  rows:
    - structure: CORTEX_LEFT
      vertexCount: 42
      verticesFile: roi.npy
    - structure: THALAMUS_LEFT
      grid: {dims: [4, 4, 4], sform: [2, 0, 0, -4, 0, 2, 0, -4, 0, 0, 2, -4, 0, 0, 0, 1]}
      voxels: [[1, 1, 1], [2, 1, 1]]
    - structure: THALAMUS_RIGHT
      grid: {dims: [4, 4, 4], sform: [2, 0, 0, -4, 0, 2, 0, -4, 0, 0, 2, -4, 0, 0, 0, 1]}
      voxels: [[0, 2, 3]]
structures:
  CORTEX_LEFT:
    surface:
      currentSphere: {coords: sphere_coords.npy, triangles: sphere_tris.npy}
      newSphere: {coords: sphere_coords.npy, triangles: sphere_tris.npy}
      currentAreaMetric: areas.npy
      newAreaMetric: areas.npy
  THALAMUS_LEFT:
    volume:
      affine:
        matrix: [1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1]
      method: trilinear
  THALAMUS_RIGHT:
    volume:
      warpfield:
        file: warp.npy
        grid: {dims: [4, 4, 4], sform: [2, 0, 0, -4, 0, 2, 0, -4, 0, 0, 2, -4, 0, 0, 0, 1]}
      dilateMM: 1.5
`

// writeJob lays out a job directory with every array the job refers to
func writeJob(t *testing.T) (string, *models.Grid) {
	t.Helper()
	dir := t.TempDir()
	write := func(name string, shape []int, data []float64) {
		if err := matio.WriteArray(filepath.Join(dir, name), shape, data); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	s := meshgen.Icosphere(1, 100)
	if err := matio.WriteSurface(filepath.Join(dir, "sphere_coords.npy"), filepath.Join(dir, "sphere_tris.npy"), s); err != nil {
		t.Fatalf("WriteSurface failed: %v", err)
	}
	areas := make([]float64, s.NumVertices())
	for i := range areas {
		areas[i] = 1 + float64(i%3)
	}
	write("areas.npy", []int{len(areas)}, areas)
	write("roi.npy", []int{3}, []float64{40, 2, 17})
	write("voxels.npy", []int{3, 3}, []float64{0, 2, 3, 1, 2, 3, 3, 3, 3})

	grid, err := models.NewGrid([3]int{4, 4, 4}, []float64{2, 0, 0, -4, 0, 2, 0, -4, 0, 0, 2, -4, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	warp := make([]float64, 0, 3*grid.NumVoxels())
	for k := 0; k < 4; k++ {
		for j := 0; j < 4; j++ {
			for i := 0; i < 4; i++ {
				p := grid.IndexToSpace(float64(i), float64(j), float64(k))
				warp = append(warp, p.X, p.Y, p.Z)
			}
		}
	}
	write("warp.npy", []int{grid.NumVoxels(), 3}, warp)

	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte(jobYAML), 0644); err != nil {
		t.Fatalf("Failed to write job: %v", err)
	}
	return path, grid
}

// TestLoadJob verifies parsing and path resolution
func TestLoadJob(t *testing.T) {
	path, _ := writeJob(t)
	j, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(filepath.Dir(path), "out", "conn.npy"); j.Path(j.Output) != want {
		t.Errorf("Expected output %s, got %s", want, j.Path(j.Output))
	}
	if j.Path("/abs/file.npy") != "/abs/file.npy" {
		t.Errorf("Expected absolute paths to be kept")
	}
	if len(j.Structures) != 3 || j.Structures["THALAMUS_LEFT"].Volume == nil {
		t.Errorf("Unexpected structures %+v", j.Structures)
	}
}

// TestLoadRejectsBadJobs verifies unknown fields and missing sections
func TestLoadRejectsBadJobs(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown.yaml":  "input: a.npy\noutput: b.npy\nmystery: 1\n",
		"noinput.yaml":  "output: b.npy\nsource: {rows: [{structure: A, vertexCount: 3}]}\ntemplate: {rows: [{structure: A, vertexCount: 3}]}\n",
		"nospaces.yaml": "input: a.npy\noutput: b.npy\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

// TestBuildSpaces verifies segment construction from inline and file lists
func TestBuildSpaces(t *testing.T) {
	path, grid := writeJob(t)
	j, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sp, err := j.BuildSpaces()
	if err != nil {
		t.Fatalf("BuildSpaces failed: %v", err)
	}
	if sp.Rows.Len() != 47 || sp.Columns.Len() != 47 {
		t.Errorf("Expected 47 source brainordinates per axis, got %d and %d", sp.Rows.Len(), sp.Columns.Len())
	}
	if sp.RowTemplate.Len() != 6 || !sp.RowTemplate.Equal(sp.ColumnTemplate) {
		t.Errorf("Expected identical 6 element templates, got %d and %d", sp.RowTemplate.Len(), sp.ColumnTemplate.Len())
	}
	seg, _, ok := sp.RowTemplate.Lookup(models.CortexLeft)
	if !ok || len(seg.Vertices) != 3 || seg.Vertices[0] != 40 {
		t.Errorf("Expected the ROI vertices from file, got %+v", seg)
	}
	seg, offset, ok := sp.Rows.Lookup("THALAMUS_RIGHT")
	if !ok || offset != 44 || seg.Voxels[2] != [3]int{3, 3, 3} || !seg.Grid.Equal(grid) {
		t.Errorf("Expected voxels from file at offset 44, got %+v at %d", seg, offset)
	}
}

// TestTemplateDirection verifies that a direction selects one template axis
// for both axes
func TestTemplateDirection(t *testing.T) {
	specs := SpaceSpecs{
		Rows:    []SegmentSpec{{Structure: "A", VertexCount: 3}},
		Columns: []SegmentSpec{{Structure: "B", VertexCount: 5}},
	}
	rows, cols, err := specs.pick()
	if err != nil || rows[0].Structure != "A" || cols[0].Structure != "B" {
		t.Errorf("Expected each axis to keep its own space, got %v %v %v", rows, cols, err)
	}

	specs.Direction = "column"
	rows, cols, err = specs.pick()
	if err != nil || rows[0].Structure != "B" || cols[0].Structure != "B" {
		t.Errorf("Expected the column space on both axes, got %v %v %v", rows, cols, err)
	}

	specs.Direction = "DIAGONAL"
	if _, _, err := specs.pick(); err == nil {
		t.Errorf("Expected an unknown direction to be rejected")
	}

	only := SpaceSpecs{Columns: []SegmentSpec{{Structure: "C", VertexCount: 2}}}
	rows, _, _ = only.pick()
	if rows[0].Structure != "C" {
		t.Errorf("Expected a missing row space to fall back to columns, got %v", rows)
	}
}

// TestBuildConfigs verifies defaults and transform kinds
func TestBuildConfigs(t *testing.T) {
	path, _ := writeJob(t)
	j, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := config.DefaultConfig()
	radius := 3.0
	cfg.Volume.DilateMM = &radius

	rows, cols, err := j.BuildConfigs(cfg)
	if err != nil {
		t.Fatalf("BuildConfigs failed: %v", err)
	}
	if len(rows) != 3 || len(cols) != 3 {
		t.Fatalf("Expected 3 structures per axis, got %d and %d", len(rows), len(cols))
	}

	cortex := rows[models.CortexLeft].Surface
	if cortex == nil || cortex.CurrentSphere != cortex.NewSphere {
		t.Errorf("Expected the shared sphere file to be read once")
	}
	if len(cortex.CurrentAreas) != 42 || cortex.DilateMM != 0 {
		t.Errorf("Expected 42 areas and no dilation, got %d and %g", len(cortex.CurrentAreas), cortex.DilateMM)
	}

	left := rows["THALAMUS_LEFT"].Volume
	if left.Method != volume.Trilinear || left.DilateMM != 3 {
		t.Errorf("Expected TRILINEAR with the configured radius, got %s and %g", left.Method, left.DilateMM)
	}
	if _, ok := left.Affine.(volume.Affine); !ok {
		t.Errorf("Expected a plain affine, got %T", left.Affine)
	}

	right := rows["THALAMUS_RIGHT"].Volume
	if right.Method != volume.Cubic || right.DilateMM != 1.5 {
		t.Errorf("Expected the default method with its own radius, got %s and %g", right.Method, right.DilateMM)
	}
	if d, ok := right.Warpfield.(volume.Deformation); !ok || d.Field.Components != 3 {
		t.Errorf("Expected a 3 component deformation, got %T", right.Warpfield)
	}
}

// TestAffineSpecs verifies the affine variants and their errors
func TestAffineSpecs(t *testing.T) {
	dir := t.TempDir()
	l := newLoader(&Job{dir: dir})
	identity := []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	if err := matio.WriteArray(filepath.Join(dir, "affine.npy"), []int{4, 4}, identity); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}

	src, err := l.affine(&AffineSpec{File: "affine.npy"})
	if err != nil {
		t.Fatalf("affine from file failed: %v", err)
	}
	a := src.(volume.Affine)
	if !mat.Equal(a.Matrix, mat.NewDense(4, 4, identity)) {
		t.Errorf("Expected identity, got %v", mat.Formatted(a.Matrix))
	}

	spec := &AffineSpec{Matrix: identity}
	spec.Flirt = &struct {
		Source GridSpec `yaml:"source"`
		Target GridSpec `yaml:"target"`
	}{
		Source: GridSpec{Dims: [3]int{2, 2, 2}, Sform: identity},
		Target: GridSpec{Dims: [3]int{3, 3, 3}, Sform: identity},
	}
	src, err = l.affine(spec)
	if err != nil {
		t.Fatalf("flirt affine failed: %v", err)
	}
	if f, ok := src.(volume.AffineFlirt); !ok || f.Target.Dims != [3]int{3, 3, 3} {
		t.Errorf("Expected a FLIRT affine, got %T", src)
	}

	if _, err := l.affine(&AffineSpec{}); err == nil {
		t.Errorf("Expected an empty affine to be rejected")
	}
	if _, err := l.affine(&AffineSpec{Matrix: identity, File: "affine.npy"}); err == nil {
		t.Errorf("Expected matrix and file together to be rejected")
	}
	if _, err := l.affine(&AffineSpec{Matrix: identity[:12]}); err == nil {
		t.Errorf("Expected a short matrix to be rejected")
	}
}

// TestUnknownVolumeMethodIsReported verifies that a bad method name reaches
// validation as an unsupported method
func TestUnknownVolumeMethodIsReported(t *testing.T) {
	l := newLoader(&Job{dir: t.TempDir()})
	vc, err := l.volumeConfig(&VolumeSpec{Method: "SINC"}, config.DefaultConfig())
	if err != nil {
		t.Fatalf("volumeConfig failed: %v", err)
	}
	if vc.Method.Valid() {
		t.Errorf("Expected an invalid method, got %s", vc.Method)
	}

	grid := meshgen.Grid([3]int{3, 3, 3}, 1, r3.Vec{})
	space, err := models.NewSpace(models.NewVolumeSegment("PUTAMEN_LEFT", grid, [][3]int{{1, 1, 1}}))
	if err != nil {
		t.Fatalf("NewSpace failed: %v", err)
	}
	err = resample.Validate(space, space, resample.Row, resample.Configs{"PUTAMEN_LEFT": {Volume: vc}}, resample.Options{})
	if !errors.Is(err, resample.UnsupportedInterpolationMethod) {
		t.Errorf("Expected UnsupportedInterpolationMethod, got %v", err)
	}
}

// TestDilationOverrideMustBePositive verifies that job radius overrides
// follow the same rule as the configuration file
func TestDilationOverrideMustBePositive(t *testing.T) {
	l := newLoader(&Job{dir: t.TempDir()})
	cfg := config.DefaultConfig()
	for _, radius := range []float64{0, -2} {
		if _, err := l.volumeConfig(&VolumeSpec{DilateMM: &radius}, cfg); !errors.Is(err, resample.InvalidDilationRadius) {
			t.Errorf("Volume radius %g: expected InvalidDilationRadius, got %v", radius, err)
		}
		if _, err := l.surfaceConfig(&SurfaceSpec{DilateMM: &radius}, cfg); !errors.Is(err, resample.InvalidDilationRadius) {
			t.Errorf("Surface radius %g: expected InvalidDilationRadius, got %v", radius, err)
		}
	}

	r := 2.5
	vc, err := l.volumeConfig(&VolumeSpec{DilateMM: &r}, cfg)
	if err != nil {
		t.Fatalf("volumeConfig failed: %v", err)
	}
	if vc.DilateMM != 2.5 {
		t.Errorf("Expected radius 2.5, got %g", vc.DilateMM)
	}
}

// TestRunIdentityJob verifies that a job between identical spaces
// reproduces the input restricted to the template
func TestRunIdentityJob(t *testing.T) {
	path, _ := writeJob(t)
	j, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sp, err := j.BuildSpaces()
	if err != nil {
		t.Fatalf("BuildSpaces failed: %v", err)
	}
	rowConfigs, colConfigs, err := j.BuildConfigs(config.DefaultConfig())
	if err != nil {
		t.Fatalf("BuildConfigs failed: %v", err)
	}

	n := sp.Rows.Len()
	data := make([]float64, n*n)
	for i := range data {
		data[i] = math.Sin(float64(i))
	}
	m, err := resample.NewMatrix(mat.NewDense(n, n, data), sp.Rows, sp.Columns)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	res, err := resample.ResampleBothAxes(m, sp.RowTemplate, sp.ColumnTemplate, rowConfigs, colConfigs, resample.Options{Workers: 2})
	if err != nil {
		t.Fatalf("ResampleBothAxes failed: %v", err)
	}

	// template element -> source element
	picks := []int{40, 2, 17, 42, 43, 44}
	r, c := res.Data.Dims()
	if r != 6 || c != 6 {
		t.Fatalf("Expected a 6x6 result, got %dx%d", r, c)
	}
	for i, si := range picks {
		for k, sk := range picks {
			want := m.Data.At(si, sk)
			if got := res.Data.At(i, k); math.Abs(got-want) > 1e-9 {
				t.Errorf("Element (%d,%d): expected %f, got %f", i, k, want, got)
			}
		}
	}
	for _, st := range res.RowStats {
		if st.Unfilled != 0 {
			t.Errorf("Expected %s to be fully filled, got %d unfilled", st.Structure, st.Unfilled)
		}
	}
	if !strings.Contains(res.RowStats[0].Strategy, "surface") {
		t.Errorf("Expected the cortex to be resampled on the surface, got %s", res.RowStats[0].Strategy)
	}

	statsPath := filepath.Join(t.TempDir(), "stats", "run.yaml")
	if err := WriteStats(statsPath, res); err != nil {
		t.Fatalf("WriteStats failed: %v", err)
	}
	report, err := os.ReadFile(statsPath)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if !strings.Contains(string(report), "rowPass:") || !strings.Contains(string(report), "THALAMUS_RIGHT") {
		t.Errorf("Unexpected stats report:\n%s", report)
	}
}
