package job

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"dconnresample/internal/models"
	"dconnresample/pkg/config"
	"dconnresample/pkg/matio"
	"dconnresample/pkg/resample"
	"dconnresample/pkg/volume"
)

// Spaces holds the four brainordinate spaces of a run
type Spaces struct {
	Rows           *models.Space
	Columns        *models.Space
	RowTemplate    *models.Space
	ColumnTemplate *models.Space
}

// loader reads the arrays a job refers to, reading each file once
type loader struct {
	job      *Job
	surfaces map[MeshSpec]*models.Surface
	vectors  map[string][]float64
}

func newLoader(j *Job) *loader {
	return &loader{
		job:      j,
		surfaces: make(map[MeshSpec]*models.Surface),
		vectors:  make(map[string][]float64),
	}
}

func (l *loader) surface(m *MeshSpec) (*models.Surface, error) {
	if m == nil {
		return nil, nil
	}
	if s, ok := l.surfaces[*m]; ok {
		return s, nil
	}
	s, err := matio.ReadSurface(l.job.Path(m.Coords), l.job.Path(m.Triangles))
	if err != nil {
		return nil, err
	}
	l.surfaces[*m] = s
	return s, nil
}

func (l *loader) vector(path string) ([]float64, error) {
	if path == "" {
		return nil, nil
	}
	if v, ok := l.vectors[path]; ok {
		return v, nil
	}
	v, err := matio.ReadVector(l.job.Path(path))
	if err != nil {
		return nil, err
	}
	l.vectors[path] = v
	return v, nil
}

// integers converts array values to indices, rejecting fractions.
func integers(path string, data []float64) ([]int, error) {
	out := make([]int, len(data))
	for i, v := range data {
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s: value %d is not an integer: %g", path, i, v)
		}
		out[i] = int(v)
	}
	return out, nil
}

func (g GridSpec) grid() (*models.Grid, error) {
	return models.NewGrid(g.Dims, g.Sform)
}

func (l *loader) segment(spec SegmentSpec) (*models.Segment, error) {
	structure := models.Structure(spec.Structure)
	if spec.Structure == "" {
		return nil, fmt.Errorf("segment without a structure name")
	}

	if spec.Grid != nil {
		if spec.VertexCount != 0 || len(spec.Vertices) > 0 || spec.VerticesFile != "" {
			return nil, fmt.Errorf("segment %s mixes surface and volume fields", structure)
		}
		grid, err := spec.Grid.grid()
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", structure, err)
		}
		voxels := spec.Voxels
		if spec.VoxelsFile != "" {
			data, shape, err := matio.ReadArray(l.job.Path(spec.VoxelsFile))
			if err != nil {
				return nil, err
			}
			if len(shape) != 2 || shape[1] != 3 {
				return nil, fmt.Errorf("%s: voxels need shape N x 3, got %v", spec.VoxelsFile, shape)
			}
			idx, err := integers(spec.VoxelsFile, data)
			if err != nil {
				return nil, err
			}
			voxels = make([][3]int, shape[0])
			for i := range voxels {
				voxels[i] = [3]int{idx[3*i], idx[3*i+1], idx[3*i+2]}
			}
		}
		if len(voxels) == 0 {
			return nil, fmt.Errorf("volume segment %s lists no voxels", structure)
		}
		return models.NewVolumeSegment(structure, grid, voxels), nil
	}

	vertices := spec.Vertices
	if spec.VerticesFile != "" {
		data, err := matio.ReadVector(l.job.Path(spec.VerticesFile))
		if err != nil {
			return nil, err
		}
		if vertices, err = integers(spec.VerticesFile, data); err != nil {
			return nil, err
		}
	}
	return models.NewSurfaceSegment(structure, spec.VertexCount, vertices), nil
}

func (l *loader) space(specs []SegmentSpec) (*models.Space, error) {
	segments := make([]*models.Segment, 0, len(specs))
	for _, spec := range specs {
		seg, err := l.segment(spec)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return models.NewSpace(segments...)
}

// BuildSpaces creates the source and template spaces of both axes.
func (j *Job) BuildSpaces() (*Spaces, error) {
	l := newLoader(j)
	srcRows, srcCols, err := j.Source.pick()
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	tplRows, tplCols, err := j.Template.pick()
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}

	sp := &Spaces{}
	for _, s := range []struct {
		name  string
		specs []SegmentSpec
		dst   **models.Space
	}{
		{"source rows", srcRows, &sp.Rows},
		{"source columns", srcCols, &sp.Columns},
		{"template rows", tplRows, &sp.RowTemplate},
		{"template columns", tplCols, &sp.ColumnTemplate},
	} {
		space, err := l.space(s.specs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = space
	}
	return sp, nil
}

// BuildConfigs reads the resampling inputs of both axes. Structure settings
// left empty in the job take their defaults from cfg.
func (j *Job) BuildConfigs(cfg *config.Config) (rows, cols resample.Configs, err error) {
	l := newLoader(j)
	rows, err = l.configs(j.Structures, cfg)
	if err != nil {
		return nil, nil, err
	}
	if j.ColumnStructures == nil {
		return rows, rows, nil
	}
	cols, err = l.configs(j.ColumnStructures, cfg)
	if err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

func (l *loader) configs(specs map[string]StructureSpec, cfg *config.Config) (resample.Configs, error) {
	out := make(resample.Configs, len(specs))
	for name, spec := range specs {
		var sc resample.StructureConfig
		if spec.Surface != nil {
			s, err := l.surfaceConfig(spec.Surface, cfg)
			if err != nil {
				return nil, fmt.Errorf("structure %s: %w", name, err)
			}
			sc.Surface = s
		}
		if spec.Volume != nil {
			v, err := l.volumeConfig(spec.Volume, cfg)
			if err != nil {
				return nil, fmt.Errorf("structure %s: %w", name, err)
			}
			sc.Volume = v
		}
		out[models.Structure(name)] = sc
	}
	return out, nil
}

func (l *loader) surfaceConfig(spec *SurfaceSpec, cfg *config.Config) (*resample.SurfaceConfig, error) {
	sc := &resample.SurfaceConfig{DilateMM: cfg.SurfaceDilation()}
	if spec.DilateMM != nil {
		if *spec.DilateMM <= 0 {
			return nil, fmt.Errorf("%w: surface dilateMM must be positive, got %g", resample.InvalidDilationRadius, *spec.DilateMM)
		}
		sc.DilateMM = *spec.DilateMM
	}

	var err error
	if sc.CurrentSphere, err = l.surface(&spec.CurrentSphere); err != nil {
		return nil, err
	}
	if sc.NewSphere, err = l.surface(&spec.NewSphere); err != nil {
		return nil, err
	}
	if sc.CurrentAreaSurface, err = l.surface(spec.CurrentArea); err != nil {
		return nil, err
	}
	if sc.NewAreaSurface, err = l.surface(spec.NewArea); err != nil {
		return nil, err
	}
	if sc.CurrentAreas, err = l.vector(spec.CurrentAreaMetric); err != nil {
		return nil, err
	}
	if sc.NewAreas, err = l.vector(spec.NewAreaMetric); err != nil {
		return nil, err
	}
	return sc, nil
}

func (l *loader) volumeConfig(spec *VolumeSpec, cfg *config.Config) (*resample.VolumeConfig, error) {
	vc := &resample.VolumeConfig{Method: cfg.Volume.Method, DilateMM: cfg.VolumeDilation()}
	if spec.DilateMM != nil {
		if *spec.DilateMM <= 0 {
			return nil, fmt.Errorf("%w: volume dilateMM must be positive, got %g", resample.InvalidDilationRadius, *spec.DilateMM)
		}
		vc.DilateMM = *spec.DilateMM
	}
	if spec.Method != "" {
		// an unknown name is kept invalid so validation reports it per structure
		m, err := volume.ParseMethod(spec.Method)
		if err != nil {
			m = volume.Method(-1)
		}
		vc.Method = m
	}

	if spec.Affine != nil {
		src, err := l.affine(spec.Affine)
		if err != nil {
			return nil, err
		}
		vc.Affine = src
	}
	if spec.Warpfield != nil {
		src, err := l.warpfield(spec.Warpfield)
		if err != nil {
			return nil, err
		}
		vc.Warpfield = src
	}
	return vc, nil
}

func (l *loader) affine(spec *AffineSpec) (volume.TransformSource, error) {
	if (len(spec.Matrix) > 0) == (spec.File != "") {
		return nil, fmt.Errorf("affine needs exactly one of matrix and file")
	}
	var values []float64
	if spec.File != "" {
		m, err := matio.ReadAffine(l.job.Path(spec.File))
		if err != nil {
			return nil, err
		}
		values = m.RawMatrix().Data
	} else {
		if len(spec.Matrix) != 16 {
			return nil, fmt.Errorf("affine matrix needs 16 values, got %d", len(spec.Matrix))
		}
		values = spec.Matrix
	}
	m := mat.NewDense(4, 4, append([]float64(nil), values...))

	if spec.Flirt == nil {
		return volume.Affine{Matrix: m}, nil
	}
	source, err := spec.Flirt.Source.grid()
	if err != nil {
		return nil, fmt.Errorf("flirt source volume: %w", err)
	}
	target, err := spec.Flirt.Target.grid()
	if err != nil {
		return nil, fmt.Errorf("flirt target volume: %w", err)
	}
	return volume.AffineFlirt{Matrix: m, Source: source, Target: target}, nil
}

func (l *loader) warpfield(spec *WarpfieldSpec) (volume.TransformSource, error) {
	grid, err := spec.Grid.grid()
	if err != nil {
		return nil, fmt.Errorf("warpfield grid: %w", err)
	}
	data, shape, err := matio.ReadArray(l.job.Path(spec.File))
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 || shape[1] != 3 {
		return nil, fmt.Errorf("%s: warpfield needs shape N x 3, got %v", spec.File, shape)
	}
	field, err := volume.NewFromData(grid, 3, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.File, err)
	}
	if spec.Fnirt == nil {
		return volume.Deformation{Field: field}, nil
	}
	source, err := spec.Fnirt.grid()
	if err != nil {
		return nil, fmt.Errorf("fnirt source volume: %w", err)
	}
	return volume.DeformationFnirt{Field: field, Source: source}, nil
}
