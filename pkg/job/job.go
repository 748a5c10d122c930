// Package job describes one resampling run in a YAML file: the matrix to
// read and write, the source and template brainordinate spaces, and the
// per-structure resampling inputs, which refer to .npy arrays on disk.
package job

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dconnresample/pkg/resample"
)

// GridSpec describes a volume space
type GridSpec struct {
	// Dims is the number of voxels along i, j and k
	Dims [3]int `yaml:"dims"`

	// Sform is the row-major 4x4 voxel to physical affine
	Sform []float64 `yaml:"sform"`
}

// SegmentSpec describes one structure of a space. Surface structures set
// VertexCount, volume structures set Grid.
type SegmentSpec struct {
	Structure string `yaml:"structure"`

	// VertexCount is the number of vertices of the structure's mesh
	VertexCount int `yaml:"vertexCount,omitempty"`

	// Vertices lists the vertices present, in order; empty means all.
	// VerticesFile names a 1-D array with the same content.
	Vertices     []int  `yaml:"vertices,omitempty"`
	VerticesFile string `yaml:"verticesFile,omitempty"`

	Grid *GridSpec `yaml:"grid,omitempty"`

	// Voxels lists the voxels present, in order. VoxelsFile names an N x 3
	// array with the same content.
	Voxels     [][3]int `yaml:"voxels,omitempty"`
	VoxelsFile string   `yaml:"voxelsFile,omitempty"`
}

// SpaceSpecs describes the spaces of both matrix axes
type SpaceSpecs struct {
	Rows    []SegmentSpec `yaml:"rows"`
	Columns []SegmentSpec `yaml:"columns,omitempty"`

	// Direction, when set to ROW or COLUMN, uses that axis's space for both
	// axes
	Direction string `yaml:"direction,omitempty"`
}

// MeshSpec names the arrays of a mesh
type MeshSpec struct {
	Coords    string `yaml:"coords"`
	Triangles string `yaml:"triangles"`
}

// SurfaceSpec holds the surface resampling inputs of a structure
type SurfaceSpec struct {
	CurrentSphere MeshSpec `yaml:"currentSphere"`
	NewSphere     MeshSpec `yaml:"newSphere"`

	// CurrentArea and NewArea are anatomical surfaces for area correction
	CurrentArea *MeshSpec `yaml:"currentArea,omitempty"`
	NewArea     *MeshSpec `yaml:"newArea,omitempty"`

	// CurrentAreaMetric and NewAreaMetric are 1-D vertex area arrays
	CurrentAreaMetric string `yaml:"currentAreaMetric,omitempty"`
	NewAreaMetric     string `yaml:"newAreaMetric,omitempty"`

	// DilateMM overrides the configured surface dilation radius. When set it
	// must be positive; omit it to keep the configured radius.
	DilateMM *float64 `yaml:"dilateMM,omitempty"`
}

// AffineSpec gives an affine inline or as a 4x4 array
type AffineSpec struct {
	Matrix []float64 `yaml:"matrix,omitempty"`
	File   string    `yaml:"file,omitempty"`

	// Flirt marks a FLIRT matrix, converted using the source and target
	// volume spaces
	Flirt *struct {
		Source GridSpec `yaml:"source"`
		Target GridSpec `yaml:"target"`
	} `yaml:"flirt,omitempty"`
}

// WarpfieldSpec gives a deformation field as an N x 3 array in voxel order,
// i fastest, on its own grid
type WarpfieldSpec struct {
	File string   `yaml:"file"`
	Grid GridSpec `yaml:"grid"`

	// Fnirt marks a FNIRT displacement field; it holds the source volume space
	Fnirt *GridSpec `yaml:"fnirt,omitempty"`
}

// VolumeSpec holds the volume resampling inputs of a structure
type VolumeSpec struct {
	Affine    *AffineSpec    `yaml:"affine,omitempty"`
	Warpfield *WarpfieldSpec `yaml:"warpfield,omitempty"`

	// Method overrides the configured volume method
	Method string `yaml:"method,omitempty"`

	// DilateMM overrides the configured volume dilation radius. When set it
	// must be positive; omit it to keep the configured radius.
	DilateMM *float64 `yaml:"dilateMM,omitempty"`
}

// StructureSpec holds the inputs of one structure; leaving both empty
// passes it through.
type StructureSpec struct {
	Surface *SurfaceSpec `yaml:"surface,omitempty"`
	Volume  *VolumeSpec  `yaml:"volume,omitempty"`
}

// Job is a complete resampling run
type Job struct {
	// Input and Output are 2-D .npy matrices
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// Stats, if set, receives per-structure statistics as YAML
	Stats string `yaml:"stats,omitempty"`

	Source   SpaceSpecs `yaml:"source"`
	Template SpaceSpecs `yaml:"template"`

	// Structures applies to both axes unless ColumnStructures is given,
	// in which case it applies to rows only
	Structures       map[string]StructureSpec `yaml:"structures,omitempty"`
	ColumnStructures map[string]StructureSpec `yaml:"columnStructures,omitempty"`

	// dir is the directory relative paths are resolved against
	dir string
}

// Load reads a job file. Unknown fields are rejected.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading job file: %w", err)
	}
	j := &Job{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(j); err != nil {
		return nil, fmt.Errorf("error parsing job file %s: %w", path, err)
	}
	if j.Input == "" || j.Output == "" {
		return nil, fmt.Errorf("job file %s needs an input and an output", path)
	}
	if len(j.Source.Rows) == 0 || (len(j.Template.Rows) == 0 && len(j.Template.Columns) == 0) {
		return nil, fmt.Errorf("job file %s needs source and template spaces", path)
	}
	j.dir = filepath.Dir(path)
	return j, nil
}

// Path resolves a path from the job file against the job file's directory.
func (j *Job) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(j.dir, p)
}

// pick returns the segment lists to use for the row and column axes.
func (s SpaceSpecs) pick() ([]SegmentSpec, []SegmentSpec, error) {
	if s.Direction != "" {
		axis, err := resample.ParseAxis(s.Direction)
		if err != nil {
			return nil, nil, err
		}
		chosen := s.Rows
		if axis == resample.Column {
			chosen = s.Columns
		}
		if len(chosen) == 0 {
			return nil, nil, fmt.Errorf("direction %s selects an empty space", axis)
		}
		return chosen, chosen, nil
	}
	rows, cols := s.Rows, s.Columns
	if len(rows) == 0 {
		rows = cols
	}
	if len(cols) == 0 {
		cols = rows
	}
	return rows, cols, nil
}

// statsReport is the YAML layout of the statistics file
type statsReport struct {
	Rows    int                       `yaml:"rows"`
	Columns int                       `yaml:"columns"`
	Column  []resample.StructureStats `yaml:"columnPass"`
	Row     []resample.StructureStats `yaml:"rowPass"`
}

// WriteStats writes the per-structure statistics of a run as YAML.
func WriteStats(path string, res *resample.Result) error {
	r, c := res.Data.Dims()
	data, err := yaml.Marshal(statsReport{Rows: r, Columns: c, Column: res.ColumnStats, Row: res.RowStats})
	if err != nil {
		return fmt.Errorf("error marshaling stats: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating stats directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing stats file: %w", err)
	}
	return nil
}
