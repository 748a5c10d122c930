package models

import (
	"fmt"
)

// Structure is the anatomical tag of a segment, e.g. CORTEX_LEFT.
type Structure string

// Common structure tags
const (
	CortexLeft  Structure = "CORTEX_LEFT"
	CortexRight Structure = "CORTEX_RIGHT"
	Cerebellum  Structure = "CEREBELLUM"
)

// SegmentKind distinguishes surface segments from volume segments
type SegmentKind int

const (
	SurfaceKind SegmentKind = iota
	VolumeKind
)

func (k SegmentKind) String() string {
	switch k {
	case SurfaceKind:
		return "surface"
	case VolumeKind:
		return "volume"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one structure of a brainordinate space. A surface segment is a
// set of vertices of a mesh with VertexCount vertices; a volume segment is a
// list of voxels of a grid.
type Segment struct {
	// Structure is the anatomical tag, unique within a space
	Structure Structure

	// Kind tells which of the fields below are meaningful
	Kind SegmentKind

	// VertexCount is the number of vertices of the underlying mesh
	VertexCount int

	// Vertices lists the mesh vertices present in the axis, in axis order.
	// A nil list means every vertex in ascending order.
	Vertices []int

	// Grid is the volume space of a volume segment
	Grid *Grid

	// Voxels lists the voxel indices present in the axis, in axis order
	Voxels [][3]int
}

// NewSurfaceSegment creates a surface segment. Pass nil vertices to use
// every vertex of the mesh.
func NewSurfaceSegment(structure Structure, vertexCount int, vertices []int) *Segment {
	return &Segment{
		Structure:   structure,
		Kind:        SurfaceKind,
		VertexCount: vertexCount,
		Vertices:    vertices,
	}
}

// NewVolumeSegment creates a volume segment.
func NewVolumeSegment(structure Structure, grid *Grid, voxels [][3]int) *Segment {
	return &Segment{
		Structure: structure,
		Kind:      VolumeKind,
		Grid:      grid,
		Voxels:    voxels,
	}
}

// Len returns the number of brainordinates in the segment.
func (s *Segment) Len() int {
	if s.Kind == VolumeKind {
		return len(s.Voxels)
	}
	if s.Vertices == nil {
		return s.VertexCount
	}
	return len(s.Vertices)
}

// VertexList returns the explicit list of vertices of a surface segment.
func (s *Segment) VertexList() []int {
	if s.Vertices != nil {
		return s.Vertices
	}
	list := make([]int, s.VertexCount)
	for i := range list {
		list[i] = i
	}
	return list
}

// Equal reports whether two segments index the same brainordinates in the
// same order.
func (s *Segment) Equal(o *Segment) bool {
	if s.Structure != o.Structure || s.Kind != o.Kind {
		return false
	}
	if s.Kind == SurfaceKind {
		if s.VertexCount != o.VertexCount || s.Len() != o.Len() {
			return false
		}
		a, b := s.VertexList(), o.VertexList()
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if !s.Grid.Equal(o.Grid) || len(s.Voxels) != len(o.Voxels) {
		return false
	}
	for i := range s.Voxels {
		if s.Voxels[i] != o.Voxels[i] {
			return false
		}
	}
	return true
}

func (s *Segment) validate() error {
	switch s.Kind {
	case SurfaceKind:
		if s.VertexCount <= 0 {
			return fmt.Errorf("surface segment %s has no vertices", s.Structure)
		}
		seen := make(map[int]bool, len(s.Vertices))
		for _, v := range s.Vertices {
			if v < 0 || v >= s.VertexCount {
				return fmt.Errorf("surface segment %s: vertex %d out of range [0,%d)", s.Structure, v, s.VertexCount)
			}
			if seen[v] {
				return fmt.Errorf("surface segment %s: vertex %d listed twice", s.Structure, v)
			}
			seen[v] = true
		}
	case VolumeKind:
		if s.Grid == nil {
			return fmt.Errorf("volume segment %s has no grid", s.Structure)
		}
		seen := make(map[[3]int]bool, len(s.Voxels))
		for _, ijk := range s.Voxels {
			if !s.Grid.Contains(ijk) {
				return fmt.Errorf("volume segment %s: voxel %v outside grid %v", s.Structure, ijk, s.Grid.Dims)
			}
			if seen[ijk] {
				return fmt.Errorf("volume segment %s: voxel %v listed twice", s.Structure, ijk)
			}
			seen[ijk] = true
		}
	default:
		return fmt.Errorf("segment %s has unknown kind %v", s.Structure, s.Kind)
	}
	return nil
}

// Space is a brainordinate space: the ordered segments indexing one matrix
// axis. It is immutable once created.
type Space struct {
	segments []*Segment
	offsets  []int
	index    map[Structure]int
	length   int
}

// NewSpace creates a space from segments in axis order.
func NewSpace(segments ...*Segment) (*Space, error) {
	sp := &Space{
		segments: segments,
		offsets:  make([]int, len(segments)),
		index:    make(map[Structure]int, len(segments)),
	}
	for i, seg := range segments {
		if _, dup := sp.index[seg.Structure]; dup {
			return nil, fmt.Errorf("structure %s appears more than once", seg.Structure)
		}
		if err := seg.validate(); err != nil {
			return nil, err
		}
		sp.index[seg.Structure] = i
		sp.offsets[i] = sp.length
		sp.length += seg.Len()
	}
	return sp, nil
}

// Len returns the total number of brainordinates.
func (sp *Space) Len() int {
	return sp.length
}

// Segments returns the segments in axis order.
func (sp *Space) Segments() []*Segment {
	return sp.segments
}

// Offset returns the axis position of the first element of segment i.
func (sp *Space) Offset(i int) int {
	return sp.offsets[i]
}

// Lookup finds the segment for a structure along with its axis offset.
func (sp *Space) Lookup(structure Structure) (*Segment, int, bool) {
	i, ok := sp.index[structure]
	if !ok {
		return nil, 0, false
	}
	return sp.segments[i], sp.offsets[i], true
}

// Equal reports whether two spaces index identical brainordinates.
func (sp *Space) Equal(o *Space) bool {
	if len(sp.segments) != len(o.segments) {
		return false
	}
	for i := range sp.segments {
		if !sp.segments[i].Equal(o.segments[i]) {
			return false
		}
	}
	return true
}
