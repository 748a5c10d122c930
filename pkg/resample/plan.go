package resample

import (
	"fmt"
	"math"

	"dconnresample/internal/models"
	"dconnresample/pkg/surface"
	"dconnresample/pkg/volume"
)

// strategy is how one template structure is produced
type strategy int

const (
	passthrough strategy = iota
	surfaceResample
	volumeResample
)

func (s strategy) String() string {
	switch s {
	case passthrough:
		return "passthrough"
	case surfaceResample:
		return "surface resample"
	case volumeResample:
		return "volume resample"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// plan is the validated recipe for one template structure
type plan struct {
	strategy  strategy
	structure models.Structure

	source       *models.Segment
	sourceOffset int
	target       *models.Segment
	targetOffset int

	surface *surfacePlan
	volume  *volumePlan
}

type surfacePlan struct {
	current *models.Surface
	next    *models.Surface

	// area inputs, at most one pair set
	currentAreaSurface *models.Surface
	newAreaSurface     *models.Surface
	currentAreas       []float64
	newAreas           []float64

	largest bool

	// dilateMesh is the mesh whose edge lengths measure dilation distance
	dilateMesh *models.Surface
	dilateMM   float64
}

// areas returns the vertex areas to correct with, or nil when the structure
// has no area inputs.
func (sp *surfacePlan) areas() ([]float64, []float64) {
	if sp.currentAreaSurface != nil {
		return surface.VertexAreas(sp.currentAreaSurface), surface.VertexAreas(sp.newAreaSurface)
	}
	return sp.currentAreas, sp.newAreas
}

type volumePlan struct {
	transform volume.Transform
	method    volume.Method
	dilateMM  float64
}

// planner accumulates validation errors for one axis
type planner struct {
	axis Axis
	errs ValidationErrors
}

func (v *planner) add(kind Kind, structure models.Structure, cause error, format string, args ...interface{}) {
	v.errs = append(v.errs, &Error{
		Kind:      kind,
		Axis:      v.axis,
		Structure: structure,
		Msg:       fmt.Sprintf(format, args...),
		Err:       cause,
	})
}

// planAxis validates the configuration of one axis and resolves a strategy
// for every template structure. It reads no matrix data. Plans are only
// returned for structures without errors.
func planAxis(source, template *models.Space, axis Axis, configs Configs, opts Options) ([]*plan, ValidationErrors) {
	v := &planner{axis: axis}
	if !opts.SurfaceMethod.Valid() {
		v.add(UnsupportedInterpolationMethod, "", nil, "surface method %s", opts.SurfaceMethod)
	}

	var plans []*plan
	for i, tgt := range template.Segments() {
		p := &plan{
			structure:    tgt.Structure,
			target:       tgt,
			targetOffset: template.Offset(i),
		}
		src, srcOffset, inSource := source.Lookup(tgt.Structure)
		p.source, p.sourceOffset = src, srcOffset

		cfg := configs[tgt.Structure]
		ok := true
		switch {
		case cfg.Surface != nil && cfg.Volume != nil:
			v.add(ConflictingInputs, tgt.Structure, nil, "both surface and volume resampling inputs given")
			ok = false
		case cfg.Surface == nil && cfg.Volume == nil:
			p.strategy = passthrough
			if !inSource {
				v.add(MissingResamplingInputs, tgt.Structure, nil, "structure is not in the source and no resampling inputs were given")
				ok = false
			} else if !src.Equal(tgt) {
				v.add(MissingResamplingInputs, tgt.Structure, nil, "source %s segment differs from the template and no resampling inputs were given", src.Kind)
				ok = false
			}
		case cfg.Surface != nil:
			p.strategy = surfaceResample
			p.surface, ok = v.planSurface(tgt, src, inSource, cfg.Surface, opts)
		default:
			p.strategy = volumeResample
			p.volume, ok = v.planVolume(tgt, src, inSource, cfg.Volume)
		}
		if ok {
			plans = append(plans, p)
		}
	}
	return plans, v.errs
}

func (v *planner) checkRadius(structure models.Structure, what string, r float64) {
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		v.add(InvalidDilationRadius, structure, nil, "%s radius must be a non-negative distance in mm, got %g", what, r)
	}
}

func (v *planner) checkSphere(structure models.Structure, what string, s *models.Surface) {
	if _, err := surface.CheckSphere(s); err != nil {
		v.add(NotASphere, structure, err, "%s", what)
	}
}

// checkTopology verifies that an anatomical surface shares its sphere's mesh.
func (v *planner) checkTopology(structure models.Structure, what string, s, sphere *models.Surface) {
	if s.NumVertices() != sphere.NumVertices() || len(s.Triangles) != len(sphere.Triangles) {
		v.add(TopologyMismatch, structure, nil, "%s has %d vertices and %d triangles, its sphere has %d and %d",
			what, s.NumVertices(), len(s.Triangles), sphere.NumVertices(), len(sphere.Triangles))
		return
	}
	for i := range s.Triangles {
		if s.Triangles[i] != sphere.Triangles[i] {
			v.add(TopologyMismatch, structure, nil, "%s triangle %d differs from its sphere", what, i)
			return
		}
	}
}

func (v *planner) planSurface(tgt, src *models.Segment, inSource bool, c *SurfaceConfig, opts Options) (*surfacePlan, bool) {
	before := len(v.errs)
	s := tgt.Structure
	if tgt.Kind != models.SurfaceKind {
		v.add(ConflictingInputs, s, nil, "surface resampling inputs given for a volume structure")
		return nil, false
	}
	if !inSource {
		v.add(MissingResamplingInputs, s, nil, "structure is not in the source data")
	} else if src.Kind != models.SurfaceKind {
		v.add(TopologyMismatch, s, nil, "structure is a surface in the template but a volume in the source")
		inSource = false
	}

	if c.CurrentSphere == nil || c.NewSphere == nil {
		v.add(MissingResamplingInputs, s, nil, "current and new spheres are both required")
	} else {
		v.checkSphere(s, "current sphere", c.CurrentSphere)
		v.checkSphere(s, "new sphere", c.NewSphere)
		if inSource && c.CurrentSphere.NumVertices() != src.VertexCount {
			v.add(TopologyMismatch, s, nil, "current sphere has %d vertices, source structure has %d", c.CurrentSphere.NumVertices(), src.VertexCount)
		}
		if c.NewSphere.NumVertices() != tgt.VertexCount {
			v.add(TopologyMismatch, s, nil, "new sphere has %d vertices, template structure has %d", c.NewSphere.NumVertices(), tgt.VertexCount)
		}
	}
	v.checkRadius(s, "surface dilation", c.DilateMM)

	sp := &surfacePlan{
		current:    c.CurrentSphere,
		next:       c.NewSphere,
		largest:    opts.SurfaceLargest,
		dilateMesh: c.NewSphere,
		dilateMM:   c.DilateMM,
	}
	haveSurfaces := c.CurrentAreaSurface != nil || c.NewAreaSurface != nil
	haveMetrics := c.CurrentAreas != nil || c.NewAreas != nil
	switch {
	case haveSurfaces && haveMetrics:
		v.add(ConflictingInputs, s, nil, "area surfaces and area metrics are mutually exclusive")
	case haveSurfaces:
		if c.CurrentAreaSurface == nil || c.NewAreaSurface == nil {
			v.add(MissingResamplingInputs, s, nil, "current and new area surfaces must be given together")
			break
		}
		if c.CurrentSphere != nil {
			v.checkTopology(s, "current area surface", c.CurrentAreaSurface, c.CurrentSphere)
		}
		if c.NewSphere != nil {
			v.checkTopology(s, "new area surface", c.NewAreaSurface, c.NewSphere)
		}
		sp.currentAreaSurface, sp.newAreaSurface = c.CurrentAreaSurface, c.NewAreaSurface
		sp.dilateMesh = c.NewAreaSurface
	case haveMetrics:
		if c.CurrentAreas == nil || c.NewAreas == nil {
			v.add(MissingResamplingInputs, s, nil, "current and new area metrics must be given together")
			break
		}
		if c.CurrentSphere != nil && len(c.CurrentAreas) != c.CurrentSphere.NumVertices() {
			v.add(TopologyMismatch, s, nil, "current area metric has %d values, current sphere has %d vertices", len(c.CurrentAreas), c.CurrentSphere.NumVertices())
		}
		if c.NewSphere != nil && len(c.NewAreas) != c.NewSphere.NumVertices() {
			v.add(TopologyMismatch, s, nil, "new area metric has %d values, new sphere has %d vertices", len(c.NewAreas), c.NewSphere.NumVertices())
		}
		sp.currentAreas, sp.newAreas = c.CurrentAreas, c.NewAreas
	default:
		if opts.SurfaceMethod == AdapBaryArea {
			v.add(MissingResamplingInputs, s, nil, "%s needs area surfaces or area metrics", AdapBaryArea)
		}
	}
	return sp, len(v.errs) == before
}

func (v *planner) planVolume(tgt, src *models.Segment, inSource bool, c *VolumeConfig) (*volumePlan, bool) {
	before := len(v.errs)
	s := tgt.Structure
	if tgt.Kind != models.VolumeKind {
		v.add(ConflictingInputs, s, nil, "volume resampling inputs given for a surface structure")
		return nil, false
	}
	if !inSource {
		v.add(MissingResamplingInputs, s, nil, "structure is not in the source data")
	} else if src.Kind != models.VolumeKind {
		v.add(TopologyMismatch, s, nil, "structure is a volume in the template but a surface in the source")
	}
	if !c.Method.Valid() {
		v.add(UnsupportedInterpolationMethod, s, volume.ErrUnsupportedMethod, "volume method %s", c.Method)
	}
	v.checkRadius(s, "volume dilation", c.DilateMM)

	var source volume.TransformSource
	switch {
	case c.Affine != nil && c.Warpfield != nil:
		v.add(ConflictingInputs, s, nil, "an affine and a warpfield are mutually exclusive")
	case c.Affine != nil:
		if c.Affine.Kind() != volume.AffineKind {
			v.add(ConflictingInputs, s, nil, "a deformation field was given as the affine")
		}
		source = c.Affine
	case c.Warpfield != nil:
		if c.Warpfield.Kind() != volume.DeformationKind {
			v.add(ConflictingInputs, s, nil, "an affine was given as the warpfield")
		}
		source = c.Warpfield
	default:
		source = volume.Identity()
	}
	if len(v.errs) != before {
		return nil, false
	}

	tr, err := source.Resolve()
	if err != nil {
		v.add(MissingResamplingInputs, s, err, "volume transform cannot be used")
		return nil, false
	}
	return &volumePlan{transform: tr, method: c.Method, dilateMM: c.DilateMM}, true
}
