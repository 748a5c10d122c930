package resample

import (
	"fmt"
	"strings"

	"dconnresample/internal/models"
	"dconnresample/pkg/logging"
	"dconnresample/pkg/volume"
	"dconnresample/pkg/workers"
)

// Axis selects a dimension of the matrix
type Axis int

const (
	// Row is the axis indexing matrix rows; resampling it builds each new
	// row from source rows
	Row Axis = iota

	// Column is the axis indexing matrix columns; resampling it builds each
	// new column from source columns
	Column
)

func (a Axis) String() string {
	switch a {
	case Row:
		return "row"
	case Column:
		return "column"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis converts "ROW" or "COLUMN" into an Axis.
func ParseAxis(name string) (Axis, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ROW":
		return Row, nil
	case "COLUMN":
		return Column, nil
	default:
		return 0, fmt.Errorf("unknown axis %q, use ROW or COLUMN", name)
	}
}

// SurfaceMethod is the surface resampling method
type SurfaceMethod int

const (
	// Barycentric interpolates inside the containing sphere triangle,
	// area corrected when vertex areas are supplied
	Barycentric SurfaceMethod = iota

	// AdapBaryArea is barycentric interpolation that requires vertex areas
	AdapBaryArea
)

var surfaceMethodNames = map[SurfaceMethod]string{
	Barycentric:  "BARYCENTRIC",
	AdapBaryArea: "ADAP_BARY_AREA",
}

func (m SurfaceMethod) String() string {
	if name, ok := surfaceMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SurfaceMethod(%d)", int(m))
}

// Valid reports whether m is a known method.
func (m SurfaceMethod) Valid() bool {
	_, ok := surfaceMethodNames[m]
	return ok
}

// ParseSurfaceMethod converts a name such as "ADAP_BARY_AREA" into a method.
func ParseSurfaceMethod(name string) (SurfaceMethod, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for m, n := range surfaceMethodNames {
		if n == upper {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: surface method %q, use ADAP_BARY_AREA or BARYCENTRIC", UnsupportedInterpolationMethod, name)
}

// MarshalText implements encoding.TextMarshaler for config files.
func (m SurfaceMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown surface method %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for config files.
func (m *SurfaceMethod) UnmarshalText(text []byte) error {
	parsed, err := ParseSurfaceMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ProgressFunc is called at coarse checkpoints with the number of completed
// steps, the total number of steps and a short description.
type ProgressFunc func(completed, total int, message string)

// Options holds the settings shared by every structure.
type Options struct {
	// SurfaceMethod selects barycentric or area-adaptive barycentric
	// surface resampling
	SurfaceMethod SurfaceMethod

	// SurfaceLargest collapses every surface correspondence to the single
	// source vertex with the largest weight
	SurfaceLargest bool

	// Workers is the number of goroutines per element loop; zero or less
	// uses all CPUs
	Workers int

	// Progress, if set, is called after each structure and, in
	// ResampleBothAxes, after each pass
	Progress ProgressFunc

	// Logger receives progress and diagnostic messages; nil discards them
	Logger logging.Logger
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.Discard
	}
	return o.Logger
}

func (o Options) pool() *workers.Pool {
	return workers.New(o.Workers)
}

// SurfaceConfig holds the inputs for resampling one surface structure.
type SurfaceConfig struct {
	// CurrentSphere is registered to the source mesh; it must have the
	// source structure's vertex count
	CurrentSphere *models.Surface

	// NewSphere is registered to the template mesh; it must have the
	// template structure's vertex count
	NewSphere *models.Surface

	// CurrentAreaSurface and NewAreaSurface are anatomical surfaces, with the
	// topology of their spheres, from which vertex areas are computed
	CurrentAreaSurface *models.Surface
	NewAreaSurface     *models.Surface

	// CurrentAreas and NewAreas are precomputed vertex areas. They may not
	// be combined with the area surfaces.
	CurrentAreas []float64
	NewAreas     []float64

	// DilateMM is the post-resampling dilation radius on the new mesh; zero
	// disables dilation
	DilateMM float64
}

// VolumeConfig holds the inputs for resampling one volume structure.
type VolumeConfig struct {
	// Affine is an Affine or AffineFlirt source
	Affine volume.TransformSource

	// Warpfield is a Deformation or DeformationFnirt source
	Warpfield volume.TransformSource

	// Method is the interpolation method
	Method volume.Method

	// DilateMM is the pre-resampling dilation radius in the source volume;
	// zero disables dilation
	DilateMM float64
}

// StructureConfig holds the resampling inputs for one structure. Leaving
// both fields nil passes the structure through unchanged.
type StructureConfig struct {
	Surface *SurfaceConfig
	Volume  *VolumeConfig
}

// Configs maps structures to their resampling inputs for one axis.
type Configs map[models.Structure]StructureConfig
