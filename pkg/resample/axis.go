package resample

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"dconnresample/internal/models"
	"dconnresample/pkg/surface"
)

// AxisView exposes the vectors of a matrix along the axis being resampled:
// its columns when resampling columns, its rows when resampling rows.
type AxisView interface {
	// Len returns the number of vectors, the length of the axis
	Len() int

	// VectorLen returns the length of each vector, the length of the other axis
	VectorLen() int

	// Vector copies vector i into dst, which has VectorLen elements
	Vector(i int, dst []float64)
}

type denseView struct {
	m    *mat.Dense
	axis Axis
}

// View returns the vectors of m along axis.
func View(m *mat.Dense, axis Axis) AxisView {
	return denseView{m: m, axis: axis}
}

func (d denseView) Len() int {
	r, c := d.m.Dims()
	if d.axis == Row {
		return r
	}
	return c
}

func (d denseView) VectorLen() int {
	r, c := d.m.Dims()
	if d.axis == Row {
		return c
	}
	return r
}

func (d denseView) Vector(i int, dst []float64) {
	if d.axis == Row {
		copy(dst, d.m.RawRowView(i))
		return
	}
	mat.Col(dst, i, d.m)
}

// ResampledAxis holds one vector per template brainordinate.
type ResampledAxis struct {
	// Space is the template space now indexing the axis
	Space *models.Space

	// Axis is the axis that was resampled
	Axis Axis

	// VectorLen is the length of every vector
	VectorLen int

	// Data stores the vectors one after another in axis order
	Data []float64

	// Structures reports each template structure in axis order
	Structures []StructureStats
}

// Vector returns vector i, sharing storage with Data.
func (ra *ResampledAxis) Vector(i int) []float64 {
	return ra.Data[i*ra.VectorLen : (i+1)*ra.VectorLen]
}

// Matrix lays the vectors out as a matrix with the resampled axis in its
// original orientation.
func (ra *ResampledAxis) Matrix() *mat.Dense {
	n := ra.Space.Len()
	if n == 0 || ra.VectorLen == 0 {
		return &mat.Dense{}
	}
	vectors := mat.NewDense(n, ra.VectorLen, ra.Data)
	if ra.Axis == Row {
		return vectors
	}
	var out mat.Dense
	out.CloneFrom(vectors.T())
	return &out
}

// Validate checks the configuration of one axis without touching any data
// and returns every problem found as ValidationErrors.
//
// Parameters:
//   - source: the space currently indexing the axis
//   - template: the space the axis is resampled to
//   - axis: which axis, used to label errors
//   - configs: per-structure resampling inputs
//   - opts: the shared options
func Validate(source, template *models.Space, axis Axis, configs Configs, opts Options) error {
	_, errs := planAxis(source, template, axis, configs, opts)
	return errs.errOrNil()
}

// ResampleAxis validates and then resamples one axis. The vectors of src are
// indexed by source; the result is indexed by template. Template structures
// are produced concurrently and written in template order; source structures
// missing from the template are dropped.
func ResampleAxis(src AxisView, source, template *models.Space, axis Axis, configs Configs, opts Options) (*ResampledAxis, error) {
	if src.Len() != source.Len() {
		return nil, &Error{Kind: TopologyMismatch, Axis: axis, Msg: fmt.Sprintf("matrix has %d elements along the axis, source space has %d", src.Len(), source.Len())}
	}
	plans, errs := planAxis(source, template, axis, configs, opts)
	if len(errs) > 0 {
		return nil, errs
	}
	return executeAxis(src, template, axis, plans, opts)
}

// executeAxis runs validated plans.
func executeAxis(src AxisView, template *models.Space, axis Axis, plans []*plan, opts Options) (*ResampledAxis, error) {
	log := opts.logger()
	pool := opts.pool()
	out := &ResampledAxis{
		Space:      template,
		Axis:       axis,
		VectorLen:  src.VectorLen(),
		Data:       make([]float64, template.Len()*src.VectorLen()),
		Structures: make([]StructureStats, len(plans)),
	}

	var mu sync.Mutex
	completed := 0
	g := new(errgroup.Group)
	g.SetLimit(pool.Size())
	for i, p := range plans {
		i, p := i, p
		g.Go(func() error {
			log.Debugf("resampling %s along %s: %s, %d elements", p.structure, axis, p.strategy, p.target.Len())
			stats, err := p.run(src, out, pool)
			if err != nil {
				return &Error{Kind: errorKind(err), Axis: axis, Structure: p.structure, Msg: "resampling failed", Err: err}
			}
			out.Structures[i] = stats
			if stats.Unfilled > 0 {
				log.Warningf("%s along %s: %d of %d elements have no data", p.structure, axis, stats.Unfilled, stats.Elements)
			}

			mu.Lock()
			completed++
			if opts.Progress != nil {
				opts.Progress(completed, len(plans), fmt.Sprintf("resampled %s along %s", p.structure, axis))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// errorKind classifies an error raised while resampling.
func errorKind(err error) Kind {
	if errors.Is(err, surface.ErrNotASphere) {
		return NotASphere
	}
	return TopologyMismatch
}
