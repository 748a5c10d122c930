package resample

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"dconnresample/internal/models"
	"dconnresample/pkg/dilation"
	"dconnresample/pkg/surface"
	"dconnresample/pkg/volume"
	"dconnresample/pkg/workers"
)

// StructureStats reports how one template structure was produced.
type StructureStats struct {
	Structure models.Structure
	Strategy  string

	// Elements is the number of template brainordinates
	Elements int

	// Dilated counts elements filled by dilation: new mesh vertices for
	// surfaces, padded source box voxels for volumes
	Dilated int

	// Unfilled counts elements left at zero because no source data reached
	// them, including volume samples outside the source voxels and their
	// dilation
	Unfilled int
}

// gather copies n consecutive vectors starting at offset into one block.
func gather(src AxisView, offset, n int) []float64 {
	width := src.VectorLen()
	block := make([]float64, n*width)
	for i := 0; i < n; i++ {
		src.Vector(offset+i, block[i*width:(i+1)*width])
	}
	return block
}

// run produces the plan's structure into out.
func (p *plan) run(src AxisView, out *ResampledAxis, pool *workers.Pool) (StructureStats, error) {
	stats := StructureStats{
		Structure: p.structure,
		Strategy:  p.strategy.String(),
		Elements:  p.target.Len(),
	}
	var err error
	switch p.strategy {
	case passthrough:
		pool.ForEach(p.target.Len(), func(i int) {
			src.Vector(p.sourceOffset+i, out.Vector(p.targetOffset+i))
		})
	case surfaceResample:
		err = p.runSurface(src, out, pool, &stats)
	case volumeResample:
		p.runVolume(src, out, pool, &stats)
	default:
		err = fmt.Errorf("unknown strategy %v", p.strategy)
	}
	return stats, err
}

func (p *plan) runSurface(src AxisView, out *ResampledAxis, pool *workers.Pool, stats *StructureStats) error {
	sp := p.surface
	width := out.VectorLen

	corr, err := surface.Resolve(sp.current, sp.next, pool)
	if err != nil {
		return err
	}

	// only vertices present in the source segment carry data
	srcList := p.source.VertexList()
	present := make([]bool, sp.current.NumVertices())
	position := make([]int, sp.current.NumVertices())
	for pos, v := range srcList {
		present[v] = true
		position[v] = pos
	}
	corr, valid := surface.Restrict(corr, present)
	if currentAreas, newAreas := sp.areas(); currentAreas != nil {
		corr = surface.AreaCorrect(corr, currentAreas, newAreas)
	}
	if sp.largest {
		corr = surface.Largest(corr)
	}

	block := gather(src, p.sourceOffset, len(srcList))
	numNew := sp.next.NumVertices()
	data := make([]float64, numNew*width)
	pool.ForEach(numNew, func(t int) {
		dst := data[t*width : (t+1)*width]
		for _, w := range corr[t] {
			pos := position[w.Source]
			floats.AddScaled(dst, w.Weight, block[pos*width:(pos+1)*width])
		}
	})

	if sp.dilateMM > 0 {
		ds := dilation.Surface(sp.dilateMesh, data, width, valid, sp.dilateMM)
		stats.Dilated = ds.Filled
	}

	for pos, v := range p.target.VertexList() {
		copy(out.Vector(p.targetOffset+pos), data[v*width:(v+1)*width])
		if !valid[v] {
			stats.Unfilled++
		}
	}
	return nil
}

func (p *plan) runVolume(src AxisView, out *ResampledAxis, pool *workers.Pool, stats *StructureStats) {
	vp := p.volume
	width := out.VectorLen
	srcGrid := p.source.Grid

	pad := volume.Padding(srcGrid, vp.dilateMM, vp.method)
	box, offset := volume.BoundingBox(srcGrid, p.source.Voxels, pad)
	block := gather(src, p.sourceOffset, len(p.source.Voxels))
	vol, valid := volume.Fill(box, offset, p.source.Voxels, width, func(i int) []float64 {
		return block[i*width : (i+1)*width]
	})
	if vp.dilateMM > 0 {
		ds := dilation.Volume(box, vol.Data, width, valid, vp.dilateMM, pool)
		stats.Dilated = ds.Filled
	}

	data, inBounds := volume.ResampleVoxels(vol, vp.transform, vp.method, p.target.Grid, p.target.Voxels, pool)
	for i, ok := range inBounds {
		copy(out.Vector(p.targetOffset+i), data[i*width:(i+1)*width])
		if !ok {
			stats.Unfilled++
		}
	}
}
