package surface

import (
	"gonum.org/v1/gonum/floats"
)

// Sum returns the total weight of a target vertex.
func Sum(weights []Weight) float64 {
	values := make([]float64, len(weights))
	for i, w := range weights {
		values[i] = w.Weight
	}
	return floats.Sum(values)
}

func normalize(weights []Weight) bool {
	total := Sum(weights)
	if total <= 0 {
		return false
	}
	for i := range weights {
		weights[i].Weight /= total
	}
	return true
}

// Restrict drops source vertices outside the valid set and renormalizes the
// remaining weights. The returned mask is false for targets left without any
// source vertex.
func Restrict(c Correspondence, valid []bool) (Correspondence, []bool) {
	out := make(Correspondence, len(c))
	mask := make([]bool, len(c))
	for t, weights := range c {
		kept := make([]Weight, 0, len(weights))
		for _, w := range weights {
			if valid[w.Source] && w.Weight > 0 {
				kept = append(kept, w)
			}
		}
		if normalize(kept) {
			out[t] = kept
			mask[t] = true
		}
	}
	return out, mask
}

// AreaCorrect rescales each weight by the ratio of the source vertex area to
// the target vertex area and renormalizes. Targets whose corrected weights
// sum to zero keep their uncorrected weights.
func AreaCorrect(c Correspondence, currentAreas, newAreas []float64) Correspondence {
	out := make(Correspondence, len(c))
	for t, weights := range c {
		if len(weights) == 0 {
			continue
		}
		scaled := make([]Weight, len(weights))
		for i, w := range weights {
			scaled[i] = w
			if newAreas[t] > 0 {
				scaled[i].Weight = w.Weight * currentAreas[w.Source] / newAreas[t]
			}
		}
		if normalize(scaled) {
			out[t] = scaled
		} else {
			out[t] = append([]Weight(nil), weights...)
		}
	}
	return out
}

// Largest keeps, for each target, only the source vertex with the largest
// weight, at weight 1. Ties go to the lowest source vertex index.
func Largest(c Correspondence) Correspondence {
	out := make(Correspondence, len(c))
	for t, weights := range c {
		if len(weights) == 0 {
			continue
		}
		best := weights[0]
		for _, w := range weights[1:] {
			if w.Weight > best.Weight || (w.Weight == best.Weight && w.Source < best.Source) {
				best = w
			}
		}
		out[t] = []Weight{{Source: best.Source, Weight: 1}}
	}
	return out
}
