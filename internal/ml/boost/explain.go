package boost

import "math"

// Explain attributes a single prediction to features by walking each
// tree's decision path and crediting the change in node value to the split
// feature. When the path attribution comes out non-finite it falls back to
// the normalized split-gain importances; Explain never fails.
func (m *Model) Explain(row []float64) []float64 {
	contrib := make([]float64, m.NumFeatures)
	finite := true

	for _, t := range m.Trees {
		n := t
		for !n.isLeaf() {
			var next *node
			if row[n.Feature] < n.Thresh {
				next = n.Left
			} else {
				next = n.Right
			}
			contrib[n.Feature] += m.Params.LearningRate * (next.Value - n.Value)
			n = next
		}
	}

	for _, v := range contrib {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			finite = false
			break
		}
	}
	if !finite {
		return m.GainImportance()
	}
	return contrib
}

// GainImportance returns per-feature total split gain, normalized to sum
// to one. A model with no splits returns all zeros.
func (m *Model) GainImportance() []float64 {
	out := make([]float64, len(m.FeatureGain))
	var total float64
	for _, g := range m.FeatureGain {
		total += g
	}
	if total <= 0 {
		return out
	}
	for i, g := range m.FeatureGain {
		out[i] = g / total
	}
	return out
}
