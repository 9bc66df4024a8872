package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	lowerQuantile = 0.01
	upperQuantile = 0.99
)

// Stats holds per-feature statistics fitted on a training slice. All
// statistics are computed from the training rows only; applying them to
// later rows never looks at those rows' values.
type Stats struct {
	Medians   []float64 `json:"medians"`
	Stds      []float64 `json:"stds"`
	LowerClip []float64 `json:"lower_clip"`
	UpperClip []float64 `json:"upper_clip"`
}

// Fit computes per-feature median, standard deviation and winsorization
// bounds from the given rows. NaN cells are ignored. A feature with zero
// spread (or no finite values) gets std 1.0 so standardization is a no-op.
func Fit(rows [][]float64) (*Stats, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fit stats: no rows")
	}
	n := len(rows[0])
	s := &Stats{
		Medians:   make([]float64, n),
		Stds:      make([]float64, n),
		LowerClip: make([]float64, n),
		UpperClip: make([]float64, n),
	}

	col := make([]float64, 0, len(rows))
	for j := 0; j < n; j++ {
		col = col[:0]
		for _, row := range rows {
			if v := row[j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			// no signal at all; keep bounds JSON-safe and wide open
			s.Medians[j] = 0
			s.Stds[j] = 1
			s.LowerClip[j] = -math.MaxFloat64
			s.UpperClip[j] = math.MaxFloat64
			continue
		}
		sort.Float64s(col)
		s.Medians[j] = quantile(col, 0.5)
		s.LowerClip[j] = quantile(col, lowerQuantile)
		s.UpperClip[j] = quantile(col, upperQuantile)

		sd := popStdDev(col)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.Stds[j] = sd
	}
	return s, nil
}

// NumFeatures returns the number of features the stats were fitted on.
func (s *Stats) NumFeatures() int { return len(s.Medians) }

// Transform imputes missing cells with the training median, clips to the
// winsorization bounds and standardizes around the median. The input row
// is not modified.
func (s *Stats) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if math.IsNaN(v) {
			v = s.Medians[j]
		}
		if v < s.LowerClip[j] {
			v = s.LowerClip[j]
		}
		if v > s.UpperClip[j] {
			v = s.UpperClip[j]
		}
		out[j] = (v - s.Medians[j]) / s.Stds[j]
	}
	return out
}

// TransformMatrix applies Transform to every row.
func (s *Stats) TransformMatrix(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.Transform(row)
	}
	return out
}

// quantile interpolates linearly between order statistics; xs must be sorted.
func quantile(xs []float64, p float64) float64 {
	if len(xs) == 1 {
		return xs[0]
	}
	pos := p * float64(len(xs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return xs[lo]
	}
	frac := pos - float64(lo)
	return xs[lo]*(1-frac) + xs[hi]*frac
}

func popStdDev(xs []float64) float64 {
	mean := stat.Mean(xs, nil)
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
