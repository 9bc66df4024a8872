package pca

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const varianceTarget = 0.90

// group caps keep any single physiological signal family from dominating
// the reduced space.
var groupCaps = map[string]int{
	"sleep":      4,
	"hrv":        4,
	"heart_rate": 3,
	"activity":   3,
	"other":      3,
}

var groupOrder = []string{"sleep", "hrv", "heart_rate", "activity", "other"}

// GroupState is the fitted PCA state for one feature group.
type GroupState struct {
	Name       string      `json:"name"`
	Indices    []int       `json:"indices"`
	Medians    []float64   `json:"medians"`
	Means      []float64   `json:"means"`
	Components [][]float64 `json:"components"` // [k][len(Indices)]
	Explained  []float64   `json:"explained"`
}

// Reducer projects feature vectors onto group-wise principal components.
// Groups are fitted independently so a noisy signal family cannot leak
// variance into another's components.
type Reducer struct {
	Groups []GroupState `json:"groups"`
}

// classify assigns a feature name to its physiological group.
func classify(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "sleep"):
		return "sleep"
	case strings.Contains(n, "hrv"):
		return "hrv"
	case strings.Contains(n, "rhr"), strings.Contains(n, "resting_hr"):
		return "heart_rate"
	case strings.Contains(n, "steps"), strings.Contains(n, "calories"), strings.Contains(n, "active_zone"):
		return "activity"
	default:
		return "other"
	}
}

// Fit learns group-wise components from the rows. Per group it imputes
// missing cells with column medians, centers, and keeps the smallest number
// of components reaching the explained-variance target, clamped to
// [1, group cap].
func Fit(rows [][]float64, names []string) (*Reducer, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("pca fit: need at least 2 rows, got %d", len(rows))
	}
	if len(names) != len(rows[0]) {
		return nil, fmt.Errorf("pca fit: %d names for %d columns", len(names), len(rows[0]))
	}

	byGroup := map[string][]int{}
	for j, name := range names {
		g := classify(name)
		byGroup[g] = append(byGroup[g], j)
	}

	r := &Reducer{}
	for _, g := range groupOrder {
		idx := byGroup[g]
		if len(idx) == 0 {
			continue
		}
		sort.Ints(idx)
		st, err := fitGroup(rows, idx, g, groupCaps[g])
		if err != nil {
			return nil, fmt.Errorf("pca fit group %s: %w", g, err)
		}
		r.Groups = append(r.Groups, *st)
	}
	if len(r.Groups) == 0 {
		return nil, fmt.Errorf("pca fit: no feature groups")
	}
	return r, nil
}

func fitGroup(rows [][]float64, idx []int, name string, maxComponents int) (*GroupState, error) {
	n := len(rows)
	m := len(idx)

	st := &GroupState{
		Name:    name,
		Indices: idx,
		Medians: make([]float64, m),
		Means:   make([]float64, m),
	}

	// impute with column medians, then center
	data := make([]float64, n*m)
	col := make([]float64, 0, n)
	for jj, j := range idx {
		col = col[:0]
		for _, row := range rows {
			if v := row[j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		med := 0.0
		if len(col) > 0 {
			sorted := append([]float64(nil), col...)
			sort.Float64s(sorted)
			if len(sorted)%2 == 1 {
				med = sorted[len(sorted)/2]
			} else {
				med = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
			}
		}
		st.Medians[jj] = med

		var sum float64
		for i, row := range rows {
			v := row[idx[jj]]
			if math.IsNaN(v) {
				v = med
			}
			data[i*m+jj] = v
			sum += v
		}
		st.Means[jj] = sum / float64(n)
		for i := 0; i < n; i++ {
			data[i*m+jj] -= st.Means[jj]
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(n, m, data), mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd did not converge")
	}

	sv := svd.Values(nil)
	var total float64
	variances := make([]float64, len(sv))
	for i, s := range sv {
		variances[i] = s * s / float64(n-1)
		total += variances[i]
	}

	maxK := maxComponents
	if maxK > len(sv) {
		maxK = len(sv)
	}
	k := 1
	if total > 0 {
		var cum float64
		for i := 0; i < maxK; i++ {
			cum += variances[i] / total
			k = i + 1
			if cum >= varianceTarget {
				break
			}
		}
	}

	var v mat.Dense
	svd.VTo(&v)
	st.Components = make([][]float64, k)
	st.Explained = make([]float64, k)
	for c := 0; c < k; c++ {
		comp := make([]float64, m)
		for j := 0; j < m; j++ {
			comp[j] = v.At(j, c)
		}
		st.Components[c] = comp
		if total > 0 {
			st.Explained[c] = variances[c] / total
		}
	}
	return st, nil
}

// OutputDim is the total number of components across groups.
func (r *Reducer) OutputDim() int {
	var d int
	for _, g := range r.Groups {
		d += len(g.Components)
	}
	return d
}

// ComponentNames returns names like "sleep_pc1" in transform order.
func (r *Reducer) ComponentNames() []string {
	names := make([]string, 0, r.OutputDim())
	for _, g := range r.Groups {
		for c := range g.Components {
			names = append(names, fmt.Sprintf("%s_pc%d", g.Name, c+1))
		}
	}
	return names
}

// Transform projects one raw feature vector onto the fitted components.
func (r *Reducer) Transform(row []float64) []float64 {
	out := make([]float64, 0, r.OutputDim())
	for _, g := range r.Groups {
		for _, comp := range g.Components {
			var s float64
			for jj, j := range g.Indices {
				v := row[j]
				if math.IsNaN(v) {
					v = g.Medians[jj]
				}
				s += (v - g.Means[jj]) * comp[jj]
			}
			out = append(out, s)
		}
	}
	return out
}

// TransformMatrix projects every row.
func (r *Reducer) TransformMatrix(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = r.Transform(row)
	}
	return out
}
