package boost

import (
	"math/rand"
	"sort"
)

// node is a single regression tree node. Leaves have no children; internal
// nodes route rows by Feature/Thresh (left when value < Thresh; inputs are
// imputed upstream, so no NaN reaches the trees). Value is the regularized
// mean residual of the rows that reached the node, kept on internal nodes
// for path attribution.
type node struct {
	Feature int     `json:"feature,omitempty"`
	Thresh  float64 `json:"thresh,omitempty"`
	Value   float64 `json:"value"`
	Gain    float64 `json:"gain,omitempty"`
	Left    *node   `json:"left,omitempty"`
	Right   *node   `json:"right,omitempty"`
}

func (n *node) isLeaf() bool { return n.Left == nil }

func (n *node) eval(row []float64) float64 {
	for !n.isLeaf() {
		if row[n.Feature] < n.Thresh {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

type treeBuilder struct {
	x        [][]float64
	grad     []float64
	params   Params
	features []int // column subsample for this tree
	gainAcc  []float64
}

func (b *treeBuilder) build(rows []int, depth int) *node {
	g := sumAt(b.grad, rows)
	n := &node{Value: g / (float64(len(rows)) + b.params.Lambda)}

	if depth >= b.params.MaxDepth || len(rows) < 2*b.params.MinChildWeight {
		return n
	}

	feat, thresh, gain, left, right := b.bestSplit(rows, g)
	if feat < 0 {
		return n
	}

	n.Feature = feat
	n.Thresh = thresh
	n.Gain = gain
	b.gainAcc[feat] += gain
	n.Left = b.build(left, depth+1)
	n.Right = b.build(right, depth+1)
	return n
}

// bestSplit scans the sampled feature columns for the split with the best
// regularized variance-reduction score. Returns feature -1 when no split
// improves on the parent.
func (b *treeBuilder) bestSplit(rows []int, gTotal float64) (int, float64, float64, []int, []int) {
	var (
		bestFeat   = -1
		bestThresh float64
		bestGain   float64
	)

	nTotal := float64(len(rows))
	parentScore := gTotal * gTotal / (nTotal + b.params.Lambda)

	order := make([]int, len(rows))
	for _, f := range b.features {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool {
			return b.x[order[i]][f] < b.x[order[j]][f]
		})

		var gLeft float64
		for i := 0; i < len(order)-1; i++ {
			gLeft += b.grad[order[i]]
			nLeft := i + 1
			nRight := len(order) - nLeft
			if nLeft < b.params.MinChildWeight {
				continue
			}
			if nRight < b.params.MinChildWeight {
				break
			}
			lo, hi := b.x[order[i]][f], b.x[order[i+1]][f]
			if lo == hi {
				continue
			}
			gRight := gTotal - gLeft
			score := gLeft*gLeft/(float64(nLeft)+b.params.Lambda) +
				gRight*gRight/(float64(nRight)+b.params.Lambda)
			gain := score - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeat = f
				bestThresh = (lo + hi) / 2
			}
		}
	}

	if bestFeat < 0 {
		return -1, 0, 0, nil, nil
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][bestFeat] < bestThresh {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return bestFeat, bestThresh, bestGain, left, right
}

func sumAt(xs []float64, idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += xs[i]
	}
	return s
}

// sampleRows draws a subsample of row indices without replacement.
func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	k := int(frac * float64(n))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	perm := rng.Perm(n)
	rows := perm[:k]
	sort.Ints(rows)
	return rows
}

// sampleFeatures draws a column subsample without replacement.
func sampleFeatures(rng *rand.Rand, d int, frac float64) []int {
	k := int(frac * float64(d))
	if k < 1 {
		k = 1
	}
	if k > d {
		k = d
	}
	perm := rng.Perm(d)
	feats := perm[:k]
	sort.Ints(feats)
	return feats
}
