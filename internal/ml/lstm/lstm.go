package lstm

import (
	"fmt"
	"math"
	"math/rand"
)

// Config holds the sequence regressor's training knobs.
type Config struct {
	HiddenSize   int     `json:"hidden_size" yaml:"hidden_size"`
	InputDropout float64 `json:"input_dropout" yaml:"input_dropout"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	WeightDecay  float64 `json:"weight_decay" yaml:"weight_decay"`
	MaxEpochs    int     `json:"max_epochs" yaml:"max_epochs"`
	Patience     int     `json:"patience" yaml:"patience"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size"`
	ValFraction  float64 `json:"val_fraction" yaml:"val_fraction"`
	MinSequences int     `json:"min_sequences" yaml:"min_sequences"`
	Seed         int64   `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the small-data defaults.
func DefaultConfig() Config {
	return Config{
		HiddenSize:   16,
		InputDropout: 0.4,
		LearningRate: 1e-3,
		WeightDecay:  1e-4,
		MaxEpochs:    200,
		Patience:     15,
		BatchSize:    16,
		ValFraction:  0.15,
		MinSequences: 10,
		Seed:         42,
	}
}

// TooFewSequencesError reports that training was given fewer sequences
// than the configured minimum.
type TooFewSequencesError struct {
	Available int
	Required  int
}

func (e *TooFewSequencesError) Error() string {
	return fmt.Sprintf("too few sequences: %d available, %d required", e.Available, e.Required)
}

// Network is a single-layer LSTM with a linear head on the final hidden
// state. Weight tensors are flat row-major slices; gate blocks are ordered
// input, forget, cell, output.
type Network struct {
	InputSize  int       `json:"input_size"`
	HiddenSize int       `json:"hidden_size"`
	Wx         []float64 `json:"wx"` // [4H x D]
	Wh         []float64 `json:"wh"` // [4H x H]
	B          []float64 `json:"b"`  // [4H]
	Wy         []float64 `json:"wy"` // [H]
	By         float64   `json:"by"`
}

// Report summarizes a training run.
type Report struct {
	Epochs      int     `json:"epochs"`
	BestValLoss float64 `json:"best_val_loss"`
}

// Confidence maps a standardized prediction to (0, 1]: near-zero forecasts
// are the most trustworthy on a z-scored target.
func Confidence(pred float64) float64 {
	c := 1.0 / (1.0 + 0.3*math.Abs(pred))
	return math.Max(0, math.Min(1, c))
}

// Train fits a network on lookback sequences and scalar targets. The
// trailing ValFraction of the sequences (at least one) is held out for
// early stopping; the weights from the best validation epoch are kept.
func Train(seqs [][][]float64, targets []float64, cfg Config) (*Network, *Report, error) {
	if len(seqs) != len(targets) {
		return nil, nil, fmt.Errorf("lstm train: %d sequences, %d targets", len(seqs), len(targets))
	}
	if len(seqs) < cfg.MinSequences {
		return nil, nil, &TooFewSequencesError{Available: len(seqs), Required: cfg.MinSequences}
	}
	d := len(seqs[0][0])

	rng := rand.New(rand.NewSource(cfg.Seed))
	net := newNetwork(d, cfg.HiddenSize, rng)

	valN := int(cfg.ValFraction * float64(len(seqs)))
	if valN < 1 {
		valN = 1
	}
	trainN := len(seqs) - valN
	if trainN < 1 {
		return nil, nil, &TooFewSequencesError{Available: len(seqs), Required: valN + 1}
	}

	opt := newAdam(net, cfg.LearningRate, cfg.WeightDecay)
	grads := newGradients(net)

	bestVal := math.Inf(1)
	var best *Network
	stale := 0
	epochs := 0

	order := make([]int, trainN)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.MaxEpochs; epoch++ {
		epochs = epoch + 1
		rng.Shuffle(trainN, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < trainN; start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > trainN {
				end = trainN
			}
			grads.zero()
			for _, idx := range order[start:end] {
				cache := net.forward(seqs[idx], cfg.InputDropout, rng)
				net.backward(cache, targets[idx], grads)
			}
			grads.scale(1.0 / float64(end-start))
			opt.step(net, grads)
		}

		val := net.loss(seqs[trainN:], targets[trainN:])
		if val < bestVal {
			bestVal = val
			best = net.clone()
			stale = 0
		} else {
			stale++
			if stale >= cfg.Patience {
				break
			}
		}
	}

	if best != nil {
		net = best
	}
	return net, &Report{Epochs: epochs, BestValLoss: bestVal}, nil
}

// Predict runs a sequence through the network.
func (n *Network) Predict(seq [][]float64) (float64, error) {
	if len(seq) == 0 {
		return 0, fmt.Errorf("lstm predict: empty sequence")
	}
	for _, step := range seq {
		if len(step) != n.InputSize {
			return 0, fmt.Errorf("lstm predict: expected %d inputs, got %d", n.InputSize, len(step))
		}
	}
	cache := n.forward(seq, 0, nil)
	out := cache.output
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("lstm predict: non-finite output")
	}
	return out, nil
}

func newNetwork(inputSize, hiddenSize int, rng *rand.Rand) *Network {
	n := &Network{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Wx:         make([]float64, 4*hiddenSize*inputSize),
		Wh:         make([]float64, 4*hiddenSize*hiddenSize),
		B:          make([]float64, 4*hiddenSize),
		Wy:         make([]float64, hiddenSize),
	}
	k := 1.0 / math.Sqrt(float64(hiddenSize))
	fill := func(w []float64) {
		for i := range w {
			w[i] = (rng.Float64()*2 - 1) * k
		}
	}
	fill(n.Wx)
	fill(n.Wh)
	fill(n.Wy)
	return n
}

func (n *Network) clone() *Network {
	c := *n
	c.Wx = append([]float64(nil), n.Wx...)
	c.Wh = append([]float64(nil), n.Wh...)
	c.B = append([]float64(nil), n.B...)
	c.Wy = append([]float64(nil), n.Wy...)
	return &c
}

// loss computes mean squared error without dropout.
func (n *Network) loss(seqs [][][]float64, targets []float64) float64 {
	var ss float64
	for i, seq := range seqs {
		d := n.forward(seq, 0, nil).output - targets[i]
		ss += d * d
	}
	return ss / float64(len(seqs))
}

type stepCache struct {
	x          []float64 // input after dropout
	i, f, g, o []float64
	c, h       []float64
	tanhC      []float64
}

type fwdCache struct {
	steps  []stepCache
	output float64
}

func (n *Network) forward(seq [][]float64, dropout float64, rng *rand.Rand) *fwdCache {
	h := n.HiddenSize
	cache := &fwdCache{steps: make([]stepCache, len(seq))}

	hPrev := make([]float64, h)
	cPrev := make([]float64, h)

	for t, raw := range seq {
		x := raw
		if dropout > 0 && rng != nil {
			x = make([]float64, len(raw))
			keep := 1 - dropout
			for j, v := range raw {
				if rng.Float64() < keep {
					x[j] = v / keep
				}
			}
		}

		sc := stepCache{
			x: x,
			i: make([]float64, h), f: make([]float64, h),
			g: make([]float64, h), o: make([]float64, h),
			c: make([]float64, h), h: make([]float64, h),
			tanhC: make([]float64, h),
		}

		for j := 0; j < h; j++ {
			zi := n.preact(0, j, x, hPrev)
			zf := n.preact(1, j, x, hPrev)
			zg := n.preact(2, j, x, hPrev)
			zo := n.preact(3, j, x, hPrev)

			sc.i[j] = sigmoid(zi)
			sc.f[j] = sigmoid(zf)
			sc.g[j] = math.Tanh(zg)
			sc.o[j] = sigmoid(zo)
			sc.c[j] = sc.f[j]*cPrev[j] + sc.i[j]*sc.g[j]
			sc.tanhC[j] = math.Tanh(sc.c[j])
			sc.h[j] = sc.o[j] * sc.tanhC[j]
		}

		cache.steps[t] = sc
		hPrev = sc.h
		cPrev = sc.c
	}

	out := n.By
	for j := 0; j < h; j++ {
		out += n.Wy[j] * hPrev[j]
	}
	cache.output = out
	return cache
}

func (n *Network) preact(gate, unit int, x, hPrev []float64) float64 {
	row := gate*n.HiddenSize + unit
	z := n.B[row]
	base := row * n.InputSize
	for d := 0; d < n.InputSize; d++ {
		z += n.Wx[base+d] * x[d]
	}
	base = row * n.HiddenSize
	for k := 0; k < n.HiddenSize; k++ {
		z += n.Wh[base+k] * hPrev[k]
	}
	return z
}

type gradients struct {
	wx, wh, b, wy []float64
	by            float64
}

func newGradients(n *Network) *gradients {
	return &gradients{
		wx: make([]float64, len(n.Wx)),
		wh: make([]float64, len(n.Wh)),
		b:  make([]float64, len(n.B)),
		wy: make([]float64, len(n.Wy)),
	}
}

func (g *gradients) zero() {
	zeroFill(g.wx)
	zeroFill(g.wh)
	zeroFill(g.b)
	zeroFill(g.wy)
	g.by = 0
}

func (g *gradients) scale(s float64) {
	scaleFill(g.wx, s)
	scaleFill(g.wh, s)
	scaleFill(g.b, s)
	scaleFill(g.wy, s)
	g.by *= s
}

// backward accumulates gradients of half squared error through time.
func (n *Network) backward(cache *fwdCache, target float64, grads *gradients) {
	h := n.HiddenSize
	T := len(cache.steps)

	dOut := cache.output - target

	last := cache.steps[T-1]
	dh := make([]float64, h)
	for j := 0; j < h; j++ {
		grads.wy[j] += dOut * last.h[j]
		dh[j] = dOut * n.Wy[j]
	}
	grads.by += dOut

	dc := make([]float64, h)
	dGate := make([]float64, 4*h)

	for t := T - 1; t >= 0; t-- {
		sc := cache.steps[t]
		var hPrev, cPrev []float64
		if t > 0 {
			hPrev = cache.steps[t-1].h
			cPrev = cache.steps[t-1].c
		} else {
			hPrev = make([]float64, h)
			cPrev = make([]float64, h)
		}

		for j := 0; j < h; j++ {
			do := dh[j] * sc.tanhC[j] * sc.o[j] * (1 - sc.o[j])
			dcj := dc[j] + dh[j]*sc.o[j]*(1-sc.tanhC[j]*sc.tanhC[j])

			di := dcj * sc.g[j] * sc.i[j] * (1 - sc.i[j])
			df := dcj * cPrev[j] * sc.f[j] * (1 - sc.f[j])
			dg := dcj * sc.i[j] * (1 - sc.g[j]*sc.g[j])

			dGate[0*h+j] = di
			dGate[1*h+j] = df
			dGate[2*h+j] = dg
			dGate[3*h+j] = do
			dc[j] = dcj * sc.f[j]
		}

		dhPrev := make([]float64, h)
		for row := 0; row < 4*h; row++ {
			dz := dGate[row]
			if dz == 0 {
				continue
			}
			grads.b[row] += dz
			base := row * n.InputSize
			for d := 0; d < n.InputSize; d++ {
				grads.wx[base+d] += dz * sc.x[d]
			}
			base = row * n.HiddenSize
			for k := 0; k < h; k++ {
				grads.wh[base+k] += dz * hPrev[k]
				dhPrev[k] += dz * n.Wh[base+k]
			}
		}
		dh = dhPrev
	}
}

type adam struct {
	lr, wd     float64
	beta1      float64
	beta2      float64
	eps        float64
	t          int
	mWx, vWx   []float64
	mWh, vWh   []float64
	mB, vB     []float64
	mWy, vWy   []float64
	mBy, vBy   float64
}

func newAdam(n *Network, lr, wd float64) *adam {
	return &adam{
		lr: lr, wd: wd,
		beta1: 0.9, beta2: 0.999, eps: 1e-8,
		mWx: make([]float64, len(n.Wx)), vWx: make([]float64, len(n.Wx)),
		mWh: make([]float64, len(n.Wh)), vWh: make([]float64, len(n.Wh)),
		mB: make([]float64, len(n.B)), vB: make([]float64, len(n.B)),
		mWy: make([]float64, len(n.Wy)), vWy: make([]float64, len(n.Wy)),
	}
}

func (a *adam) step(n *Network, g *gradients) {
	a.t++
	a.update(n.Wx, g.wx, a.mWx, a.vWx)
	a.update(n.Wh, g.wh, a.mWh, a.vWh)
	a.update(n.B, g.b, a.mB, a.vB)
	a.update(n.Wy, g.wy, a.mWy, a.vWy)

	grad := g.by + a.wd*n.By
	a.mBy = a.beta1*a.mBy + (1-a.beta1)*grad
	a.vBy = a.beta2*a.vBy + (1-a.beta2)*grad*grad
	n.By -= a.delta(a.mBy, a.vBy)
}

func (a *adam) update(w, g, m, v []float64) {
	for i := range w {
		grad := g[i] + a.wd*w[i]
		m[i] = a.beta1*m[i] + (1-a.beta1)*grad
		v[i] = a.beta2*v[i] + (1-a.beta2)*grad*grad
		w[i] -= a.delta(m[i], v[i])
	}
}

func (a *adam) delta(m, v float64) float64 {
	mHat := m / (1 - math.Pow(a.beta1, float64(a.t)))
	vHat := v / (1 - math.Pow(a.beta2, float64(a.t)))
	return a.lr * mHat / (math.Sqrt(vHat) + a.eps)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func zeroFill(xs []float64) {
	for i := range xs {
		xs[i] = 0
	}
}

func scaleFill(xs []float64, s float64) {
	for i := range xs {
		xs[i] *= s
	}
}
