package model

import (
	"context"
	"fmt"

	"github.com/samcharles93/seedtext/internal/tensor"
)

// Weights holds the network parameters in Keras layout: kernels are
// [in, out] and gate blocks are ordered update, reset, candidate.
type Weights struct {
	Embedding   tensor.Mat // [vocab_size, embedding_dim]
	Layers      []LayerWeights
	DenseKernel tensor.Mat // [units, out]
	DenseBias   []float32  // [out]
}

type LayerWeights struct {
	Kernel          tensor.Mat // [in, 3H]
	RecurrentKernel tensor.Mat // [H, 3H]
	// Bias is [3H], or [2*3H] with the input bias first when reset_after
	// is set.
	Bias []float32
}

// gruLayer stores each gate as a row-major [H, in] matrix so a step is a
// handful of MatVec calls.
type gruLayer struct {
	units      int
	in         int
	resetAfter bool
	recAct     func(float32) float32

	wz, wr, wh tensor.Mat
	uz, ur, uh tensor.Mat

	bz, br, bh    []float32
	rbz, rbr, rbh []float32
}

// GRU is an embedding → stacked GRU → dense softmax network. It is
// immutable after construction; Predict allocates its own scratch.
type GRU struct {
	cfg       Config
	embedding tensor.Mat
	layers    []gruLayer
	dense     tensor.Mat // [out, H]
	denseBias []float32
}

var _ Model = (*GRU)(nil)

// NewGRU checks w against cfg and builds the network.
func NewGRU(cfg Config, w Weights) (*GRU, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w.Embedding.R != cfg.VocabSize || w.Embedding.C != cfg.EmbeddingDim {
		return nil, fmt.Errorf("embedding: expected [%d %d], got [%d %d]",
			cfg.VocabSize, cfg.EmbeddingDim, w.Embedding.R, w.Embedding.C)
	}
	if len(w.Layers) != len(cfg.Layers) {
		return nil, fmt.Errorf("expected %d recurrent layers, got %d", len(cfg.Layers), len(w.Layers))
	}

	g := &GRU{cfg: cfg, embedding: w.Embedding}
	in := cfg.EmbeddingDim
	for i, lc := range cfg.Layers {
		layer, err := newGRULayer(i, lc, in, w.Layers[i])
		if err != nil {
			return nil, err
		}
		g.layers = append(g.layers, layer)
		in = lc.Units
	}

	if w.DenseKernel.R != in || w.DenseKernel.C <= 0 {
		return nil, fmt.Errorf("dense.kernel: expected [%d out], got [%d %d]", in, w.DenseKernel.R, w.DenseKernel.C)
	}
	out := w.DenseKernel.C
	if len(w.DenseBias) != out {
		return nil, fmt.Errorf("dense.bias: expected %d values, got %d", out, len(w.DenseBias))
	}
	g.dense = w.DenseKernel.T()
	g.denseBias = w.DenseBias
	return g, nil
}

func newGRULayer(idx int, lc LayerConfig, in int, w LayerWeights) (gruLayer, error) {
	h := lc.Units
	if w.Kernel.R != in || w.Kernel.C != 3*h {
		return gruLayer{}, fmt.Errorf("gru.%d.kernel: expected [%d %d], got [%d %d]", idx, in, 3*h, w.Kernel.R, w.Kernel.C)
	}
	if w.RecurrentKernel.R != h || w.RecurrentKernel.C != 3*h {
		return gruLayer{}, fmt.Errorf("gru.%d.recurrent_kernel: expected [%d %d], got [%d %d]", idx, h, 3*h, w.RecurrentKernel.R, w.RecurrentKernel.C)
	}

	resetAfter := lc.resetAfter()
	bias := w.Bias
	switch {
	case bias == nil:
		bias = make([]float32, 3*h)
		if resetAfter {
			bias = make([]float32, 6*h)
		}
	case resetAfter && len(bias) != 6*h:
		return gruLayer{}, fmt.Errorf("gru.%d.bias: reset_after expects %d values, got %d", idx, 6*h, len(bias))
	case !resetAfter && len(bias) != 3*h:
		return gruLayer{}, fmt.Errorf("gru.%d.bias: expected %d values, got %d", idx, 3*h, len(bias))
	}

	l := gruLayer{units: h, in: in, resetAfter: resetAfter, recAct: tensor.Sigmoid}
	if lc.RecurrentActivation == "hard_sigmoid" {
		l.recAct = tensor.HardSigmoid
	}
	gate := func(m *tensor.Mat, k int) tensor.Mat {
		block := m.Cols(k*h, h)
		return block.T()
	}
	l.wz, l.wr, l.wh = gate(&w.Kernel, 0), gate(&w.Kernel, 1), gate(&w.Kernel, 2)
	l.uz, l.ur, l.uh = gate(&w.RecurrentKernel, 0), gate(&w.RecurrentKernel, 1), gate(&w.RecurrentKernel, 2)
	l.bz, l.br, l.bh = bias[0:h], bias[h:2*h], bias[2*h:3*h]
	if resetAfter {
		l.rbz, l.rbr, l.rbh = bias[3*h:4*h], bias[4*h:5*h], bias[5*h:6*h]
	}
	return l, nil
}

func (g *GRU) Config() Config { return g.cfg }

func (g *GRU) InputShape() []int { return []int{-1, g.cfg.Window()} }

func (g *GRU) OutputWidth() int { return g.dense.R }

func (g *GRU) ConcurrencySafe() bool { return true }

// ParamCount returns the number of trainable parameters.
func (g *GRU) ParamCount() int {
	n := len(g.embedding.Data) + len(g.dense.Data) + len(g.denseBias)
	for _, l := range g.layers {
		n += 3*l.units*l.in + 3*l.units*l.units + 3*l.units
		if l.resetAfter {
			n += 3 * l.units
		}
	}
	return n
}

// Predict returns softmax probabilities for each window in batch.
func (g *GRU) Predict(ctx context.Context, batch [][]int) ([][]float32, error) {
	window := g.cfg.Window()
	for i, row := range batch {
		if len(row) != window {
			return nil, fmt.Errorf("row %d: expected %d ids, got %d", i, window, len(row))
		}
		for _, id := range row {
			if id < 0 || id >= g.cfg.VocabSize {
				return nil, fmt.Errorf("row %d: id %d out of range [0, %d)", i, id, g.cfg.VocabSize)
			}
		}
	}

	s := g.newScratch()
	out := make([][]float32, len(batch))
	for i, row := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = g.forward(s, row)
	}
	return out, nil
}

type scratch struct {
	states     [][]float32
	seq        [][]float32 // per-step outputs of the previous layer
	next       [][]float32
	xz, xr, xh []float32
	hz, hr, hh []float32
	rh         []float32
}

func (g *GRU) newScratch() *scratch {
	window := g.cfg.Window()
	maxUnits := 0
	for _, l := range g.layers {
		maxUnits = max(maxUnits, l.units)
	}
	s := &scratch{
		seq:  make([][]float32, window),
		next: make([][]float32, window),
		xz:   make([]float32, maxUnits),
		xr:   make([]float32, maxUnits),
		xh:   make([]float32, maxUnits),
		hz:   make([]float32, maxUnits),
		hr:   make([]float32, maxUnits),
		hh:   make([]float32, maxUnits),
		rh:   make([]float32, maxUnits),
	}
	for t := range window {
		s.next[t] = make([]float32, maxUnits)
	}
	s.states = make([][]float32, len(g.layers))
	for i, l := range g.layers {
		s.states[i] = make([]float32, l.units)
	}
	return s
}

func (g *GRU) forward(s *scratch, ids []int) []float32 {
	for t, id := range ids {
		s.seq[t] = g.embedding.Row(id)
	}

	var last []float32
	for li := range g.layers {
		l := &g.layers[li]
		h := s.states[li]
		clear(h)
		for t, id := range ids {
			if !(g.cfg.MaskPadding && id == 0) {
				l.step(s, s.seq[t], h)
			}
			copy(s.next[t][:l.units], h)
		}
		for t := range ids {
			s.seq[t] = s.next[t][:l.units]
		}
		last = h
	}

	probs := make([]float32, g.dense.R)
	tensor.MatVec(probs, &g.dense, last)
	tensor.Add(probs, g.denseBias)
	tensor.Softmax(probs)
	return probs
}

// step advances h by one timestep with input x.
func (l *gruLayer) step(s *scratch, x, h []float32) {
	n := l.units
	xz, xr, xh := s.xz[:n], s.xr[:n], s.xh[:n]
	hz, hr, hh := s.hz[:n], s.hr[:n], s.hh[:n]

	tensor.MatVec(xz, &l.wz, x)
	tensor.MatVec(xr, &l.wr, x)
	tensor.MatVec(xh, &l.wh, x)
	tensor.Add(xz, l.bz)
	tensor.Add(xr, l.br)
	tensor.Add(xh, l.bh)

	tensor.MatVec(hz, &l.uz, h)
	tensor.MatVec(hr, &l.ur, h)
	if l.resetAfter {
		tensor.Add(hz, l.rbz)
		tensor.Add(hr, l.rbr)
	}

	z := hz
	r := hr
	for i := range n {
		z[i] = l.recAct(xz[i] + hz[i])
		r[i] = l.recAct(xr[i] + hr[i])
	}

	if l.resetAfter {
		tensor.MatVec(hh, &l.uh, h)
		tensor.Add(hh, l.rbh)
		for i := range n {
			hh[i] = tensor.Tanh(xh[i] + r[i]*hh[i])
		}
	} else {
		rh := s.rh[:n]
		for i := range n {
			rh[i] = r[i] * h[i]
		}
		tensor.MatVec(hh, &l.uh, rh)
		for i := range n {
			hh[i] = tensor.Tanh(xh[i] + hh[i])
		}
	}

	for i := range n {
		h[i] = z[i]*h[i] + (1-z[i])*hh[i]
	}
}
