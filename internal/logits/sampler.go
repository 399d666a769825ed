// Package logits turns a model's next-token distribution into a single drawn
// id: temperature rescaling in log space followed by a categorical draw.
package logits

import (
	"math"
	"math/rand"
)

// DefaultEpsilon keeps log(p) finite for zero-probability entries.
const DefaultEpsilon = 1e-9

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed int64
	// Temperature ≤ 0 selects greedy (argmax) decoding.
	Temperature float64
	Epsilon     float64
	// MaskIDs are indices that are never drawn, such as the padding id.
	MaskIDs []int
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	masked map[int]struct{}
	prob   []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0 || math.IsNaN(cfg.Temperature)
	if greedy {
		cfg.Temperature = 1
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	masked := make(map[int]struct{}, len(cfg.MaskIDs))
	for _, id := range cfg.MaskIDs {
		masked[id] = struct{}{}
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
		masked: masked,
	}
}

// Rescale applies temperature to a probability vector:
//
//	p' = exp(log(p + eps) / T),  p'' = p' / sum(p')
//
// The maximum log value is subtracted before exponentiation, which cancels
// in the normalisation but keeps small temperatures from underflowing to an
// all-zero vector. NaN, infinite and negative inputs count as 0. When the
// scaled logs overflow the result is one-hot on the largest input. The
// result is written to dst (grown if needed) and returned.
func Rescale(dst []float64, probs []float32, temperature, eps float64) []float64 {
	return rescale(dst, probs, temperature, eps, nil)
}

// rescale is Rescale with masked indices fixed at 0 and left out of the
// maximum and the normalisation.
func rescale(dst []float64, probs []float32, temperature, eps float64, masked map[int]struct{}) []float64 {
	if cap(dst) < len(probs) {
		dst = make([]float64, len(probs))
	}
	dst = dst[:len(probs)]
	if len(probs) == 0 {
		return dst
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	maxv := math.Inf(-1)
	best := -1
	var bestP float64
	for i, p := range probs {
		if _, ok := masked[i]; ok {
			dst[i] = math.Inf(-1)
			continue
		}
		v := sanitize(p)
		if best < 0 || v > bestP {
			best, bestP = i, v
		}
		l := math.Log(v+eps) / temperature
		dst[i] = l
		if l > maxv {
			maxv = l
		}
	}
	if best < 0 {
		clear(dst)
		return dst
	}
	if math.IsInf(maxv, 0) || math.IsNaN(maxv) {
		clear(dst)
		dst[best] = 1
		return dst
	}

	var sum float64
	for i, l := range dst {
		e := math.Exp(l - maxv)
		dst[i] = e
		sum += e
	}
	inv := 1.0 / sum
	for i := range dst {
		dst[i] *= inv
	}
	return dst
}

func sanitize(p float32) float64 {
	v := float64(p)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Distribution returns the rescaled distribution Sample draws from, with
// masked indices zeroed. The slice is reused by the next call.
func (s *Sampler) Distribution(probs []float32) []float64 {
	s.prob = rescale(s.prob, probs, s.cfg.Temperature, s.cfg.Epsilon, s.masked)
	return s.prob
}

// Sample draws a single index from probs. It returns -1 when every index
// is masked.
func (s *Sampler) Sample(probs []float32) int {
	if s.greedy {
		return s.argmax(probs)
	}
	dist := s.Distribution(probs)

	r := s.rng.Float64()
	var c float64
	last := -1
	for i, p := range dist {
		if p <= 0 {
			continue
		}
		c += p
		last = i
		if r < c {
			return i
		}
	}
	// Rounding left c just below 1.
	return last
}

// argmax returns the unmasked index with the largest value, or -1.
func (s *Sampler) argmax(x []float32) int {
	bestI := -1
	var bestV float32
	for i, v := range x {
		if _, ok := s.masked[i]; ok || math.IsNaN(float64(v)) {
			continue
		}
		if bestI < 0 || v > bestV {
			bestV = v
			bestI = i
		}
	}
	return bestI
}
