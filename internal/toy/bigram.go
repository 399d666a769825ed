// Package toy builds a small, fully deterministic model artifact so the
// generator can run without a trained network.
//
// The artifact is a GRU whose weights encode an add-α bigram table fitted on
// a text corpus. The embedding is one-hot, the update gate is pinned near
// zero, and the candidate state is tanh(gain·onehot(last id)), so after a
// window the hidden state identifies the most recent token. The dense layer
// holds log P(next | last) scaled by 1/tanh(gain), and softmax recovers the
// bigram distribution. The padding id stands for "no context" and maps to
// the unigram distribution.
package toy

import (
	"fmt"
	"math"

	"github.com/samcharles93/seedtext/internal/model"
	"github.com/samcharles93/seedtext/internal/tensor"
	"github.com/samcharles93/seedtext/internal/tokenizer"
)

const (
	DefaultNumWords = 500
	DefaultAlpha    = 0.1
	DefaultGain     = 5.0
	DefaultWindow   = 10

	// updateGateBias makes sigmoid(z) ≈ 4.5e-5 so each step overwrites
	// the state.
	updateGateBias = -10
	// paddingLogProb keeps the padding class out of the distribution.
	paddingLogProb = -30
)

type Options struct {
	// NumWords caps the vocabulary like Keras num_words: ids 1..NumWords-1.
	NumWords int
	// Alpha is the additive smoothing constant.
	Alpha float64
	// Gain scales the candidate pre-activation; larger values make the
	// hidden state closer to an exact one-hot.
	Gain   float64
	Window int
	// Tokenizer configures word splitting. The zero value uses Keras
	// defaults.
	Tokenizer *tokenizer.Options
}

func (o Options) withDefaults() Options {
	if o.NumWords <= 1 {
		o.NumWords = DefaultNumWords
	}
	if o.Alpha <= 0 {
		o.Alpha = DefaultAlpha
	}
	if o.Gain <= 0 {
		o.Gain = DefaultGain
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	return o
}

// Artifact is everything Write needs to produce a model directory.
type Artifact struct {
	Config    model.Config
	Weights   model.Weights
	Tokenizer *tokenizer.WordTokenizer
	// Counts are the word frequencies of the kept vocabulary.
	Counts map[string]int
	// Bigrams is the number of distinct (prev, next) pairs observed.
	Bigrams int
}

// BuildBigram fits a vocabulary on corpus and compiles its bigram
// statistics into GRU weights.
func BuildBigram(corpus []string, opts Options) (*Artifact, error) {
	opts = opts.withDefaults()
	tokOpts := tokenizer.DefaultOptions()
	if opts.Tokenizer != nil {
		tokOpts = *opts.Tokenizer
	}
	// The cap is applied by trimming the vocabulary itself so the artifact
	// stays self-consistent.
	tokOpts.NumWords = 0
	tokOpts.OOVToken = ""

	fitted, counts, err := tokenizer.Fit(corpus, tokOpts)
	if err != nil {
		return nil, err
	}
	vocab := fitted.Vocabulary().Limit(opts.NumWords - 1)
	if vocab.Size() < 2 {
		return nil, fmt.Errorf("corpus has %d distinct words, need at least 2", vocab.Size())
	}
	tok := tokenizer.New(vocab, tokOpts)
	v := vocab.MaxID()
	n := v + 1 // classes including padding

	unigram := make([]float64, n)
	bigram := make([][]float64, n)
	for i := range bigram {
		bigram[i] = make([]float64, n)
	}
	distinct := 0
	for _, text := range corpus {
		ids, err := tok.Encode(text)
		if err != nil {
			return nil, err
		}
		for i, id := range ids {
			unigram[id]++
			if i == 0 {
				continue
			}
			prev := ids[i-1]
			if bigram[prev][id] == 0 {
				distinct++
			}
			bigram[prev][id]++
		}
	}

	scale := 1 / math.Tanh(opts.Gain)
	dense := tensor.NewMat(n, n)
	fillLogRow(dense.Row(tokenizer.PadID), unigram, opts.Alpha, scale)
	for prev := 1; prev < n; prev++ {
		fillLogRow(dense.Row(prev), bigram[prev], opts.Alpha, scale)
	}

	embedding := tensor.NewMat(n, n)
	kernel := tensor.NewMat(n, 3*n)
	for i := range n {
		embedding.Row(i)[i] = 1
		kernel.Row(i)[2*n+i] = float32(opts.Gain)
	}
	bias := make([]float32, 6*n)
	for i := range n {
		bias[i] = updateGateBias
	}

	resetAfter := true
	cfg := model.Config{
		Architecture: model.ArchitectureGRU,
		VocabSize:    n,
		EmbeddingDim: n,
		WindowLength: opts.Window,
		Layers:       []model.LayerConfig{{Units: n, ResetAfter: &resetAfter}},
	}
	w := model.Weights{
		Embedding: embedding,
		Layers: []model.LayerWeights{{
			Kernel:          kernel,
			RecurrentKernel: tensor.NewMat(n, 3*n),
			Bias:            bias,
		}},
		DenseKernel: dense,
		DenseBias:   make([]float32, n),
	}

	kept := make(map[string]int, vocab.Size())
	for _, word := range vocab.Words() {
		kept[word] = counts[word]
	}
	return &Artifact{Config: cfg, Weights: w, Tokenizer: tok, Counts: kept, Bigrams: distinct}, nil
}

// fillLogRow writes scale·log((c_k+α)/(Σc+α·V)) for k ≥ 1 and a large
// negative value for the padding class.
func fillLogRow(dst []float32, counts []float64, alpha, scale float64) {
	var total float64
	for k := 1; k < len(counts); k++ {
		total += counts[k]
	}
	denom := total + alpha*float64(len(counts)-1)
	dst[tokenizer.PadID] = float32(paddingLogProb * scale)
	for k := 1; k < len(counts); k++ {
		dst[k] = float32(scale * math.Log((counts[k]+alpha)/denom))
	}
}

// Model builds the network in memory.
func (a *Artifact) Model() (*model.GRU, error) {
	return model.NewGRU(a.Config, a.Weights)
}
