package model

import (
	"fmt"

	"github.com/samcharles93/seedtext/internal/safetensors"
	"github.com/samcharles93/seedtext/internal/tensor"
)

// Tensor names in model.safetensors.
const (
	EmbeddingTensor   = "embedding.weight"
	DenseKernelTensor = "dense.kernel"
	DenseBiasTensor   = "dense.bias"
)

func KernelTensor(layer int) string          { return fmt.Sprintf("gru.%d.kernel", layer) }
func RecurrentKernelTensor(layer int) string { return fmt.Sprintf("gru.%d.recurrent_kernel", layer) }
func BiasTensor(layer int) string            { return fmt.Sprintf("gru.%d.bias", layer) }

// ReadWeights reads every tensor the config names from st.
func ReadWeights(st *safetensors.File, cfg Config) (Weights, error) {
	var w Weights
	emb, err := tensor.LoadSafetensorsMat(st, EmbeddingTensor)
	if err != nil {
		return Weights{}, err
	}
	w.Embedding = *emb

	for i := range cfg.Layers {
		kernel, err := tensor.LoadSafetensorsMat(st, KernelTensor(i))
		if err != nil {
			return Weights{}, err
		}
		rec, err := tensor.LoadSafetensorsMat(st, RecurrentKernelTensor(i))
		if err != nil {
			return Weights{}, err
		}
		lw := LayerWeights{Kernel: *kernel, RecurrentKernel: *rec}
		if _, ok := st.Tensor(BiasTensor(i)); ok {
			bias, _, err := st.ReadTensorF32(BiasTensor(i))
			if err != nil {
				return Weights{}, err
			}
			lw.Bias = bias
		}
		w.Layers = append(w.Layers, lw)
	}

	dense, err := tensor.LoadSafetensorsMat(st, DenseKernelTensor)
	if err != nil {
		return Weights{}, err
	}
	w.DenseKernel = *dense
	if w.DenseBias, err = tensor.LoadSafetensorsVec(st, DenseBiasTensor); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// LoadWeights opens a safetensors file and builds the network described by
// cfg. The file is closed before returning; all tensors are copied out.
func LoadWeights(path string, cfg Config) (*GRU, error) {
	st, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	w, err := ReadWeights(st, cfg)
	if err != nil {
		return nil, err
	}
	return NewGRU(cfg, w)
}

// Tensors flattens w into named tensors for safetensors.Write.
func (w Weights) Tensors() []safetensors.Tensor {
	out := []safetensors.Tensor{
		{Name: EmbeddingTensor, Shape: []int{w.Embedding.R, w.Embedding.C}, Data: w.Embedding.Data},
		{Name: DenseKernelTensor, Shape: []int{w.DenseKernel.R, w.DenseKernel.C}, Data: w.DenseKernel.Data},
		{Name: DenseBiasTensor, Shape: []int{len(w.DenseBias)}, Data: w.DenseBias},
	}
	for i, l := range w.Layers {
		out = append(out,
			safetensors.Tensor{Name: KernelTensor(i), Shape: []int{l.Kernel.R, l.Kernel.C}, Data: l.Kernel.Data},
			safetensors.Tensor{Name: RecurrentKernelTensor(i), Shape: []int{l.RecurrentKernel.R, l.RecurrentKernel.C}, Data: l.RecurrentKernel.Data},
		)
		if len(l.Bias) == 0 {
			continue
		}
		shape := []int{len(l.Bias)}
		if units := l.RecurrentKernel.R; len(l.Bias) == 6*units {
			shape = []int{2, 3 * units}
		}
		out = append(out, safetensors.Tensor{Name: BiasTensor(i), Shape: shape, Data: l.Bias})
	}
	return out
}
