package inference

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/samcharles93/seedtext/internal/model"
	"github.com/samcharles93/seedtext/internal/tokenizer"
)

// Default artifact names inside a model directory.
const (
	ConfigFile    = "config.json"
	WeightsFile   = "model.safetensors"
	TokenizerFile = "tokenizer.json"
)

// Loader locates and reads the three artifacts of a model directory. Each
// path may be overridden individually.
type Loader struct {
	ModelDir      string
	ConfigPath    string
	WeightsPath   string
	TokenizerPath string
}

// Paths returns the config, weights and tokenizer paths after applying
// overrides.
func (l Loader) Paths() (configPath, weightsPath, tokenizerPath string) {
	pick := func(override, name string) string {
		if strings.TrimSpace(override) != "" {
			return override
		}
		return filepath.Join(l.ModelDir, name)
	}
	return pick(l.ConfigPath, ConfigFile), pick(l.WeightsPath, WeightsFile), pick(l.TokenizerPath, TokenizerFile)
}

// Handle is a loaded model with its vocabulary. It is read-only and shared
// by every generation call.
type Handle struct {
	Model        model.Model
	Tokenizer    *tokenizer.WordTokenizer
	WindowLength int
	Info         ModelInfo
	Fingerprint  string

	// idOffset is 1 when the model does not score the padding id, so
	// output index i is id i+1.
	idOffset int
}

func (h *Handle) Vocabulary() *tokenizer.Vocabulary { return h.Tokenizer.Vocabulary() }

// ModelInfo summarises a handle for the CLI and API.
type ModelInfo struct {
	Architecture  string `json:"architecture"`
	VocabSize     int    `json:"vocab_size"`
	MaxID         int    `json:"max_id"`
	WindowLength  int    `json:"window_length"`
	OutputWidth   int    `json:"output_width"`
	PadModeled    bool   `json:"pad_modeled"`
	EmbeddingDim  int    `json:"embedding_dim,omitempty"`
	Layers        []int  `json:"layers,omitempty"`
	Params        int    `json:"params,omitempty"`
	MaskPadding   bool   `json:"mask_padding"`
	ConfigPath    string `json:"config_path,omitempty"`
	WeightsPath   string `json:"weights_path,omitempty"`
	TokenizerPath string `json:"tokenizer_path,omitempty"`
	Fingerprint   string `json:"fingerprint,omitempty"`
}

// Load reads every artifact. Failures are *LoadError naming the artifact.
func (l Loader) Load(ctx context.Context) (*Handle, error) {
	configPath, weightsPath, tokenizerPath := l.Paths()

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactConfig, Path: configPath, Err: err}
	}
	tok, err := tokenizer.Load(tokenizerPath)
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactVocabulary, Path: tokenizerPath, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gru, err := model.LoadWeights(weightsPath, cfg)
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactWeights, Path: weightsPath, Err: err}
	}
	if maxID := effectiveMaxID(tok); cfg.VocabSize <= maxID {
		return nil, &LoadError{
			Artifact: ArtifactVocabulary,
			Path:     tokenizerPath,
			Err:      fmt.Errorf("vocabulary uses id %d but the embedding has %d rows", maxID, cfg.VocabSize),
		}
	}

	h, err := NewHandle(gru, tok)
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactVocabulary, Path: tokenizerPath, Err: err}
	}

	fp, err := Fingerprint(configPath, weightsPath, tokenizerPath)
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactWeights, Path: weightsPath, Err: err}
	}
	h.Fingerprint = fp

	layers := make([]int, len(cfg.Layers))
	for i, lc := range cfg.Layers {
		layers[i] = lc.Units
	}
	h.Info.Architecture = model.ArchitectureGRU
	h.Info.EmbeddingDim = cfg.EmbeddingDim
	h.Info.Layers = layers
	h.Info.Params = gru.ParamCount()
	h.Info.MaskPadding = cfg.MaskPadding
	h.Info.ConfigPath = configPath
	h.Info.WeightsPath = weightsPath
	h.Info.TokenizerPath = tokenizerPath
	h.Info.Fingerprint = fp
	return h, nil
}

// NewHandle pairs a model with its tokenizer after checking that the output
// width matches the vocabulary: V+1 when the padding id is scored, V when
// it is not. Models that report themselves unsafe for concurrent use are
// wrapped with Serialize.
func NewHandle(m model.Model, tok *tokenizer.WordTokenizer) (*Handle, error) {
	shape := m.InputShape()
	if len(shape) != 2 || shape[1] <= 0 {
		return nil, fmt.Errorf("model input shape %v has no fixed window", shape)
	}
	maxID := effectiveMaxID(tok)
	width := m.OutputWidth()

	h := &Handle{Tokenizer: tok, WindowLength: shape[1]}
	switch width {
	case maxID + 1:
		h.idOffset = 0
	case maxID:
		h.idOffset = 1
	default:
		return nil, fmt.Errorf("model output width %d is inconsistent with vocabulary max id %d", width, maxID)
	}

	if r, ok := m.(model.ConcurrencyReporter); ok && !r.ConcurrencySafe() {
		m = Serialize(m)
	}
	h.Model = m
	h.Info = ModelInfo{
		VocabSize:    tok.Vocabulary().Size(),
		MaxID:        maxID,
		WindowLength: h.WindowLength,
		OutputWidth:  width,
		PadModeled:   h.idOffset == 0,
	}
	return h, nil
}

// effectiveMaxID is the largest id Encode can produce.
func effectiveMaxID(tok *tokenizer.WordTokenizer) int {
	maxID := tok.Vocabulary().MaxID()
	if n := tok.Options().NumWords; n > 0 && n-1 < maxID {
		maxID = n - 1
	}
	return maxID
}

// Fingerprint hashes the given files in order with xxhash.
func Fingerprint(paths ...string) (string, error) {
	d := xxhash.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(d, f)
		_ = f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", p, err)
		}
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}
