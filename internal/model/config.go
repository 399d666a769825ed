package model

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

const ArchitectureGRU = "gru"

// Config is the config.json stored next to the weights.
type Config struct {
	Architecture   string        `json:"architecture"`
	VocabSize      int           `json:"vocab_size"`
	EmbeddingDim   int           `json:"embedding_dim"`
	WindowLength   int           `json:"window_length,omitempty"`
	MaxSequenceLen int           `json:"max_sequence_len,omitempty"`
	Layers         []LayerConfig `json:"layers"`
	// MaskPadding mirrors Embedding(mask_zero=True): padding steps leave
	// the recurrent state untouched.
	MaskPadding bool `json:"mask_padding"`
}

type LayerConfig struct {
	Units int `json:"units"`
	// ResetAfter defaults to true, the Keras 2.x default.
	ResetAfter          *bool  `json:"reset_after,omitempty"`
	RecurrentActivation string `json:"recurrent_activation,omitempty"`
}

func (l LayerConfig) resetAfter() bool {
	return l.ResetAfter == nil || *l.ResetAfter
}

// Window returns the number of ids the model consumes. A training script that
// pads to max_sequence_len and splits off the label feeds max_sequence_len-1.
func (c Config) Window() int {
	if c.WindowLength > 0 {
		return c.WindowLength
	}
	return c.MaxSequenceLen - 1
}

func (c Config) Validate() error {
	arch := strings.ToLower(strings.TrimSpace(c.Architecture))
	if arch != "" && arch != ArchitectureGRU {
		return fmt.Errorf("unsupported architecture: %s", c.Architecture)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab_size must be positive")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive")
	}
	if c.Window() <= 0 {
		return fmt.Errorf("window_length (or max_sequence_len > 1) is required")
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("at least one recurrent layer is required")
	}
	for i, l := range c.Layers {
		if l.Units <= 0 {
			return fmt.Errorf("layer %d: units must be positive", i)
		}
		switch l.RecurrentActivation {
		case "", "sigmoid", "hard_sigmoid":
		default:
			return fmt.Errorf("layer %d: unsupported recurrent_activation %q", i, l.RecurrentActivation)
		}
	}
	return nil
}

func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse model config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(raw)
}

// Marshal encodes c as indented JSON.
func (c Config) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
