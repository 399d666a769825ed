package toy

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/samcharles93/seedtext/internal/safetensors"
)

// File names match what inference.Loader expects in a model directory.
const (
	configFile    = "config.json"
	weightsFile   = "model.safetensors"
	tokenizerFile = "tokenizer.json"
)

// Write creates dir if needed and writes config.json, model.safetensors and
// tokenizer.json.
func Write(dir string, a *Artifact) error {
	if a == nil {
		return fmt.Errorf("nil artifact")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfg, err := a.Config.Marshal()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), cfg, 0o644); err != nil {
		return err
	}

	meta := map[string]string{
		"format":  "seedtext",
		"kind":    "bigram",
		"bigrams": strconv.Itoa(a.Bigrams),
	}
	if err := safetensors.WriteFile(filepath.Join(dir, weightsFile), a.Weights.Tensors(), meta); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}

	tok, err := a.Tokenizer.MarshalKeras(a.Counts)
	if err != nil {
		return fmt.Errorf("encode tokenizer: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, tokenizerFile), tok, 0o644)
}
