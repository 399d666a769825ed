package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samcharles93/seedtext/internal/inference"
)

// EngineProvider hands a ready engine for modelID to fn. An empty modelID
// selects the default model.
type EngineProvider interface {
	WithEngine(ctx context.Context, modelID string, fn func(engine inference.Engine, info inference.ModelInfo) error) error
}

type EngineProviderConfig struct {
	DefaultModelDir string
	ModelsPath      string
	// NewLoader builds the load function for a model directory. Nil uses
	// inference.Loader with default artifact names.
	NewLoader func(dir string) inference.LoadFunc
}

// CachedEngineProvider keeps one inference.Provider per model directory, so
// every model is loaded at most once and shared across requests.
type CachedEngineProvider struct {
	cfg   EngineProviderConfig
	mu    sync.Mutex
	cache map[string]*inference.Provider
}

const EnvModelsDir = "SEEDTEXT_MODELS_DIR"

func NewCachedEngineProvider(cfg EngineProviderConfig) *CachedEngineProvider {
	return &CachedEngineProvider{
		cfg:   cfg,
		cache: make(map[string]*inference.Provider),
	}
}

func (p *CachedEngineProvider) WithEngine(ctx context.Context, modelID string, fn func(engine inference.Engine, info inference.ModelInfo) error) error {
	h, err := p.Load(ctx, modelID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(inference.NewGenerator(h), h.Info)
}

// Load resolves modelID and returns its handle, loading it on first use.
func (p *CachedEngineProvider) Load(ctx context.Context, modelID string) (*inference.Handle, error) {
	dir, err := p.resolveModelDir(modelID)
	if err != nil {
		return nil, err
	}
	return p.provider(dir).Load(ctx)
}

func (p *CachedEngineProvider) provider(dir string) *inference.Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.cache[dir]; ok {
		return prov
	}
	load := inference.Loader{ModelDir: dir}.Load
	if p.cfg.NewLoader != nil {
		load = p.cfg.NewLoader(dir)
	}
	prov := inference.NewProvider(load)
	p.cache[dir] = prov
	return prov
}

// ListModels returns the names of the default model and every model
// directory under the models path.
func (p *CachedEngineProvider) ListModels() ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if p.cfg.DefaultModelDir != "" {
		add(filepath.Base(filepath.Clean(p.cfg.DefaultModelDir)))
	}
	if dir := p.modelsDir(); dir != "" {
		models, err := DiscoverModels(dir)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			add(filepath.Base(m))
		}
	}
	return names, nil
}

func (p *CachedEngineProvider) resolveModelDir(modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID != "" {
		if !validModelName(modelID) {
			return "", newInvalidRequest(fmt.Sprintf("invalid model %q: expected a model name, not a path", modelID))
		}
		if p.cfg.DefaultModelDir != "" && filepath.Base(filepath.Clean(p.cfg.DefaultModelDir)) == modelID {
			return filepath.Clean(p.cfg.DefaultModelDir), nil
		}
		modelsDir := p.modelsDir()
		if modelsDir == "" {
			return "", fmt.Errorf("%w: %q (no models path configured)", ErrModelNotFound, modelID)
		}
		cand := filepath.Join(modelsDir, modelID)
		if IsModelDir(cand) {
			return cand, nil
		}
		return "", fmt.Errorf("%w: %q not found in %s", ErrModelNotFound, modelID, modelsDir)
	}

	if p.cfg.DefaultModelDir != "" {
		return filepath.Clean(p.cfg.DefaultModelDir), nil
	}
	modelsDir := p.modelsDir()
	if modelsDir == "" {
		return "", fmt.Errorf("%w: no model directory configured", ErrModelNotFound)
	}
	models, err := DiscoverModels(modelsDir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("%w: no models found in %s", ErrModelNotFound, modelsDir)
	case 1:
		return models[0], nil
	default:
		return "", newInvalidRequest(fmt.Sprintf("multiple models found in %s; specify model", modelsDir))
	}
}

// validModelName reports whether id is a bare directory name. Request
// supplied ids never address paths outside the configured models.
func validModelName(id string) bool {
	if id == "." || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, `/\`+"\x00") && filepath.VolumeName(id) == ""
}

func (p *CachedEngineProvider) modelsDir() string {
	if strings.TrimSpace(p.cfg.ModelsPath) != "" {
		return strings.TrimSpace(p.cfg.ModelsPath)
	}
	return strings.TrimSpace(os.Getenv(EnvModelsDir))
}

// IsModelDir reports whether dir holds a model config file.
func IsModelDir(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, inference.ConfigFile))
	return err == nil && !st.IsDir()
}

// DiscoverModels lists the subdirectories of dir that look like model
// directories, sorted by name.
func DiscoverModels(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ents))
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		cand := filepath.Join(dir, e.Name())
		if IsModelDir(cand) {
			models = append(models, cand)
		}
	}
	sort.Strings(models)
	return models, nil
}
