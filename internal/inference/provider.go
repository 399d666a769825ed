package inference

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/samcharles93/seedtext/internal/logger"
	"github.com/samcharles93/seedtext/internal/model"
)

// LoadFunc produces a handle. Loader.Load satisfies it.
type LoadFunc func(ctx context.Context) (*Handle, error)

// Provider loads a model at most once per lifetime. Concurrent first calls
// share a single load; the first success is cached and failures are not.
type Provider struct {
	load  LoadFunc
	group singleflight.Group

	mu     sync.RWMutex
	handle *Handle
}

func NewProvider(load LoadFunc) *Provider {
	return &Provider{load: load}
}

// Load returns the cached handle or performs the load. The shared load is
// detached from ctx so one caller giving up does not fail the others;
// ctx only bounds how long this caller waits.
func (p *Provider) Load(ctx context.Context) (*Handle, error) {
	if h := p.cached(); h != nil {
		return h, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan("model", func() (any, error) {
		if h := p.cached(); h != nil {
			return h, nil
		}
		log := logger.FromContext(loadCtx)
		log.Debug("loading model")
		h, err := p.load(loadCtx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.handle = h
		p.mu.Unlock()
		log.Info("model loaded",
			"window", h.WindowLength,
			"vocab", h.Info.VocabSize,
			"output_width", h.Info.OutputWidth,
			"fingerprint", h.Fingerprint,
		)
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.FromContext(ctx).Debug("joined in-flight model load")
		}
		return res.Val.(*Handle), nil
	}
}

// Loaded reports whether a handle is cached.
func (p *Provider) Loaded() bool { return p.cached() != nil }

func (p *Provider) cached() *Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handle
}

// Serialize wraps m so Predict calls never overlap. Only the Predict call
// holds the lock.
func Serialize(m model.Model) model.Model {
	if s, ok := m.(*serialized); ok {
		return s
	}
	return &serialized{Model: m}
}

type serialized struct {
	model.Model
	mu sync.Mutex
}

func (s *serialized) Predict(ctx context.Context, batch [][]int) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Predict(ctx, batch)
}

func (s *serialized) ConcurrencySafe() bool { return true }
