package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/samcharles93/seedtext/internal/inference"
	"github.com/samcharles93/seedtext/internal/logger"
)

type InferenceService struct {
	provider EngineProvider
	defaults inference.GenDefaults
	limits   inference.Limits
}

func NewInferenceService(provider EngineProvider) *InferenceService {
	return &InferenceService{
		provider: provider,
		limits:   inference.DefaultLimits(),
	}
}

// SetDefaults replaces the fallbacks used for fields a request leaves unset.
func (s *InferenceService) SetDefaults(defaults inference.GenDefaults) {
	s.defaults = defaults
}

func (s *InferenceService) SetLimits(limits inference.Limits) {
	if limits.MaxWords > 0 {
		s.limits = limits
	}
}

func (s *InferenceService) Limits() inference.Limits { return s.limits }

// Generate validates req, extends its seed text and reports progress to
// stream when it is non-nil. On cancellation the partial generation is
// returned along with the error.
func (s *InferenceService) Generate(ctx context.Context, req *GenerateRequest, stream StreamWriter) (*Generation, error) {
	if req == nil {
		return nil, newInvalidRequest("request body is required")
	}
	r := inference.ResolveRequest(inference.RequestOptions{
		SeedText:    req.SeedText,
		Words:       req.Words,
		Temperature: req.Temperature,
		Seed:        req.Seed,
	}, s.defaults)
	if err := r.Validate(s.limits); err != nil {
		return nil, err
	}

	gen := Generation{
		ID:          newGenerationID(),
		Object:      "generation",
		Model:       req.Model,
		SeedText:    r.SeedText,
		Text:        r.SeedText,
		Generated:   []string{},
		Temperature: r.Temperature,
		Words:       r.Words,
		Seed:        r.Seed,
		CreatedAt:   timeNow().Unix(),
	}
	if stream != nil {
		if err := stream.Begin(gen); err != nil {
			return nil, err
		}
	}

	// A failed stream write means the client is gone; stop sampling for it.
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var emitErr error

	err := s.provider.WithEngine(genCtx, req.Model, func(engine inference.Engine, info inference.ModelInfo) error {
		if gen.Model == "" {
			gen.Model = modelName(info)
		}
		var onToken inference.StreamFunc
		if stream != nil {
			onToken = func(tok string) {
				if emitErr != nil {
					return
				}
				if err := stream.EmitToken(tok); err != nil {
					emitErr = err
					cancel()
				}
			}
		}
		result, genErr := engine.Extend(genCtx, &r, onToken)
		if result != nil {
			gen.Text = result.Text
			gen.Generated = append(gen.Generated, result.Generated...)
			gen.TokensGenerated = result.Stats.TokensGenerated
			gen.StopReason = result.StopReason
			gen.ElapsedMS = float64(result.Stats.Duration.Microseconds()) / 1000
			gen.TokensPerSecond = result.Stats.TPS
			gen.Seed = result.Seed
		}
		return genErr
	})
	if emitErr != nil {
		logger.FromContext(ctx).Debug("stream write failed, generation stopped", "id", gen.ID, "error", emitErr)
		return &gen, fmt.Errorf("stream token: %w", emitErr)
	}
	if err != nil {
		if stream != nil {
			_ = stream.Failed(gen, err)
		}
		if gen.StopReason != "" {
			return &gen, err
		}
		return nil, err
	}

	if stream != nil {
		if err := stream.Complete(gen); err != nil {
			return &gen, err
		}
	}
	return &gen, nil
}

// modelName is the directory holding the model's config.
func modelName(info inference.ModelInfo) string {
	if info.ConfigPath == "" {
		return ""
	}
	return filepath.Base(filepath.Dir(info.ConfigPath))
}

var timeNow = func() time.Time {
	return time.Now()
}

// classifyError maps err to an HTTP status, error type and code.
func classifyError(err error) (status int, errType, code string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, inference.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request_error", ""
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound, "not_found_error", "model_not_found"
	case inference.IsCancelled(err):
		return http.StatusServiceUnavailable, "server_error", "cancelled"
	}
	var le *inference.LoadError
	if errors.As(err, &le) {
		return http.StatusInternalServerError, "server_error", "model_load_failed"
	}
	return http.StatusInternalServerError, "server_error", ""
}

// errorParam names the request field a validation error refers to.
func errorParam(err error) string {
	switch {
	case errors.Is(err, inference.ErrEmptySeed):
		return "seed_text"
	case errors.Is(err, inference.ErrWordBudget):
		return "words"
	case errors.Is(err, inference.ErrTemperature):
		return "temperature"
	}
	return ""
}
