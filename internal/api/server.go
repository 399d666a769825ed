package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/seedtext/internal/inference"
	"github.com/samcharles93/seedtext/internal/logger"
	"github.com/samcharles93/seedtext/internal/version"
	"github.com/samcharles93/seedtext/internal/webui"
)

const downloadName = "generated_text.txt"

type Server struct {
	history *HistoryStore
	service *InferenceService
	limiter *clientLimiter
}

// ServerOptions tune the HTTP layer. Zero values disable rate limiting.
type ServerOptions struct {
	RateLimit float64 // requests per second per client on /v1/generate
	RateBurst int
}

func NewServer(history *HistoryStore, service *InferenceService, opts ServerOptions) *Server {
	if history == nil {
		history = NewHistoryStore(DefaultHistorySize)
	}
	s := &Server{
		history: history,
		service: service,
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.Use(sessionMiddleware)

	// Pages
	e.GET("/", s.handlePage(webui.SectionHome))
	e.GET("/about", s.handlePage(webui.SectionAbout))
	e.GET("/how", s.handlePage(webui.SectionHow))
	static := http.StripPrefix("/static/", http.FileServer(webui.StaticFS()))
	e.GET("/static/*", func(c *echo.Context) error {
		static.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	e.GET("/healthz", s.handleHealth)

	// API
	generate := []echo.MiddlewareFunc{}
	if s.limiter != nil {
		generate = append(generate, s.limiter.middleware)
	}
	e.POST("/v1/generate", s.handleGenerate, generate...)
	e.GET("/v1/model", s.handleModel)
	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/history", s.handleListHistory)
	e.GET("/v1/history/:id", s.handleGetHistory)
	e.DELETE("/v1/history/:id", s.handleDeleteHistory)
	e.GET("/v1/history/:id/download", s.handleDownloadHistory)
}

func (s *Server) handlePage(section string) echo.HandlerFunc {
	return func(c *echo.Context) error {
		page := webui.Page{
			Section:     section,
			Words:       inference.DefaultWords,
			MaxWords:    inference.DefaultMaxWords,
			Temperature: inference.DefaultTemperature,
			Version:     version.String(),
		}
		if s.service != nil {
			d := s.service.defaults
			if d.Words != nil && *d.Words > 0 {
				page.Words = *d.Words
			}
			if d.Temperature != nil && *d.Temperature > 0 {
				page.Temperature = *d.Temperature
			}
			page.MaxWords = s.service.limits.MaxWords
			_ = s.service.provider.WithEngine(c.Request().Context(), "", func(_ inference.Engine, info inference.ModelInfo) error {
				page.Model = modelName(info)
				page.Window = info.WindowLength
				page.VocabSize = info.VocabSize
				return nil
			})
		}
		page.Words = min(page.Words, page.MaxWords)

		var buf bytes.Buffer
		if err := webui.Render(&buf, page); err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
		}
		return c.HTML(http.StatusOK, buf.String())
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference service not configured", "", "")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, fmt.Sprintf("invalid JSON body: %v", err), "")
	}

	var writer *SSEStreamWriter
	var stream StreamWriter
	if req.Stream != nil && *req.Stream {
		w, err := NewSSEStreamWriter(c)
		if err != nil {
			return writeBadRequest(c, err.Error(), "stream")
		}
		writer = w
		stream = w
	}

	ctx := c.Request().Context()
	gen, err := s.service.Generate(ctx, &req, stream)
	if gen != nil && gen.StopReason != "" {
		s.history.Save(sessionID(c), *gen)
	}
	if err != nil {
		if writer != nil && writer.Started() {
			return nil
		}
		status, errType, code := classifyError(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(ctx).Error("generation failed", "error", err)
		}
		return writeError(c, status, errType, err.Error(), errorParam(err), code)
	}
	if writer != nil {
		return nil
	}
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference service not configured", "", "")
	}
	modelID := c.QueryParam("model")
	var resp ModelResponse
	err := s.service.provider.WithEngine(c.Request().Context(), modelID, func(_ inference.Engine, info inference.ModelInfo) error {
		resp = ModelResponse{ID: modelID, Object: "model", Info: info}
		return nil
	})
	if err != nil {
		status, errType, code := classifyError(err)
		return writeError(c, status, errType, err.Error(), "model", code)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListModels(c *echo.Context) error {
	lister, ok := s.listModels()
	if !ok {
		return c.JSON(http.StatusOK, ModelList{Object: "list", Data: []string{}})
	}
	names, err := lister()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: names})
}

func (s *Server) listModels() (func() ([]string, error), bool) {
	if s.service == nil || s.service.provider == nil {
		return nil, false
	}
	p, ok := s.service.provider.(interface{ ListModels() ([]string, error) })
	if !ok {
		return nil, false
	}
	return p.ListModels, true
}

func (s *Server) handleListHistory(c *echo.Context) error {
	return c.JSON(http.StatusOK, HistoryList{Object: "list", Data: s.history.List(sessionID(c))})
}

func (s *Server) handleGetHistory(c *echo.Context) error {
	gen, ok := s.history.Get(sessionID(c), c.Param("id"))
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) handleDeleteHistory(c *echo.Context) error {
	id := c.Param("id")
	if !s.history.Delete(sessionID(c), id) {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "generation.deleted", Deleted: true})
}

func (s *Server) handleDownloadHistory(c *echo.Context) error {
	gen, ok := s.history.Get(sessionID(c), c.Param("id"))
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	return c.String(http.StatusOK, gen.Text)
}
