package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/api"
	"github.com/samcharles93/seedtext/internal/inference"
	"github.com/samcharles93/seedtext/internal/logger"
)

type serveOptions struct {
	addr        string
	readTimeout time.Duration
	rateLimit   float64
	rateBurst   int
	historySize int
	maxWords    int
}

func serveCmd() *cli.Command {
	var opts serveOptions

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web UI and generation API",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &opts.addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &opts.readTimeout,
			},
			&cli.Float64Flag{
				Name:        "rate-limit",
				Usage:       "generate requests per second per client (0 disables)",
				Value:       2,
				Destination: &opts.rateLimit,
			},
			&cli.IntFlag{
				Name:        "rate-burst",
				Usage:       "burst size for the per-client rate limit",
				Value:       5,
				Destination: &opts.rateBurst,
			},
			&cli.IntFlag{
				Name:        "history-size",
				Usage:       "generations kept per browser session",
				Value:       api.DefaultHistorySize,
				Destination: &opts.historySize,
			},
			&cli.IntFlag{
				Name:        "max-words",
				Usage:       "largest word budget a request may ask for",
				Value:       inference.DefaultMaxWords,
				Destination: &opts.maxWords,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, appConfig, &opts)

			provider := api.NewCachedEngineProvider(api.EngineProviderConfig{
				DefaultModelDir: defaultServeModelDir(),
				ModelsPath:      modelsPath,
			})
			// The default model is loaded before listening so a broken
			// artifact stops the server at startup.
			h, err := provider.Load(ctx, "")
			if err != nil {
				var le *inference.LoadError
				if errors.As(err, &le) || errors.Is(err, api.ErrModelNotFound) {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				log.Warn("no default model loaded", "error", err)
			} else {
				log.Info("model ready", "window", h.WindowLength, "vocab", h.Info.VocabSize, "fingerprint", h.Fingerprint)
			}

			service := api.NewInferenceService(provider)
			service.SetDefaults(appConfig.GenDefaults())
			service.SetLimits(inference.Limits{MaxWords: opts.maxWords})
			server := api.NewServer(api.NewHistoryStore(opts.historySize), service, api.ServerOptions{
				RateLimit: opts.rateLimit,
				RateBurst: opts.rateBurst,
			})

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", opts.addr)
			sc := echo.StartConfig{
				Address: opts.addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = opts.readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// defaultServeModelDir is the explicit model directory or the named model
// inside the models path. Without either the provider picks the only model
// in the models path.
func defaultServeModelDir() string {
	if strings.TrimSpace(modelDir) != "" {
		return modelDir
	}
	if name := strings.TrimSpace(modelName); name != "" {
		base := modelsPath
		if base == "" {
			base = os.Getenv(api.EnvModelsDir)
		}
		return filepath.Join(base, name)
	}
	return ""
}
