package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/api"
	"github.com/samcharles93/seedtext/internal/logger"
)

const envModelDir = "SEEDTEXT_MODEL_DIR"

var (
	modelDir      string
	modelName     string
	modelsPath    string
	configFile    string
	weightsFile   string
	tokenizerFile string
	configPathArg string
	logLevel      string
	logFormat     string
	debug         bool

	// appConfig is the parsed config file, loaded before any command runs.
	appConfig Config
)

func globalFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default $XDG_CONFIG_HOME/seedtext/config.yaml)",
			Destination: &configPathArg,
		},
	}, loggingFlags()...)
}

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model-dir",
			Aliases:     []string{"d"},
			Usage:       "directory holding config.json, model.safetensors and tokenizer.json",
			Sources:     cli.EnvVars(envModelDir),
			Destination: &modelDir,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model name inside --models-path",
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing model directories",
			Sources:     cli.EnvVars(api.EnvModelsDir),
			Destination: &modelsPath,
		},
	}
}

func artifactFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model-config",
			Usage:       "override path to config.json",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "weights",
			Usage:       "override path to model.safetensors",
			Destination: &weightsFile,
		},
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "override path to tokenizer.json",
			Destination: &tokenizerFile,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// setup loads the config file and installs the logger on the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configPathArg
	if path == "" {
		path = configPath()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	appConfig = cfg

	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	log := logger.FromFormat(logFormat, level, os.Stderr)
	return logger.WithContext(ctx, log), nil
}
