package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/inference"
	"github.com/samcharles93/seedtext/internal/logger"
)

type generateOptions struct {
	seedText    string
	words       int64
	temperature float64
	seed        int64
	stream      bool
	streamMode  string
	progress    bool
	jsonOut     bool
}

func generateCmd() *cli.Command {
	var opts generateOptions

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen", "run"},
		Usage:   "Extend seed text with generated words",
		Flags: append(append(commonModelFlags(), artifactFlags()...),
			&cli.StringFlag{
				Name:        "seed-text",
				Aliases:     []string{"s", "prompt", "p"},
				Usage:       "text to continue (reads stdin when empty and stdin is piped)",
				Destination: &opts.seedText,
			},
			&cli.Int64Flag{
				Name:        "words",
				Aliases:     []string{"n"},
				Usage:       "number of words to generate",
				Value:       inference.DefaultWords,
				Destination: &opts.words,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"temp", "t"},
				Usage:       "sampling temperature (> 0; lower is more deterministic)",
				Value:       inference.DefaultTemperature,
				Destination: &opts.temperature,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed (default -1 = random)",
				Value:       -1,
				Destination: &opts.seed,
			},
			&cli.BoolFlag{
				Name:        "stream",
				Usage:       "print words as they are generated",
				Destination: &opts.stream,
			},
			&cli.StringFlag{
				Name:        "stream-mode",
				Usage:       "stream output mode (instant, smooth, typewriter, quiet)",
				Value:       string(StreamInstant),
				Destination: &opts.streamMode,
			},
			&cli.BoolFlag{
				Name:        "progress",
				Usage:       "show a progress bar on stderr",
				Destination: &opts.progress,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the result as JSON",
				Destination: &opts.jsonOut,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, appConfig)
			if appConfig.StreamMode != "" && !cmd.IsSet("stream-mode") {
				opts.streamMode = appConfig.StreamMode
			}
			if opts.seedText == "" && !stdinIsTTY() {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read stdin: %v", err), 1)
				}
				opts.seedText = string(b)
			}

			req := inference.ResolveRequest(requestOptions(cmd, opts), appConfig.GenDefaults())
			if err := req.Validate(appConfig.Limits()); err != nil {
				if errors.Is(err, inference.ErrEmptySeed) {
					return cli.Exit("error: please enter some seed text (--seed-text)", 1)
				}
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			mode, err := parseStreamMode(opts.streamMode)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			dir, err := resolveModelDir(modelDir, modelName, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}
			h, err := inference.NewProvider(artifactLoader(dir).Load).Load(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			return runGenerate(ctx, inference.NewGenerator(h), &req, opts, mode, os.Stdout, os.Stderr)
		},
	}
}

// requestOptions keeps only the flags the user set, so config defaults can
// fill the rest.
func requestOptions(cmd *cli.Command, opts generateOptions) inference.RequestOptions {
	ro := inference.RequestOptions{SeedText: opts.seedText}
	if cmd.IsSet("words") {
		w := int(opts.words)
		ro.Words = &w
	}
	if cmd.IsSet("temperature") {
		ro.Temperature = &opts.temperature
	}
	if cmd.IsSet("seed") {
		ro.Seed = &opts.seed
	}
	return ro
}

func artifactLoader(dir string) inference.Loader {
	return inference.Loader{
		ModelDir:      dir,
		ConfigPath:    configFile,
		WeightsPath:   weightsFile,
		TokenizerPath: tokenizerFile,
	}
}

func runGenerate(ctx context.Context, engine inference.Engine, req *inference.Request, opts generateOptions, mode StreamMode, stdout, stderr io.Writer) error {
	log := logger.FromContext(ctx)

	var (
		sw  *StreamWriter
		bar *progressbar.ProgressBar
	)
	if opts.stream && !opts.jsonOut {
		sw = NewStreamWriter(mode, stdout)
		sw.Start(req.SeedText)
	}
	if opts.progress && req.Words > 0 {
		bar = progressbar.NewOptions(req.Words,
			progressbar.OptionSetDescription("generating"),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	result, err := engine.Extend(ctx, req, func(word string) {
		if sw != nil {
			sw.Write(word)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil && result == nil {
		return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
	}
	if err != nil {
		log.Warn("generation interrupted, printing partial text", "error", err)
	}

	switch {
	case opts.jsonOut:
		b, jerr := json.MarshalIndent(result, "", "  ")
		if jerr != nil {
			return cli.Exit(fmt.Sprintf("error: encode result: %v", jerr), 1)
		}
		_, _ = fmt.Fprintln(stdout, string(b))
	case sw != nil:
		sw.Flush()
	default:
		_, _ = fmt.Fprintln(stdout, result.Text)
	}

	_, _ = fmt.Fprintf(stderr, "Generated %d words in %.2f seconds (%.1f words/s, stop: %s, seed: %d)\n",
		result.Stats.TokensGenerated, result.Stats.Duration.Seconds(), result.Stats.TPS, result.StopReason, result.Seed)
	if result.StopReason == inference.StopUnknownToken && result.Stats.TokensGenerated < req.Words {
		_, _ = fmt.Fprintln(stderr, "note: stopped early on an id with no vocabulary entry")
	}
	if err != nil {
		return cli.Exit("", 130)
	}
	return nil
}
