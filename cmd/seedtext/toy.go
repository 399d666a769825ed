package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/logger"
	"github.com/samcharles93/seedtext/internal/toy"
)

func toyCmd() *cli.Command {
	var (
		corpusPaths []string
		outDir      string
		opts        toy.Options
		numWords    int64
		window      int64
	)

	return &cli.Command{
		Name:  "toy",
		Usage: "Build a bigram model directory from a text corpus",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "corpus",
				Aliases:     []string{"c"},
				Usage:       "text file to fit on, one passage per line (repeatable)",
				Required:    true,
				Destination: &corpusPaths,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output model directory",
				Required:    true,
				Destination: &outDir,
			},
			&cli.Int64Flag{
				Name:        "num-words",
				Usage:       "vocabulary cap, Keras num_words style",
				Value:       toy.DefaultNumWords,
				Destination: &numWords,
			},
			&cli.Int64Flag{
				Name:        "window",
				Usage:       "window length the model consumes",
				Value:       toy.DefaultWindow,
				Destination: &window,
			},
			&cli.Float64Flag{
				Name:        "alpha",
				Usage:       "additive smoothing",
				Value:       toy.DefaultAlpha,
				Destination: &opts.Alpha,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			var corpus []string
			for _, p := range corpusPaths {
				lines, err := readLines(p)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read corpus: %v", err), 1)
				}
				corpus = append(corpus, lines...)
			}
			opts.NumWords = int(numWords)
			opts.Window = int(window)

			a, err := toy.BuildBigram(corpus, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build model: %v", err), 1)
			}
			if err := toy.Write(outDir, a); err != nil {
				return cli.Exit(fmt.Sprintf("error: write model: %v", err), 1)
			}
			log.Info("wrote toy model",
				"dir", outDir,
				"passages", len(corpus),
				"vocab", a.Tokenizer.Vocabulary().Size(),
				"bigrams", a.Bigrams,
				"window", a.Config.Window(),
			)
			return nil
		},
	}
}

// readLines returns the non-blank lines of path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
