package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/inference"
)

type stubEngine struct {
	words []string
	err   error
}

func (s stubEngine) Extend(ctx context.Context, req *inference.Request, stream inference.StreamFunc) (*inference.Result, error) {
	text := req.SeedText
	for _, w := range s.words {
		text += " " + w
		if stream != nil {
			stream(w)
		}
	}
	reason := inference.StopBudget
	if s.err != nil {
		reason = inference.StopCancelled
	}
	return &inference.Result{
		Text:       text,
		Generated:  s.words,
		StopReason: reason,
		Stats:      inference.Stats{TokensGenerated: len(s.words), Duration: time.Second, TPS: float64(len(s.words))},
		Seed:       7,
	}, s.err
}

func TestRunGeneratePlain(t *testing.T) {
	var stdout, stderr bytes.Buffer
	req := &inference.Request{SeedText: "the cat", Words: 2, Temperature: 1, Seed: 7}
	err := runGenerate(context.Background(), stubEngine{words: []string{"sat", "down"}}, req,
		generateOptions{}, StreamInstant, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "the cat sat down\n" {
		t.Fatalf("stdout = %q", got)
	}
	if !strings.Contains(stderr.String(), "Generated 2 words in 1.00 seconds") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunGenerateStreamAndProgress(t *testing.T) {
	var stdout, stderr bytes.Buffer
	req := &inference.Request{SeedText: "the cat", Words: 2, Temperature: 1, Seed: 7}
	err := runGenerate(context.Background(), stubEngine{words: []string{"sat", "down"}}, req,
		generateOptions{stream: true, progress: true}, StreamInstant, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "the cat sat down\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRunGenerateJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	req := &inference.Request{SeedText: "a", Words: 1, Temperature: 1, Seed: 7}
	err := runGenerate(context.Background(), stubEngine{words: []string{"b"}}, req,
		generateOptions{jsonOut: true, stream: true}, StreamInstant, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	var res inference.Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", stdout.String(), err)
	}
	if res.Text != "a b" || res.StopReason != inference.StopBudget || res.Seed != 7 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunGeneratePartialExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	req := &inference.Request{SeedText: "a", Words: 5, Temperature: 1, Seed: 7}
	err := runGenerate(context.Background(), stubEngine{words: []string{"b"}, err: context.Canceled}, req,
		generateOptions{}, StreamInstant, &stdout, &stderr)
	var exit cli.ExitCoder
	if !errors.As(err, &exit) || exit.ExitCode() != 130 {
		t.Fatalf("err = %v", err)
	}
	if stdout.String() != "a b\n" {
		t.Fatalf("partial text not printed: %q", stdout.String())
	}
}

func TestRequestOptionsOnlySetFlags(t *testing.T) {
	var opts generateOptions
	var got inference.RequestOptions
	cmd := &cli.Command{
		Name: "generate",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seed-text", Destination: &opts.seedText},
			&cli.Int64Flag{Name: "words", Value: inference.DefaultWords, Destination: &opts.words},
			&cli.Float64Flag{Name: "temperature", Value: inference.DefaultTemperature, Destination: &opts.temperature},
			&cli.Int64Flag{Name: "seed", Value: -1, Destination: &opts.seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			got = requestOptions(cmd, opts)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"generate", "--seed-text", "hi", "--words", "12"}); err != nil {
		t.Fatal(err)
	}
	if got.SeedText != "hi" || got.Words == nil || *got.Words != 12 {
		t.Fatalf("options = %+v", got)
	}
	if got.Temperature != nil || got.Seed != nil {
		t.Fatal("unset flags must stay nil so config defaults apply")
	}
}
