package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/api"
	"github.com/samcharles93/seedtext/internal/inference"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
model_dir: /models/toy
words: 40
max_words: 100
temperature: 1.1
seed: 9
server_address: 0.0.0.0:9000
rate_limit: 0.5
history_size: 7
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ModelDir != "/models/toy" || cfg.ServerAddress != "0.0.0.0:9000" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Words == nil || *cfg.Words != 40 || cfg.Temperature == nil || *cfg.Temperature != 1.1 {
		t.Fatalf("generation fields not parsed: %+v", cfg)
	}
	if cfg.RateBurst != nil {
		t.Fatal("unset pointer field should stay nil")
	}
	if got := cfg.Limits().MaxWords; got != 100 {
		t.Fatalf("Limits().MaxWords = %d", got)
	}

	req := inference.ResolveRequest(inference.RequestOptions{SeedText: "x"}, cfg.GenDefaults())
	if req.Words != 40 || req.Temperature != 1.1 || req.Seed != 9 {
		t.Fatalf("defaults not applied: %+v", req)
	}
}

func TestLoadConfigMissingAndInvalid(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil || cfg.ModelDir != "" {
		t.Fatalf("missing file: %+v %v", cfg, err)
	}
	if got := cfg.Limits().MaxWords; got != inference.DefaultMaxWords {
		t.Fatalf("default limit = %d", got)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("words: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyServeConfigRespectsFlags(t *testing.T) {
	addr := "0.0.0.0:9000"
	limit := 0.25
	size := 3
	cfg := Config{ServerAddress: addr, RateLimit: &limit, HistorySize: &size, ModelsDir: "/srv/models"}

	var got serveOptions
	cmd := &cli.Command{
		Name: "serve",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8080", Destination: &got.addr},
			&cli.Float64Flag{Name: "rate-limit", Value: 2, Destination: &got.rateLimit},
			&cli.IntFlag{Name: "rate-burst", Value: 5, Destination: &got.rateBurst},
			&cli.IntFlag{Name: "history-size", Value: 50, Destination: &got.historySize},
			&cli.IntFlag{Name: "max-words", Value: 5000, Destination: &got.maxWords},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, cfg, &got)
			return nil
		},
	}
	for _, key := range []string{envModelDir, api.EnvModelsDir} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	modelDir, modelsPath = "", ""
	if err := cmd.Run(context.Background(), []string{"serve", "--addr", "127.0.0.1:1234"}); err != nil {
		t.Fatal(err)
	}
	if got.addr != "127.0.0.1:1234" {
		t.Fatalf("flag should win over config: %q", got.addr)
	}
	if got.rateLimit != 0.25 || got.historySize != 3 || got.rateBurst != 5 || got.maxWords != 5000 {
		t.Fatalf("config not applied: %+v", got)
	}
	if modelsPath != "/srv/models" {
		t.Fatalf("models path = %q", modelsPath)
	}
}
