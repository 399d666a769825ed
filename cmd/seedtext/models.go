package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/api"
	"github.com/samcharles93/seedtext/internal/inference"
	"github.com/samcharles93/seedtext/internal/logger"
	"github.com/samcharles93/seedtext/internal/model"
)

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls", "list-models"},
		Usage:   "List model directories under the models path",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "models-path",
				Aliases:     []string{"path"},
				Usage:       "directory containing model directories",
				Sources:     cli.EnvVars(api.EnvModelsDir),
				Destination: &modelsPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, appConfig)

			dir := strings.TrimSpace(modelsPath)
			if dir == "" {
				return cli.Exit("error: --models-path is required unless "+api.EnvModelsDir+" is set", 1)
			}

			models, err := api.DiscoverModels(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(models) == 0 {
				log.Info("no models found", "path", dir)
				return nil
			}

			fmt.Printf("Models in %s:\n\n", dir)
			for _, m := range models {
				name := filepath.Base(m)
				size := formatModelSize(dirSize(m))

				desc := ""
				if cfg, err := model.LoadConfig(filepath.Join(m, inference.ConfigFile)); err == nil {
					desc = fmt.Sprintf("%s, vocab %d, window %d", cfg.Architecture, cfg.VocabSize, cfg.Window())
				}
				if desc != "" {
					fmt.Printf("  %-40s %8s  (%s)\n", name, size, desc)
				} else {
					fmt.Printf("  %-40s %8s\n", name, size)
				}
			}
			fmt.Printf("\n%d model(s) found\n", len(models))
			return nil
		},
	}
}

func dirSize(dir string) int64 {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, e := range ents {
		if info, err := e.Info(); err == nil && !info.IsDir() {
			total += info.Size()
		}
	}
	return total
}

func formatModelSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
