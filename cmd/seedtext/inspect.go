package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seedtext/internal/inference"
	"github.com/samcharles93/seedtext/internal/safetensors"
)

func inspectCmd() *cli.Command {
	var (
		showTensors bool
		showVocab   bool
		vocabLimit  int
		jsonOut     bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarise a model directory and its fingerprint",
		Flags: append(append(commonModelFlags(), artifactFlags()...),
			&cli.BoolFlag{Name: "tensors", Usage: "list weight tensors", Destination: &showTensors},
			&cli.BoolFlag{Name: "vocab", Usage: "list the first vocabulary entries", Destination: &showVocab},
			&cli.IntFlag{Name: "vocab-limit", Usage: "number of vocabulary entries to list", Value: 20, Destination: &vocabLimit},
			&cli.BoolFlag{Name: "json", Usage: "print model info as JSON", Destination: &jsonOut},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, appConfig)
			dir, err := resolveModelDir(modelDir, modelName, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}
			h, err := artifactLoader(dir).Load(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if jsonOut {
				b, err := json.MarshalIndent(h.Info, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode info: %v", err), 1)
				}
				fmt.Println(string(b))
				return nil
			}

			printModelInfo(os.Stdout, h.Info)
			if showTensors {
				if err := printTensors(os.Stdout, h.Info.WeightsPath); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}
			if showVocab {
				printVocab(os.Stdout, h, vocabLimit)
			}
			return nil
		},
	}
}

func printModelInfo(w io.Writer, info inference.ModelInfo) {
	layers := make([]string, len(info.Layers))
	for i, u := range info.Layers {
		layers[i] = fmt.Sprint(u)
	}
	_, _ = fmt.Fprintf(w, "architecture:  %s\n", info.Architecture)
	_, _ = fmt.Fprintf(w, "config:        %s\n", info.ConfigPath)
	_, _ = fmt.Fprintf(w, "weights:       %s\n", info.WeightsPath)
	_, _ = fmt.Fprintf(w, "tokenizer:     %s\n", info.TokenizerPath)
	_, _ = fmt.Fprintf(w, "fingerprint:   %s\n", info.Fingerprint)
	_, _ = fmt.Fprintf(w, "vocabulary:    %d words (max id %d)\n", info.VocabSize, info.MaxID)
	_, _ = fmt.Fprintf(w, "window:        %d\n", info.WindowLength)
	_, _ = fmt.Fprintf(w, "embedding:     %d\n", info.EmbeddingDim)
	_, _ = fmt.Fprintf(w, "gru units:     %s\n", strings.Join(layers, ", "))
	_, _ = fmt.Fprintf(w, "output width:  %d (padding scored: %t)\n", info.OutputWidth, info.PadModeled)
	_, _ = fmt.Fprintf(w, "mask padding:  %t\n", info.MaskPadding)
	_, _ = fmt.Fprintf(w, "parameters:    %d\n", info.Params)
}

func printTensors(w io.Writer, path string) error {
	st, err := safetensors.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	_, _ = fmt.Fprintf(w, "\nTensors (%d):\n", len(st.Tensors))
	for _, name := range st.Names() {
		info, _ := st.Tensor(name)
		_, _ = fmt.Fprintf(w, "  %-28s %-5s %v\n", name, info.DType, info.Shape)
	}
	if len(st.Metadata) > 0 {
		keys := make([]string, 0, len(st.Metadata))
		for k := range st.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, _ = fmt.Fprintln(w, "\nMetadata:")
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  %s = %s\n", k, st.Metadata[k])
		}
	}
	return nil
}

func printVocab(w io.Writer, h *inference.Handle, limit int) {
	words := h.Vocabulary().Words()
	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	_, _ = fmt.Fprintf(w, "\nVocabulary (first %d):\n", len(words))
	for _, word := range words {
		id, _ := h.Vocabulary().ID(word)
		_, _ = fmt.Fprintf(w, "  %6d  %s\n", id, word)
	}
}
