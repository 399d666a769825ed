package tokenizer

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
)

// kerasJSON is the layout written by keras.preprocessing.text.Tokenizer.to_json.
// The index fields are themselves JSON documents encoded as strings.
type kerasJSON struct {
	ClassName string      `json:"class_name"`
	Config    kerasConfig `json:"config"`
}

type kerasConfig struct {
	NumWords      *int            `json:"num_words"`
	Filters       *string         `json:"filters"`
	Lower         *bool           `json:"lower"`
	Split         *string         `json:"split"`
	CharLevel     bool            `json:"char_level"`
	OOVToken      *string         `json:"oov_token"`
	DocumentCount int             `json:"document_count,omitempty"`
	WordCounts    json.RawMessage `json:"word_counts,omitempty"`
	WordIndex     json.RawMessage `json:"word_index"`
	IndexWord     json.RawMessage `json:"index_word,omitempty"`
}

// Load reads a tokenizer.json file.
func Load(path string) (*WordTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse accepts Keras Tokenizer.to_json output or a flat {"token": id} map.
func Parse(data []byte) (*WordTokenizer, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse tokenizer json: %w", err)
	}
	// A flat index may legitimately contain the word "config", so only an
	// object value selects the Keras layout.
	if msg, ok := probe["config"]; ok && bytes.HasPrefix(bytes.TrimSpace(msg), []byte("{")) {
		return parseKeras(data)
	}

	var flat map[string]int
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parse word index: %w", err)
	}
	vocab, err := NewVocabulary(flat)
	if err != nil {
		return nil, err
	}
	return New(vocab, DefaultOptions()), nil
}

func parseKeras(data []byte) (*WordTokenizer, error) {
	var kj kerasJSON
	if err := json.Unmarshal(data, &kj); err != nil {
		return nil, fmt.Errorf("parse keras tokenizer: %w", err)
	}
	if kj.ClassName != "" && kj.ClassName != "Tokenizer" {
		return nil, fmt.Errorf("unsupported tokenizer class: %s", kj.ClassName)
	}
	cfg := kj.Config

	wordIndex := make(map[string]int)
	if len(cfg.WordIndex) > 0 {
		if err := unmarshalNested(cfg.WordIndex, &wordIndex); err != nil {
			return nil, fmt.Errorf("parse word_index: %w", err)
		}
	} else if len(cfg.IndexWord) > 0 {
		var indexWord map[string]string
		if err := unmarshalNested(cfg.IndexWord, &indexWord); err != nil {
			return nil, fmt.Errorf("parse index_word: %w", err)
		}
		for key, word := range indexWord {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("parse index_word key %q: %w", key, err)
			}
			wordIndex[word] = id
		}
	}
	if len(wordIndex) == 0 {
		return nil, fmt.Errorf("keras tokenizer has no word_index")
	}
	vocab, err := NewVocabulary(wordIndex)
	if err != nil {
		return nil, err
	}

	opts := DefaultOptions()
	if cfg.Filters != nil {
		opts.Filters = *cfg.Filters
	}
	if cfg.Lower != nil {
		opts.Lower = *cfg.Lower
	}
	if cfg.Split != nil && *cfg.Split != "" {
		opts.Split = *cfg.Split
	}
	if cfg.NumWords != nil {
		opts.NumWords = *cfg.NumWords
	}
	if cfg.OOVToken != nil {
		opts.OOVToken = *cfg.OOVToken
	}
	opts.CharLevel = cfg.CharLevel
	return New(vocab, opts), nil
}

// unmarshalNested decodes raw either as a JSON string holding a document or
// as the document itself.
func unmarshalNested(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = []byte(inner)
	}
	return json.Unmarshal(raw, v)
}

// MarshalKeras encodes t in the Keras to_json layout so the file can be
// loaded back by Keras' tokenizer_from_json.
func (t *WordTokenizer) MarshalKeras(counts map[string]int) ([]byte, error) {
	wordIndex, err := json.Marshal(t.vocab.WordIndex())
	if err != nil {
		return nil, err
	}
	indexWord := make(map[string]string, t.vocab.Size())
	for w, id := range t.vocab.index {
		indexWord[strconv.Itoa(id)] = w
	}
	indexWordJSON, err := json.Marshal(indexWord)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}

	opts := t.opts
	cfg := kerasConfig{
		Filters:   &opts.Filters,
		Lower:     &opts.Lower,
		Split:     &opts.Split,
		CharLevel: opts.CharLevel,
	}
	if opts.NumWords > 0 {
		cfg.NumWords = &opts.NumWords
	}
	if opts.OOVToken != "" {
		cfg.OOVToken = &opts.OOVToken
	}
	if cfg.WordCounts, err = json.Marshal(string(countsJSON)); err != nil {
		return nil, err
	}
	if cfg.WordIndex, err = json.Marshal(string(wordIndex)); err != nil {
		return nil, err
	}
	if cfg.IndexWord, err = json.Marshal(string(indexWordJSON)); err != nil {
		return nil, err
	}
	return json.MarshalIndent(kerasJSON{ClassName: "Tokenizer", Config: cfg}, "", "  ")
}
