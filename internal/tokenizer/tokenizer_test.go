package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func mustVocab(t *testing.T, index map[string]int) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary(index)
	if err != nil {
		t.Fatalf("NewVocabulary: %v", err)
	}
	return v
}

func TestTextToWordSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "The quick brown", []string{"the", "quick", "brown"}},
		{"punctuation", "Hello, world! (again)", []string{"hello", "world", "again"}},
		{"whitespace runs", "  a   b\tc\nd ", []string{"a", "b", "c", "d"}},
		{"apostrophe kept", "don't stop", []string{"don't", "stop"}},
		{"empty", "   ", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TextToWordSequence(tc.in, DefaultFilters, true, " ")
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestEncodeDropsUnknownWords(t *testing.T) {
	t.Parallel()
	tok := New(mustVocab(t, map[string]int{"the": 1, "quick": 2, "brown": 3}), DefaultOptions())

	ids, err := tok.Encode("The QUICK red brown")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{1, 2, 3}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestEncodeUsesOOVToken(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.OOVToken = "<OOV>"
	tok := New(mustVocab(t, map[string]int{"<OOV>": 1, "the": 2, "fox": 3}), opts)

	ids, err := tok.Encode("the red fox")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{2, 1, 3}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestEncodeNumWordsCap(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.NumWords = 3
	tok := New(mustVocab(t, map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}), opts)

	ids, _ := tok.Encode("a b c d")
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestEncodeCharLevel(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.CharLevel = true
	tok := New(mustVocab(t, map[string]int{"a": 1, "b": 2}), opts)

	ids, _ := tok.Encode("AbX")
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()
	tok := New(mustVocab(t, map[string]int{"hello": 1, "world": 2}), DefaultOptions())

	got, err := tok.Decode([]int{0, 0, 1, 2})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("unexpected text: %q", got)
	}
	if _, err := tok.Decode([]int{7}); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestNewVocabularyRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		index map[string]int
		want  error
	}{
		{"empty token", map[string]int{"": 1}, ErrEmptyToken},
		{"zero id", map[string]int{"a": 0}, ErrInvalidID},
		{"negative id", map[string]int{"a": -2}, ErrInvalidID},
		{"duplicate id", map[string]int{"a": 1, "b": 1}, ErrDuplicateID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewVocabulary(tc.index)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestVocabularySparseIDs(t *testing.T) {
	t.Parallel()
	v := mustVocab(t, map[string]int{"a": 1, "b": 2, "d": 4})

	if v.Size() != 3 || v.MaxID() != 4 {
		t.Fatalf("unexpected size/max: %d %d", v.Size(), v.MaxID())
	}
	if _, ok := v.Token(3); ok {
		t.Fatal("id 3 should be unknown")
	}
	if _, ok := v.Token(PadID); ok {
		t.Fatal("padding id should be unknown")
	}
	if got := v.Words(); !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Fatalf("unexpected words: %v", got)
	}
	if got := v.Limit(2); got.Size() != 2 || got.MaxID() != 2 {
		t.Fatalf("unexpected limited vocab: %d %d", got.Size(), got.MaxID())
	}
}

func TestFitOrdersByFrequency(t *testing.T) {
	t.Parallel()

	tok, counts, err := Fit([]string{"b a b c", "a b"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	v := tok.Vocabulary()
	for word, want := range map[string]int{"b": 1, "a": 2, "c": 3} {
		if id, _ := v.ID(word); id != want {
			t.Fatalf("id(%q) = %d, want %d", word, id, want)
		}
	}
	if counts["b"] != 3 {
		t.Fatalf("unexpected count for b: %d", counts["b"])
	}
}

func TestFitWithOOVToken(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.OOVToken = "<OOV>"

	tok, _, err := Fit([]string{"x y x"}, opts)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if id, _ := tok.Vocabulary().ID("<OOV>"); id != 1 {
		t.Fatalf("expected OOV id 1, got %d", id)
	}
	if id, _ := tok.Vocabulary().ID("x"); id != 2 {
		t.Fatalf("expected x id 2, got %d", id)
	}
}

func TestParseKerasJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"class_name": "Tokenizer",
		"config": {
			"num_words": null,
			"filters": "!\"#$%&()*+,-./:;<=>?@[\\]^_` + "`" + `{|}~\t\n",
			"lower": true,
			"split": " ",
			"char_level": false,
			"oov_token": null,
			"document_count": 2,
			"word_counts": "{\"the\": 2, \"fox\": 1}",
			"index_word": "{\"1\": \"the\", \"2\": \"fox\"}",
			"word_index": "{\"the\": 1, \"fox\": 2}"
		}
	}`)
	tok, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ids, _ := tok.Encode("The fox!")
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if !tok.Options().Lower || tok.Options().NumWords != 0 {
		t.Fatalf("unexpected options: %+v", tok.Options())
	}
}

func TestParseKerasIndexWordOnly(t *testing.T) {
	t.Parallel()
	tok, err := Parse([]byte(`{"config":{"index_word":{"1":"alpha","3":"gamma"}}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if w, ok := tok.Vocabulary().Token(3); !ok || w != "gamma" {
		t.Fatalf("unexpected token for id 3: %q %v", w, ok)
	}
}

func TestParseFlatMap(t *testing.T) {
	t.Parallel()
	tok, err := Parse([]byte(`{"config": 1, "value": 2}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id, ok := tok.Vocabulary().ID("config"); !ok || id != 1 {
		t.Fatalf("expected flat word 'config', got %d %v", id, ok)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	for name, data := range map[string]string{
		"not json":       `nope`,
		"zero id":        `{"a": 0}`,
		"non-int id":     `{"a": "one"}`,
		"wrong class":    `{"class_name":"Other","config":{"word_index":"{\"a\":1}"}}`,
		"no word index":  `{"class_name":"Tokenizer","config":{}}`,
		"duplicate flat": `{"a": 1, "b": 1}`,
	} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMarshalKerasRoundTrip(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.NumWords = 50
	tok, counts, err := Fit([]string{"one two two three three three"}, opts)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	data, err := tok.MarshalKeras(counts)
	if err != nil {
		t.Fatalf("MarshalKeras: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tokenizer.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Vocabulary().WordIndex(), tok.Vocabulary().WordIndex()) {
		t.Fatalf("word index mismatch: %v vs %v", loaded.Vocabulary().WordIndex(), tok.Vocabulary().WordIndex())
	}
	if loaded.Options() != tok.Options() {
		t.Fatalf("options mismatch: %+v vs %+v", loaded.Options(), tok.Options())
	}
}
