package tokenizer

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultFilters is the punctuation set Keras strips before splitting.
const DefaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

// Options mirror the Keras Tokenizer constructor.
type Options struct {
	Filters   string
	Lower     bool
	Split     string
	CharLevel bool
	// NumWords keeps only ids below NumWords when encoding. Zero disables
	// the cap.
	NumWords int
	// OOVToken, when present in the vocabulary, replaces unknown words.
	// Otherwise unknown words are dropped.
	OOVToken string
}

func DefaultOptions() Options {
	return Options{
		Filters: DefaultFilters,
		Lower:   true,
		Split:   " ",
	}
}

// WordTokenizer encodes text the way Keras texts_to_sequences does.
type WordTokenizer struct {
	opts  Options
	vocab *Vocabulary
}

func New(vocab *Vocabulary, opts Options) *WordTokenizer {
	if opts.Split == "" {
		opts.Split = " "
	}
	return &WordTokenizer{opts: opts, vocab: vocab}
}

func (t *WordTokenizer) Vocabulary() *Vocabulary { return t.vocab }

func (t *WordTokenizer) Options() Options { return t.opts }

// Words splits text into the token sequence before id lookup.
func (t *WordTokenizer) Words(text string) []string {
	if t.opts.CharLevel {
		if t.opts.Lower {
			text = strings.ToLower(text)
		}
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	return TextToWordSequence(text, t.opts.Filters, t.opts.Lower, t.opts.Split)
}

// Encode maps text to ids. Words outside the vocabulary (or at or above
// NumWords) become the OOV id when one is configured and are dropped
// otherwise, so the result may be shorter than the word count.
func (t *WordTokenizer) Encode(text string) ([]int, error) {
	oovID, hasOOV := 0, false
	if t.opts.OOVToken != "" {
		oovID, hasOOV = t.vocab.ID(t.opts.OOVToken)
	}
	words := t.Words(text)
	ids := make([]int, 0, len(words))
	for _, w := range words {
		id, ok := t.vocab.ID(w)
		if ok && t.opts.NumWords > 0 && id >= t.opts.NumWords {
			ok = false
		}
		switch {
		case ok:
			ids = append(ids, id)
		case hasOOV:
			ids = append(ids, oovID)
		}
	}
	return ids, nil
}

// Decode joins the tokens for ids with a single space. Padding ids are
// skipped.
func (t *WordTokenizer) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if id == PadID {
			continue
		}
		w, ok := t.vocab.Token(id)
		if !ok {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String(), nil
}

// TextToWordSequence lowercases (optionally), replaces every filter
// character with split, and returns the non-empty pieces.
func TextToWordSequence(text, filters string, lower bool, split string) []string {
	if lower {
		text = strings.ToLower(text)
	}
	if split == "" {
		split = " "
	}
	if filters != "" {
		var b strings.Builder
		b.Grow(len(text))
		for _, r := range text {
			if strings.ContainsRune(filters, r) {
				b.WriteString(split)
				continue
			}
			b.WriteRune(r)
		}
		text = b.String()
	}
	parts := strings.Split(text, split)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Fit builds a word tokenizer from texts like Keras fit_on_texts: ids are
// assigned by descending frequency, ties keep first-seen order, and the OOV
// token (if any) takes id 1.
func Fit(texts []string, opts Options) (*WordTokenizer, map[string]int, error) {
	probe := New(&Vocabulary{}, opts)
	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		for _, w := range probe.Words(text) {
			if _, seen := counts[w]; !seen {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	index := make(map[string]int, len(order)+1)
	next := 1
	if opts.OOVToken != "" {
		index[opts.OOVToken] = next
		next++
	}
	for _, w := range order {
		if _, ok := index[w]; ok {
			continue
		}
		index[w] = next
		next++
	}
	vocab, err := NewVocabulary(index)
	if err != nil {
		return nil, nil, err
	}
	return New(vocab, opts), counts, nil
}
