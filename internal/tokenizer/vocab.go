package tokenizer

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrEmptyToken  = errors.New("tokenizer: empty token")
	ErrInvalidID   = errors.New("tokenizer: token id must be positive")
	ErrDuplicateID = errors.New("tokenizer: duplicate token id")
)

// Vocabulary is a bijective token↔id mapping. Ids are positive and need not
// be dense; a missing id is reported by Token as unknown.
type Vocabulary struct {
	index map[string]int
	words map[int]string
	maxID int
}

// NewVocabulary validates wordIndex and builds the reverse mapping.
func NewVocabulary(wordIndex map[string]int) (*Vocabulary, error) {
	v := &Vocabulary{
		index: make(map[string]int, len(wordIndex)),
		words: make(map[int]string, len(wordIndex)),
	}
	for word, id := range wordIndex {
		if word == "" {
			return nil, ErrEmptyToken
		}
		if id <= PadID {
			return nil, fmt.Errorf("%w: %q has id %d", ErrInvalidID, word, id)
		}
		if prev, ok := v.words[id]; ok {
			return nil, fmt.Errorf("%w: %d used by %q and %q", ErrDuplicateID, id, prev, word)
		}
		v.index[word] = id
		v.words[id] = word
		if id > v.maxID {
			v.maxID = id
		}
	}
	return v, nil
}

// ID returns the id of word.
func (v *Vocabulary) ID(word string) (int, bool) {
	id, ok := v.index[word]
	return id, ok
}

// Token returns the token for id. The padding id and ids absent from the
// vocabulary report false.
func (v *Vocabulary) Token(id int) (string, bool) {
	w, ok := v.words[id]
	return w, ok
}

// Size is the number of tokens.
func (v *Vocabulary) Size() int { return len(v.index) }

// MaxID is the largest id in use.
func (v *Vocabulary) MaxID() int { return v.maxID }

// Words returns the tokens ordered by id.
func (v *Vocabulary) Words() []string {
	ids := make([]int, 0, len(v.words))
	for id := range v.words {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = v.words[id]
	}
	return out
}

// WordIndex returns a copy of the token→id map.
func (v *Vocabulary) WordIndex() map[string]int {
	out := make(map[string]int, len(v.index))
	for w, id := range v.index {
		out[w] = id
	}
	return out
}

// Limit returns a vocabulary holding only ids ≤ maxID.
func (v *Vocabulary) Limit(maxID int) *Vocabulary {
	out := &Vocabulary{index: make(map[string]int), words: make(map[int]string)}
	for id, w := range v.words {
		if id > maxID {
			continue
		}
		out.index[w] = id
		out.words[id] = w
		if id > out.maxID {
			out.maxID = id
		}
	}
	return out
}
