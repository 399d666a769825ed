// Package tokenizer implements the word-level tokenizer that pairs with the
// recurrent text models: Keras text_to_word_sequence splitting, a token↔id
// vocabulary where id 0 is reserved for padding, and loaders for the
// tokenizer.json artifact.
package tokenizer

// Tokenizer defines the minimal interface used by the CLI and generator.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// PadID is the sentinel used to left-pad short windows. It never maps to a
// token.
const PadID = 0
