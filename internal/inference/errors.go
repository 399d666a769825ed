package inference

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrEmptySeed      = fmt.Errorf("%w: seed text is empty", ErrInvalidRequest)
	ErrWordBudget     = fmt.Errorf("%w: word budget out of range", ErrInvalidRequest)
	ErrTemperature    = fmt.Errorf("%w: temperature must be a positive finite number", ErrInvalidRequest)
)

// Artifact names reported by LoadError.
const (
	ArtifactConfig     = "config"
	ArtifactWeights    = "weights"
	ArtifactVocabulary = "vocabulary"
)

// LoadError reports a missing or malformed model artifact. It is fatal to
// the caller: the provider does not cache failures, but nothing can be
// generated until the artifact is fixed.
type LoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("load %s %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
