package inference

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultWords       = 20
	DefaultMaxWords    = 5000
	DefaultTemperature = 0.7
)

// RequestOptions carries caller-supplied values; nil means "use the default".
type RequestOptions struct {
	SeedText    string
	Words       *int
	Temperature *float64
	Seed        *int64
}

// GenDefaults are the configured fallbacks for unset options.
type GenDefaults struct {
	Words       *int
	Temperature *float64
	Seed        *int64
}

// ResolveRequest merges opts over defaults over the built-in values. The
// seed text is trimmed.
func ResolveRequest(opts RequestOptions, defaults GenDefaults) Request {
	req := Request{
		SeedText:    strings.TrimSpace(opts.SeedText),
		Words:       DefaultWords,
		Temperature: DefaultTemperature,
		Seed:        -1,
	}

	if defaults.Words != nil && *defaults.Words >= 0 {
		req.Words = *defaults.Words
	}
	if defaults.Temperature != nil && *defaults.Temperature > 0 {
		req.Temperature = *defaults.Temperature
	}
	if defaults.Seed != nil {
		req.Seed = *defaults.Seed
	}

	if opts.Words != nil {
		req.Words = *opts.Words
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.Seed != nil {
		req.Seed = *opts.Seed
	}
	return req
}

// Limits bound what a caller may ask for.
type Limits struct {
	MaxWords int
}

func DefaultLimits() Limits {
	return Limits{MaxWords: DefaultMaxWords}
}

// Validate checks r against limits. Errors wrap ErrInvalidRequest.
func (r Request) Validate(limits Limits) error {
	if strings.TrimSpace(r.SeedText) == "" {
		return ErrEmptySeed
	}
	maxWords := limits.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if r.Words < 0 || r.Words > maxWords {
		return fmt.Errorf("%w: got %d, allowed 0..%d", ErrWordBudget, r.Words, maxWords)
	}
	if r.Temperature <= 0 || math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return fmt.Errorf("%w: got %v", ErrTemperature, r.Temperature)
	}
	return nil
}
