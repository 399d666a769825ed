package inference

import (
	"context"
	"time"
)

// StreamFunc receives each generated token as soon as it is drawn.
type StreamFunc func(token string)

// Engine extends seed text with sampled tokens.
type Engine interface {
	Extend(ctx context.Context, req *Request, stream StreamFunc) (*Result, error)
}

// Request holds the sampling parameters of one generation call.
type Request struct {
	SeedText string
	// Words is the token budget.
	Words       int
	Temperature float64
	// Seed drives the RNG. -1 seeds from the clock.
	Seed int64
}

type StopReason string

const (
	StopBudget         StopReason = "budget"
	StopUnknownToken   StopReason = "unknown_token"
	StopInferenceError StopReason = "inference_error"
	StopCancelled      StopReason = "cancelled"
)

type Stats struct {
	TokensGenerated int           `json:"tokens_generated"`
	Duration        time.Duration `json:"duration_ns"`
	TPS             float64       `json:"tps"`
}

type Result struct {
	// Text is the seed verbatim followed by " "+token for every generated
	// token.
	Text       string     `json:"text"`
	Generated  []string   `json:"generated"`
	StopReason StopReason `json:"stop_reason"`
	Stats      Stats      `json:"stats"`
	// Seed is the effective RNG seed, useful when the request asked for a
	// clock-based one.
	Seed int64 `json:"seed"`
}
