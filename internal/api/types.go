package api

import "github.com/samcharles93/seedtext/internal/inference"

// GenerateRequest is the body of POST /v1/generate. Unset fields fall back
// to the server defaults.
type GenerateRequest struct {
	Model       string   `json:"model,omitempty"`
	SeedText    string   `json:"seed_text"`
	Words       *int     `json:"words,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	Stream      *bool    `json:"stream,omitempty"`
}

// Generation is one completed request. It is both the response body and
// the history record.
type Generation struct {
	ID              string               `json:"id"`
	Object          string               `json:"object"`
	Model           string               `json:"model,omitempty"`
	SeedText        string               `json:"seed_text"`
	Text            string               `json:"text"`
	Generated       []string             `json:"generated"`
	TokensGenerated int                  `json:"tokens_generated"`
	StopReason      inference.StopReason `json:"stop_reason"`
	ElapsedMS       float64              `json:"elapsed_ms"`
	TokensPerSecond float64              `json:"tokens_per_second"`
	Temperature     float64              `json:"temperature"`
	Words           int                  `json:"words"`
	Seed            int64                `json:"seed"`
	CreatedAt       int64                `json:"created_at"`
}

type HistoryList struct {
	Object string       `json:"object"`
	Data   []Generation `json:"data"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ModelResponse struct {
	ID     string              `json:"id"`
	Object string              `json:"object"`
	Info   inference.ModelInfo `json:"info"`
}

type ModelList struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}
