package model

import "context"

// Model maps a batch of fixed-length token-id windows to one probability
// vector per row.
type Model interface {
	// Predict runs inference on batch. Every row must have InputShape()[1]
	// ids. Each returned row sums to 1 and has OutputWidth() entries.
	Predict(ctx context.Context, batch [][]int) ([][]float32, error)
	// InputShape is [-1, W]; the batch dimension is unconstrained.
	InputShape() []int
	// OutputWidth is the length of each probability vector.
	OutputWidth() int
}

// ConcurrencyReporter is implemented by models that need to say whether
// Predict may be called from several goroutines at once.
type ConcurrencyReporter interface {
	ConcurrencySafe() bool
}
