package client

import (
	"context"

	"github.com/absmach/flclient/pkg/layer"
)

// FlatParameterSet holds one row-major vector per layer, index-aligned with
// the layer registry. It is the representation exchanged with a coordinator.
type FlatParameterSet [][]float32

// EvalResult carries the loss of an evaluation pass. Accuracy is derived as
// (1 - loss) * 100 and is only meaningful for losses bounded in [0, 1]; it is
// not a classification accuracy.
type EvalResult struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

type Service interface {
	// GetParameters returns the weights of the last fit. The first call on a
	// fresh client runs one fit to produce them.
	GetParameters(ctx context.Context) (FlatParameterSet, error)

	// UpdateParameters stores weights to seed the next round. A later call
	// replaces an unconsumed earlier one. Validation happens when the round
	// configuration is built.
	UpdateParameters(ctx context.Context, params FlatParameterSet) error

	// Fit trains on the train provider and publishes the updated model.
	Fit(ctx context.Context) error

	// Evaluate runs a single pass over the test provider. It neither changes
	// the trained state nor publishes a model.
	Evaluate(ctx context.Context) (EvalResult, error)

	Layers(ctx context.Context) ([]layer.Descriptor, error)
}
