// Package engine describes the native model-update engine a client drives.
// The engine owns gradient computation and the compiled model format; callers
// only see parameters by scoped key and a metrics map.
package engine

import (
	"context"

	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/tensor"
)

const (
	// MetricLoss is the scalar loss the engine reports after a pass.
	MetricLoss = "loss"

	weightsPrefix = "weights/"
)

// WeightsKey scopes the weights parameter to a layer.
func WeightsKey(layerName string) string {
	return weightsPrefix + layerName
}

// Config is handed to the engine for one pass. Epochs of zero means the
// engine's own default.
type Config struct {
	Epochs     int                      `json:"epochs,omitempty"     cbor:"epochs,omitempty"`
	Parameters map[string]tensor.Tensor `json:"parameters,omitempty" cbor:"-"`
}

type Model interface {
	// ParameterValue returns the engine-native value stored under key.
	ParameterValue(key string) (any, bool)
	// Write serialises the model to path, creating or truncating the file.
	Write(path string) error
}

type Result struct {
	Model   Model
	Metrics map[string]float64
}

type Engine interface {
	Update(ctx context.Context, modelPath string, provider data.BatchProvider, cfg Config) (Result, error)
}
