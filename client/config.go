package client

import (
	"fmt"

	"github.com/absmach/flclient/pkg/engine"
	"github.com/absmach/flclient/pkg/layer"
	"github.com/absmach/flclient/pkg/tensor"
)

// ConfigBuilder turns an optional parameter update into an engine
// configuration. It never returns a partially populated configuration.
type ConfigBuilder struct {
	layers layer.Registry
}

func NewConfigBuilder(layers layer.Registry) ConfigBuilder {
	return ConfigBuilder{layers: layers}
}

// Build seeds layer i with pending[i]. Layers past len(pending) keep the
// engine's weights.
func (b ConfigBuilder) Build(pending FlatParameterSet) (engine.Config, []tensor.ShapeSummary, error) {
	cfg := engine.Config{}
	if pending == nil {
		return cfg, nil, nil
	}

	if len(pending) > b.layers.Len() {
		return engine.Config{}, nil, fmt.Errorf("%w: got %d, have %d layers", ErrTooManyLayers, len(pending), b.layers.Len())
	}

	params := make(map[string]tensor.Tensor, len(pending))
	shapes := make([]tensor.ShapeSummary, 0, len(pending))
	for i, flat := range pending {
		desc := b.layers.At(i)
		t, err := tensor.ToTensor(desc, flat)
		if err != nil {
			return engine.Config{}, nil, err
		}
		params[engine.WeightsKey(desc.Name)] = t
		shapes = append(shapes, tensor.ShapeSummary{Layer: desc.Name, Shape: t.Shape()})
	}
	cfg.Parameters = params

	return cfg, shapes, nil
}

// BuildEvaluation is Build pinned to a single pass.
func (b ConfigBuilder) BuildEvaluation(pending FlatParameterSet) (engine.Config, []tensor.ShapeSummary, error) {
	cfg, shapes, err := b.Build(pending)
	if err != nil {
		return engine.Config{}, nil, err
	}
	cfg.Epochs = 1

	return cfg, shapes, nil
}
