package client

import (
	"errors"
	"fmt"
)

var (
	ErrParameterExtraction = errors.New("failed to extract layer parameters from engine result")
	ErrMetricMissing       = errors.New("engine result is missing the loss metric")
	ErrEngine              = errors.New("training engine failed")
	// ErrPublish means the new weights are held in memory but the model on
	// disk is still the previous one.
	ErrPublish        = errors.New("failed to publish trained model")
	ErrNoTrainedState = errors.New("no trained parameters available")
	ErrTooManyLayers  = errors.New("parameter update has more entries than layers")
)

// ParameterExtractionError names the layer whose weights were absent from, or
// not a tensor in, the engine result. The engine has already run and may have
// changed its own state when this is returned.
type ParameterExtractionError struct {
	Layer  string
	Reason string
}

func (e *ParameterExtractionError) Error() string {
	return fmt.Sprintf("layer %q: %s", e.Layer, e.Reason)
}

func (e *ParameterExtractionError) Is(target error) bool {
	return target == ErrParameterExtraction
}
