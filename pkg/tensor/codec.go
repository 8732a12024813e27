package tensor

import (
	"fmt"

	"github.com/absmach/flclient/pkg/layer"
)

// ToFlat copies t into a new row-major slice.
func ToFlat(t Tensor) ([]float32, error) {
	if t == nil {
		return nil, ErrTensorAccess
	}

	buf, err := t.Float32s()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTensorAccess, err)
	}

	size := 1
	for _, dim := range t.Shape() {
		size *= dim
	}
	if len(buf) != size {
		return nil, fmt.Errorf("%w: shape %v holds %d values, buffer has %d", ErrTensorAccess, t.Shape(), size, len(buf))
	}

	out := make([]float32, len(buf))
	copy(out, buf)

	return out, nil
}

// ToTensor builds a tensor of the descriptor's shape from flat. The length
// check happens before anything is allocated.
func ToTensor(desc layer.Descriptor, flat []float32) (*Dense, error) {
	if expected := desc.ExpectedSize(); len(flat) != expected {
		return nil, &ShapeMismatchError{Layer: desc.Name, Expected: expected, Actual: len(flat)}
	}

	data := make([]float32, len(flat))
	copy(data, flat)

	return NewDense(desc.Shape, data)
}

type ShapeSummary struct {
	Layer string `json:"layer"`
	Shape []int  `json:"shape"`
}

func Summarize(names []string, tensors []Tensor) []ShapeSummary {
	out := make([]ShapeSummary, 0, len(tensors))
	for i, t := range tensors {
		s := ShapeSummary{Shape: t.Shape()}
		if i < len(names) {
			s.Layer = names[i]
		}
		out = append(out, s)
	}

	return out
}
