package tensor

import "fmt"

// Tensor is a shaped block of float32 weights owned by the training engine.
type Tensor interface {
	Shape() []int
	// Float32s exposes the backing buffer in row-major order.
	Float32s() ([]float32, error)
}

// Dense is a contiguous, row-major tensor.
type Dense struct {
	shape []int
	data  []float32
}

var _ Tensor = (*Dense)(nil)

// NewDense wraps data without copying. len(data) must match the shape.
func NewDense(shape []int, data []float32) (*Dense, error) {
	size := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension in %v", ErrTensorAccess, shape)
		}
		size *= dim
	}
	if size != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d values, buffer has %d", ErrTensorAccess, shape, size, len(data))
	}

	s := make([]int, len(shape))
	copy(s, shape)

	return &Dense{shape: s, data: data}, nil
}

func (d *Dense) Shape() []int {
	if d == nil {
		return nil
	}
	s := make([]int, len(d.shape))
	copy(s, d.shape)

	return s
}

func (d *Dense) Float32s() ([]float32, error) {
	if d == nil || d.data == nil {
		return nil, ErrTensorAccess
	}

	return d.data, nil
}
