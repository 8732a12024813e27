package tensor

import (
	"errors"
	"fmt"
)

var (
	ErrShapeMismatch = errors.New("flat vector length does not match layer shape")
	ErrTensorAccess  = errors.New("tensor is not readable as a contiguous float32 buffer")
)

type ShapeMismatchError struct {
	Layer    string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("layer %q: expected %d values, got %d", e.Layer, e.Expected, e.Actual)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
