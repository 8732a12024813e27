package layer

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName     = errors.New("layer name is empty")
	ErrDuplicateName = errors.New("duplicate layer name")
	ErrInvalidShape  = errors.New("layer shape must have positive dimensions")
	ErrNoLayers      = errors.New("at least one layer is required")
)

// Descriptor names a block of trainable weights and the shape of its tensor.
type Descriptor struct {
	Name  string `json:"name"  toml:"name"`
	Shape []int  `json:"shape" toml:"shape"`
}

// ExpectedSize is the number of scalars a flat vector for this layer holds.
func (d Descriptor) ExpectedSize() int {
	size := 1
	for _, dim := range d.Shape {
		size *= dim
	}

	return size
}

func (d Descriptor) Validate() error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if len(d.Shape) == 0 {
		return fmt.Errorf("%w: layer %q has no dimensions", ErrInvalidShape, d.Name)
	}
	for _, dim := range d.Shape {
		if dim <= 0 {
			return fmt.Errorf("%w: layer %q has shape %v", ErrInvalidShape, d.Name, d.Shape)
		}
	}

	return nil
}

// Registry is the fixed, ordered list of layers a client trains. Position i
// in the registry matches position i of every flat parameter set.
type Registry struct {
	layers []Descriptor
}

func NewRegistry(descs ...Descriptor) (Registry, error) {
	if len(descs) == 0 {
		return Registry{}, ErrNoLayers
	}

	seen := make(map[string]struct{}, len(descs))
	layers := make([]Descriptor, len(descs))
	for i, d := range descs {
		if err := d.Validate(); err != nil {
			return Registry{}, err
		}
		if _, ok := seen[d.Name]; ok {
			return Registry{}, fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
		seen[d.Name] = struct{}{}

		shape := make([]int, len(d.Shape))
		copy(shape, d.Shape)
		layers[i] = Descriptor{Name: d.Name, Shape: shape}
	}

	return Registry{layers: layers}, nil
}

func (r Registry) Len() int {
	return len(r.layers)
}

func (r Registry) At(i int) Descriptor {
	d := r.layers[i]
	shape := make([]int, len(d.Shape))
	copy(shape, d.Shape)

	return Descriptor{Name: d.Name, Shape: shape}
}

func (r Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.layers))
	for i := range r.layers {
		out[i] = r.At(i)
	}

	return out
}
