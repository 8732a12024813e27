package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrOutOfRange = errors.New("sample index out of range")
	ErrEmpty      = errors.New("data set is empty")
)

type Sample struct {
	Features []float32 `json:"features" cbor:"features"`
	Label    float32   `json:"label"    cbor:"label"`
}

// BatchProvider gives the engine random access to a data set.
type BatchProvider interface {
	Count() int
	Sample(i int) (Sample, error)
}

// Source pairs the provider used for training with the one used for evaluation.
type Source struct {
	Train BatchProvider
	Test  BatchProvider
}

type Samples []Sample

var _ BatchProvider = Samples(nil)

func (s Samples) Count() int {
	return len(s)
}

func (s Samples) Sample(i int) (Sample, error) {
	if i < 0 || i >= len(s) {
		return Sample{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(s))
	}

	return s[i], nil
}

// All drains a provider into a slice.
func All(p BatchProvider) (Samples, error) {
	if s, ok := p.(Samples); ok {
		return s, nil
	}

	out := make(Samples, 0, p.Count())
	for i := range p.Count() {
		s, err := p.Sample(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}

// LoadFile reads a JSON array of samples.
func LoadFile(path string) (Samples, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file '%s': %w", path, err)
	}

	var samples Samples
	if err := json.Unmarshal(b, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse data file '%s': %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	return samples, nil
}

func LoadSource(trainPath, testPath string) (Source, error) {
	train, err := LoadFile(trainPath)
	if err != nil {
		return Source{}, err
	}

	test, err := LoadFile(testPath)
	if err != nil {
		return Source{}, err
	}

	return Source{Train: train, Test: test}, nil
}
