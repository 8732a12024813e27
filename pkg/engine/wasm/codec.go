package wasm

import (
	"fmt"
	"os"
	"sort"

	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/engine"
	"github.com/absmach/flclient/pkg/tensor"
	"github.com/fxamacker/cbor/v2"
)

const modelPermissions = 0o644

type parameter struct {
	Key   string    `cbor:"key"`
	Shape []int     `cbor:"shape"`
	Data  []float32 `cbor:"data"`
}

type request struct {
	Model      []byte        `cbor:"model,omitempty"`
	Epochs     int           `cbor:"epochs,omitempty"`
	Samples    []data.Sample `cbor:"samples"`
	Parameters []parameter   `cbor:"parameters,omitempty"`
}

type response struct {
	Model      []byte             `cbor:"model"`
	Parameters []parameter        `cbor:"parameters"`
	Metrics    map[string]float64 `cbor:"metrics"`
	Error      string             `cbor:"error,omitempty"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}()

func encodeRequest(model []byte, samples data.Samples, cfg engine.Config) ([]byte, error) {
	keys := make([]string, 0, len(cfg.Parameters))
	for k := range cfg.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	req := request{
		Model:   model,
		Epochs:  cfg.Epochs,
		Samples: samples,
	}
	for _, k := range keys {
		t := cfg.Parameters[k]
		flat, err := tensor.ToFlat(t)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		req.Parameters = append(req.Parameters, parameter{Key: k, Shape: t.Shape(), Data: flat})
	}

	return encMode.Marshal(req)
}

func decodeResponse(buf []byte) (engine.Result, error) {
	var resp response
	if err := cbor.Unmarshal(buf, &resp); err != nil {
		return engine.Result{}, fmt.Errorf("failed to decode engine response: %w", err)
	}
	if resp.Error != "" {
		return engine.Result{}, fmt.Errorf("%w: %s", ErrGuest, resp.Error)
	}

	m := &Model{
		data:   resp.Model,
		params: make(map[string]*tensor.Dense, len(resp.Parameters)),
	}
	for _, p := range resp.Parameters {
		t, err := tensor.NewDense(p.Shape, p.Data)
		if err != nil {
			return engine.Result{}, fmt.Errorf("engine parameter %q: %w", p.Key, err)
		}
		m.params[p.Key] = t
	}

	return engine.Result{Model: m, Metrics: resp.Metrics}, nil
}

// Model is the trained model returned by a guest pass.
type Model struct {
	data   []byte
	params map[string]*tensor.Dense
}

var _ engine.Model = (*Model)(nil)

func (m *Model) ParameterValue(key string) (any, bool) {
	t, ok := m.params[key]
	if !ok {
		return nil, false
	}

	return t, true
}

func (m *Model) Write(path string) error {
	return os.WriteFile(path, m.data, modelPermissions)
}
