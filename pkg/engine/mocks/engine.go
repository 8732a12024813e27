package mocks

import (
	"context"
	"os"

	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/engine"
	"github.com/stretchr/testify/mock"
)

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Model  = (*Model)(nil)
)

type Engine struct {
	mock.Mock
}

func (m *Engine) Update(ctx context.Context, modelPath string, provider data.BatchProvider, cfg engine.Config) (engine.Result, error) {
	args := m.Called(ctx, modelPath, provider, cfg)

	return args.Get(0).(engine.Result), args.Error(1)
}

// Model is an in-memory model whose parameters are a fixed map and whose
// serialised form is Payload.
type Model struct {
	Params  map[string]any
	Payload []byte
	WriteFn func(path string) error
}

func (m *Model) ParameterValue(key string) (any, bool) {
	v, ok := m.Params[key]

	return v, ok
}

func (m *Model) Write(path string) error {
	if m.WriteFn != nil {
		return m.WriteFn(path)
	}

	return os.WriteFile(path, m.Payload, 0o644)
}
