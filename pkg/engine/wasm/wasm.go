// Package wasm hosts a training engine compiled to WebAssembly.
//
// The guest exports two functions:
//
//	alloc(size u32) -> ptr u32
//	update(ptr u32, len u32) -> u64   // (resultPtr << 32) | resultLen
//
// Both the request written at ptr and the result read back are CBOR.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/engine"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const (
	AllocFunction  = "alloc"
	UpdateFunction = "update"
)

var (
	ErrMissingExport = errors.New("wasm module is missing a required export")
	ErrMemory        = errors.New("wasm memory access out of range")
	ErrGuest         = errors.New("wasm engine reported an error")
)

type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	logger   *slog.Logger

	// Guest modules are not reentrant.
	mu sync.Mutex
}

var _ engine.Engine = (*Engine)(nil)

func New(ctx context.Context, wasmBinary []byte, logger *slog.Logger) (*Engine, error) {
	r := wazero.NewRuntime(ctx)

	// TinyGo and Rust guests need WASI for panics and allocation.
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBinary)
	if err != nil {
		_ = r.Close(ctx)

		return nil, errors.Join(errors.New("failed to compile Wasm module"), err)
	}

	return &Engine{
		runtime:  r,
		compiled: compiled,
		logger:   logger,
	}, nil
}

func NewFromFile(ctx context.Context, path string, logger *slog.Logger) (*Engine, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine module: %w", err)
	}

	return New(ctx, bin, logger)
}

func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Engine) Update(ctx context.Context, modelPath string, provider data.BatchProvider, cfg engine.Config) (engine.Result, error) {
	model, err := os.ReadFile(modelPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return engine.Result{}, fmt.Errorf("failed to read model: %w", err)
	}

	samples, err := data.All(provider)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to read samples: %w", err)
	}

	payload, err := encodeRequest(model, samples, cfg)
	if err != nil {
		return engine.Result{}, err
	}

	out, err := e.call(ctx, payload)
	if err != nil {
		return engine.Result{}, err
	}

	return decodeResponse(out)
}

func (e *Engine) call(ctx context.Context, payload []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions("_initialize"))
	if err != nil {
		return nil, errors.Join(errors.New("failed to instantiate Wasm module"), err)
	}
	defer mod.Close(ctx)

	alloc := mod.ExportedFunction(AllocFunction)
	update := mod.ExportedFunction(UpdateFunction)
	if alloc == nil || update == nil {
		return nil, fmt.Errorf("%w: need %q and %q", ErrMissingExport, AllocFunction, UpdateFunction)
	}
	if err := checkSignature(alloc, AllocFunction, allocSignature); err != nil {
		return nil, err
	}
	if err := checkSignature(update, UpdateFunction, updateSignature); err != nil {
		return nil, err
	}
	if mod.Memory() == nil {
		return nil, fmt.Errorf("%w: no memory exported", ErrMissingExport)
	}

	res, err := alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", AllocFunction, err)
	}
	ptr := uint32(res[0])

	if !mod.Memory().Write(ptr, payload) {
		return nil, fmt.Errorf("%w: write %d bytes at %d", ErrMemory, len(payload), ptr)
	}

	res, err = update.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", UpdateFunction, err)
	}

	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	buf, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("%w: read %d bytes at %d", ErrMemory, outLen, outPtr)
	}

	e.logger.DebugContext(ctx, "engine pass finished", slog.Int("request_bytes", len(payload)), slog.Int("response_bytes", len(buf)))

	// buf aliases guest memory, which is released on Close.
	return append([]byte(nil), buf...), nil
}

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

var (
	allocSignature  = signature{params: []api.ValueType{api.ValueTypeI32}, results: []api.ValueType{api.ValueTypeI32}}
	updateSignature = signature{params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, results: []api.ValueType{api.ValueTypeI64}}
)

func checkSignature(fn api.Function, name string, want signature) error {
	def := fn.Definition()
	if !slices.Equal(def.ParamTypes(), want.params) || !slices.Equal(def.ResultTypes(), want.results) {
		return fmt.Errorf("%w: %s has signature (%s) -> (%s), want (%s) -> (%s)", ErrMissingExport, name,
			typeNames(def.ParamTypes()), typeNames(def.ResultTypes()), typeNames(want.params), typeNames(want.results))
	}

	return nil
}

func typeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}

	return strings.Join(names, ", ")
}
