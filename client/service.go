package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/flclient/pkg/artifact"
	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/engine"
	"github.com/absmach/flclient/pkg/layer"
	"github.com/absmach/flclient/pkg/tensor"
	"golang.org/x/sync/semaphore"
)

const (
	StageConfig = "config"
	StageFit    = "fit"
)

// ShapeHook receives the tensor shapes seen at a stage of a round.
type ShapeHook func(ctx context.Context, stage string, shapes []tensor.ShapeSummary)

// Publisher replaces the canonical model with a newly trained one.
type Publisher interface {
	Path() string
	Publish(ctx context.Context, model artifact.Writer) error
}

type Option func(*service)

func WithShapeHook(hook ShapeHook) Option {
	return func(s *service) {
		s.shapeHook = hook
	}
}

type service struct {
	layers    layer.Registry
	builder   ConfigBuilder
	engine    engine.Engine
	source    data.Source
	publisher Publisher
	shapeHook ShapeHook
	logger    *slog.Logger

	// round admits one fit or evaluation at a time.
	round *semaphore.Weighted

	mu      sync.Mutex
	pending FlatParameterSet
	trained []tensor.Tensor
}

var _ Service = (*service)(nil)

func NewService(layers layer.Registry, eng engine.Engine, source data.Source, publisher Publisher, logger *slog.Logger, opts ...Option) Service {
	s := &service{
		layers:    layers,
		builder:   NewConfigBuilder(layers),
		engine:    eng,
		source:    source,
		publisher: publisher,
		logger:    logger,
		round:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) GetParameters(ctx context.Context) (FlatParameterSet, error) {
	if err := s.round.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.round.Release(1)

	trained := s.trainedState()
	if trained == nil {
		s.logger.DebugContext(ctx, "no trained parameters yet, running initial fit")
		if err := s.fit(ctx); err != nil {
			return nil, err
		}
		trained = s.trainedState()
	}
	if trained == nil {
		return nil, ErrNoTrainedState
	}

	params := make(FlatParameterSet, len(trained))
	for i, t := range trained {
		flat, err := tensor.ToFlat(t)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", s.layers.At(i).Name, err)
		}
		params[i] = flat
	}

	return params, nil
}

func (s *service) UpdateParameters(_ context.Context, params FlatParameterSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = params

	return nil
}

func (s *service) Fit(ctx context.Context) error {
	if err := s.round.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.round.Release(1)

	return s.fit(ctx)
}

func (s *service) Evaluate(ctx context.Context) (EvalResult, error) {
	if err := s.round.Acquire(ctx, 1); err != nil {
		return EvalResult{}, err
	}
	defer s.round.Release(1)

	cfg, err := s.nextConfig(ctx, s.builder.BuildEvaluation)
	if err != nil {
		return EvalResult{}, err
	}

	res, err := s.engine.Update(context.WithoutCancel(ctx), s.publisher.Path(), s.source.Test, cfg)
	if err != nil {
		return EvalResult{}, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	loss, ok := res.Metrics[engine.MetricLoss]
	if !ok {
		return EvalResult{}, ErrMetricMissing
	}

	return EvalResult{
		Loss:     loss,
		Accuracy: (1.0 - loss) * 100.0,
	}, nil
}

func (s *service) Layers(_ context.Context) ([]layer.Descriptor, error) {
	return s.layers.All(), nil
}

// fit expects the round semaphore to be held.
func (s *service) fit(ctx context.Context) error {
	cfg, err := s.nextConfig(ctx, s.builder.Build)
	if err != nil {
		return err
	}
	if n, ok := EpochsFromContext(ctx); ok {
		cfg.Epochs = n
	}

	// A started engine pass is not interrupted by the caller giving up.
	res, err := s.engine.Update(context.WithoutCancel(ctx), s.publisher.Path(), s.source.Train, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngine, err)
	}
	if res.Model == nil {
		return fmt.Errorf("%w: engine returned no model", ErrEngine)
	}

	trained, err := s.extract(res.Model)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.trained = trained
	s.mu.Unlock()

	if s.shapeHook != nil {
		s.shapeHook(ctx, StageFit, s.summarize(trained))
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), res.Model); err != nil {
		return errors.Join(ErrPublish, err)
	}

	return nil
}

// nextConfig builds the round configuration from the pending update and
// clears the update only if the build succeeded.
func (s *service) nextConfig(ctx context.Context, build func(FlatParameterSet) (engine.Config, []tensor.ShapeSummary, error)) (engine.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, shapes, err := build(s.pending)
	if err != nil {
		return engine.Config{}, err
	}
	s.pending = nil

	if s.shapeHook != nil {
		s.shapeHook(ctx, StageConfig, shapes)
	}

	return cfg, nil
}

func (s *service) extract(model engine.Model) ([]tensor.Tensor, error) {
	trained := make([]tensor.Tensor, s.layers.Len())
	for i := range trained {
		name := s.layers.At(i).Name

		v, ok := model.ParameterValue(engine.WeightsKey(name))
		if !ok {
			return nil, &ParameterExtractionError{Layer: name, Reason: "weights missing from engine result"}
		}

		t, ok := v.(tensor.Tensor)
		if !ok || t == nil {
			return nil, &ParameterExtractionError{Layer: name, Reason: fmt.Sprintf("weights have type %T, not a tensor", v)}
		}
		// Typed nils and unreadable buffers pass the assertion above.
		if _, err := tensor.ToFlat(t); err != nil {
			return nil, &ParameterExtractionError{Layer: name, Reason: err.Error()}
		}
		trained[i] = t
	}

	return trained, nil
}

func (s *service) trainedState() []tensor.Tensor {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.trained
}

func (s *service) summarize(ts []tensor.Tensor) []tensor.ShapeSummary {
	names := make([]string, s.layers.Len())
	for i := range names {
		names[i] = s.layers.At(i).Name
	}

	return tensor.Summarize(names, ts)
}
