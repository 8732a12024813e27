package client_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/artifact"
	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/engine"
	"github.com/absmach/flclient/pkg/engine/mocks"
	"github.com/absmach/flclient/pkg/layer"
	"github.com/absmach/flclient/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	trainSet = data.Samples{{Features: []float32{1}, Label: 1}, {Features: []float32{2}, Label: 0}}
	testSet  = data.Samples{{Features: []float32{3}, Label: 1}}
)

type recorder struct {
	mu   sync.Mutex
	cfgs []engine.Config
}

func (r *recorder) record(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs = append(r.cfgs, args.Get(3).(engine.Config))
}

func (r *recorder) configs() []engine.Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]engine.Config(nil), r.cfgs...)
}

type failingPublisher struct {
	path string
}

func (p failingPublisher) Path() string {
	return p.path
}

func (failingPublisher) Publish(context.Context, artifact.Writer) error {
	return artifact.ErrReplace
}

func testLayers(t *testing.T) layer.Registry {
	t.Helper()

	reg, err := layer.NewRegistry(
		layer.Descriptor{Name: "a", Shape: []int{2, 2}},
		layer.Descriptor{Name: "b", Shape: []int{3}},
	)
	require.NoError(t, err)

	return reg
}

func dense(t *testing.T, shape []int, values ...float32) *tensor.Dense {
	t.Helper()

	d, err := tensor.NewDense(shape, values)
	require.NoError(t, err)

	return d
}

func trainedModel(t *testing.T) *mocks.Model {
	t.Helper()

	return &mocks.Model{
		Params: map[string]any{
			engine.WeightsKey("a"): dense(t, []int{2, 2}, 0.1, 0.2, 0.3, 0.4),
			engine.WeightsKey("b"): dense(t, []int{3}, 0.5, 0.6, 0.7),
		},
		Payload: []byte("trained-model"),
	}
}

// shortTensor claims more values than its buffer holds.
type shortTensor struct{}

func (shortTensor) Shape() []int { return []int{2, 2} }

func (shortTensor) Float32s() ([]float32, error) { return []float32{1, 2, 3}, nil }

func newService(t *testing.T, eng engine.Engine, opts ...client.Option) (client.Service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("initial-model"), 0o644))
	logger := slog.New(slog.DiscardHandler)
	pub := artifact.NewPublisher(path, nil, logger)

	return client.NewService(testLayers(t), eng, data.Source{Train: trainSet, Test: testSet}, pub, logger, opts...), path
}

func TestFitSeedsPendingUpdate(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, trainSet, mock.Anything).
		Run(rec.record).
		Return(engine.Result{Model: trainedModel(t)}, nil)

	svc, path := newService(t, eng)
	ctx := context.Background()

	require.NoError(t, svc.UpdateParameters(ctx, client.FlatParameterSet{{1, 2, 3, 4}, {5, 6, 7}}))
	require.NoError(t, svc.Fit(ctx))

	cfgs := rec.configs()
	require.Len(t, cfgs, 1)
	require.Len(t, cfgs[0].Parameters, 2)
	assert.Equal(t, []int{2, 2}, cfgs[0].Parameters[engine.WeightsKey("a")].Shape())
	assert.Equal(t, []int{3}, cfgs[0].Parameters[engine.WeightsKey("b")].Shape())
	assert.Zero(t, cfgs[0].Epochs)

	seeded, err := tensor.ToFlat(cfgs[0].Parameters[engine.WeightsKey("b")])
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 7}, seeded)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "trained-model", string(got))

	eng.AssertCalled(t, "Update", mock.Anything, path, trainSet, mock.Anything)
}

func TestFitClearsPendingUpdate(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(rec.record).
		Return(engine.Result{Model: trainedModel(t)}, nil)

	svc, _ := newService(t, eng)
	ctx := context.Background()

	require.NoError(t, svc.UpdateParameters(ctx, client.FlatParameterSet{{1, 2, 3, 4}}))
	require.NoError(t, svc.Fit(ctx))
	require.NoError(t, svc.Fit(ctx))

	cfgs := rec.configs()
	require.Len(t, cfgs, 2)
	assert.Len(t, cfgs[0].Parameters, 1)
	assert.Nil(t, cfgs[1].Parameters)
}

func TestUpdateParametersLastWriteWins(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(rec.record).
		Return(engine.Result{Model: trainedModel(t)}, nil)

	svc, _ := newService(t, eng)
	ctx := context.Background()

	require.NoError(t, svc.UpdateParameters(ctx, client.FlatParameterSet{{1, 1, 1, 1}, {1, 1, 1}}))
	require.NoError(t, svc.UpdateParameters(ctx, client.FlatParameterSet{{9, 8, 7, 6}}))
	require.NoError(t, svc.Fit(ctx))

	cfgs := rec.configs()
	require.Len(t, cfgs, 1)
	require.Len(t, cfgs[0].Parameters, 1)

	seeded, err := tensor.ToFlat(cfgs[0].Parameters[engine.WeightsKey("a")])
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 8, 7, 6}, seeded)
}

func TestFitShapeMismatchKeepsPendingUpdate(t *testing.T) {
	t.Parallel()

	eng := new(mocks.Engine)
	svc, path := newService(t, eng)
	ctx := context.Background()

	require.NoError(t, svc.UpdateParameters(ctx, client.FlatParameterSet{{1, 2, 3}}))

	for range 2 {
		err := svc.Fit(ctx)
		require.ErrorIs(t, err, tensor.ErrShapeMismatch)

		var sm *tensor.ShapeMismatchError
		require.ErrorAs(t, err, &sm)
		assert.Equal(t, 4, sm.Expected)
		assert.Equal(t, 3, sm.Actual)
	}

	eng.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "initial-model", string(got))
}

func TestGetParametersRunsOneImplicitFit(t *testing.T) {
	t.Parallel()

	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, trainSet, mock.Anything).
		Return(engine.Result{Model: trainedModel(t)}, nil).
		Once()

	svc, _ := newService(t, eng)
	ctx := context.Background()

	want := client.FlatParameterSet{{0.1, 0.2, 0.3, 0.4}, {0.5, 0.6, 0.7}}
	for range 2 {
		params, err := svc.GetParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, params)
	}

	eng.AssertNumberOfCalls(t, "Update", 1)
}

func TestGetParametersPropagatesFitError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("out of memory")
	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(engine.Result{}, errBoom)

	svc, _ := newService(t, eng)

	params, err := svc.GetParameters(context.Background())
	assert.Nil(t, params)
	assert.ErrorIs(t, err, client.ErrEngine)
	assert.ErrorIs(t, err, errBoom)
}

func TestFitExtractionErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		params map[string]any
		layer  string
	}{
		{
			desc: "missing layer",
			params: map[string]any{
				engine.WeightsKey("a"): dense(t, []int{2, 2}, 1, 2, 3, 4),
			},
			layer: "b",
		},
		{
			desc: "not a tensor",
			params: map[string]any{
				engine.WeightsKey("a"): []float64{1, 2, 3, 4},
				engine.WeightsKey("b"): dense(t, []int{3}, 1, 2, 3),
			},
			layer: "a",
		},
		{
			desc: "typed nil tensor",
			params: map[string]any{
				engine.WeightsKey("a"): dense(t, []int{2, 2}, 1, 2, 3, 4),
				engine.WeightsKey("b"): (*tensor.Dense)(nil),
			},
			layer: "b",
		},
		{
			desc: "short buffer",
			params: map[string]any{
				engine.WeightsKey("a"): shortTensor{},
				engine.WeightsKey("b"): dense(t, []int{3}, 1, 2, 3),
			},
			layer: "a",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			eng := new(mocks.Engine)
			eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(engine.Result{Model: &mocks.Model{Params: tc.params, Payload: []byte("partial")}}, nil)

			hook := func(context.Context, string, []tensor.ShapeSummary) {}
			svc, path := newService(t, eng, client.WithShapeHook(hook))

			err := svc.Fit(context.Background())
			require.ErrorIs(t, err, client.ErrParameterExtraction)

			var pe *client.ParameterExtractionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.layer, pe.Layer)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "initial-model", string(got))
		})
	}
}

func TestFitPublishFailureKeepsTrainedState(t *testing.T) {
	t.Parallel()

	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(engine.Result{Model: trainedModel(t)}, nil)

	logger := slog.New(slog.DiscardHandler)
	pub := failingPublisher{path: filepath.Join(t.TempDir(), "model.bin")}
	svc := client.NewService(testLayers(t), eng, data.Source{Train: trainSet, Test: testSet}, pub, logger)
	ctx := context.Background()

	err := svc.Fit(ctx)
	require.ErrorIs(t, err, client.ErrPublish)
	assert.ErrorIs(t, err, artifact.ErrReplace)
	assert.NotErrorIs(t, err, client.ErrParameterExtraction)

	params, err := svc.GetParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.FlatParameterSet{{0.1, 0.2, 0.3, 0.4}, {0.5, 0.6, 0.7}}, params)
	eng.AssertNumberOfCalls(t, "Update", 1)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc     string
		metrics  map[string]float64
		engErr   error
		loss     float64
		accuracy float64
		err      error
	}{
		{
			desc:     "loss reported",
			metrics:  map[string]float64{engine.MetricLoss: 0.2},
			loss:     0.2,
			accuracy: 80.0,
		},
		{
			desc:    "loss missing",
			metrics: map[string]float64{"mse": 0.1},
			err:     client.ErrMetricMissing,
		},
		{
			desc:   "engine failure",
			engErr: errors.New("bad batch"),
			err:    client.ErrEngine,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			eng := new(mocks.Engine)
			eng.On("Update", mock.Anything, mock.Anything, testSet, mock.Anything).
				Run(rec.record).
				Return(engine.Result{Model: trainedModel(t), Metrics: tc.metrics}, tc.engErr)

			svc, path := newService(t, eng)

			res, err := svc.Evaluate(context.Background())
			cfgs := rec.configs()
			require.Len(t, cfgs, 1)
			assert.Equal(t, 1, cfgs[0].Epochs)

			got, rerr := os.ReadFile(path)
			require.NoError(t, rerr)
			assert.Equal(t, "initial-model", string(got))

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.loss, res.Loss, 1e-9)
			assert.InDelta(t, tc.accuracy, res.Accuracy, 1e-9)
		})
	}
}

func TestEvaluateDoesNotSetTrainedState(t *testing.T) {
	t.Parallel()

	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, testSet, mock.Anything).
		Return(engine.Result{Model: trainedModel(t), Metrics: map[string]float64{engine.MetricLoss: 0.5}}, nil)
	eng.On("Update", mock.Anything, mock.Anything, trainSet, mock.Anything).
		Return(engine.Result{Model: trainedModel(t)}, nil)

	svc, _ := newService(t, eng)
	ctx := context.Background()

	_, err := svc.Evaluate(ctx)
	require.NoError(t, err)

	_, err = svc.GetParameters(ctx)
	require.NoError(t, err)

	eng.AssertCalled(t, "Update", mock.Anything, mock.Anything, trainSet, mock.Anything)
	eng.AssertNumberOfCalls(t, "Update", 2)
}

func TestShapeHook(t *testing.T) {
	t.Parallel()

	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(engine.Result{Model: trainedModel(t)}, nil)

	seen := map[string][]tensor.ShapeSummary{}
	hook := func(_ context.Context, stage string, shapes []tensor.ShapeSummary) {
		seen[stage] = shapes
	}

	svc, _ := newService(t, eng, client.WithShapeHook(hook))
	ctx := context.Background()

	require.NoError(t, svc.UpdateParameters(ctx, client.FlatParameterSet{{1, 2, 3, 4}}))
	require.NoError(t, svc.Fit(ctx))

	assert.Equal(t, []tensor.ShapeSummary{{Layer: "a", Shape: []int{2, 2}}}, seen[client.StageConfig])
	assert.Equal(t, []tensor.ShapeSummary{
		{Layer: "a", Shape: []int{2, 2}},
		{Layer: "b", Shape: []int{3}},
	}, seen[client.StageFit])
}

func TestFitWaitsForRoundSlot(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(engine.Result{Model: trainedModel(t)}, nil).
		Once()

	svc, _ := newService(t, eng)

	done := make(chan error, 1)
	go func() {
		done <- svc.Fit(context.Background())
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Fit(ctx), context.Canceled)

	close(release)
	require.NoError(t, <-done)
}

func TestFitEpochsOverride(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	eng := new(mocks.Engine)
	eng.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(rec.record).
		Return(engine.Result{Model: trainedModel(t), Metrics: map[string]float64{engine.MetricLoss: 0.5}}, nil)

	svc, _ := newService(t, eng)
	ctx := client.WithEpochs(context.Background(), 5)

	require.NoError(t, svc.Fit(ctx))
	_, err := svc.Evaluate(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Fit(context.Background()))

	cfgs := rec.configs()
	require.Len(t, cfgs, 3)
	assert.Equal(t, 5, cfgs[0].Epochs)
	assert.Equal(t, 1, cfgs[1].Epochs)
	assert.Zero(t, cfgs[2].Epochs)
}
