package middleware

import (
	"context"
	"time"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/layer"
	"github.com/go-kit/kit/metrics"
)

var _ client.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     client.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc client.Service) client.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) GetParameters(ctx context.Context) (client.FlatParameterSet, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-parameters").Add(1)
		mm.latency.With("method", "get-parameters").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetParameters(ctx)
}

func (mm *metricsMiddleware) UpdateParameters(ctx context.Context, params client.FlatParameterSet) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "update-parameters").Add(1)
		mm.latency.With("method", "update-parameters").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.UpdateParameters(ctx, params)
}

func (mm *metricsMiddleware) Fit(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "fit").Add(1)
		mm.latency.With("method", "fit").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Fit(ctx)
}

func (mm *metricsMiddleware) Evaluate(ctx context.Context) (client.EvalResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "evaluate").Add(1)
		mm.latency.With("method", "evaluate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Evaluate(ctx)
}

func (mm *metricsMiddleware) Layers(ctx context.Context) ([]layer.Descriptor, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "layers").Add(1)
		mm.latency.With("method", "layers").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Layers(ctx)
}
