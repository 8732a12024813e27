package middleware

import (
	"context"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/layer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ client.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    client.Service
}

func Tracing(tracer trace.Tracer, svc client.Service) client.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if id, ok := client.RoundIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("round_id", id))
	}

	return tm.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (tm *tracing) GetParameters(ctx context.Context) (params client.FlatParameterSet, err error) {
	ctx, span := tm.start(ctx, "get-parameters")
	defer func() { end(span, err) }()

	return tm.svc.GetParameters(ctx)
}

func (tm *tracing) UpdateParameters(ctx context.Context, params client.FlatParameterSet) (err error) {
	ctx, span := tm.start(ctx, "update-parameters", attribute.Int("layers", len(params)))
	defer func() { end(span, err) }()

	return tm.svc.UpdateParameters(ctx, params)
}

func (tm *tracing) Fit(ctx context.Context) (err error) {
	ctx, span := tm.start(ctx, "fit")
	defer func() { end(span, err) }()

	return tm.svc.Fit(ctx)
}

func (tm *tracing) Evaluate(ctx context.Context) (res client.EvalResult, err error) {
	ctx, span := tm.start(ctx, "evaluate")
	defer func() {
		span.SetAttributes(attribute.Float64("loss", res.Loss))
		end(span, err)
	}()

	return tm.svc.Evaluate(ctx)
}

func (tm *tracing) Layers(ctx context.Context) ([]layer.Descriptor, error) {
	ctx, span := tm.start(ctx, "layers")
	defer span.End()

	return tm.svc.Layers(ctx)
}
