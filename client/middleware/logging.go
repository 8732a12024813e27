package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/layer"
)

var _ client.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    client.Service
}

func Logging(logger *slog.Logger, svc client.Service) client.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func roundAttr(ctx context.Context) slog.Attr {
	id, _ := client.RoundIDFromContext(ctx)

	return slog.String("round_id", id)
}

func (lm *loggingMiddleware) GetParameters(ctx context.Context) (params client.FlatParameterSet, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("layers", len(params)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get parameters failed", args...)

			return
		}
		lm.logger.Info("Get parameters completed successfully", args...)
	}(time.Now())

	return lm.svc.GetParameters(ctx)
}

func (lm *loggingMiddleware) UpdateParameters(ctx context.Context, params client.FlatParameterSet) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("layers", len(params)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Update parameters failed", args...)

			return
		}
		lm.logger.Info("Update parameters completed successfully", args...)
	}(time.Now())

	return lm.svc.UpdateParameters(ctx, params)
}

func (lm *loggingMiddleware) Fit(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			roundAttr(ctx),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Fit failed", args...)

			return
		}
		lm.logger.Info("Fit completed successfully", args...)
	}(time.Now())

	return lm.svc.Fit(ctx)
}

func (lm *loggingMiddleware) Evaluate(ctx context.Context) (res client.EvalResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			roundAttr(ctx),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Evaluate failed", args...)

			return
		}
		args = append(args, slog.Group("result",
			slog.Float64("loss", res.Loss),
			slog.Float64("accuracy", res.Accuracy),
		))
		lm.logger.Info("Evaluate completed successfully", args...)
	}(time.Now())

	return lm.svc.Evaluate(ctx)
}

func (lm *loggingMiddleware) Layers(ctx context.Context) (layers []layer.Descriptor, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List layers failed", args...)

			return
		}
		lm.logger.Debug("List layers completed successfully", args...)
	}(time.Now())

	return lm.svc.Layers(ctx)
}
