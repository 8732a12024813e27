package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/absmach/flclient/pkg/layer"
	"github.com/google/uuid"
)

var _ client.Service = (*historyMiddleware)(nil)

type RoundRecorder interface {
	SaveRound(rec fl.RoundRecord) error
}

type historyMiddleware struct {
	recorder RoundRecorder
	logger   *slog.Logger
	svc      client.Service
}

// History records every fit and evaluation. Calls without a round id in
// their context are recorded under a generated one.
func History(recorder RoundRecorder, logger *slog.Logger, svc client.Service) client.Service {
	return &historyMiddleware{
		recorder: recorder,
		logger:   logger,
		svc:      svc,
	}
}

func (hm *historyMiddleware) save(ctx context.Context, rec fl.RoundRecord, err error) {
	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Error = err.Error()
	}
	if serr := hm.recorder.SaveRound(rec); serr != nil {
		hm.logger.WarnContext(ctx, "failed to save round record", slog.String("round_id", rec.RoundID), slog.Any("error", serr))
	}
}

func roundID(ctx context.Context) (context.Context, string) {
	if id, ok := client.RoundIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()

	return client.WithRoundID(ctx, id), id
}

func (hm *historyMiddleware) GetParameters(ctx context.Context) (client.FlatParameterSet, error) {
	return hm.svc.GetParameters(ctx)
}

func (hm *historyMiddleware) UpdateParameters(ctx context.Context, params client.FlatParameterSet) error {
	return hm.svc.UpdateParameters(ctx, params)
}

func (hm *historyMiddleware) Fit(ctx context.Context) (err error) {
	ctx, id := roundID(ctx)
	rec := fl.RoundRecord{RoundID: id, Kind: fl.KindFit, StartedAt: time.Now()}
	defer func() { hm.save(ctx, rec, err) }()

	return hm.svc.Fit(ctx)
}

func (hm *historyMiddleware) Evaluate(ctx context.Context) (res client.EvalResult, err error) {
	ctx, id := roundID(ctx)
	rec := fl.RoundRecord{RoundID: id, Kind: fl.KindEvaluate, StartedAt: time.Now()}
	defer func() {
		if err == nil {
			rec.Loss = &res.Loss
			rec.Accuracy = &res.Accuracy
		}
		hm.save(ctx, rec, err)
	}()

	return hm.svc.Evaluate(ctx)
}

func (hm *historyMiddleware) Layers(ctx context.Context) ([]layer.Descriptor, error) {
	return hm.svc.Layers(ctx)
}
