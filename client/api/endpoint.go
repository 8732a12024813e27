package api

import (
	"context"
	"errors"

	"github.com/absmach/flclient/client"
	pkgerrors "github.com/absmach/flclient/pkg/errors"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/go-kit/kit/endpoint"
)

// RoundLister reads the local round history.
type RoundLister interface {
	ListRounds() ([]fl.RoundRecord, error)
	LoadRound(roundID string, kind fl.RoundKind) (fl.RoundRecord, error)
}

var errHistoryDisabled = errors.New("round history is disabled")

func withRound(ctx context.Context, req roundReq) context.Context {
	if req.roundID == "" {
		return ctx
	}

	return client.WithRoundID(ctx, req.roundID)
}

func getParametersEndpoint(svc client.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		params, err := svc.GetParameters(ctx)
		if err != nil {
			return parametersRes{}, err
		}

		return parametersRes{Parameters: params}, nil
	}
}

func updateParametersEndpoint(svc client.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(updateParametersReq)
		if !ok {
			return updateParametersRes{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return updateParametersRes{}, err
		}

		if err := svc.UpdateParameters(ctx, req.Parameters); err != nil {
			return updateParametersRes{}, err
		}

		return updateParametersRes{}, nil
	}
}

func fitEndpoint(svc client.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return fitRes{}, pkgerrors.ErrInvalidData
		}

		if err := svc.Fit(withRound(ctx, req)); err != nil {
			return fitRes{}, err
		}

		return fitRes{RoundID: req.roundID, Status: "ok"}, nil
	}
}

func evaluateEndpoint(svc client.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return evaluateRes{}, pkgerrors.ErrInvalidData
		}

		res, err := svc.Evaluate(withRound(ctx, req))
		if err != nil {
			return evaluateRes{}, err
		}

		return evaluateRes{EvalResult: res, RoundID: req.roundID}, nil
	}
}

func layersEndpoint(svc client.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		layers, err := svc.Layers(ctx)
		if err != nil {
			return layersRes{}, err
		}

		return layersRes{Layers: layers}, nil
	}
}

func roundsEndpoint(rounds RoundLister) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		if rounds == nil {
			return roundsRes{}, errors.Join(pkgerrors.ErrNotFound, errHistoryDisabled)
		}

		records, err := rounds.ListRounds()
		if err != nil {
			return roundsRes{}, err
		}

		return roundsRes{Rounds: records}, nil
	}
}

func viewRoundEndpoint(rounds RoundLister) endpoint.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req, ok := request.(viewRoundReq)
		if !ok {
			return roundRes{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return roundRes{}, err
		}
		if rounds == nil {
			return roundRes{}, errors.Join(pkgerrors.ErrNotFound, errHistoryDisabled)
		}

		rec, err := rounds.LoadRound(req.roundID, req.kind)
		if err != nil {
			return roundRes{}, err
		}

		return roundRes{RoundRecord: rec}, nil
	}
}
