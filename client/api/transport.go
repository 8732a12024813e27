package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/api"
	pkgerrors "github.com/absmach/flclient/pkg/errors"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	roundIDKey = "round_id"
	kindKey    = "kind"
)

func MakeHandler(svc client.Service, rounds RoundLister, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(loggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/parameters", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			getParametersEndpoint(svc),
			decodeNoReq,
			api.EncodeResponse,
			opts...,
		), "get-parameters").ServeHTTP)
		r.Put("/", otelhttp.NewHandler(kithttp.NewServer(
			updateParametersEndpoint(svc),
			decodeUpdateParametersReq,
			api.EncodeResponse,
			opts...,
		), "update-parameters").ServeHTTP)
	})

	mux.Post("/fit", otelhttp.NewHandler(kithttp.NewServer(
		fitEndpoint(svc),
		decodeRoundReq,
		api.EncodeResponse,
		opts...,
	), "fit").ServeHTTP)

	mux.Post("/evaluate", otelhttp.NewHandler(kithttp.NewServer(
		evaluateEndpoint(svc),
		decodeRoundReq,
		api.EncodeResponse,
		opts...,
	), "evaluate").ServeHTTP)

	mux.Get("/layers", otelhttp.NewHandler(kithttp.NewServer(
		layersEndpoint(svc),
		decodeNoReq,
		api.EncodeResponse,
		opts...,
	), "layers").ServeHTTP)

	mux.Get("/rounds", otelhttp.NewHandler(kithttp.NewServer(
		roundsEndpoint(rounds),
		decodeNoReq,
		api.EncodeResponse,
		opts...,
	), "list-rounds").ServeHTTP)

	mux.Get("/rounds/{roundID}", otelhttp.NewHandler(kithttp.NewServer(
		viewRoundEndpoint(rounds),
		decodeViewRoundReq,
		api.EncodeResponse,
		opts...,
	), "view-round").ServeHTTP)

	mux.Get("/health", health(instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeNoReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeUpdateParametersReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, pkgerrors.ErrUnsupported
	}

	var req updateParametersReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(pkgerrors.ErrMalformedEntity, err)
	}

	return req, nil
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	return roundReq{roundID: r.URL.Query().Get(roundIDKey)}, nil
}

func decodeViewRoundReq(_ context.Context, r *http.Request) (any, error) {
	req := viewRoundReq{
		roundID: chi.URLParam(r, "roundID"),
		kind:    fl.KindFit,
	}
	if kind := r.URL.Query().Get(kindKey); kind != "" {
		req.kind = fl.RoundKind(kind)
	}

	return req, nil
}

func health(instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", api.ContentType)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":      "pass",
			"instance_id": instanceID,
		})
	}
}

func loggingErrorEncoder(logger *slog.Logger, enc kithttp.ErrorEncoder) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		logger.WarnContext(ctx, "request failed", slog.Any("error", err))
		enc(ctx, err, w)
	}
}
