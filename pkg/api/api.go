package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/flclient/client"
	pkgerrors "github.com/absmach/flclient/pkg/errors"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/absmach/flclient/pkg/tensor"
)

const ContentType = "application/json"

// Response lets an endpoint response choose its status code and headers.
type Response interface {
	Code() int
	Headers() map[string]string
	Empty() bool
}

type errorRes struct {
	Err string `json:"error"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidData),
		errors.Is(err, pkgerrors.ErrMalformedEntity),
		errors.Is(err, tensor.ErrShapeMismatch),
		errors.Is(err, fl.ErrInvalidRoundID),
		errors.Is(err, client.ErrTooManyLayers):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrUnsupported):
		w.WriteHeader(http.StatusUnsupportedMediaType)
	case errors.Is(err, pkgerrors.ErrNotFound), errors.Is(err, fl.ErrRoundNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, client.ErrNoTrainedState):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if err := json.NewEncoder(w).Encode(errorRes{Err: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
