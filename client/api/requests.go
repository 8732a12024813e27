package api

import (
	"github.com/absmach/flclient/client"
	pkgerrors "github.com/absmach/flclient/pkg/errors"
	"github.com/absmach/flclient/pkg/fl"
)

type updateParametersReq struct {
	Parameters client.FlatParameterSet `json:"parameters"`
}

// validate only checks the envelope; per-layer shapes are checked when the
// next round is configured.
func (r updateParametersReq) validate() error {
	if r.Parameters == nil {
		return pkgerrors.ErrMalformedEntity
	}

	return nil
}

type roundReq struct {
	roundID string
}

type viewRoundReq struct {
	roundID string
	kind    fl.RoundKind
}

func (r viewRoundReq) validate() error {
	if r.roundID == "" {
		return pkgerrors.ErrMalformedEntity
	}
	switch r.kind {
	case fl.KindFit, fl.KindEvaluate:
		return nil
	default:
		return pkgerrors.ErrInvalidData
	}
}
