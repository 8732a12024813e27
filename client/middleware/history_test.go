package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/client/middleware"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/absmach/flclient/pkg/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFit = errors.New("fit failed")

type stubService struct {
	fitErr error
	eval   client.EvalResult
	rounds []string
}

func (s *stubService) GetParameters(context.Context) (client.FlatParameterSet, error) {
	return client.FlatParameterSet{{1}}, nil
}

func (s *stubService) UpdateParameters(context.Context, client.FlatParameterSet) error {
	return nil
}

func (s *stubService) Fit(ctx context.Context) error {
	id, _ := client.RoundIDFromContext(ctx)
	s.rounds = append(s.rounds, id)

	return s.fitErr
}

func (s *stubService) Evaluate(context.Context) (client.EvalResult, error) {
	return s.eval, nil
}

func (s *stubService) Layers(context.Context) ([]layer.Descriptor, error) {
	return nil, nil
}

func TestHistoryRecordsRounds(t *testing.T) {
	t.Parallel()

	store, err := fl.NewPersistentStorage(t.TempDir())
	require.NoError(t, err)

	stub := &stubService{eval: client.EvalResult{Loss: 0.3, Accuracy: 70}}
	svc := middleware.History(store, slog.New(slog.DiscardHandler), stub)

	ctx := client.WithRoundID(context.Background(), "round-7")
	require.NoError(t, svc.Fit(ctx))
	_, err = svc.Evaluate(ctx)
	require.NoError(t, err)

	stub.fitErr = errFit
	assert.ErrorIs(t, svc.Fit(context.Background()), errFit)

	require.Len(t, stub.rounds, 2)
	assert.Equal(t, "round-7", stub.rounds[0])
	assert.NotEmpty(t, stub.rounds[1])

	fit, err := store.LoadRound("round-7", fl.KindFit)
	require.NoError(t, err)
	assert.Empty(t, fit.Error)

	eval, err := store.LoadRound("round-7", fl.KindEvaluate)
	require.NoError(t, err)
	require.NotNil(t, eval.Loss)
	assert.InDelta(t, 0.3, *eval.Loss, 1e-9)

	failed, err := store.LoadRound(stub.rounds[1], fl.KindFit)
	require.NoError(t, err)
	assert.Equal(t, errFit.Error(), failed.Error)
}
