package client

import "context"

type roundIDKey struct{}

// WithRoundID tags ctx with the coordinator round a call belongs to.
func WithRoundID(ctx context.Context, roundID string) context.Context {
	return context.WithValue(ctx, roundIDKey{}, roundID)
}

func RoundIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(roundIDKey{}).(string)

	return id, ok && id != ""
}

type epochsKey struct{}

// WithEpochs overrides the engine's default number of training epochs for a
// fit. Evaluation always runs a single epoch.
func WithEpochs(ctx context.Context, epochs int) context.Context {
	return context.WithValue(ctx, epochsKey{}, epochs)
}

func EpochsFromContext(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(epochsKey{}).(int)

	return n, ok && n > 0
}
