// Package correlation threads the per-causal-chain correlation id through
// context.Context. Every consumer sets it before dispatch; every derived
// event and log line carries it.
package correlation

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const idKey ctxKey = iota

// Unset is what ID returns when no correlation id has been attached.
const Unset = "-"

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

func ID(ctx context.Context) string {
	if v, ok := ctx.Value(idKey).(string); ok && v != "" {
		return v
	}
	return Unset
}

// Logger returns base with the context's correlation id stamped as corr_id.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	return base.With().Str("corr_id", ID(ctx)).Logger()
}
