package router

import (
	"context"
	"fmt"

	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// KeyCorrelationSnapshot is the scratch key the guard pair communicates
// through.
const KeyCorrelationSnapshot = "correlation_snapshot"

// Guard middleware names, shared by every service that registers the pair.
const (
	GuardPrepareName = "correlation_guard_prepare"
	GuardConfirmName = "correlation_guard_confirm"
)

// GuardPrepare snapshots the live correlation id into the scratch before the
// handler runs.
func GuardPrepare[C any]() MiddlewareFunc[C] {
	return func(ctx context.Context, _ C, _ *event.Envelope, sc *Scratch) (any, error) {
		id := correlation.ID(ctx)
		sc.Set(KeyCorrelationSnapshot, id)
		return id, nil
	}
}

// GuardConfirm asserts the live correlation id still matches the snapshot
// after the handler ran. A mismatch means some async boundary lost or crossed
// the causal chain; ErrContextCorruption is fatal.
func GuardConfirm[C any]() MiddlewareFunc[C] {
	return func(ctx context.Context, _ C, env *event.Envelope, sc *Scratch) (any, error) {
		snapshot := sc.String(KeyCorrelationSnapshot)
		live := correlation.ID(ctx)
		if snapshot != live {
			return nil, fmt.Errorf("%w: snapshot %q vs live %q", ErrContextCorruption, snapshot, live)
		}
		if live != env.CorrelationID {
			return nil, fmt.Errorf("%w: live %q vs envelope %q", ErrContextCorruption, live, env.CorrelationID)
		}
		return true, nil
	}
}

// RegisterGuards wires the prepare/confirm pair globally.
func RegisterGuards[C any](r *Router[C]) error {
	if err := r.RegisterBefore(GuardPrepareName, GuardPrepare[C]()); err != nil {
		return err
	}
	return r.RegisterAfter(GuardConfirmName, GuardConfirm[C]())
}
