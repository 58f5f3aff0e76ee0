// Package router dispatches event envelopes to per-service handlers through
// a before/after middleware pipeline. Routes are declared against exact
// (event type, version) tuples; middlewares are either global or opted into
// per route. The type parameter C is the service's dependency aggregate,
// passed unchanged to every handler and middleware.
package router

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// HandlerFunc handles one envelope. The returned value lands in
// Result.HandlerResult; an error aborts the dispatch.
type HandlerFunc[C any] func(ctx context.Context, deps C, env *event.Envelope, sc *Scratch) (any, error)

// MiddlewareFunc runs before or after a handler. Returning a falsy value
// (nil or false) aborts the dispatch with a MiddlewareError.
type MiddlewareFunc[C any] func(ctx context.Context, deps C, env *event.Envelope, sc *Scratch) (any, error)

// RouteOptions enumerates the per-route extras applied on top of the global
// middleware lists.
type RouteOptions struct {
	MiddlewareBefore []string
	MiddlewareAfter  []string
	// RetryAttempt is declared but advisory; retries rely on broker
	// redelivery.
	RetryAttempt int
}

// Result is what a successful dispatch returns.
type Result struct {
	HandlerResult     any
	CorrelationID     string
	MiddlewaresBefore map[string]any
	MiddlewaresAfter  map[string]any
}

type route[C any] struct {
	handler HandlerFunc[C]
	opts    RouteOptions
}

type Router[C any] struct {
	routes       map[string]map[int]route[C]
	middlewares  map[string]MiddlewareFunc[C]
	globalBefore []string
	globalAfter  []string
	log          zerolog.Logger
}

func New[C any](log zerolog.Logger) *Router[C] {
	return &Router[C]{
		routes:      map[string]map[int]route[C]{},
		middlewares: map[string]MiddlewareFunc[C]{},
		log:         log.With().Str("component", "router").Logger(),
	}
}

// Route registers a handler for (eventType, version). Registration is
// idempotent per exact tuple; re-registration replaces.
func (r *Router[C]) Route(eventType string, version int, opts RouteOptions, h HandlerFunc[C]) {
	if r.routes[eventType] == nil {
		r.routes[eventType] = map[int]route[C]{}
	}
	r.routes[eventType][version] = route[C]{handler: h, opts: opts}
}

// Register adds an on-demand middleware: named but only active on routes that
// list it in their options.
func (r *Router[C]) Register(name string, mw MiddlewareFunc[C]) error {
	return r.add(name, mw)
}

// RegisterBefore adds a globally effective before-middleware.
func (r *Router[C]) RegisterBefore(name string, mw MiddlewareFunc[C]) error {
	if err := r.add(name, mw); err != nil {
		return err
	}
	r.globalBefore = append(r.globalBefore, name)
	return nil
}

// RegisterAfter adds a globally effective after-middleware.
func (r *Router[C]) RegisterAfter(name string, mw MiddlewareFunc[C]) error {
	if err := r.add(name, mw); err != nil {
		return err
	}
	r.globalAfter = append(r.globalAfter, name)
	return nil
}

func (r *Router[C]) add(name string, mw MiddlewareFunc[C]) error {
	if name == "" {
		return fmt.Errorf("%w: empty middleware name", ErrMiddlewareRegistration)
	}
	if mw == nil {
		return fmt.Errorf("%w: middleware %q is nil", ErrMiddlewareRegistration, name)
	}
	if _, exists := r.middlewares[name]; exists {
		return fmt.Errorf("%w: middleware %q already registered", ErrMiddlewareRegistration, name)
	}
	r.middlewares[name] = mw
	return nil
}

// Lookup returns the handler registered for the envelope, or nil.
func (r *Router[C]) Lookup(env *event.Envelope) HandlerFunc[C] {
	rt, ok := r.routes[env.Type][env.Version]
	if !ok {
		return nil
	}
	return rt.handler
}

// Dispatch executes the effective before list, the handler, then the
// effective after list. Middleware lists are global ++ route options with
// first-occurrence deduplication.
func (r *Router[C]) Dispatch(ctx context.Context, deps C, env *event.Envelope) (*Result, error) {
	rt, ok := r.routes[env.Type][env.Version]
	if !ok {
		r.log.Warn().Str("type", env.Type).Int("version", env.Version).Msg("no handler registered")
		return nil, fmt.Errorf("%w: %s v%d", ErrRouteNotFound, env.Type, env.Version)
	}

	before := dedup(r.globalBefore, rt.opts.MiddlewareBefore)
	after := dedup(r.globalAfter, rt.opts.MiddlewareAfter)

	sc := NewScratch()

	beforeResults, err := r.runChain(ctx, deps, env, sc, before, "before")
	if err != nil {
		return nil, err
	}

	handlerResult, err := rt.handler(ctx, deps, env, sc)
	if err != nil {
		return nil, fmt.Errorf("handler for %s v%d: %w", env.Type, env.Version, err)
	}

	afterResults, err := r.runChain(ctx, deps, env, sc, after, "after")
	if err != nil {
		return nil, err
	}

	return &Result{
		HandlerResult:     handlerResult,
		CorrelationID:     correlation.ID(ctx),
		MiddlewaresBefore: beforeResults,
		MiddlewaresAfter:  afterResults,
	}, nil
}

func (r *Router[C]) runChain(ctx context.Context, deps C, env *event.Envelope, sc *Scratch, names []string, phase string) (map[string]any, error) {
	results := make(map[string]any, len(names))
	for _, name := range names {
		mw, ok := r.middlewares[name]
		if !ok {
			return nil, fmt.Errorf("%w: no %s middleware named %q", ErrMiddlewareRegistration, phase, name)
		}
		result, err := mw(ctx, deps, env, sc)
		if err != nil {
			return nil, &MiddlewareError{Name: name, Phase: phase, Err: err}
		}
		if falsy(result) {
			return nil, &MiddlewareError{Name: name, Phase: phase, Err: ErrMiddlewareExecution}
		}
		results[name] = result
	}
	return results, nil
}

// dedup concatenates the lists preserving the first occurrence of each name.
func dedup(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func falsy(v any) bool {
	if v == nil {
		return true
	}
	b, ok := v.(bool)
	return ok && !b
}
