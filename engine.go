package portcullis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/store"
)

// Engine is the authorization decision engine. It holds no evaluation
// state of its own: every call reads a fresh view of the store, so any
// number of calls may run concurrently with each other and with
// administrative writes.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
}

// NewEngine creates a new decision engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("portcullis: store is required")
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Cache returns the decision cache (may be nil).
func (e *Engine) Cache() Cache { return e.cache }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Authorize decides whether actorID may perform req. This is the hot path.
//
// Store and lookup failures never surface as errors: they produce a denied
// result with reason store-error or actor-not-found. ErrCancelled is
// returned when ctx ends before a decision is reached, and no granted
// result is ever returned once ctx is done. A nil req is rejected with
// ErrInvalidRequest before anything is read.
func (e *Engine) Authorize(ctx context.Context, actorID string, req *Request) (*Result, error) {
	start := time.Now()
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if ctx.Err() != nil {
		return nil, e.cancelled(ctx, actorID)
	}

	// 1. Cache hit? Hooks still see the decision.
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, actorID, req); ok {
			cached.Cached = true
			cached.EvalTimeNs = time.Since(start).Nanoseconds()
			e.record(ctx, actorID, req, cached)
			return cached, nil
		}
	}

	// 2. Extension hook: before authorize.
	if e.plugins != nil {
		e.plugins.EmitBeforeAuthorize(ctx, actorID, req)
	}

	// 3. Snapshot read + precedence state machine.
	results, err := e.evaluate(ctx, actorID, []*Request{req})
	if err != nil {
		return nil, err
	}
	result := results[0]
	result.EvalTimeNs = time.Since(start).Nanoseconds()

	// 4. Cache + after hook.
	e.record(ctx, actorID, req, result)
	return result, nil
}

// AuthorizeMany decides every request for one actor. The requests are
// evaluated independently against a single read of the store, so the
// results are mutually consistent. The returned slice is parallel to reqs.
// A nil entry rejects the whole batch with ErrInvalidRequest.
func (e *Engine) AuthorizeMany(ctx context.Context, actorID string, reqs []*Request) ([]*Result, error) {
	start := time.Now()
	for i, req := range reqs {
		if req == nil {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidRequest, i)
		}
	}
	if ctx.Err() != nil {
		return nil, e.cancelled(ctx, actorID)
	}

	out := make([]*Result, len(reqs))
	pending := make([]int, 0, len(reqs))
	for i, req := range reqs {
		if e.cache != nil {
			if cached, ok := e.cache.Get(ctx, actorID, req); ok {
				cached.Cached = true
				out[i] = cached
				continue
			}
		}
		if e.plugins != nil {
			e.plugins.EmitBeforeAuthorize(ctx, actorID, req)
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		batch := make([]*Request, len(pending))
		for j, i := range pending {
			batch[j] = reqs[i]
		}
		results, err := e.evaluate(ctx, actorID, batch)
		if err != nil {
			return nil, err
		}
		for j, i := range pending {
			out[i] = results[j]
		}
	}

	elapsed := time.Since(start).Nanoseconds()
	for _, res := range out {
		res.EvalTimeNs = elapsed
	}
	for i, res := range out {
		e.record(ctx, actorID, reqs[i], res)
	}
	return out, nil
}

// Enforce returns an error wrapping ErrAccessDenied if the decision is denied.
func (e *Engine) Enforce(ctx context.Context, actorID string, req *Request) error {
	result, err := e.Authorize(ctx, actorID, req)
	if err != nil {
		return fmt.Errorf("portcullis authorize: %w", err)
	}
	if !result.Granted {
		return fmt.Errorf("%w: %s", ErrAccessDenied, result.Reason)
	}
	return nil
}

// Can is a shorthand for a module-wide decision.
func (e *Engine) Can(ctx context.Context, actorID string, module access.Module, action access.Action) (bool, error) {
	result, err := e.Authorize(ctx, actorID, &Request{Module: module, Action: action})
	if err != nil {
		return false, err
	}
	return result.Granted, nil
}

// CanOn is a shorthand for a decision on one resource instance.
func (e *Engine) CanOn(ctx context.Context, actorID string, module access.Module, action access.Action, resourceType, resourceID string) (bool, error) {
	result, err := e.Authorize(ctx, actorID, &Request{
		Module:   module,
		Action:   action,
		Resource: &access.Qualifier{Type: resourceType, ID: resourceID},
	})
	if err != nil {
		return false, err
	}
	return result.Granted, nil
}

// evaluate loads the actor's view once and runs every request through the
// precedence stages.
func (e *Engine) evaluate(ctx context.Context, actorID string, reqs []*Request) ([]*Result, error) {
	v, dangling, err := e.load(ctx, actorID)
	if ctx.Err() != nil {
		return nil, e.cancelled(ctx, actorID)
	}

	out := make([]*Result, len(reqs))
	if err != nil {
		failed := e.failure(actorID, err)
		for i := range out {
			out[i] = failed.clone()
		}
		return out, nil
	}

	e.reportDangling(ctx, actorID, dangling)
	su := e.config.superuserRole()
	for i, req := range reqs {
		out[i] = decide(v, req, su)
	}

	// Partial work is discarded if the caller gave up meanwhile.
	if ctx.Err() != nil {
		return nil, e.cancelled(ctx, actorID)
	}
	return out, nil
}

// record stores a freshly evaluated result and notifies the after hooks.
// Results served from the cache are only notified.
func (e *Engine) record(ctx context.Context, actorID string, req *Request, result *Result) {
	if e.cache != nil && !result.Cached && result.Reason.Definitive() {
		e.cache.Set(ctx, actorID, req, result.clone())
	}
	if e.plugins != nil {
		e.plugins.EmitAfterAuthorize(ctx, actorID, req, result)
	}
	e.logger.Debug("authorization decided",
		slog.String("actor_id", actorID),
		slog.String("request", req.String()),
		slog.Bool("granted", result.Granted),
		slog.String("reason", string(result.Reason)),
		slog.Bool("cached", result.Cached),
	)
}

// failure converts a load error into a fail-closed result.
func (e *Engine) failure(actorID string, err error) *Result {
	if errors.Is(err, ErrActorNotFound) {
		e.logger.Warn("authorization actor not found",
			slog.String("actor_id", actorID),
		)
		return &Result{Reason: ReasonActorNotFound, Detail: "actor profile not found"}
	}
	e.logger.Error("authorization store read failed",
		slog.String("actor_id", actorID),
		slog.String("error", err.Error()),
	)
	return &Result{Reason: ReasonStoreError, Detail: "store read failed"}
}

func (e *Engine) cancelled(ctx context.Context, actorID string) error {
	e.logger.Debug("authorization cancelled",
		slog.String("actor_id", actorID),
		slog.String("error", ctx.Err().Error()),
	)
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

func (e *Engine) reportDangling(ctx context.Context, actorID string, refs []danglingRef) {
	for _, d := range refs {
		e.logger.Warn("dangling reference",
			slog.String("actor_id", actorID),
			slog.String("kind", d.kind),
			slog.String("ref", d.ref),
			slog.String("owner", d.owner),
			slog.String("error", ErrDanglingReference.Error()),
		)
		if e.plugins != nil {
			e.plugins.EmitDanglingReference(ctx, actorID, d.kind, d.ref)
		}
	}
}
