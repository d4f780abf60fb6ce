// Package router dispatches inbound {action, params} messages to exactly
// one registered handler, running an onion-ordered middleware pipeline
// around the call and converting handler failures into structured
// {success:false} envelopes.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateHandler is returned when registering an action that
	// already has a handler.
	ErrDuplicateHandler = errors.New("router: handler already registered")
	// ErrInvalidHandler is returned when registering a nil handler.
	ErrInvalidHandler = errors.New("router: invalid handler")
	// ErrUnknownAction is returned by Route when no handler serves the
	// message's action and the router is configured to fail hard.
	ErrUnknownAction = errors.New("router: unknown action")
)

// Next advances the middleware chain. The last Next invokes the handler.
type Next func() (Response, error)

// Middleware wraps handler execution. It may pass through, rewrite the
// downstream response, or short-circuit by returning without calling next.
// Middleware errors are trusted-infrastructure failures and propagate out
// of Route instead of becoming failure envelopes.
type Middleware func(ctx context.Context, msg Message, sender Sender, next Next) (Response, error)

// Config fixes the router's unknown-action policy. The choice between
// failing hard and answering with DefaultResponse is a deliberate
// composition-root decision, never inferred.
type Config struct {
	// ThrowOnUnknown makes Route return ErrUnknownAction for actions
	// without a handler. When false, Route returns DefaultResponse.
	ThrowOnUnknown bool
	// DefaultResponse is returned for unknown actions when
	// ThrowOnUnknown is false.
	DefaultResponse Response
}

// Router owns the action → handler registration map and the middleware
// pipeline.
type Router struct {
	cfg Config

	mu         sync.RWMutex
	handlers   map[string]Handler
	middleware []Middleware
}

// New creates a Router with the given unknown-action policy.
func New(cfg Config) *Router {
	return &Router{
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}
}

// Register binds handler to action. At most one handler may be registered
// per action at a time.
func (r *Router) Register(action string, handler Handler) error {
	if action == "" {
		return errors.New("router: action is required")
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for action %q", ErrInvalidHandler, action)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[action]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, action)
	}

	r.handlers[action] = handler
	return nil
}

// Unregister removes the handler for action and reports whether one was
// registered.
func (r *Router) Unregister(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.handlers[action]
	delete(r.handlers, action)
	return ok
}

// Use appends middleware to the pipeline. Middleware runs in registration
// order on the way in and reverse order on the way out.
func (r *Router) Use(mw Middleware) {
	if mw == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// HasHandler reports whether action currently has a handler.
func (r *Router) HasHandler(action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[action]
	return ok
}

// RegisteredActions returns the sorted actions with a handler.
func (r *Router) RegisteredActions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

// Clear removes every handler and the whole middleware pipeline.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
	r.middleware = nil
}

// Route looks up the handler for msg.Action and executes the middleware
// chain around it. Handler errors are caught here and converted into
// failure responses; middleware errors propagate to the caller.
func (r *Router) Route(ctx context.Context, msg Message, sender Sender) (Response, error) {
	r.mu.RLock()
	handler, ok := r.handlers[msg.Action]
	chain := make([]Middleware, len(r.middleware))
	copy(chain, r.middleware)
	r.mu.RUnlock()

	if !ok {
		if r.cfg.ThrowOnUnknown {
			return Response{}, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
		}
		return r.cfg.DefaultResponse, nil
	}

	terminal := func() (Response, error) {
		result, err := handler.Handle(ctx, msg.Params, sender)
		if err != nil {
			return Fail(err.Error()), nil
		}
		return OK(result), nil
	}

	next := terminal
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		inner := next
		next = func() (Response, error) {
			return mw(ctx, msg, sender, inner)
		}
	}

	return next()
}
