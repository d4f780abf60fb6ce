// Package handler implements the concrete action handlers the composition
// root registers into the message router: options, dictionary lookup,
// audio forwarding, flashcard export, locale, and proxied fetch.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"wordbridge/pkg/router"
)

// Binding adapts one action of a family handler to the router's Handler
// contract. CanHandle still answers for the whole family, so capability
// checks outside the router see every action the family serves.
type Binding struct {
	fn  router.HandlerFunc
	can func(action string) bool
}

// Handle implements router.Handler.
func (b Binding) Handle(ctx context.Context, params json.RawMessage, sender router.Sender) (any, error) {
	return b.fn(ctx, params, sender)
}

// CanHandle implements router.Handler.
func (b Binding) CanHandle(action string) bool { return b.can(action) }

// Family is implemented by every handler in this package: it names the
// actions it serves and yields one router.Handler per action.
type Family interface {
	CanHandle(action string) bool
	Bindings() map[string]router.Handler
}

// RegisterAll registers every action of every family into r.
func RegisterAll(r *router.Router, families ...Family) error {
	for _, family := range families {
		for action, h := range family.Bindings() {
			if err := r.Register(action, h); err != nil {
				return fmt.Errorf("register action %q: %w", action, err)
			}
		}
	}
	return nil
}

func contains(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// decodeParams unmarshals params into v, treating an absent payload as an
// empty object.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
