// Package container implements the service registry the composition root
// wires the background process from. Registrations map string keys to
// factories with an explicit lifetime; resolution walks the dependency
// graph on demand and fails on cycles instead of recursing forever.
package container

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Lifetime controls how often a registered factory runs.
type Lifetime int

const (
	// Transient runs the factory on every resolution.
	Transient Lifetime = iota
	// Singleton runs the factory once per container and caches the result.
	Singleton
)

var (
	// ErrNotRegistered is returned when resolving a key nothing was
	// registered under.
	ErrNotRegistered = errors.New("container: service not registered")
	// ErrAlreadyRegistered is returned when registering a key twice on a
	// container that disallows overwrites.
	ErrAlreadyRegistered = errors.New("container: service already registered")
	// ErrCircular is returned when a resolution chain reaches a key that
	// is already being resolved in the same chain.
	ErrCircular = errors.New("container: circular dependency")
)

// Factory constructs one service instance. Dependencies are resolved
// through the supplied Resolver, which carries the resolution chain used
// for cycle detection.
type Factory func(r Resolver) (any, error)

// Resolver is the view of a container a Factory gets during construction.
type Resolver interface {
	// Resolve returns the service registered under key, constructing it
	// if needed.
	Resolve(key string) (any, error)
	// TryResolve is Resolve, except a missing registration yields
	// (nil, nil). Circular-dependency failures still return an error.
	TryResolve(key string) (any, error)
}

type registration struct {
	factory  Factory
	lifetime Lifetime
}

// Options tunes one Container.
type Options struct {
	// AllowOverwrite permits Register to replace an existing key.
	AllowOverwrite bool
}

// Container maps service keys to factories and caches singleton instances.
// A child container created with CreateChild shares the parent's
// registrations by reference but owns its singleton cache.
type Container struct {
	allowOverwrite bool

	mu         sync.Mutex
	parent     *Container
	services   map[string]registration
	singletons map[string]any
}

// New creates an empty Container.
func New(opts Options) *Container {
	return &Container{
		allowOverwrite: opts.AllowOverwrite,
		services:       make(map[string]registration),
		singletons:     make(map[string]any),
	}
}

// Register stores factory under key with the given lifetime.
func (c *Container) Register(key string, factory Factory, lifetime Lifetime) error {
	if key == "" {
		return errors.New("container: service key is required")
	}
	if factory == nil {
		return fmt.Errorf("container: nil factory for service %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.lookupLocked(key); exists && !c.allowOverwrite {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, key)
	}

	c.services[key] = registration{factory: factory, lifetime: lifetime}
	// A replaced registration must not serve a stale cached instance.
	delete(c.singletons, key)
	return nil
}

// RegisterInstance stores an already-built value under key.
func (c *Container) RegisterInstance(key string, instance any) error {
	return c.Register(key, func(Resolver) (any, error) { return instance, nil }, Singleton)
}

// Resolve returns the service registered under key.
func (c *Container) Resolve(key string) (any, error) {
	return c.resolve(key, make(map[string]bool))
}

// TryResolve returns (nil, nil) when key itself is not registered; other
// failures, circular dependencies and factory errors included, are returned
// as errors. A registered key whose factory fails on a missing nested
// dependency is a construction failure, not a missing key.
func (c *Container) TryResolve(key string) (any, error) {
	if !c.Has(key) {
		return nil, nil
	}
	return c.Resolve(key)
}

// Has reports whether key is registered on this container or a parent.
func (c *Container) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key)
	return ok
}

// Unregister removes key from this container and drops any cached
// singleton. It reports whether a local registration was removed; inherited
// registrations stay visible through the parent.
func (c *Container) Unregister(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.services[key]
	delete(c.services, key)
	delete(c.singletons, key)
	return ok
}

// RegisteredServices returns the sorted keys visible from this container.
func (c *Container) RegisteredServices() []string {
	seen := make(map[string]bool)
	for node := c; node != nil; node = node.parent {
		node.mu.Lock()
		for key := range node.services {
			seen[key] = true
		}
		node.mu.Unlock()
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clear drops every local registration and cached instance.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]registration)
	c.singletons = make(map[string]any)
}

// CreateChild returns a container that sees the parent's registrations but
// constructs and caches its own singletons. Composition-root wiring stays
// untouched while tests override single services on a child.
func (c *Container) CreateChild(opts Options) *Container {
	return &Container{
		allowOverwrite: opts.AllowOverwrite,
		parent:         c,
		services:       make(map[string]registration),
		singletons:     make(map[string]any),
	}
}

// lookupLocked finds key on this container or any ancestor. The caller
// holds c.mu; ancestors take their own locks.
func (c *Container) lookupLocked(key string) (registration, bool) {
	if reg, ok := c.services[key]; ok {
		return reg, true
	}
	for node := c.parent; node != nil; node = node.parent {
		node.mu.Lock()
		reg, ok := node.services[key]
		node.mu.Unlock()
		if ok {
			return reg, true
		}
	}
	return registration{}, false
}

func (c *Container) resolve(key string, inProgress map[string]bool) (any, error) {
	if inProgress[key] {
		return nil, fmt.Errorf("%w: %q", ErrCircular, key)
	}

	c.mu.Lock()
	reg, ok := c.lookupLocked(key)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}
	if reg.lifetime == Singleton {
		if instance, cached := c.singletons[key]; cached {
			c.mu.Unlock()
			return instance, nil
		}
	}
	c.mu.Unlock()

	inProgress[key] = true
	defer delete(inProgress, key)

	instance, err := reg.factory(&scope{container: c, inProgress: inProgress})
	if err != nil {
		return nil, fmt.Errorf("container: construct %q: %w", key, err)
	}

	if reg.lifetime == Singleton {
		c.mu.Lock()
		// First construction wins if two resolutions raced.
		if cached, ok := c.singletons[key]; ok {
			instance = cached
		} else {
			c.singletons[key] = instance
		}
		c.mu.Unlock()
	}

	return instance, nil
}

// scope threads the resolution-in-progress set through nested factory
// calls so mutual resolution is detected per chain, not per container.
type scope struct {
	container  *Container
	inProgress map[string]bool
}

func (s *scope) Resolve(key string) (any, error) {
	return s.container.resolve(key, s.inProgress)
}

func (s *scope) TryResolve(key string) (any, error) {
	instance, err := s.container.resolve(key, s.inProgress)
	if errors.Is(err, ErrNotRegistered) {
		return nil, nil
	}
	return instance, err
}
