// Package dict defines the pluggable dictionary contract and the registry
// the lookup handlers resolve dictionaries from. Dictionaries load from an
// allow-listed local directory of JSON bundles; the process never evaluates
// fetched script text.
package dict

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Definition is one dictionary lookup result.
type Definition struct {
	Expression  string   `json:"expression"`
	Reading     string   `json:"reading,omitempty"`
	Definitions []string `json:"definitions"`
	Audios      []string `json:"audios,omitempty"`
}

// Metadata identifies one dictionary to the UI surfaces.
type Metadata struct {
	ObjectName  string `json:"objectname"`
	DisplayName string `json:"displayname"`
	Locale      string `json:"locale,omitempty"`
}

// Dictionary is the contract every pluggable dictionary satisfies.
// FindTerm returns nil without an error when the term is simply absent.
type Dictionary interface {
	FindTerm(ctx context.Context, word string) (*Definition, error)
	Metadata() Metadata
}

// ErrDuplicateDictionary is returned when registering a name twice.
var ErrDuplicateDictionary = errors.New("dict: dictionary already registered")

// Registry holds the enabled dictionaries by object name, preserving
// registration order so "first available" is deterministic.
type Registry struct {
	mu    sync.RWMutex
	order []string
	dicts map[string]Dictionary
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{dicts: make(map[string]Dictionary)}
}

// Register adds d under its metadata object name.
func (r *Registry) Register(d Dictionary) error {
	if d == nil {
		return errors.New("dict: nil dictionary")
	}

	name := d.Metadata().ObjectName
	if name == "" {
		return errors.New("dict: dictionary has no object name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dicts[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDictionary, name)
	}

	r.dicts[name] = d
	r.order = append(r.order, name)
	return nil
}

// Get returns the dictionary registered under name.
func (r *Registry) Get(name string) (Dictionary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dicts[name]
	return d, ok
}

// First returns the earliest-registered dictionary, the fallback for
// lookups that name no dictionary.
func (r *Registry) First() (Dictionary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, false
	}
	return r.dicts[r.order[0]], true
}

// Names returns the registered object names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered dictionaries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear drops every registration, used when the dictionary selection
// changes and the registry is rebuilt.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.dicts = make(map[string]Dictionary)
}
