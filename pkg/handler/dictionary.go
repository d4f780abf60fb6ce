package handler

import (
	"context"
	"encoding/json"
	"errors"

	"wordbridge/pkg/dict"
	"wordbridge/pkg/router"
)

// Dictionary actions.
const (
	ActionFindTerm       = "findTerm"
	ActionGetTranslation = "getTranslation"
	ActionDeinflect      = "Deinflect"
	ActionGetBuiltin     = "getBuiltin"
)

var dictionaryActions = []string{ActionFindTerm, ActionGetTranslation, ActionDeinflect, ActionGetBuiltin}

// ErrNoDictionaries is returned when a lookup arrives before any
// dictionary is registered.
var ErrNoDictionaries = errors.New("no dictionaries registered")

// DictionaryHandler serves term lookups against the registry and exposes
// the deinflector.
type DictionaryHandler struct {
	registry    *dict.Registry
	deinflector *dict.Deinflector
}

// NewDictionaryHandler creates a DictionaryHandler.
func NewDictionaryHandler(registry *dict.Registry, deinflector *dict.Deinflector) *DictionaryHandler {
	return &DictionaryHandler{registry: registry, deinflector: deinflector}
}

// CanHandle implements Family.
func (h *DictionaryHandler) CanHandle(action string) bool {
	return contains(dictionaryActions, action)
}

// Bindings implements Family.
func (h *DictionaryHandler) Bindings() map[string]router.Handler {
	return map[string]router.Handler{
		ActionFindTerm:       Binding{fn: h.handleFindTerm, can: h.CanHandle},
		ActionGetTranslation: Binding{fn: h.handleGetTranslation, can: h.CanHandle},
		ActionDeinflect:      Binding{fn: h.handleDeinflect, can: h.CanHandle},
		ActionGetBuiltin:     Binding{fn: h.handleGetBuiltin, can: h.CanHandle},
	}
}

type lookupParams struct {
	Dict       string `json:"dict,omitempty"`
	Word       string `json:"word,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (p lookupParams) term() string {
	if p.Word != "" {
		return p.Word
	}
	return p.Expression
}

// handleFindTerm looks a word up in a specific dictionary. An unknown
// dictionary name yields a null result, not a failure; a missing term
// likewise.
func (h *DictionaryHandler) handleFindTerm(ctx context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var p lookupParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.term() == "" {
		return nil, errors.New("lookup requires a word or expression")
	}
	if h.registry.Len() == 0 {
		return nil, ErrNoDictionaries
	}

	var d dict.Dictionary
	if p.Dict != "" {
		found, ok := h.registry.Get(p.Dict)
		if !ok {
			return nil, nil
		}
		d = found
	} else {
		first, ok := h.registry.First()
		if !ok {
			return nil, ErrNoDictionaries
		}
		d = first
	}

	return d.FindTerm(ctx, p.term())
}

// handleGetTranslation looks an expression up in the first available
// dictionary.
func (h *DictionaryHandler) handleGetTranslation(ctx context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var p lookupParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Expression == "" {
		return nil, errors.New("getTranslation requires an expression")
	}

	first, ok := h.registry.First()
	if !ok {
		return nil, ErrNoDictionaries
	}

	return first.FindTerm(ctx, p.Expression)
}

type deinflectParams struct {
	Term string `json:"term"`
}

func (h *DictionaryHandler) handleDeinflect(_ context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var p deinflectParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Term == "" {
		return nil, errors.New("Deinflect requires a term")
	}

	return h.deinflector.Deinflect(p.Term), nil
}

// handleGetBuiltin lists the metadata of every registered dictionary so
// the options page can present the selection.
func (h *DictionaryHandler) handleGetBuiltin(_ context.Context, _ json.RawMessage, _ router.Sender) (any, error) {
	names := h.registry.Names()
	metas := make([]dict.Metadata, 0, len(names))
	for _, name := range names {
		if d, ok := h.registry.Get(name); ok {
			metas = append(metas, d.Metadata())
		}
	}
	return metas, nil
}
