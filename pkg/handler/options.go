package handler

import (
	"context"
	"encoding/json"

	"wordbridge/pkg/options"
	"wordbridge/pkg/router"
)

// ActionOptionsChanged is sent by the options page after the user edits
// settings; params carry the replacement fields.
const ActionOptionsChanged = "opt_optionsChanged"

var optionsActions = []string{ActionOptionsChanged}

// OptionsHandler applies option updates through the store and returns the
// resulting full snapshot.
type OptionsHandler struct {
	store *options.Store
}

// NewOptionsHandler creates an OptionsHandler over store.
func NewOptionsHandler(store *options.Store) *OptionsHandler {
	return &OptionsHandler{store: store}
}

// CanHandle implements Family.
func (h *OptionsHandler) CanHandle(action string) bool {
	return contains(optionsActions, action)
}

// Bindings implements Family.
func (h *OptionsHandler) Bindings() map[string]router.Handler {
	return map[string]router.Handler{
		ActionOptionsChanged: Binding{fn: h.handleChanged, can: h.CanHandle},
	}
}

// handleChanged updates the persisted options with the supplied fields. A
// message without fields returns the current snapshot instead, failing if
// options were never loaded.
func (h *OptionsHandler) handleChanged(_ context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var patch options.Patch
	if err := decodeParams(params, &patch); err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		current, ok := h.store.GetCurrent()
		if !ok {
			return nil, options.ErrNotLoaded
		}
		return current, nil
	}

	return h.store.Update(patch)
}
