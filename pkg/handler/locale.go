package handler

import (
	"context"
	"encoding/json"

	"wordbridge/pkg/options"
	"wordbridge/pkg/router"
)

// ActionGetLocale returns the UI locale the options select.
const ActionGetLocale = "getLocale"

var localeActions = []string{ActionGetLocale}

// LocaleHandler answers locale queries from the UI surfaces.
type LocaleHandler struct {
	store *options.Store
}

// NewLocaleHandler creates a LocaleHandler.
func NewLocaleHandler(store *options.Store) *LocaleHandler {
	return &LocaleHandler{store: store}
}

// CanHandle implements Family.
func (h *LocaleHandler) CanHandle(action string) bool {
	return contains(localeActions, action)
}

// Bindings implements Family.
func (h *LocaleHandler) Bindings() map[string]router.Handler {
	return map[string]router.Handler{
		ActionGetLocale: Binding{fn: h.handleGetLocale, can: h.CanHandle},
	}
}

type localeResult struct {
	Locale string `json:"locale"`
}

func (h *LocaleHandler) handleGetLocale(_ context.Context, _ json.RawMessage, _ router.Sender) (any, error) {
	opts, ok := h.store.GetCurrent()
	if !ok {
		opts = options.Defaults()
	}
	return localeResult{Locale: opts.Locale}, nil
}
