package handler

import (
	"context"
	"encoding/json"
	"errors"

	"wordbridge/pkg/anki"
	"wordbridge/pkg/dict"
	"wordbridge/pkg/note"
	"wordbridge/pkg/options"
	"wordbridge/pkg/router"
)

// Flashcard export actions.
const (
	ActionAddNote            = "addNote"
	ActionIsConnected        = "isConnected"
	ActionGetVersion         = "getVersion"
	ActionGetDeckNames       = "getDeckNames"
	ActionGetModelNames      = "getModelNames"
	ActionGetModelFieldNames = "getModelFieldNames"
)

var ankiActions = []string{
	ActionAddNote,
	ActionIsConnected,
	ActionGetVersion,
	ActionGetDeckNames,
	ActionGetModelNames,
	ActionGetModelFieldNames,
}

// AnkiHandler exports flashcards through the configured service and
// answers the connection and catalogue queries the options page needs.
type AnkiHandler struct {
	svc       anki.Service
	formatter *note.Formatter
	store     *options.Store
}

// NewAnkiHandler creates an AnkiHandler.
func NewAnkiHandler(svc anki.Service, formatter *note.Formatter, store *options.Store) *AnkiHandler {
	return &AnkiHandler{svc: svc, formatter: formatter, store: store}
}

// CanHandle implements Family.
func (h *AnkiHandler) CanHandle(action string) bool {
	return contains(ankiActions, action)
}

// Bindings implements Family.
func (h *AnkiHandler) Bindings() map[string]router.Handler {
	return map[string]router.Handler{
		ActionAddNote:            Binding{fn: h.handleAddNote, can: h.CanHandle},
		ActionIsConnected:        Binding{fn: h.handleIsConnected, can: h.CanHandle},
		ActionGetVersion:         Binding{fn: h.handleGetVersion, can: h.CanHandle},
		ActionGetDeckNames:       Binding{fn: h.handleGetDeckNames, can: h.CanHandle},
		ActionGetModelNames:      Binding{fn: h.handleGetModelNames, can: h.CanHandle},
		ActionGetModelFieldNames: Binding{fn: h.handleGetModelFieldNames, can: h.CanHandle},
	}
}

type addNoteParams struct {
	Definition dict.Definition `json:"definition"`
	Sentence   string          `json:"sentence,omitempty"`
	URL        string          `json:"url,omitempty"`
}

func (h *AnkiHandler) handleAddNote(ctx context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var p addNoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Definition.Expression == "" {
		return nil, errors.New("addNote requires a definition")
	}

	opts, ok := h.store.GetCurrent()
	if !ok {
		return nil, options.ErrNotLoaded
	}

	n, err := h.formatter.Format(opts, p.Definition, note.Context{Sentence: p.Sentence, PageURL: p.URL})
	if err != nil {
		return nil, err
	}

	return h.svc.AddNote(ctx, n)
}

func (h *AnkiHandler) handleIsConnected(ctx context.Context, _ json.RawMessage, _ router.Sender) (any, error) {
	return h.svc.IsConnected(ctx), nil
}

func (h *AnkiHandler) handleGetVersion(ctx context.Context, _ json.RawMessage, _ router.Sender) (any, error) {
	return h.svc.GetVersion(ctx)
}

func (h *AnkiHandler) handleGetDeckNames(ctx context.Context, _ json.RawMessage, _ router.Sender) (any, error) {
	return h.svc.GetDeckNames(ctx)
}

func (h *AnkiHandler) handleGetModelNames(ctx context.Context, _ json.RawMessage, _ router.Sender) (any, error) {
	return h.svc.GetModelNames(ctx)
}

type modelFieldParams struct {
	ModelName string `json:"modelName"`
}

func (h *AnkiHandler) handleGetModelFieldNames(ctx context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var p modelFieldParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ModelName == "" {
		return nil, errors.New("getModelFieldNames requires a modelName")
	}

	return h.svc.GetModelFieldNames(ctx, p.ModelName)
}
