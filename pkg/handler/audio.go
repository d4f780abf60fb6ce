package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"wordbridge/pkg/router"
)

// ActionPlayAudio asks the sandboxed script host to play a pronunciation.
const ActionPlayAudio = "playAudio"

// SandboxTarget is the consumer name of the sandboxed script host, the
// only context with access to actual audio APIs.
const SandboxTarget = "sandbox"

var audioActions = []string{ActionPlayAudio}

// ScriptPort delivers a message to another connected context.
type ScriptPort interface {
	Forward(ctx context.Context, msg router.Message) error
}

// Notifier delivers a completed callback response back to a requester.
type Notifier interface {
	Notify(ctx context.Context, sender router.Sender, callbackID string, resp router.Response) error
}

// CallbackRegistry issues correlation ids for out-of-band replies. The id
// is handed back into deliver at completion time.
type CallbackRegistry interface {
	Register(deliver func(id string, resp router.Response)) (string, error)
}

// AudioHandler forwards playback requests to the sandboxed script host.
// The sandbox cannot return values to arbitrary requesters, so the result
// travels back through a correlation id and a callback message.
type AudioHandler struct {
	port      ScriptPort
	notifier  Notifier
	callbacks CallbackRegistry
	log       *slog.Logger
}

// NewAudioHandler creates an AudioHandler.
func NewAudioHandler(port ScriptPort, notifier Notifier, callbacks CallbackRegistry, log *slog.Logger) *AudioHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AudioHandler{
		port:      port,
		notifier:  notifier,
		callbacks: callbacks,
		log:       log.With("component", "handler.audio"),
	}
}

// CanHandle implements Family.
func (h *AudioHandler) CanHandle(action string) bool {
	return contains(audioActions, action)
}

// Bindings implements Family.
func (h *AudioHandler) Bindings() map[string]router.Handler {
	return map[string]router.Handler{
		ActionPlayAudio: Binding{fn: h.handlePlay, can: h.CanHandle},
	}
}

type playAudioResult struct {
	Queued     bool   `json:"queued"`
	CallbackID string `json:"callbackId"`
}

// handlePlay registers a pending callback for the requester, forwards the
// request to the sandbox with the correlation id attached, and returns
// immediately. The playback outcome reaches the requester later as a
// callback message.
func (h *AudioHandler) handlePlay(ctx context.Context, params json.RawMessage, sender router.Sender) (any, error) {
	if len(params) == 0 {
		return nil, errors.New("playAudio requires params")
	}

	deliver := func(id string, resp router.Response) {
		if err := h.notifier.Notify(context.Background(), sender, id, resp); err != nil {
			h.log.Error("Failed to deliver audio result", "callback_id", id, "error", err)
		}
	}

	id, err := h.callbacks.Register(deliver)
	if err != nil {
		return nil, fmt.Errorf("register audio callback: %w", err)
	}
	forward := router.Message{
		Action:     ActionPlayAudio,
		Params:     params,
		Target:     SandboxTarget,
		CallbackID: id,
	}
	if err := h.port.Forward(ctx, forward); err != nil {
		return nil, fmt.Errorf("forward to sandbox: %w", err)
	}

	return playAudioResult{Queued: true, CallbackID: id}, nil
}
