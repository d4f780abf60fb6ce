package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wordbridge/pkg/router"
)

// ActionFetch proxies an HTTP GET for sandboxed contexts without network
// access of their own.
const ActionFetch = "Fetch"

var fetchActions = []string{ActionFetch}

const (
	defaultFetchTimeout = 10 * time.Second

	// maxFetchBody caps proxied responses; dictionary pages are small
	// and the result travels back over the bridge as one message.
	maxFetchBody = 4 << 20
)

// FetchHandler performs outbound GETs on behalf of sandboxed contexts.
// Every request carries a timeout so a stalled remote host surfaces as a
// failure response instead of a forever-pending message.
type FetchHandler struct {
	client *http.Client
}

// NewFetchHandler creates a FetchHandler. A zero timeout selects the
// default.
func NewFetchHandler(timeout time.Duration) *FetchHandler {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &FetchHandler{client: &http.Client{Timeout: timeout}}
}

// CanHandle implements Family.
func (h *FetchHandler) CanHandle(action string) bool {
	return contains(fetchActions, action)
}

// Bindings implements Family.
func (h *FetchHandler) Bindings() map[string]router.Handler {
	return map[string]router.Handler{
		ActionFetch: Binding{fn: h.handleFetch, can: h.CanHandle},
	}
}

type fetchParams struct {
	URL string `json:"url"`
}

type fetchResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (h *FetchHandler) handleFetch(ctx context.Context, params json.RawMessage, _ router.Sender) (any, error) {
	var p fetchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.URL == "" {
		return nil, errors.New("Fetch requires a url")
	}

	parsed, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.URL, err)
	}

	return fetchResult{Status: resp.StatusCode, Body: string(body)}, nil
}
