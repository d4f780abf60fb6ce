// Package anki talks to an AnkiConnect-compatible flashcard service over
// its HTTP JSON-RPC endpoint. The rest of the process sees only the narrow
// Service contract; protocol details stay here.
package anki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// protocolVersion is the AnkiConnect API version this client speaks.
	protocolVersion = 6

	defaultTimeout = 5 * time.Second
)

// ErrServiceUnavailable wraps transport failures reaching the flashcard
// service, so callers can distinguish "not running" from protocol errors.
var ErrServiceUnavailable = errors.New("anki: service unavailable")

// Note is one flashcard to export.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags,omitempty"`
}

// AddNoteResult reports the outcome of one export.
type AddNoteResult struct {
	Success bool   `json:"success"`
	NoteID  int64  `json:"noteId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service is the flashcard-service contract the handlers depend on.
type Service interface {
	GetVersion(ctx context.Context) (int, error)
	IsConnected(ctx context.Context) bool
	AddNote(ctx context.Context, note Note) (AddNoteResult, error)
	GetDeckNames(ctx context.Context) ([]string, error)
	GetModelNames(ctx context.Context) ([]string, error)
	GetModelFieldNames(ctx context.Context, modelName string) ([]string, error)
}

// Config holds client connection settings.
type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// Client implements Service against a live AnkiConnect endpoint.
type Client struct {
	http *resty.Client
	key  string
}

// NewClient creates a Client for cfg.URL. The timeout applies per request;
// a timed-out call surfaces as a normal error, never a hung router promise.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("anki: service URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	http := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(timeout)

	return &Client{http: http, key: cfg.Key}, nil
}

type rpcRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Key     string `json:"key,omitempty"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func (c *Client) invoke(ctx context.Context, action string, params any, result any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{Action: action, Version: protocolVersion, Key: c.key, Params: params}).
		Post("/")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, action, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: HTTP %d", ErrServiceUnavailable, action, resp.StatusCode())
	}

	// The service does not reliably set a JSON content type, so decode
	// the body by hand instead of relying on resty's SetResult.
	var envelope rpcResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("anki: decode %s response: %w", action, err)
	}
	if envelope.Error != nil && *envelope.Error != "" {
		return fmt.Errorf("anki: %s: %s", action, *envelope.Error)
	}

	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("anki: decode %s result: %w", action, err)
	}
	return nil
}

// GetVersion returns the service's protocol version.
func (c *Client) GetVersion(ctx context.Context) (int, error) {
	var version int
	if err := c.invoke(ctx, "version", nil, &version); err != nil {
		return 0, err
	}
	return version, nil
}

// IsConnected reports whether the service answers a version probe.
func (c *Client) IsConnected(ctx context.Context) bool {
	_, err := c.GetVersion(ctx)
	return err == nil
}

// AddNote exports one note. A duplicate or rejected note comes back as an
// unsuccessful result, not an error.
func (c *Client) AddNote(ctx context.Context, note Note) (AddNoteResult, error) {
	var noteID *int64
	err := c.invoke(ctx, "addNote", map[string]any{"note": note}, &noteID)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			return AddNoteResult{}, err
		}
		return AddNoteResult{Success: false, Error: err.Error()}, nil
	}
	if noteID == nil {
		return AddNoteResult{Success: false, Error: "note was not created"}, nil
	}
	return AddNoteResult{Success: true, NoteID: *noteID}, nil
}

// GetDeckNames lists the available decks.
func (c *Client) GetDeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetModelNames lists the available note models.
func (c *Client) GetModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetModelFieldNames lists the fields of one note model.
func (c *Client) GetModelFieldNames(ctx context.Context, modelName string) ([]string, error) {
	var names []string
	params := map[string]any{"modelName": modelName}
	if err := c.invoke(ctx, "modelFieldNames", params, &names); err != nil {
		return nil, err
	}
	return names, nil
}
