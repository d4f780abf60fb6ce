package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func passThrough(result any) Handler {
	return HandlerFunc(func(context.Context, json.RawMessage, Sender) (any, error) {
		return result, nil
	})
}

func TestValidationMiddlewareShortCircuits(t *testing.T) {
	r := New(Config{ThrowOnUnknown: true})
	r.Use(ValidationMiddleware(func(msg Message, _ Sender) error {
		if len(msg.Params) == 0 {
			return errors.New("params are required")
		}
		return nil
	}))

	h := &staticHandler{action: "findTerm", result: "ok"}
	if err := r.Register("findTerm", h); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	resp, err := r.Route(context.Background(), Message{Action: "findTerm"}, Sender{})
	if err != nil {
		t.Fatalf("Route error: %v", err)
	}
	if resp.Success || resp.Error != "params are required" {
		t.Fatalf("Route response = %+v, want validation failure", resp)
	}
	if h.calls != 0 {
		t.Fatal("handler ran despite failed validation")
	}

	resp, err = r.Route(context.Background(), Message{Action: "findTerm", Params: json.RawMessage(`{"word":"hello"}`)}, Sender{})
	if err != nil {
		t.Fatalf("Route error: %v", err)
	}
	if !resp.Success {
		t.Fatalf("Route response = %+v, want success", resp)
	}
}

func TestRateLimitMiddlewareWindow(t *testing.T) {
	current := time.Unix(1000, 0)
	now := func() time.Time { return current }

	r := New(Config{ThrowOnUnknown: true})
	r.Use(rateLimitMiddleware(2, time.Second, now))
	if err := r.Register("findTerm", passThrough("def")); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	route := func(sender Sender) Response {
		t.Helper()
		resp, err := r.Route(context.Background(), Message{Action: "findTerm"}, sender)
		if err != nil {
			t.Fatalf("Route error: %v", err)
		}
		return resp
	}

	tab := Sender{TabID: 7}
	if resp := route(tab); !resp.Success {
		t.Fatalf("first request rejected: %+v", resp)
	}
	if resp := route(tab); !resp.Success {
		t.Fatalf("second request rejected: %+v", resp)
	}

	resp := route(tab)
	if resp.Success {
		t.Fatal("third request in the same window succeeded")
	}
	if resp.Error != "Rate limit exceeded" {
		t.Fatalf("rate limit error = %q, want %q", resp.Error, "Rate limit exceeded")
	}

	// An independent sender key has its own counter.
	if resp := route(Sender{TabID: 8}); !resp.Success {
		t.Fatalf("other sender rejected: %+v", resp)
	}

	// Past the window the counter resets lazily.
	current = current.Add(1100 * time.Millisecond)
	if resp := route(tab); !resp.Success {
		t.Fatalf("request after window expiry rejected: %+v", resp)
	}
}

func TestRateLimitSenderKeyFallback(t *testing.T) {
	if got := senderKey(Sender{TabID: 3, ExtensionID: "ext"}); got != "tab:3" {
		t.Fatalf("senderKey = %q, want tab key", got)
	}
	if got := senderKey(Sender{ExtensionID: "ext"}); got != "ext:ext" {
		t.Fatalf("senderKey = %q, want extension key", got)
	}
	if got := senderKey(Sender{}); got != "global" {
		t.Fatalf("senderKey = %q, want constant fallback", got)
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	r := New(Config{ThrowOnUnknown: true})
	r.Use(LoggingMiddleware(nil))

	if err := r.Register("findTerm", passThrough("def")); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	resp, err := r.Route(context.Background(), Message{Action: "findTerm"}, Sender{URL: "chrome-extension://abc/popup.html"})
	if err != nil {
		t.Fatalf("Route error: %v", err)
	}
	if !resp.Success || resp.Data != "def" {
		t.Fatalf("Route response = %+v, want untouched handler result", resp)
	}
}
