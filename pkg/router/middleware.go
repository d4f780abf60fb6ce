package router

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// rateLimitError is the exact text surfaced when a sender exceeds its
// request budget. Calling UIs render it verbatim.
const rateLimitError = "Rate limit exceeded"

// LoggingMiddleware records a start marker before the downstream chain and
// a completion marker with the outcome and elapsed time after it.
func LoggingMiddleware(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "router")

	return func(ctx context.Context, msg Message, sender Sender, next Next) (Response, error) {
		log.Info("Routing message", "action", msg.Action, "sender_url", sender.URL)

		start := time.Now()
		resp, err := next()
		elapsed := time.Since(start)

		switch {
		case err != nil:
			log.Error("Routing failed", "action", msg.Action, "elapsed", elapsed, "error", err)
		case !resp.Success:
			log.Info("Routed message", "action", msg.Action, "elapsed", elapsed, "success", false, "error", resp.Error)
		default:
			log.Info("Routed message", "action", msg.Action, "elapsed", elapsed, "success", true)
		}

		return resp, err
	}
}

// ValidationMiddleware short-circuits with a failure response when
// validate rejects the message. A nil return passes the message through.
func ValidationMiddleware(validate func(Message, Sender) error) Middleware {
	return func(ctx context.Context, msg Message, sender Sender, next Next) (Response, error) {
		if err := validate(msg, sender); err != nil {
			return Fail(err.Error()), nil
		}
		return next()
	}
}

type rateWindow struct {
	start time.Time
	count int
}

// RateLimitMiddleware rejects a sender's requests once it has sent more
// than limit messages inside the current fixed window. A window resets
// lazily when the first request after its expiry arrives. Senders are
// keyed by tab id, falling back to extension id, then a shared constant.
func RateLimitMiddleware(limit int, window time.Duration) Middleware {
	return rateLimitMiddleware(limit, window, time.Now)
}

// rateLimitMiddleware takes the clock as a parameter so tests can advance
// time without sleeping.
func rateLimitMiddleware(limit int, window time.Duration, now func() time.Time) Middleware {
	var mu sync.Mutex
	windows := make(map[string]*rateWindow)

	return func(ctx context.Context, msg Message, sender Sender, next Next) (Response, error) {
		key := senderKey(sender)
		current := now()

		mu.Lock()
		w, ok := windows[key]
		if !ok || current.Sub(w.start) >= window {
			w = &rateWindow{start: current}
			windows[key] = w
		}
		w.count++
		exceeded := w.count > limit
		mu.Unlock()

		if exceeded {
			return Fail(rateLimitError), nil
		}
		return next()
	}
}

func senderKey(sender Sender) string {
	if sender.TabID != 0 {
		return "tab:" + strconv.Itoa(sender.TabID)
	}
	if sender.ExtensionID != "" {
		return "ext:" + sender.ExtensionID
	}
	return "global"
}
