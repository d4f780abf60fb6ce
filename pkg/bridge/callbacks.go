package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"wordbridge/pkg/router"
)

const (
	// DefaultMaxPending bounds the correlation table; a reply that never
	// arrives must not grow it forever.
	DefaultMaxPending = 256

	// DefaultCallbackTTL is how long an entry waits for its reply.
	DefaultCallbackTTL = 30 * time.Second
)

// ErrTooManyPending is returned by Register when the table is full even
// after dropping expired entries.
var ErrTooManyPending = errors.New("bridge: too many pending callbacks")

type pendingCallback struct {
	deliver func(id string, resp router.Response)
	expires time.Time
}

// CallbackTable correlates out-of-band replies with their requesters using
// UUID ids. Entries expire after a TTL and the table is bounded, so a
// sandbox context that never answers cannot leak memory.
type CallbackTable struct {
	max int
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]pendingCallback
}

// NewCallbackTable creates a table holding at most max entries for at most
// ttl each. Zero values select the defaults.
func NewCallbackTable(max int, ttl time.Duration) *CallbackTable {
	if max <= 0 {
		max = DefaultMaxPending
	}
	if ttl <= 0 {
		ttl = DefaultCallbackTTL
	}

	return &CallbackTable{
		max:     max,
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]pendingCallback),
	}
}

// Register stores deliver and returns the correlation id a reply must
// carry to reach it. The id is passed back into deliver so the callback
// never has to capture it before Register returns.
func (t *CallbackTable) Register(deliver func(id string, resp router.Response)) (string, error) {
	if deliver == nil {
		return "", errors.New("bridge: nil callback")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked()
	if len(t.pending) >= t.max {
		return "", fmt.Errorf("%w: %d entries", ErrTooManyPending, len(t.pending))
	}

	id := uuid.NewString()
	t.pending[id] = pendingCallback{
		deliver: deliver,
		expires: t.now().Add(t.ttl),
	}
	return id, nil
}

// Complete hands resp to the callback registered under id, removing the
// entry. It reports whether a live entry was found.
func (t *CallbackTable) Complete(id string, resp router.Response) bool {
	t.mu.Lock()
	entry, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok || t.now().After(entry.expires) {
		return false
	}

	entry.deliver(id, resp)
	return true
}

// Len returns the number of live entries, dropping expired ones first.
func (t *CallbackTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()
	return len(t.pending)
}

func (t *CallbackTable) sweepLocked() {
	now := t.now()
	for id, entry := range t.pending {
		if now.After(entry.expires) {
			delete(t.pending, id)
		}
	}
}
