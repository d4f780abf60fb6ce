package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxSubscribers caps subscriptions per event unless overridden.
// Hitting the cap almost always means an unsubscribe leak, not real fan-out.
const DefaultMaxSubscribers = 128

// ErrTooManySubscribers is returned by On when an event is already at its
// configured subscriber limit.
var ErrTooManySubscribers = errors.New("event bus: too many subscribers")

// Handler receives the payload published for one event occurrence.
type Handler func(ctx context.Context, data any) error

// UnsubscribeFunc removes the subscription it was returned for. Calling it
// more than once is a no-op.
type UnsubscribeFunc func()

// Options tunes one Bus instance.
type Options struct {
	// MaxSubscribers limits subscriptions per event. Zero means
	// DefaultMaxSubscribers; a negative value disables the limit.
	MaxSubscribers int

	// RethrowErrors makes EmitAsync return the joined subscriber errors
	// instead of only logging them.
	RethrowErrors bool

	Logger *slog.Logger
}

// SubscribeOptions controls ordering and lifetime of one subscription.
type SubscribeOptions struct {
	// Priority orders delivery: higher values fire earlier. Equal
	// priorities fire in subscription order.
	Priority int

	// Once removes the subscription after its first delivery.
	Once bool
}

type subscription struct {
	id       uint64
	priority int
	once     bool
	fn       Handler
}

// Bus is a priority-ordered publish/subscribe dispatcher for in-process
// notifications. Delivery for one Emit runs against a snapshot of the
// subscriber list taken at call time, so subscriptions added mid-dispatch
// only see later emissions.
type Bus struct {
	maxSubscribers int
	rethrow        bool
	log            *slog.Logger

	mu     sync.Mutex
	events map[string][]subscription
	nextID uint64
}

// New creates a Bus with the given options.
func New(opts Options) *Bus {
	maxSubscribers := opts.MaxSubscribers
	if maxSubscribers == 0 {
		maxSubscribers = DefaultMaxSubscribers
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Bus{
		maxSubscribers: maxSubscribers,
		rethrow:        opts.RethrowErrors,
		log:            log.With("component", "eventbus"),
		events:         make(map[string][]subscription),
	}
}

// On subscribes handler to event and returns the matching unsubscribe
// function. Subscriptions are delivered in descending priority order with
// FIFO ordering among equal priorities.
func (b *Bus) On(event string, handler Handler, opts SubscribeOptions) (UnsubscribeFunc, error) {
	if event == "" {
		return nil, errors.New("event bus: event name is required")
	}
	if handler == nil {
		return nil, errors.New("event bus: handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.events[event]
	if b.maxSubscribers > 0 && len(subs) >= b.maxSubscribers {
		return nil, fmt.Errorf("%w: event %q already has %d subscribers", ErrTooManySubscribers, event, len(subs))
	}

	b.nextID++
	sub := subscription{
		id:       b.nextID,
		priority: opts.Priority,
		once:     opts.Once,
		fn:       handler,
	}

	// Insert after the last subscription of greater-or-equal priority so
	// equal priorities keep subscription order.
	at := len(subs)
	for i, existing := range subs {
		if existing.priority < sub.priority {
			at = i
			break
		}
	}
	subs = append(subs, subscription{})
	copy(subs[at+1:], subs[at:])
	subs[at] = sub
	b.events[event] = subs

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.remove(event, sub.id)
		})
	}

	return unsubscribe, nil
}

// Once subscribes handler for a single delivery at default priority.
func (b *Bus) Once(event string, handler Handler) (UnsubscribeFunc, error) {
	return b.On(event, handler, SubscribeOptions{Once: true})
}

// Emit delivers data to every current subscriber of event, one at a time in
// priority order. Subscriber errors and panics are logged and never stop the
// remaining subscribers or escape to the caller.
func (b *Bus) Emit(ctx context.Context, event string, data any) {
	for _, sub := range b.snapshot(event, true) {
		if err := b.invoke(ctx, sub, data); err != nil {
			b.log.Error("Event subscriber failed", "event", event, "error", err)
		}
	}
}

// EmitAsync delivers data to every current subscriber of event concurrently
// and returns once all of them have settled. One subscriber failing never
// blocks the others. By default failures are logged and EmitAsync returns
// nil; with RethrowErrors set it returns the joined failures.
func (b *Bus) EmitAsync(ctx context.Context, event string, data any) error {
	subs := b.snapshot(event, true)
	if len(subs) == 0 {
		return nil
	}

	errs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.invoke(ctx, sub, data)
		}()
	}
	wg.Wait()

	joined := errors.Join(errs...)
	if joined == nil {
		return nil
	}
	if b.rethrow {
		return joined
	}

	b.log.Error("Event subscribers failed", "event", event, "error", joined)
	return nil
}

// HasSubscribers reports whether event currently has any subscription.
func (b *Bus) HasSubscribers(event string) bool {
	return b.SubscriberCount(event) > 0
}

// SubscriberCount returns the number of current subscriptions for event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events[event])
}

// ClearEvent drops every subscription for event.
func (b *Bus) ClearEvent(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, event)
}

// Clear drops every subscription for every event.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]subscription)
}

// snapshot copies the current subscriber list for event. With dropOnce set
// it also removes once-subscriptions so they cannot fire a second time, even
// if the same event is emitted again before dispatch finishes.
func (b *Bus) snapshot(event string, dropOnce bool) []subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.events[event]
	if len(subs) == 0 {
		return nil
	}

	out := make([]subscription, len(subs))
	copy(out, subs)

	if dropOnce {
		kept := subs[:0]
		for _, sub := range subs {
			if !sub.once {
				kept = append(kept, sub)
			}
		}
		if len(kept) == 0 {
			delete(b.events, event)
		} else {
			b.events[event] = kept
		}
	}

	return out
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.events[event]
	for i, sub := range subs {
		if sub.id == id {
			b.events[event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) invoke(ctx context.Context, sub subscription, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()

	return sub.fn(ctx, data)
}
