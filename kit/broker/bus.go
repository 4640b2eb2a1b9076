package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"storefront/kit/observability"
)

type Event interface {
	Name() string
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) []error
}

type Handler func(ctx context.Context, evt Event) error

var ErrHandlerPanic = errors.New("event handler panicked")

type subscription struct {
	name string
	h    Handler
}

// Bus is a synchronous in-process dispatcher. Handlers run in subscription
// order; one failing or panicking handler never stops the rest.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	logger   *observability.Logger
}

func New(logger *observability.Logger) *Bus {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Bus{handlers: make(map[string][]subscription), logger: logger}
}

// Subscribe registers h for eventName. name identifies the handler in logs.
func (b *Bus) Subscribe(eventName, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], subscription{name: name, h: h})
}

// Topics lists every event name that has at least one subscriber.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for k := range b.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *Bus) Publish(ctx context.Context, evt Event) []error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[evt.Name()]...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := b.dispatch(ctx, s, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *Bus) dispatch(ctx context.Context, s subscription, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("broker handler panic", "layer", "broker", "event", evt.Name(), "handler", s.name, "panic", fmt.Sprint(r))
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, s.name, r)
		}
	}()
	if err := s.h(ctx, evt); err != nil {
		b.logger.Error("broker handler error", "layer", "broker", "event", evt.Name(), "handler", s.name, "error", err.Error())
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
