// Package eventbus is an in-process publish/subscribe registry keyed by topic.
//
// Delivery is synchronous: Publish runs every handler on the caller's goroutine,
// in registration order, before returning.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives a published payload. A returned error is logged and does
// not stop delivery to the remaining handlers.
type Handler func(ctx context.Context, payload any) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is safe for concurrent use. The zero value is not usable, use New.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	nextID uint64
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscription),
		log:    log.With().Str("component", "eventbus").Logger(),
	}
}

// Subscribe registers handler under topic and returns a func that removes
// exactly this registration. Calling it more than once is a no-op.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

// SubscribeFunc is Subscribe for handlers that cannot fail.
func (b *Bus) SubscribeFunc(topic string, fn func(ctx context.Context, payload any)) (unsubscribe func()) {
	return b.Subscribe(topic, func(ctx context.Context, payload any) error {
		fn(ctx, payload)
		return nil
	})
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// Copy instead of shifting in place: a Publish in progress holds the old slice.
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.topics, topic)
		} else {
			b.topics[topic] = next
		}
		return
	}
}

// Publish delivers payload to every handler registered for topic at the time
// of the call. Handlers added or removed during delivery take effect on the
// next Publish.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	b.mu.RLock()
	subs := b.topics[topic]
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.invoke(ctx, s.handler, payload); err != nil {
			b.log.Error().
				Err(err).
				Str("topic", topic).
				Uint64("subscription", s.id).
				Msg("Event handler failed")
		}
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}

// HandlerCount returns the number of handlers registered for topic.
func (b *Bus) HandlerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Topics returns the topics that currently have at least one handler.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.topics))
	for t := range b.topics {
		out = append(out, t)
	}
	return out
}
