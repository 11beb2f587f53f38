// Package event provides a small in-process publish/subscribe bus.
//
// Delivery is best effort: a subscriber that falls behind its buffer drops
// events rather than blocking publishers.
package event

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultSubscriberBufferSize = 64

type BusOptions struct {
	Name                 string
	SubscriberBufferSize int
	MaxSubscribers       int
}

type subscription[T any] struct {
	id     uint64
	ch     chan T
	filter func(T) bool
}

type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextSubID   uint64
	closed      bool
	closeOnce   sync.Once
	options     BusOptions
	published   atomic.Uint64
	dropped     atomic.Uint64
}

func NewBus[T any](ctx context.Context, opts BusOptions) *Bus[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.SubscriberBufferSize <= 0 {
		opts.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	bus := &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     opts,
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			bus.Close()
		}()
	}
	return bus
}

// Subscribe registers a subscriber. The cancel function unregisters it and
// closes the returned channel.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	return b.SubscribeFiltered(nil)
}

func (b *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	if b == nil {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan T, b.options.SubscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.options.MaxSubscribers > 0 && len(b.subscribers) >= b.options.MaxSubscribers {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[id] = subscription[T]{id: id, ch: ch, filter: filter}
	b.mu.Unlock()

	return ch, func() {
		b.removeSubscriber(id)
	}
}

func (b *Bus[T]) Publish(event T) {
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subscribers := make([]subscription[T], 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subscribers = append(subscribers, sub)
	}
	b.mu.Unlock()

	b.published.Add(1)
	for _, sub := range subscribers {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		b.send(sub, event)
	}
}

func (b *Bus[T]) send(sub subscription[T], event T) {
	defer func() {
		// The channel may close while a publish is in flight.
		if recover() != nil {
			b.dropped.Add(1)
		}
	}()
	select {
	case sub.ch <- event:
	default:
		b.dropped.Add(1)
	}
}

func (b *Bus[T]) removeSubscriber(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Close shuts the bus down and closes all subscriber channels. Safe to call
// more than once.
func (b *Bus[T]) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		subscribers := b.subscribers
		b.subscribers = make(map[uint64]subscription[T])
		b.mu.Unlock()

		for _, sub := range subscribers {
			close(sub.ch)
		}
	})
}

func (b *Bus[T]) NumSubscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Bus[T]) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
