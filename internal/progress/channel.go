// Package progress fans progress events out to live subscribers.
package progress

import (
	"log/slog"
	"sync"

	"TipsPipeline/internal/domain"
)

// Handler receives one progress event.
type Handler func(domain.ProgressEvent)

type subscription struct {
	id      uint64
	handler Handler
}

// Channel delivers events synchronously, in registration order.
// A panicking handler is recovered and does not affect the others.
type Channel struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
}

// NewChannel builds an empty channel; logger may be nil.
func NewChannel(logger *slog.Logger) *Channel {
	return &Channel{logger: logger}
}

// Subscribe registers h and returns a function that removes it.
func (c *Channel) Subscribe(h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, handler: h})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *Channel) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subs {
		if sub.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every handler registered at call time.
func (c *Channel) Publish(ev domain.ProgressEvent) {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		c.deliver(sub, ev)
	}
}

// Len returns the number of active subscribers.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel) deliver(sub subscription, ev domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Warn("progress subscriber panicked", "subscriber", sub.id, "stage", ev.Stage, "panic", r)
		}
	}()
	sub.handler(ev)
}
