// Package analytics ships search events to Kafka off the request path.
package analytics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/kafka"
)

const defaultBufferSize = 10000

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events and publishes them from a single goroutine.
// Track never blocks; events are dropped when the buffer is full.
type Collector struct {
	publisher Publisher
	eventCh   chan SearchEvent
	logger    *slog.Logger
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewCollector(publisher Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan SearchEvent, bufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publishing goroutine. It stops when Close is called
// or ctx is cancelled; buffered events are flushed either way.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case ev, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, ev)
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(ev SearchEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	ev.Classify()
	select {
	case c.eventCh <- ev:
	default:
		c.logger.Warn("analytics event dropped, buffer full")
	}
}

// Close stops accepting events and waits for the buffer to be published.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) drain() {
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (c *Collector) publish(ctx context.Context, ev SearchEvent) {
	if err := c.publisher.Publish(ctx, kafka.Event{Key: ev.Index, Value: ev}); err != nil {
		c.logger.Error("failed to publish analytics event", "request_id", ev.RequestID, "error", err)
	}
}
