package changefeed

import (
	"context"
	"log/slog"
	"sync"
)

const queueSize = 16

type subscriber struct {
	sub   *Subscription
	fn    Handler
	queue chan Change
}

// Broker is an in-process Feed. Each subscription gets a buffered queue and
// its own delivery goroutine, so a slow handler never blocks publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
	logger *slog.Logger
}

// NewBroker creates an empty Broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[uint64]*subscriber),
		logger: logger,
	}
}

// Subscribe registers fn for changes on table.
func (b *Broker) Subscribe(table string, fn Handler) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	s := &subscriber{
		sub:   newSubscription(b.nextID, table),
		fn:    fn,
		queue: make(chan Change, queueSize),
	}
	s.sub.cancel = func() { b.remove(s.sub.id) }
	b.subs[s.sub.id] = s

	go s.deliver()

	return s.sub, nil
}

func (s *subscriber) deliver() {
	for c := range s.queue {
		s.fn(c)
	}
}

// Unsubscribe stops delivery to sub and releases its goroutine.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Close()
	}
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.queue)
	}
	b.mu.Unlock()
}

// Publish fans c out to every subscription on c.Table.
func (b *Broker) Publish(ctx context.Context, c Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for _, s := range b.subs {
		if s.sub.table != c.Table {
			continue
		}
		select {
		case s.queue <- c:
		default:
			// Queue full: a pending change already forces a refresh.
			b.logger.Debug("change dropped", "table", c.Table, "subscription", s.sub.id)
		}
	}
	return nil
}

// Close drops every subscription and rejects further use.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.queue)
	}
	return nil
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Broker) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
