package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
)

const channelPrefix = "huddle:changes:"

// RedisFeed is a Feed backed by Redis pub/sub, for deployments where writes
// and watchers live in different processes.
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*redisSub
	nextID uint64
	closed bool
}

type redisSub struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisFeed connects to the Redis server at url (redis://host:port/db).
func NewRedisFeed(ctx context.Context, url string, logger *slog.Logger) (*RedisFeed, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisFeedFromClient(client, logger), nil
}

// NewRedisFeedFromClient wraps an existing client. The feed takes ownership
// and closes the client on Close.
func NewRedisFeedFromClient(client *redis.Client, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{
		client: client,
		logger: logger,
		subs:   make(map[uint64]*redisSub),
	}
}

func channelFor(table string) string {
	return channelPrefix + table
}

// Subscribe opens a dedicated pub/sub connection for table. It returns once
// Redis has confirmed the subscription.
func (f *RedisFeed) Subscribe(table string, fn Handler) (*Subscription, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	ps := f.client.Subscribe(ctx, channelFor(table))
	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		ps.Close()
		return nil, ErrClosed
	}
	f.subs[id] = &redisSub{ps: ps, cancel: cancel}
	f.mu.Unlock()

	sub := newSubscription(id, table)
	sub.cancel = func() { f.remove(id) }

	go f.receive(ctx, sub, ps, fn)

	return sub, nil
}

const receiveBuffer = 100

func (f *RedisFeed) receive(ctx context.Context, sub *Subscription, ps *redis.PubSub, fn Handler) {
	ch := ps.ChannelWithSubscriptions(ctx, receiveBuffer)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					f.logger.Warn("change feed transport closed", "table", sub.table, "error", ErrSubscriptionLost)
				}
				return
			}
			switch msg := v.(type) {
			case *redis.Subscription:
				// The initial confirmation was consumed in Subscribe, so any
				// later one follows a reconnect.
				if msg.Kind != "subscribe" {
					continue
				}
				f.logger.Warn("change feed resubscribed", "table", sub.table, "error", ErrSubscriptionLost)
				fn(NewChange(sub.table, ActionResync, ""))
			case *redis.Message:
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					f.logger.Warn("decode change", "table", sub.table, "error", err)
					continue
				}
				fn(c)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Unsubscribe closes the pub/sub connection behind sub.
func (f *RedisFeed) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Close()
	}
}

func (f *RedisFeed) remove(id uint64) {
	f.mu.Lock()
	rs, ok := f.subs[id]
	delete(f.subs, id)
	f.mu.Unlock()

	if ok {
		rs.cancel()
		if err := rs.ps.Close(); err != nil {
			f.logger.Debug("close pubsub", "error", err)
		}
	}
}

// Publish sends c to every process subscribed to c.Table.
func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, channelFor(c.Table), data).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Close releases every subscription and the underlying client.
func (f *RedisFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[uint64]*redisSub)
	f.mu.Unlock()

	for _, rs := range subs {
		rs.cancel()
		rs.ps.Close()
	}
	return f.client.Close()
}

// SubscriptionCount returns the number of live subscriptions.
func (f *RedisFeed) SubscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
