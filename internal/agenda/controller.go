package agenda

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/model"
)

// State is what a view renders: the latest applied snapshot, or the error
// from the latest applied run.
type State struct {
	Snapshot model.Snapshot
	Err      error
}

// Config wires a Controller.
type Config struct {
	Feed     changefeed.Feed
	Runner   Runner
	UserID   string
	Month    time.Time
	Clock    func() time.Time
	Debounce time.Duration
	OnUpdate func(State)
	Logger   *slog.Logger
}

// Controller keeps one user's agenda in step with the change feed. Every
// trigger starts a full pipeline run; runs are numbered and a result is
// applied only if no newer run has been applied already.
type Controller struct {
	feed     changefeed.Feed
	runner   Runner
	userID   string
	clock    func() time.Time
	debounce time.Duration
	onUpdate func(State)
	logger   *slog.Logger

	mu      sync.Mutex
	month   time.Time
	state   State
	started uint64
	applied uint64
	active  bool
	subs    []*changefeed.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *time.Timer

	deliverMu sync.Mutex
	delivered uint64

	wg sync.WaitGroup
}

func NewController(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		feed:     cfg.Feed,
		runner:   cfg.Runner,
		userID:   cfg.UserID,
		clock:    clock,
		debounce: cfg.Debounce,
		onUpdate: cfg.OnUpdate,
		logger:   logger.With("user_id", cfg.UserID),
		month:    cfg.Month,
	}
}

// Activate subscribes to the events and participants tables and starts the
// initial run. Calling it on an active controller does nothing.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}

	var subs []*changefeed.Subscription
	for _, table := range []string{changefeed.TableEvents, changefeed.TableParticipants} {
		sub, err := c.feed.Subscribe(table, c.onChange)
		if err != nil {
			for _, s := range subs {
				c.feed.Unsubscribe(s)
			}
			c.mu.Unlock()
			return fmt.Errorf("subscribe %s: %w", table, err)
		}
		subs = append(subs, sub)
	}

	c.subs = subs
	c.active = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.Debug("agenda controller activated")
	c.Refresh()
	return nil
}

// Deactivate releases both subscriptions. Runs still in flight finish but
// their results are discarded, and OnUpdate is not called after Deactivate
// returns. It is safe to call more than once.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	subs := c.subs
	c.subs = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
	c.mu.Unlock()

	for _, s := range subs {
		c.feed.Unsubscribe(s)
	}

	// Wait out a delivery that already passed the active check.
	c.deliverMu.Lock()
	c.deliverMu.Unlock()

	c.logger.Debug("agenda controller deactivated")
}

// SetMonth selects a new month and recomputes.
func (c *Controller) SetMonth(month time.Time) {
	c.mu.Lock()
	c.month = month
	c.mu.Unlock()
	c.Refresh()
}

// Refresh starts a full pipeline run immediately.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.started++
	run := c.started
	month := c.month
	ctx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx, run, month)
}

// State returns the latest applied state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until every started run has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) onChange(ch changefeed.Change) {
	c.logger.Debug("change received", "table", ch.Table, "action", ch.Action, "id", ch.ID)

	if c.debounce <= 0 {
		c.Refresh()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		c.Refresh()
	})
}

func (c *Controller) run(ctx context.Context, run uint64, month time.Time) {
	defer c.wg.Done()

	snap, err := c.runner.Run(ctx, c.userID, month, c.clock())
	if err != nil {
		snap = model.Snapshot{Month: month.Format(MonthLayout)}
	}
	snap.Run = run

	c.mu.Lock()
	if !c.active || run <= c.applied {
		c.mu.Unlock()
		c.logger.Debug("discarding stale agenda run", "run", run)
		return
	}
	c.applied = run
	c.state = State{Snapshot: snap, Err: err}
	st := c.state
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("agenda refresh failed", "run", run, "error", err)
	}

	c.deliver(st)
}

func (c *Controller) deliver(st State) {
	if c.onUpdate == nil {
		return
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if !active || st.Snapshot.Run <= c.delivered {
		return
	}
	c.delivered = st.Snapshot.Run
	c.onUpdate(st)
}
