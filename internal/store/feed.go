package store

import (
	"context"
	"log/slog"

	"github.com/dukerupert/huddle/internal/changefeed"
)

// publish announces a committed write. The write has already happened, so a
// feed failure is logged and otherwise ignored; watchers resync on their
// next full refresh.
func publish(ctx context.Context, feed changefeed.Publisher, c changefeed.Change) {
	if feed == nil {
		return
	}
	if err := feed.Publish(context.WithoutCancel(ctx), c); err != nil {
		slog.Warn("publish change", "table", c.Table, "action", c.Action, "id", c.ID, "error", err)
	}
}
