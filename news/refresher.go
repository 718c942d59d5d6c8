package news

import (
	"context"
	"log/slog"
	"time"
)

// Refresher re-warms a feed on a fixed interval.
type Refresher struct {
	feed     *Feed
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher returns nil when interval disables refreshing.
func NewRefresher(feed *Feed, interval time.Duration, logger *slog.Logger) *Refresher {
	if feed == nil || interval <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{feed: feed, interval: interval, logger: logger}
}

// Run refreshes once immediately and then on every tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if r == nil {
		return
	}
	r.execute(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx)
		}
	}
}

func (r *Refresher) execute(ctx context.Context) {
	items, err := r.feed.Rewarm(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("news refresh", "error", err)
		}
		return
	}
	r.logger.Debug("news refreshed", "items", len(items))
}
