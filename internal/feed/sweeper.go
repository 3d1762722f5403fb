package feed

import (
	"context"
	"log/slog"
	"time"

	"basegraph.app/livefeed/common/logger"
)

const DefaultSweepInterval = time.Minute

// Sweeper periodically evicts runs whose terminal retention has elapsed.
type Sweeper struct {
	table    *RunTable
	interval time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(table *RunTable, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		table:     table,
		interval:  interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "livefeed.feed.sweeper",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			if removed := s.table.Sweep(); removed > 0 {
				slog.InfoContext(ctx, "evicted expired runs",
					"count", removed,
					"remaining", s.table.Len())
			}
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
