package engine

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically closes auctions whose deadline has passed, independent
// of bidding activity. Closure lags the real deadline by at most one interval.
type Sweeper struct {
	auctioneer *Auctioneer
	interval   time.Duration
}

// NewSweeper creates a sweeper driving the given engine.
func NewSweeper(a *Auctioneer, interval time.Duration) *Sweeper {
	return &Sweeper{auctioneer: a, interval: interval}
}

// Run sweeps on a fixed interval until the context is cancelled. Meant to be
// run in its own goroutine, owned by the process-wide lifecycle.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("lifecycle sweeper started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("lifecycle sweeper stopping...")
			return
		case <-ticker.C:
			if closed := s.auctioneer.CloseExpiredAuctions(); closed > 0 {
				slog.Info("closed expired auctions", slog.Int("count", closed))
			}
		}
	}
}
