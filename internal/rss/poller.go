package rss

import (
	"context"
	"log/slog"
	"time"
)

// Poller runs a refresh cycle on a fixed interval.
type Poller struct {
	refresher *Refresher
	interval  time.Duration
	timeout   time.Duration
	log       *slog.Logger
}

// NewPoller creates a background poller. Each cycle is bounded by timeout.
func NewPoller(r *Refresher, interval, timeout time.Duration, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{refresher: r, interval: interval, timeout: timeout, log: log}
}

// Run refreshes immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if _, err := p.refresher.RefreshAll(ctx); err != nil {
		p.log.ErrorContext(ctx, "poller refresh failed", "error", err)
	}
}
