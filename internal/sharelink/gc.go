package sharelink

import (
	"context"
	"log"
	"time"
)

type Clock func() time.Time

// Collector periodically deletes expired share links. It runs out-of-band
// from request handling and never blocks retrieval.
type Collector struct {
	store    Store
	interval time.Duration
	now      Clock
}

func NewCollector(store Store, interval time.Duration, now Clock) *Collector {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Collector{store: store, interval: interval, now: now}
}

// Run sweeps on every tick until ctx is cancelled. Sweep errors are logged
// and retried on the next tick; the loop never exits on its own.
func (c *Collector) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.SweepOnce(ctx)
			if err != nil {
				log.Printf("sharelink gc: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sharelink gc: removed %d expired link(s)", n)
			}
		}
	}
}

// SweepOnce runs a single sweep. Idempotent.
func (c *Collector) SweepOnce(ctx context.Context) (int64, error) {
	return c.store.SweepExpired(ctx, c.now())
}
