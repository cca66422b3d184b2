package hal

import (
	"context"
	"fmt"
	"time"
)

// TickFunc is the kernel's timer interrupt handler.
type TickFunc func(now time.Duration)

// TickerConfig controls the host timer interrupt source.
type TickerConfig struct {
	Interval time.Duration
	Ticks    uint64 // stop after N interrupts (0 = run until ctx is done)
}

// RunTicker delivers a timer interrupt every cfg.Interval until ctx is
// done or cfg.Ticks interrupts have been delivered.
func RunTicker(ctx context.Context, clock Clock, cfg TickerConfig, handler TickFunc) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("invalid tick interval: %v", cfg.Interval)
	}
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			handler(clock.Now())
			n++
			if cfg.Ticks > 0 && n >= cfg.Ticks {
				return nil
			}
		}
	}
}
