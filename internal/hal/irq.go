package hal

import "context"

// IRQ is a level-style interrupt line. Raising it while it is already
// pending is absorbed, like a hardware pending bit.
type IRQ struct {
	pending chan struct{}
}

// NewIRQ creates a lowered interrupt line.
func NewIRQ() *IRQ {
	return &IRQ{pending: make(chan struct{}, 1)}
}

// Raise marks the line pending. It never blocks.
func (q *IRQ) Raise() {
	select {
	case q.pending <- struct{}{}:
	default:
	}
}

// Wait blocks until the line is raised or ctx is done (wait-for-interrupt),
// and acknowledges the interrupt.
func (q *IRQ) Wait(ctx context.Context) error {
	select {
	case <-q.pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
