// Package scheduler holds the ready-set ordering policies used by the
// thread pool. Policies see only thread identifiers, never thread state.
package scheduler

import "github.com/me/tickos/pkg/model"

// Scheduler decides which ready thread runs next.
type Scheduler interface {
	// Enqueue inserts tid into the ready ordering.
	Enqueue(tid model.Tid)

	// Dequeue removes and returns the next tid to run.
	Dequeue() (model.Tid, bool)

	// Tick charges one tick of CPU time to the running tid and reports
	// whether its quantum is exhausted.
	Tick(tid model.Tid) bool

	// Remove drops tid from the ready ordering if present and forgets any
	// per-thread accounting.
	Remove(tid model.Tid)

	// Len returns the size of the ready set.
	Len() int
}
