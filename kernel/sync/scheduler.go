// Package sync implements the blocking synchronization primitives spec §4.4
// names: Semaphore, a donation-aware Mutex, and a Mesa-semantics condition
// variable. The waiter-list shape and the split into one file per primitive
// are grounded on nsync/mu.go, nsync/cv.go, nsync/binary_semaphore.go and
// nsync/waiter.go; the lock-free CAS/spinloop machinery in those files is not
// reused, since this kernel is single-CPU and already serializes every
// scheduler-visible mutation through a single kernel/interrupt.Gate.
package sync

import "threadsched/kernel/thread"

// Scheduler is the subset of the scheduler core these primitives need:
// finding the running thread, and parking/unparking threads. Depending on
// this narrow interface rather than importing kernel/sched directly avoids a
// cycle, since kernel/sched in turn needs the waiter-list behavior this
// package provides. The pattern mirrors nsync.CV.Wait, which takes a
// sync.Locker interface instead of a concrete *nsync.Mu precisely so a CV can
// be used with whatever lock implementation the caller has.
type Scheduler interface {
	// Current returns the thread presently holding the CPU.
	Current() *thread.Thread
	// Block marks the calling thread thread.Blocked (the caller has
	// already linked it into its own waiter list) and suspends it until
	// a matching Unblock(current) call makes it runnable again. Must be
	// called with the interrupt.Gate held.
	Block()
	// Unblock marks t thread.Ready and links it into the ReadyQueue,
	// making it eligible to run again; it may preempt the calling
	// thread. Must be called with the interrupt.Gate held.
	Unblock(t *thread.Thread)
}
