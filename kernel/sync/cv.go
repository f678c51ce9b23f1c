package sync

import (
	"threadsched/internal/list"
	"threadsched/kernel/interrupt"
)

// waiterToken is one CV.Wait call's private rendezvous point: grounded on
// nsync/binary_semaphore.go's "private per-waiter semaphore" plus the
// priority snapshot spec §3 "Condition variable" requires nsync's own CV
// does not carry (nsync.CV wakes in FIFO order only).
type waiterToken struct {
	sem      *Semaphore
	priority int
	hook     list.Hook
}

// CV is a Mesa-semantics condition variable whose waiter list is ordered by
// each waiter's effective priority *at the moment it called Wait* (spec §3,
// §4.4 "Condition variable"). That snapshot is never refreshed, even if
// donation later changes a waiter's priority while it sleeps: condition
// variables do not participate in donation, so there is nothing to
// re-propagate.
type CV struct {
	gate    *interrupt.Gate
	sched   Scheduler
	waiters list.List
}

// NewCV creates an empty condition variable.
func NewCV(sched Scheduler, gate *interrupt.Gate) *CV {
	cv := &CV{sched: sched, gate: gate}
	cv.waiters.Init()
	return cv
}

// Wait releases m, blocks until signaled, and re-acquires m before
// returning. The caller must hold m (spec §4.4 "wait").
func (cv *CV) Wait(m *Mutex) {
	prior := cv.gate.Disable()
	cur := cv.sched.Current()
	w := &waiterToken{
		sem:      NewSemaphore(cv.sched, cv.gate, 0),
		priority: cur.EffectivePriority,
	}
	w.hook = list.NewHook(w)
	cv.waiters.InsertSorted(&w.hook, func(a, b any) bool {
		return a.(*waiterToken).priority > b.(*waiterToken).priority
	})
	cv.gate.Restore(prior)

	m.Release()
	w.sem.Down()
	m.Acquire()
}

// Signal wakes the highest-snapshot-priority waiter, if any (spec §4.4
// "signal"). The caller must hold the associated mutex.
func (cv *CV) Signal() {
	prior := cv.gate.Disable()
	defer cv.gate.Restore(prior)
	if front := cv.waiters.Front(); front != nil {
		w := front.Elem().(*waiterToken)
		list.Remove(front)
		w.sem.Up()
	}
}

// Broadcast wakes every waiter, highest snapshot priority first (spec §4.4
// "broadcast": "repeat signal until empty").
func (cv *CV) Broadcast() {
	for !cv.empty() {
		cv.Signal()
	}
}

func (cv *CV) empty() bool {
	prior := cv.gate.Disable()
	defer cv.gate.Restore(prior)
	return cv.waiters.Empty()
}
