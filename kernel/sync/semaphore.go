package sync

import (
	"threadsched/internal/list"
	"threadsched/kernel/interrupt"
	"threadsched/kernel/thread"
)

// Semaphore is a counting semaphore with an effective-priority-ordered
// waiter list (spec §3 "Semaphore", §4.4). Grounded on
// nsync/binary_semaphore.go's "private per-waiter semaphore" idea, generalized
// back to a counting value since this package's Mutex and CV build their own
// ordering on top rather than relying on the semaphore's value semantics for
// it.
type Semaphore struct {
	sched Scheduler
	gate  *interrupt.Gate

	value   int
	waiters list.List
}

// NewSemaphore creates a Semaphore with the given initial value.
func NewSemaphore(sched Scheduler, gate *interrupt.Gate, value int) *Semaphore {
	s := &Semaphore{sched: sched, gate: gate, value: value}
	s.waiters.Init()
	return s
}

// Down blocks until the semaphore's value is positive, then decrements it
// (spec §4.4 "down").
func (s *Semaphore) Down() {
	prior := s.gate.Disable()
	defer s.gate.Restore(prior)
	for s.value == 0 {
		cur := s.sched.Current()
		s.waiters.InsertSorted(&cur.SchedHook, byEffectivePriorityDesc)
		s.sched.Block()
	}
	s.value--
}

// TryDown decrements and returns true if the value is positive without
// blocking, otherwise returns false unchanged (spec §4.4 "try_down").
func (s *Semaphore) TryDown() bool {
	prior := s.gate.Disable()
	defer s.gate.Restore(prior)
	if s.value > 0 {
		s.value--
		return true
	}
	return false
}

// Up increments the value, then, if any thread is waiting, wakes the one
// with the highest effective priority (earliest inserted among ties). The
// increment happens before the wakeup (spec §4.4 "up").
func (s *Semaphore) Up() {
	prior := s.gate.Disable()
	defer s.gate.Restore(prior)
	s.value++
	if front := s.waiters.Front(); front != nil {
		next := front.Elem().(*thread.Thread)
		list.Remove(front)
		s.sched.Unblock(next)
	}
}
