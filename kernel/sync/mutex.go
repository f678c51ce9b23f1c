package sync

import (
	"threadsched/internal/list"
	"threadsched/kernel/interrupt"
	"threadsched/kernel/klog"
	"threadsched/kernel/thread"
)

// Mutex is a non-recursive, owned lock with priority donation (spec §3
// "Mutex", §4.4 "Mutex"). Grounded on nsync/mu.go's waiter-queue shape
// (Unlock wakes exactly one waiter, the new holder assigns itself rather
// than being assigned) and nsync/mu.go's AssertHeld-style contract checks,
// with the donation bookkeeping spec §4.4 describes built directly on top:
// nsync's Mu carries no priority or donor concept at all.
type Mutex struct {
	sched Scheduler
	gate  *interrupt.Gate

	holder  *thread.Thread
	waiters list.List
}

// NewMutex creates an unheld Mutex.
func NewMutex(sched Scheduler, gate *interrupt.Gate) *Mutex {
	m := &Mutex{sched: sched, gate: gate}
	m.waiters.Init()
	return m
}

// Holder returns the thread currently holding m, or nil, satisfying
// thread.LockHandle so a blocked thread's WaitingForLock can reference m
// without kernel/thread importing kernel/sync.
func (m *Mutex) Holder() *thread.Thread {
	return m.holder
}

// Acquire blocks until m is free, then takes it, donating the calling
// thread's effective priority down the holder chain while it waits (spec
// §4.4 "acquire").
func (m *Mutex) Acquire() {
	prior := m.gate.Disable()
	defer m.gate.Restore(prior)

	cur := m.sched.Current()
	if cur == m.holder {
		klog.Fatalf("mutex: %s attempted to re-acquire a mutex it already holds", cur.Name)
		return
	}
	if m.holder == nil {
		m.holder = cur
		return
	}

	cur.WaitingForLock = m
	m.holder.Donors.InsertSorted(&cur.DonorHook, byEffectivePriorityDesc)
	propagateDonation(m.holder)

	m.waiters.InsertSorted(&cur.SchedHook, byEffectivePriorityDesc)
	m.sched.Block()

	cur.WaitingForLock = nil
	m.holder = cur
}

// TryAcquire takes m if it is free and returns true, without donation;
// otherwise returns false immediately (spec §4.4 "try_acquire").
func (m *Mutex) TryAcquire() bool {
	prior := m.gate.Disable()
	defer m.gate.Restore(prior)
	if m.holder != nil {
		return false
	}
	m.holder = m.sched.Current()
	return true
}

// Release gives up m, which the calling thread must currently hold. Donors
// whose donation was on account of m are removed from the holder's donor
// list and its effective priority is recomputed; if a waiter remains, it is
// woken and becomes the new holder (spec §4.4 "release").
func (m *Mutex) Release() {
	prior := m.gate.Disable()
	defer m.gate.Restore(prior)

	cur := m.sched.Current()
	if m.holder != cur {
		klog.Fatalf("mutex: release by %s, which is not the holder", cur.Name)
		return
	}

	removeDonorsFor(cur, m)
	recomputeEffectivePriority(cur)

	m.holder = nil
	if front := m.waiters.Front(); front != nil {
		next := front.Elem().(*thread.Thread)
		list.Remove(front)
		m.sched.Unblock(next)
	}
}

// HeldByCurrent reports whether the calling thread currently holds m.
func (m *Mutex) HeldByCurrent() bool {
	prior := m.gate.Disable()
	defer m.gate.Restore(prior)
	return m.holder == m.sched.Current()
}

// propagateDonation walks the waiting_for_lock -> holder chain starting at
// donee, recomputing each link's effective priority, per spec §4.4 step 2.
// The walk is iterative and unbounded in length; the spec places the burden
// of avoiding lock cycles on callers.
func propagateDonation(donee *thread.Thread) {
	for donee != nil {
		recomputeEffectivePriority(donee)
		if donee.WaitingForLock == nil {
			return
		}
		donee = donee.WaitingForLock.Holder()
	}
}

// recomputeEffectivePriority sets t.EffectivePriority to the max of its base
// priority and its highest donor's effective priority (spec §4.4 "Priority
// recomputation"). The donor list is read in its existing order, which is
// insertion order and is not re-sorted when a donor's own priority later
// changes.
func recomputeEffectivePriority(t *thread.Thread) {
	eff := t.BasePriority
	if front := t.Donors.Front(); front != nil {
		if d := front.Elem().(*thread.Thread); d.EffectivePriority > eff {
			eff = d.EffectivePriority
		}
	}
	t.EffectivePriority = eff
}

// removeDonorsFor removes every donor of t whose WaitingForLock is m, since
// releasing m ends those donations (spec §4.4 "release" step 1).
func removeDonorsFor(t *thread.Thread, m *Mutex) {
	h := t.Donors.Front()
	for h != nil {
		next := t.Donors.Next(h)
		if d := h.Elem().(*thread.Thread); d.WaitingForLock == m {
			list.Remove(h)
		}
		h = next
	}
}
