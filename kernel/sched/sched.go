// Package sched is the scheduler core: ReadyQueue, SleepQueue, the
// reschedule protocol, thread lifecycle, and the tick path that drives
// sleep wakeups, time-slice preemption, and (when enabled) MLFQS
// recomputation (spec §4.1, §4.2, §8 property 11).
//
// Grounded on toysched/step7/toysched7.go's run-queue/park-unpark loop
// (P.RunQ, M.scheduleOnce): that file's multi-P/work-stealing machinery is
// replaced with a single ReadyQueue (the spec's Non-goal "multiprocessor
// scheduling"), and "parking" a thread's goroutine is generalized from its
// ad hoc blockChan into kernel/thread's Resume/WakeCPU baton, shared with
// kernel/sync's blocking primitives.
package sched

import (
	"errors"
	"time"

	"threadsched/internal/list"
	"threadsched/internal/liveset"
	"threadsched/kernel/config"
	"threadsched/kernel/interrupt"
	"threadsched/kernel/klog"
	"threadsched/kernel/mlfqs"
	syncprim "threadsched/kernel/sync"
	"threadsched/kernel/thread"
)

// Kernel is the scheduler core. It implements sync.Scheduler so that
// kernel/sync's Semaphore, Mutex, and CV can block and unblock through it
// without kernel/sync importing kernel/sched.
type Kernel struct {
	gate *interrupt.Gate
	tbl  *thread.Table
	cfg  config.Config

	ready list.List
	sleep list.List

	// destroy holds the thread that died on the *previous* reschedule;
	// it is freed at the start of the *next* one, which is the only
	// point at which its stack is guaranteed to no longer be the active
	// one (spec §5 "Shared resources", §9 "Deferred destruction").
	destroy []*thread.Thread

	idle *thread.Thread

	ticks       uint64
	threadTicks int

	mlfqsEngine *mlfqs.Engine
	live        *liveset.Set[*thread.Thread]

	// aliveThreads counts every thread that exists but has not yet
	// exited (idle, boot's "main", and every Created thread), checked
	// against cfg.MaxThreads in Create (spec §7 "Resource exhaustion").
	aliveThreads int
}

// ErrResourceExhausted is returned by Create when cfg.MaxThreads live
// threads already exist (spec §7: "Resource exhaustion (create when no
// page is available): surfaced as a sentinel id value (TID_ERROR); the
// caller recovers"). Go has no analogue of a sentinel id, so the sentinel
// is this error value paired with a nil *thread.Thread.
var ErrResourceExhausted = errors.New("sched: thread table exhausted (TID_ERROR)")

// New creates a Kernel with its idle thread allocated (Blocked, its
// goroutine parked until first dispatched), but no "main" thread yet;
// callers must call Boot before Create or Tick.
func New(cfg config.Config) *Kernel {
	k := &Kernel{gate: &interrupt.Gate{}, tbl: thread.New(), cfg: cfg}
	k.ready.Init()
	k.sleep.Init()
	if cfg.MLFQS {
		k.mlfqsEngine = mlfqs.New(cfg.TimerFreq)
		k.live = liveset.New[*thread.Thread]()
	}

	k.idle = k.tbl.Alloc("idle", config.PriMin, func(any) {
		for {
			k.Block()
		}
	}, nil)
	k.idle.State = thread.Blocked
	k.aliveThreads = 1
	go func() {
		k.idle.Resume()
		k.idle.Entry()
	}()
	return k
}

// Gate returns the Kernel's interrupt gate, for wiring kernel/sync
// primitives (NewMutex, NewSemaphore, NewCV below do this already; exposed
// for callers that construct primitives directly).
func (k *Kernel) Gate() *interrupt.Gate { return k.gate }

// NewMutex creates a Mutex served by this Kernel.
func (k *Kernel) NewMutex() *syncprim.Mutex { return syncprim.NewMutex(k, k.gate) }

// NewSemaphore creates a Semaphore served by this Kernel.
func (k *Kernel) NewSemaphore(value int) *syncprim.Semaphore {
	return syncprim.NewSemaphore(k, k.gate, value)
}

// NewCV creates a condition variable served by this Kernel.
func (k *Kernel) NewCV() *syncprim.CV { return syncprim.NewCV(k, k.gate) }

// Boot installs the calling goroutine as the first ("main") thread and
// immediately runs fn on it, exactly as a kernel's boot sequence simply
// starts running rather than having been dispatched from a park (spec §2
// "ThreadTable... holds the currently running thread").
func (k *Kernel) Boot(name string, priority int, fn func()) {
	prior := k.gate.Disable()
	t := k.tbl.Alloc(name, priority, func(any) {}, nil)
	t.State = thread.Running
	k.tbl.SetCurrent(t)
	k.aliveThreads++
	if k.live != nil {
		k.live.Add(t)
	}
	k.gate.Restore(prior)
	fn()
}

// Create allocates a new thread in state Ready and starts its goroutine
// parked awaiting first dispatch, then performs the "initial unblock" spec
// §3's lifecycle describes (Created -> Ready), which may preempt the
// calling thread immediately if the new thread outranks it. Returns
// ErrResourceExhausted (a nil thread paired with a non-nil error, this
// simulation's equivalent of pintos's TID_ERROR) once cfg.MaxThreads live
// threads already exist (spec §7 "Resource exhaustion").
//
// Under MLFQS, the new thread inherits nice and recent_cpu from the
// creating thread rather than starting at the zero value Table.Alloc
// gives every thread — the same special case pintos's init_thread makes
// for every thread except the very first (initial_thread), which is
// created directly by New/Boot rather than by Create and so never goes
// through this inheritance step.
func (k *Kernel) Create(name string, priority int, entry func(arg any), arg any) (*thread.Thread, error) {
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)

	if k.cfg.MaxThreads > 0 && k.aliveThreads >= k.cfg.MaxThreads {
		return nil, ErrResourceExhausted
	}

	t := k.tbl.Alloc(name, priority, entry, arg)
	if k.cfg.MLFQS {
		if parent := k.tbl.Current(); parent != nil {
			t.MLFQS = parent.MLFQS
			t.EffectivePriority = mlfqs.PriorityFor(t.MLFQS.RecentCPU, t.MLFQS.Nice)
		}
	}
	k.aliveThreads++
	if k.live != nil {
		k.live.Add(t)
	}
	go func() {
		t.Resume()
		t.Entry()
		k.exit(t)
	}()
	k.unblockLocked(t)
	return t, nil
}

// Current returns the running thread, checking its stack-sentinel as spec
// §7 requires ("stack-overflow detection... fatal on next current()").
func (k *Kernel) Current() *thread.Thread {
	cur := k.tbl.Current()
	cur.CheckMagic(klog.Fatalf)
	return cur
}

// Block implements sync.Scheduler. The caller must already hold the Gate
// and have linked the current thread into whatever wait list is
// appropriate; Block only marks the thread Blocked and reschedules (spec
// §4.1 "block").
func (k *Kernel) Block() {
	if k.gate.InInterruptContext() {
		klog.Fatalf("sched: block called from interrupt context")
		return
	}
	k.tbl.Current().State = thread.Blocked
	k.reschedule()
}

// Unblock implements sync.Scheduler (spec §4.1 "unblock"). The caller must
// already hold the Gate, and t must be Blocked; unblocking a thread in any
// other state is a fatal contract violation.
func (k *Kernel) Unblock(t *thread.Thread) {
	if t.State != thread.Blocked {
		klog.Fatalf("sched: unblock of thread %d in state %v", t.ID, t.State)
		return
	}
	k.unblockLocked(t)
}

// Yield puts the current thread back onto the ReadyQueue and reschedules.
// Callable only outside interrupt context (spec §4.1 "yield").
func (k *Kernel) Yield() {
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)
	if k.gate.InInterruptContext() {
		klog.Fatalf("sched: yield called from interrupt context")
		return
	}
	k.yieldLocked()
}

// CheckPreempt honors a deferred-yield request set either by the tick
// path's time-slice expiry or by an unblock that happened during interrupt
// context (spec §4.1 "Preemption on unblock"). In the absence of a real
// hardware interrupt-return hook, thread bodies call this at loop heads to
// stand in for it (recorded in DESIGN.md as the one place this simulation
// diverges from the literal hardware model).
func (k *Kernel) CheckPreempt() {
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)
	if k.gate.TakeYieldRequest() {
		k.yieldLocked()
	}
}

// exit transitions the calling thread to Dying and reschedules away from
// it for the last time (spec §4.1 "exit").
func (k *Kernel) exit(t *thread.Thread) {
	k.gate.Disable()
	t.State = thread.Dying
	k.aliveThreads--
	if k.live != nil {
		k.live.Remove(t)
	}
	k.reschedule()
	// Unreachable: reschedule never resumes a Dying thread. The Gate is
	// released by whichever thread resumes next, from its own
	// Disable/Restore call frame -- never from here.
}

// unblockLocked assumes the Gate is already held.
func (k *Kernel) unblockLocked(t *thread.Thread) {
	t.State = thread.Ready
	k.ready.InsertSorted(&t.SchedHook, byEffectivePriorityDesc)

	cur := k.tbl.Current()
	if cur == nil || cur == k.idle || t.EffectivePriority <= cur.EffectivePriority {
		return
	}
	if k.gate.InInterruptContext() {
		k.gate.RequestYieldOnReturn()
	} else {
		k.yieldLocked()
	}
}

// yieldLocked assumes the Gate is already held.
func (k *Kernel) yieldLocked() {
	cur := k.tbl.Current()
	if cur != k.idle {
		cur.State = thread.Ready
		k.ready.InsertSorted(&cur.SchedHook, byEffectivePriorityDesc)
	}
	k.reschedule()
}

// selectNextLocked implements spec §4.1 "Selection": the highest-
// effective-priority Ready thread, ties broken by queue order, or idle if
// none is ready.
//
// This scans the whole ReadyQueue rather than trusting Front(), because a
// Ready thread's effective priority can rise after it was already linked
// into the queue at its pre-donation position: a thread holding a mutex
// may be preempted (landing in the ReadyQueue as itself Ready, not
// Running) before a higher-priority thread blocks on that mutex and
// donates to it (spec §4.4). kernel/sync has no way to re-sort a
// SchedHook it does not own, so the list's insertion-time order can go
// stale; real pintos sidesteps this the same way, by having
// next_thread_to_run() scan its (unsorted) ready_list for the max rather
// than relying on positional order.
func (k *Kernel) selectNextLocked() *thread.Thread {
	best, bestThread := k.readyMaxLocked()
	if best == nil {
		return k.idle
	}
	list.Remove(best)
	return bestThread
}

// readyMaxLocked scans the ReadyQueue for its highest-effective-priority
// entry without removing it, for the same staleness reason selectNextLocked
// scans rather than trusts Front(): callers deciding only "should I yield"
// (SetPriority, SetNice) need the true max just as much as dispatch does,
// since a stale Front() can undercount and wrongly skip a preemption that's
// actually due.
func (k *Kernel) readyMaxLocked() (*list.Hook, *thread.Thread) {
	best := k.ready.Front()
	if best == nil {
		return nil, nil
	}
	bestThread := best.Elem().(*thread.Thread)
	for h := k.ready.Next(best); h != nil; h = k.ready.Next(h) {
		t := h.Elem().(*thread.Thread)
		if t.EffectivePriority > bestThread.EffectivePriority {
			best, bestThread = h, t
		}
	}
	return best, bestThread
}

// reschedule implements spec §4.1's "Reschedule protocol".
func (k *Kernel) reschedule() {
	k.destroy = nil // drain: free (conceptually) the previously-dying thread

	prev := k.tbl.Current()
	next := k.selectNextLocked()
	k.tbl.SetCurrent(next)
	next.State = thread.Running
	k.threadTicks = 0

	if prev != nil && prev.State == thread.Dying {
		k.destroy = append(k.destroy, prev)
	}

	if next == prev {
		return
	}
	next.WakeCPU()
	if prev != nil && prev.State != thread.Dying {
		prev.Resume()
	}
}

// Tick is invoked by a TickSource in interrupt context (spec §4.1 "tick").
func (k *Kernel) Tick() {
	prior := k.gate.Disable()
	k.gate.EnterInterruptContext()

	k.ticks++
	k.threadTicks++

	k.wakeSleepersLocked(k.ticks)

	if k.mlfqsEngine != nil {
		k.mlfqsEngine.OnTick(k.ticks, k.tbl.Current(), k.idle, k.ready.Len(), k.live)
	}

	if k.threadTicks >= k.cfg.TimeSlice {
		k.gate.RequestYieldOnReturn()
	}

	k.gate.LeaveInterruptContext()
	k.gate.Restore(prior)
}

// wakeSleepersLocked implements spec §4.2 "wake": walks the SleepQueue from
// the head, unblocking every entry whose deadline has passed, stopping at
// the first that has not (queue ordering guarantees the tail isn't ready
// either).
func (k *Kernel) wakeSleepersLocked(now uint64) {
	for {
		front := k.sleep.Front()
		if front == nil {
			return
		}
		t := front.Elem().(*thread.Thread)
		if t.WakeupTick > now {
			return
		}
		list.Remove(front)
		t.WakeupTick = 0
		k.unblockLocked(t)
	}
}

// SleepTicks blocks the current thread until at least tick (now+n) (spec
// §4.2 "sleep_until"/"sleep_ticks"). A non-positive n is a no-op.
func (k *Kernel) SleepTicks(n int) {
	if n <= 0 {
		return
	}
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)

	cur := k.tbl.Current()
	cur.WakeupTick = k.ticks + uint64(n)
	k.sleep.InsertSorted(&cur.SchedHook, byWakeupTickAsc)
	k.Block()
}

// SleepMs, SleepUs, and SleepNs convert a wall-clock duration to whole
// ticks at the configured TIMER_FREQ and sleep that many, busy-waiting the
// sub-tick remainder for precision (spec §4.2: "Sub-tick sleeps bypass the
// queue and busy-wait").
func (k *Kernel) SleepMs(ms int) { k.sleepNanos(int64(ms) * int64(time.Millisecond)) }
func (k *Kernel) SleepUs(us int) { k.sleepNanos(int64(us) * int64(time.Microsecond)) }
func (k *Kernel) SleepNs(ns int) { k.sleepNanos(int64(ns)) }

func (k *Kernel) sleepNanos(ns int64) {
	if ns <= 0 {
		return
	}
	tickNs := int64(time.Second) / int64(k.cfg.TimerFreq)
	whole := ns / tickNs
	if whole > 0 {
		k.SleepTicks(int(whole))
	}
	if remainder := ns % tickNs; remainder > 0 {
		busyWait(time.Duration(remainder))
	}
}

func busyWait(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

// recomputeEffectivePriorityLocked mirrors kernel/sync's private helper of
// the same purpose (spec §4.4 "Priority recomputation"); duplicated here
// because kernel/sync's copy is unexported.
func recomputeEffectivePriorityLocked(t *thread.Thread) {
	eff := t.BasePriority
	if front := t.Donors.Front(); front != nil {
		if d := front.Elem().(*thread.Thread); d.EffectivePriority > eff {
			eff = d.EffectivePriority
		}
	}
	t.EffectivePriority = eff
}

// SetPriority sets the calling thread's base priority; a no-op under MLFQS
// (spec §4.5, testable property 10).
func (k *Kernel) SetPriority(p int) {
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)
	if k.cfg.MLFQS {
		return
	}
	cur := k.tbl.Current()
	cur.BasePriority = p
	old := cur.EffectivePriority
	recomputeEffectivePriorityLocked(cur)
	if cur.EffectivePriority < old {
		if _, maxThread := k.readyMaxLocked(); maxThread != nil {
			if maxThread.EffectivePriority > cur.EffectivePriority {
				k.yieldLocked()
			}
		}
	}
}

// GetPriority returns the calling thread's effective priority.
func (k *Kernel) GetPriority() int {
	return k.tbl.Current().EffectivePriority
}

// SetNice sets the calling thread's MLFQS nice value, immediately
// recomputing its priority and possibly yielding; disallowed from
// interrupt context (spec §9 Open Questions, resolved: "disallow from
// interrupt context").
func (k *Kernel) SetNice(n int) {
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)
	if k.gate.InInterruptContext() {
		klog.Fatalf("sched: set_nice called from interrupt context")
		return
	}
	cur := k.tbl.Current()
	cur.MLFQS.Nice = n
	cur.EffectivePriority = mlfqs.PriorityFor(cur.MLFQS.RecentCPU, n)
	if _, maxThread := k.readyMaxLocked(); maxThread != nil {
		if maxThread.EffectivePriority > cur.EffectivePriority {
			k.yieldLocked()
		}
	}
}

// GetNice returns the calling thread's nice value.
func (k *Kernel) GetNice() int {
	return k.tbl.Current().MLFQS.Nice
}

// GetLoadAvg reports the system load average, ×100 rounded (spec §4.5); 0
// if MLFQS is not enabled.
func (k *Kernel) GetLoadAvg() int {
	if k.mlfqsEngine == nil {
		return 0
	}
	return k.mlfqsEngine.GetLoadAvg()
}

// GetRecentCPU reports the calling thread's recent_cpu, ×100 rounded.
func (k *Kernel) GetRecentCPU() int {
	return mlfqs.GetRecentCPU(k.tbl.Current())
}

// Stats is a point-in-time snapshot of scheduler state, used by cmd/kernel's
// sleep demo; it has no analogue in the spec's external interfaces
// beyond the individual get_* accessors, gathered here for convenience.
type Stats struct {
	Ticks     uint64
	ReadyLen  int
	SleepLen  int
	LoadAvg   int
	CurrentID int
}

// Stats returns a snapshot of scheduler-wide counters.
func (k *Kernel) Stats() Stats {
	prior := k.gate.Disable()
	defer k.gate.Restore(prior)
	s := Stats{Ticks: k.ticks, ReadyLen: k.ready.Len(), SleepLen: k.sleep.Len()}
	if cur := k.tbl.Current(); cur != nil {
		s.CurrentID = cur.ID
	}
	if k.mlfqsEngine != nil {
		s.LoadAvg = k.mlfqsEngine.GetLoadAvg()
	}
	return s
}
