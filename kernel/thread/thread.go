// Package thread defines the Thread control block and the ThreadTable that
// owns every live thread (spec §3). The control block shape is grounded on
// the G struct in toysched/step7/toysched7.go (unique id, status, entry
// function) extended with the priority/donation/MLFQS fields spec §3
// requires, and id allocation follows that file's nextGID
// counter-under-mutex idiom.
package thread

import (
	"sync"

	"threadsched/internal/fixedpoint"
	"threadsched/internal/list"
)

// State is a thread's lifecycle state (spec §3).
type State int

const (
	// Ready means the thread is runnable and (if not idle) linked into
	// the ReadyQueue.
	Ready State = iota
	// Running means the thread currently holds the CPU. At most one
	// thread is Running at any time.
	Running
	// Blocked means the thread is waiting on a sleep deadline or a
	// synchronization primitive; it is linked into exactly one
	// scheduler-side list (SleepQueue or some waiter list).
	Blocked
	// Dying means the thread has exited; it is transient, linked into
	// no list, and its page is queued for destruction.
	Dying
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Dying:
		return "dying"
	default:
		return "unknown"
	}
}

// LockHandle is the subset of kernel/sync.Mutex's identity a Thread needs to
// record in WaitingForLock. Defining it here rather than importing
// kernel/sync avoids a dependency cycle (kernel/sync needs *Thread for its
// waiter and donor lists).
type LockHandle interface {
	// Holder returns the thread currently holding the lock, or nil.
	Holder() *Thread
}

// MLFQSState is the per-thread state the MLFQS engine maintains (spec §4.5).
// Unused while the scheduler runs in donation mode.
type MLFQSState struct {
	Nice      int
	RecentCPU fixedpoint.Q
}

const magic = 0xc0ffee42

// Thread is a control block: one per live thread (spec §3).
type Thread struct {
	ID   int
	Name string

	State State

	// BasePriority is the programmer-set priority; unused under MLFQS.
	BasePriority int
	// EffectivePriority is the priority actually used for scheduling:
	// equal to BasePriority absent donation, max(BasePriority, donors)
	// under donation, or MLFQS-computed under MLFQS.
	EffectivePriority int

	// WakeupTick is the absolute tick a sleeping thread must be resumed
	// at, or 0 if the thread is not sleeping.
	WakeupTick uint64

	// WaitingForLock is non-nil iff State==Blocked and the cause of
	// blocking is a mutex acquisition.
	WaitingForLock LockHandle

	// Donors is the ordered (by insertion, not re-sorted on later
	// donation) list of threads donating priority to this one because
	// they are blocked acquiring a mutex this thread holds.
	Donors list.List

	// SchedHook links this thread into at most one scheduler-side list
	// at a time: the ReadyQueue, the SleepQueue, or one synchronization
	// primitive's waiter list. Running and Dying threads are linked into
	// none.
	SchedHook list.Hook
	// DonorHook links this thread into at most one donor list at a
	// time (some other thread's Donors).
	DonorHook list.Hook

	MLFQS MLFQSState

	entry func(arg any)
	arg   any
	// cpu is the baton this thread's goroutine blocks on between
	// schedules; receiving from it is this control block's analogue of
	// context_switch resuming a saved register frame (spec §6 names
	// context_switch as an external collaborator this package does not
	// implement).
	cpu chan struct{}

	magic uint32
}

// CheckMagic panics (via fail) if the stack-overflow sentinel has been
// clobbered (spec §4.6/§7). Go manages goroutine stacks itself, so this
// sentinel can never actually be corrupted by a real stack overflow the way
// it could in the system spec.md describes; the field and check are kept so
// the control block's shape and failure surface match the spec, and so a
// test can simulate the violation by mutating it directly.
func (t *Thread) CheckMagic(fail func(format string, args ...interface{})) {
	if t.magic != magic {
		fail("thread %d: stack overflow sentinel corrupted", t.ID)
	}
}

// Table owns every live thread, assigns unique ids, and holds the current
// (Running) thread slot described as a "per-CPU current slot" in spec §9 —
// the portable alternative to deriving the current thread from the stack
// pointer.
type Table struct {
	mu     sync.Mutex
	nextID int

	// current is mutated only by the scheduler core, which must hold
	// its interrupt.Gate while doing so; Table itself does not
	// serialize access to it; ownership discipline matches the way
	// real kernels treat "interrupts off" as sufficient without an
	// additional lock.
	current *Thread
}

// New creates an empty Table. Ids start at 1; 0 is reserved so the zero
// value of an id variable is recognizably "no thread".
func New() *Table {
	return &Table{nextID: 1}
}

// Alloc creates a new Thread in state Ready, not yet linked into any list,
// with a zero-valued MLFQSState. name is truncated to 15 bytes (spec §3:
// "debug only"). entry is run on the thread's first schedule with arg as
// its argument.
//
// Alloc itself never inherits nice/recent_cpu from any other thread — it
// has no notion of "the creating thread". Under MLFQS, kernel/sched's
// Create copies the creator's MLFQSState onto the result after Alloc
// returns (spec §4.5; pintos's init_thread does the equivalent inline).
// The one caller that must NOT inherit — the very first thread (idle, and
// Boot's "main") — calls Alloc directly instead of going through Create,
// so it keeps these zero defaults, matching pintos's initial_thread.
func (tbl *Table) Alloc(name string, priority int, entry func(arg any), arg any) *Thread {
	tbl.mu.Lock()
	id := tbl.nextID
	tbl.nextID++
	tbl.mu.Unlock()

	if len(name) > 15 {
		name = name[:15]
	}
	t := &Thread{
		ID:                id,
		Name:              name,
		State:             Ready,
		BasePriority:      priority,
		EffectivePriority: priority,
		entry:             entry,
		arg:               arg,
		cpu:               make(chan struct{}),
		magic:             magic,
	}
	t.Donors.Init()
	t.SchedHook = list.NewHook(t)
	t.DonorHook = list.NewHook(t)
	return t
}

// Entry runs t's entry function with its argument. Called exactly once, by
// the scheduler, the first time t is scheduled.
func (t *Thread) Entry() {
	t.entry(t.arg)
}

// Resume blocks until the scheduler hands this thread the CPU.
func (t *Thread) Resume() {
	<-t.cpu
}

// WakeCPU hands the CPU to t by unblocking its pending Resume. Must be
// called by the scheduler core only, with exactly one outstanding Resume
// per WakeCPU.
func (t *Thread) WakeCPU() {
	t.cpu <- struct{}{}
}

// Current returns the thread the scheduler has marked Running, or nil
// before the first reschedule.
func (tbl *Table) Current() *Thread {
	return tbl.current
}

// SetCurrent updates the current-thread slot. Callers must hold the
// scheduler's interrupt.Gate.
func (tbl *Table) SetCurrent(t *Thread) {
	tbl.current = t
}
