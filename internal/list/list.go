// Package list implements an intrusive doubly-linked list. Elements embed a
// Hook rather than being wrapped by list-owned nodes, so removal from the
// middle of a list is O(1) and allocation-free, and a single element can
// carry two independent hooks (for example, a thread's scheduler-side list
// membership and its donor-list membership) without the list package
// knowing about either use.
package list

// Hook links an element into at most one List at a time. The zero Hook is
// not linked into anything; callers must not move a Hook between lists
// without first calling Remove.
type Hook struct {
	next, prev *Hook
	elem       any
}

// Elem returns the value this Hook was created for.
func (h *Hook) Elem() any { return h.elem }

// NewHook returns a Hook for elem, suitable for embedding elem into lists.
func NewHook(elem any) Hook {
	return Hook{elem: elem}
}

// List is a sentinel-bounded circular doubly-linked list of Hooks. The zero
// List is not usable; call Init first.
type List struct {
	sentinel Hook
}

// Init makes l empty. Requires that l is not currently part of a non-empty
// list.
func (l *List) Init() {
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
}

// Empty reports whether l has no elements.
func (l *List) Empty() bool {
	return l.sentinel.next == &l.sentinel
}

// Front returns the Hook at the head of l, or nil if l is empty.
func (l *List) Front() *Hook {
	if l.Empty() {
		return nil
	}
	return l.sentinel.next
}

// Back returns the Hook at the tail of l, or nil if l is empty.
func (l *List) Back() *Hook {
	if l.Empty() {
		return nil
	}
	return l.sentinel.prev
}

// PushBack inserts h at the tail of l. Requires that h is not currently
// linked into any list.
func (l *List) PushBack(h *Hook) {
	h.insertAfter(l.sentinel.prev)
}

// PushFront inserts h at the head of l. Requires that h is not currently
// linked into any list.
func (l *List) PushFront(h *Hook) {
	h.insertAfter(&l.sentinel)
}

// InsertBefore inserts h immediately before at, which must already be part
// of l (or be l's sentinel, to insert at the back).
func InsertBefore(h, at *Hook) {
	h.insertAfter(at.prev)
}

// Remove unlinks h from whatever list currently contains it. Requires that h
// is currently linked into a list. After Remove, h may be inserted into
// another (or the same) list.
func Remove(h *Hook) {
	h.next.prev = h.prev
	h.prev.next = h.next
	h.next, h.prev = nil, nil
}

// Next returns the Hook following h in its list, or nil if h is the last
// element or h is a list's sentinel whose list is empty.
func (l *List) Next(h *Hook) *Hook {
	if h.next == &l.sentinel {
		return nil
	}
	return h.next
}

// InList reports whether h can be found in l. Used only by assertions and
// tests; it is O(n).
func (l *List) InList(h *Hook) bool {
	for p := l.sentinel.next; p != &l.sentinel; p = p.next {
		if p == h {
			return true
		}
	}
	return false
}

// Len returns the number of elements in l. O(n); intended for tests and
// diagnostics, not the hot scheduling path.
func (l *List) Len() int {
	n := 0
	for p := l.sentinel.next; p != &l.sentinel; p = p.next {
		n++
	}
	return n
}

func (h *Hook) insertAfter(p *Hook) {
	h.next = p.next
	h.prev = p
	h.next.prev = h
	h.prev.next = h
}

// InsertSorted inserts h into l immediately before the first existing
// element p for which before(h, p) is true, or at the tail if there is no
// such element. before(a, b) must report whether a strictly precedes b;
// elements that are neither before nor after one another (equal priority)
// keep arrival order, since h is only inserted ahead of elements it is
// strictly before. Every scheduler-side list in this module uses this with
// FIFO tie-breaking: the ReadyQueue, mutex/semaphore waiter lists and donor
// lists in descending-priority order, the SleepQueue in ascending
// wakeup-tick order.
func (l *List) InsertSorted(h *Hook, before func(a, b any) bool) {
	for p := l.sentinel.next; p != &l.sentinel; p = p.next {
		if before(h.elem, p.elem) {
			InsertBefore(h, p)
			return
		}
	}
	l.PushBack(h)
}
