package sync

import "threadsched/kernel/thread"

// byEffectivePriorityDesc is the comparator spec §4.3 requires every
// scheduler-side list to share: descending effective priority, ties broken
// by insertion order (list.List.InsertSorted only moves an element in front
// of a strictly lower-ranked one, so equal-priority entries land after any
// already queued). Used for mutex waiter lists and donor lists; the
// ReadyQueue in kernel/sched uses an equivalent comparator over the same
// field.
func byEffectivePriorityDesc(a, b any) bool {
	return a.(*thread.Thread).EffectivePriority > b.(*thread.Thread).EffectivePriority
}
