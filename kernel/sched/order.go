package sched

import "threadsched/kernel/thread"

// byEffectivePriorityDesc orders the ReadyQueue and mirrors the comparator
// kernel/sync uses for waiter/donor lists (spec §4.3: "The comparator used
// for ordering is the same one used by mutex waiter lists and donor
// lists"). Duplicated here because kernel/sync's copy is unexported; both
// packages apply it to the same *thread.Thread shape.
func byEffectivePriorityDesc(a, b any) bool {
	return a.(*thread.Thread).EffectivePriority > b.(*thread.Thread).EffectivePriority
}

// byWakeupTickAsc orders the SleepQueue ascending by wakeup tick, ties
// broken by insertion order (spec §4.2).
func byWakeupTickAsc(a, b any) bool {
	return a.(*thread.Thread).WakeupTick < b.(*thread.Thread).WakeupTick
}
