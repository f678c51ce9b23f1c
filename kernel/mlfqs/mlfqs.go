// Package mlfqs implements the 4.4BSD multi-level feedback queue formulas
// spec §4.5 specifies: load_avg, per-thread recent_cpu, and the periodic
// priority recomputation that replaces priority donation when enabled.
// Grounded directly on spec.md's formulas (this is a self-contained
// numerical routine with no equivalent in the teacher repo), expressed over
// internal/fixedpoint's 17.14 format and internal/liveset's generic set for
// "every live thread."
package mlfqs

import (
	"threadsched/internal/fixedpoint"
	"threadsched/internal/liveset"
	"threadsched/kernel/config"
	"threadsched/kernel/thread"
)

// Engine holds the system-wide load_avg and the timer frequency needed to
// detect one-second boundaries.
type Engine struct {
	timerFreq int
	loadAvg   fixedpoint.Q
}

// New creates an Engine with load_avg initialized to 0 (spec §4.5).
func New(timerFreq int) *Engine {
	return &Engine{timerFreq: timerFreq}
}

// LoadAvg returns the raw fixed-point load_avg value.
func (e *Engine) LoadAvg() fixedpoint.Q {
	return e.loadAvg
}

// GetLoadAvg reports load_avg scaled by 100 and rounded to the nearest
// integer (spec §4.5 "Reporting").
func (e *Engine) GetLoadAvg() int {
	return e.loadAvg.MulInt(100).ToIntRound()
}

// GetRecentCPU reports a thread's recent_cpu scaled by 100 and rounded to
// the nearest integer.
func GetRecentCPU(t *thread.Thread) int {
	return t.MLFQS.RecentCPU.MulInt(100).ToIntRound()
}

// OnTick runs the tick-path work spec §4.5 describes. running is the
// thread occupying the CPU (nil or idle is treated as "no CPU-consuming
// thread"); readyCount is the ReadyQueue's size, excluding running; live
// enumerates every live, non-idle thread.
func (e *Engine) OnTick(tick uint64, running, idle *thread.Thread, readyCount int, live *liveset.Set[*thread.Thread]) {
	runningCounts := running != nil && running != idle
	if runningCounts {
		running.MLFQS.RecentCPU = running.MLFQS.RecentCPU.AddInt(1)
	}

	if e.timerFreq > 0 && tick%uint64(e.timerFreq) == 0 {
		readyThreads := readyCount
		if runningCounts {
			readyThreads++
		}
		e.loadAvg = recalcLoadAvg(e.loadAvg, readyThreads)
		live.Each(func(t *thread.Thread) {
			if t == idle {
				return
			}
			t.MLFQS.RecentCPU = recalcRecentCPU(t.MLFQS.RecentCPU, e.loadAvg, t.MLFQS.Nice)
		})
	}

	if tick%4 == 0 {
		live.Each(func(t *thread.Thread) {
			if t == idle {
				return
			}
			t.EffectivePriority = PriorityFor(t.MLFQS.RecentCPU, t.MLFQS.Nice)
		})
	}
}

// PriorityFor computes the clamped MLFQS priority for a given recent_cpu and
// nice value (spec §4.5: "Every 4 ticks"). Exported so set_nice can
// recompute a single thread's priority immediately without waiting for the
// next 4-tick boundary (spec's REDESIGN FLAGS: "set_nice triggers a priority
// recompute").
func PriorityFor(recentCPU fixedpoint.Q, nice int) int {
	pri := config.PriMax - recentCPU.DivInt(4).ToIntTruncate() - nice*2
	if pri < config.PriMin {
		pri = config.PriMin
	}
	if pri > config.PriMax {
		pri = config.PriMax
	}
	return pri
}

// recalcLoadAvg implements load_avg := (59/60)*load_avg + (1/60)*ready_threads.
func recalcLoadAvg(loadAvg fixedpoint.Q, readyThreads int) fixedpoint.Q {
	fiftyNine := fixedpoint.FromInt(59)
	sixty := fixedpoint.FromInt(60)
	term1 := loadAvg.Mul(fiftyNine).Div(sixty)
	term2 := fixedpoint.FromInt(readyThreads).Div(sixty)
	return term1.Add(term2)
}

// recalcRecentCPU implements
// recent_cpu := ((2*load_avg)/(2*load_avg+1)) * recent_cpu + nice.
func recalcRecentCPU(recentCPU, loadAvg fixedpoint.Q, nice int) fixedpoint.Q {
	twiceLoad := loadAvg.MulInt(2)
	denom := twiceLoad.AddInt(1)
	coeff := twiceLoad.Div(denom)
	return coeff.Mul(recentCPU).AddInt(nice)
}
