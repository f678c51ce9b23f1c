// Command kernel boots a threadsched Kernel and drives it through the
// scenarios spec.md §8 describes as testable properties, logging outcomes
// as it goes. It is a runnable demonstration, not a test harness: use
// kernel/sched's tests for the properties themselves.
//
// Grounded on the teacher's cmd/ subtree of small flag-driven demos (e.g.
// cmd/pflagvar) for the flag-parsing/logging boilerplate, and on
// toysched's main() scenario-driver shape for running a fixed sequence of
// workloads to completion before exiting.
package main

import (
	"fmt"
	"os"
	stdsync "sync"
	"time"

	"github.com/spf13/pflag"

	"threadsched/kernel/config"
	"threadsched/kernel/klog"
	"threadsched/kernel/sched"
	"threadsched/kernel/timer"
)

var verbosity = pflag.IntP("v", "v", 0, "log verbosity")

func main() {
	cfg := config.Default()
	config.RegisterFlags(pflag.CommandLine, &cfg)
	pflag.Parse()

	klog.SetAlsoLogToStderr(true)
	klog.SetVerbosity(klog.Level(*verbosity))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "kernel:", err)
		os.Exit(1)
	}

	k := sched.New(cfg)
	ts := timer.New(cfg.TimerFreq, k.Tick)
	go ts.Run()
	defer ts.Stop()

	k.Boot("main", cfg.DefaultPriority, func() {
		runStrictPriorityDemo(k)
		runRoundRobinDemo(k)
		runDonationDemo(k)
		runSleepDemo(k)
		if cfg.MLFQS {
			runMLFQSDemo(k)
		}
	})

	klog.Infof("kernel: all scenarios complete")
}

// tally is a plain counter workers increment on completion and main polls
// by repeatedly yielding. A real Go channel receive would be wrong here:
// if main is the lowest-priority thread it can still be rescheduled while
// a worker is merely sleeping or blocked rather than finished, and at that
// point main must cooperatively Yield again rather than have its goroutine
// sit parked on a channel the kernel has no way to schedule around.
type tally struct {
	mu stdsync.Mutex
	n  int
}

func (c *tally) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *tally) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *tally) awaitAll(k *sched.Kernel, want int) {
	for c.get() < want {
		k.Yield()
	}
}

// mustCreate creates a thread and fatals if the kernel reports resource
// exhaustion (spec §7's TID_ERROR-equivalent sentinel); none of this
// demo's scenarios ever create enough threads to hit cfg.MaxThreads, so a
// non-nil error here means something is genuinely wrong.
func mustCreate(k *sched.Kernel, name string, priority int, entry func(arg any), arg any) {
	if _, err := k.Create(name, priority, entry, arg); err != nil {
		klog.Fatalf("kernel: create %s: %v", name, err)
	}
}

// runStrictPriorityDemo matches spec.md §8 testable property 1: threads of
// strictly increasing priority, once the creator steps out of the way, run
// in descending-priority order.
func runStrictPriorityDemo(k *sched.Kernel) {
	klog.Infof("scenario: strict priority")
	k.SetPriority(90)
	var done tally
	for _, pri := range []struct {
		name string
		pri  int
	}{{"low", 30}, {"mid", 40}, {"high", 50}} {
		name, pri := pri.name, pri.pri
		mustCreate(k, name, pri, func(any) {
			klog.Infof("strict-priority: %s running", name)
			done.inc()
		}, nil)
	}
	k.SetPriority(config.PriMin)
	done.awaitAll(k, 3)
	k.SetPriority(70)
}

// runRoundRobinDemo matches spec.md §8 testable property 2: two equal-
// priority threads alternate under repeated voluntary yielding.
func runRoundRobinDemo(k *sched.Kernel) {
	klog.Infof("scenario: round robin")
	k.SetPriority(90)
	var done tally
	spawn := func(name string) {
		mustCreate(k, name, 40, func(any) {
			for i := 0; i < 3; i++ {
				klog.Infof("round-robin: %s tick %d", name, i)
				k.Yield()
			}
			done.inc()
		}, nil)
	}
	spawn("x")
	spawn("y")
	k.SetPriority(config.PriMin)
	done.awaitAll(k, 2)
	k.SetPriority(70)
}

// runDonationDemo matches spec.md §4.4's priority-inversion scenario: low
// holds a mutex; mid1 preempts low (and is itself preempted by high before
// it finishes, so it never touches the mutex); high blocks on the mutex
// and donates its priority back to low, letting low finish and release
// ahead of mid1 despite mid1 having briefly outranked it.
func runDonationDemo(k *sched.Kernel) {
	klog.Infof("scenario: priority donation")
	k.SetPriority(99)
	mu := k.NewMutex()
	var done tally

	mustCreate(k, "low", 20, func(any) {
		mu.Acquire()
		klog.Infof("donation: low acquired mutex at priority %d", k.GetPriority())

		mustCreate(k, "mid1", 35, func(any) {
			mustCreate(k, "high", 60, func(any) {
				klog.Infof("donation: high blocking on mutex held by low")
				mu.Acquire()
				klog.Infof("donation: high acquired mutex")
				mu.Release()
			}, nil)
			klog.Infof("donation: mid1 ran without ever touching the mutex")
		}, nil)

		klog.Infof("donation: low releasing mutex at priority %d", k.GetPriority())
		mu.Release()
		done.inc()
	}, nil)

	k.SetPriority(config.PriMin)
	done.awaitAll(k, 1)
	k.SetPriority(70)
}

// runSleepDemo matches spec.md §8 testable property 3: a sleeping thread
// wakes no earlier than its requested deadline.
func runSleepDemo(k *sched.Kernel) {
	klog.Infof("scenario: sleep deadline")
	k.SetPriority(90)
	var done tally
	before := k.Stats().Ticks
	mustCreate(k, "sleeper", 40, func(any) {
		k.SleepTicks(5)
		after := k.Stats().Ticks
		klog.Infof("sleep: slept from tick %d to tick %d", before, after)
		done.inc()
	}, nil)
	k.SetPriority(config.PriMin)
	done.awaitAll(k, 1)
	k.SetPriority(70)
}

// runMLFQSDemo runs a handful of differently-niced busy threads and reports
// the resulting load average and recent_cpu values (spec.md §4.5, testable
// properties 9/10). SetPriority is a no-op under MLFQS (property 10), so
// unlike the other demos main cedes the CPU with a plain Yield rather than
// lowering its own priority.
func runMLFQSDemo(k *sched.Kernel) {
	klog.Infof("scenario: mlfqs")
	var done tally
	for i, nice := range []int{-5, 0, 5} {
		name := fmt.Sprintf("cpu-hog-%d", i)
		nice := nice
		mustCreate(k, name, config.DefaultPriority, func(any) {
			k.SetNice(nice)
			deadline := time.Now().Add(50 * time.Millisecond)
			for time.Now().Before(deadline) {
				k.CheckPreempt()
			}
			klog.Infof("mlfqs: %s (nice %d) recent_cpu=%d priority=%d",
				name, nice, k.GetRecentCPU(), k.GetPriority())
			done.inc()
		}, nil)
	}
	done.awaitAll(k, 3)
	klog.Infof("mlfqs: system load_avg=%d", k.GetLoadAvg())
}
