// Package timer drives a kernel.Tick() call at 1/TIMER_FREQ intervals,
// standing in for spec.md §2/§6's external TickSource collaborator (the
// hardware timer interrupt this simulation does not actually receive).
//
// Grounded on timing/timer.go's nowFunc-injection idiom in the teacher
// repo: rather than calling time.NewTicker directly, the ticker
// constructor is a package variable tests can swap out, the same way
// timing swaps time.Now for a fake clock.
package timer

import "time"

// tickerSource is the minimal surface Source needs from a ticker; wraps
// *time.Ticker so tests can substitute a synthetic one without real wall
// time.
type tickerSource interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// newTickerFunc constructs the ticker a Source runs against; overridden in
// tests.
var newTickerFunc = func(d time.Duration) tickerSource {
	return realTicker{time.NewTicker(d)}
}

// Source periodically invokes a tick callback — ordinarily
// kernel/sched.Kernel.Tick — at the rate a Config's TimerFreq specifies.
type Source struct {
	interval time.Duration
	onTick   func()

	stop chan struct{}
	done chan struct{}
}

// New creates a Source that will call onTick once per 1/freqHz interval
// once Run is started. freqHz must be positive (spec.md §6 bounds it to
// [19,1000]; New itself does not enforce the bound since kernel/config
// already validates it).
func New(freqHz int, onTick func()) *Source {
	return &Source{
		interval: time.Second / time.Duration(freqHz),
		onTick:   onTick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run drives ticks until Stop is called. It blocks, so callers typically
// invoke it in its own goroutine.
func (s *Source) Run() {
	defer close(s.done)
	ticker := newTickerFunc(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C():
			s.onTick()
		}
	}
}

// Stop signals Run to return and waits for it to do so. Safe to call at
// most once.
func (s *Source) Stop() {
	close(s.stop)
	<-s.done
}
