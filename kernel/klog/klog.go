// Package klog is the kernel's leveled logger. It is a thin adaptation of
// vlog (vlog/log.go in the teacher repo): a single package-level logger
// backed by github.com/cosmosnicolaou/llog, with V-gated tracing and a
// Fatalf used as the scheduler core's panic primitive for contract
// violations (spec §4.6/§7: wrong interrupt level, double-acquire, release
// by non-holder, block in interrupt context, stack-sentinel corruption).
//
// Unlike vlog's Fatalf, which logs at llog's FatalLog severity (and, in the
// glog tradition, terminates the process), klog.Fatalf logs at ErrorLog
// severity and then panics directly. Contract violations in this kernel are
// exercised by tests via recover(), and a scheduler embedded in a larger
// program should get a Go panic it can choose to handle, not an unconditional
// os.Exit buried inside a dependency.
package klog

import (
	"fmt"
	"sync"

	"github.com/cosmosnicolaou/llog"
)

// Level is a verbosity level, higher is more verbose. Matches vlog's Level.
type Level int

var (
	mu  sync.Mutex
	log = llog.NewLogger("threadsched", 1)
)

// SetVerbosity sets the global verbosity level; V(n) reports true for n<=level.
func SetVerbosity(level Level) {
	mu.Lock()
	defer mu.Unlock()
	log.SetV(llog.Level(level))
}

// SetAlsoLogToStderr mirrors vlog's option of the same name.
func SetAlsoLogToStderr(v bool) {
	mu.Lock()
	defer mu.Unlock()
	log.SetAlsoLogToStderr(v)
}

// V reports whether logging at the given verbosity level is enabled. Call
// sites guard expensive trace formatting with it, e.g.:
//
//	if klog.V(2) { klog.Infof("donation: %d -> %d", from, to) }
func V(level Level) bool {
	return log.V(llog.Level(level))
}

// Infof logs at INFO severity.
func Infof(format string, args ...interface{}) {
	log.Printf(llog.InfoLog, format, args...)
}

// Errorf logs at ERROR severity.
func Errorf(format string, args ...interface{}) {
	log.Printf(llog.ErrorLog, format, args...)
}

// Fatalf logs at ERROR severity and panics with the formatted message. Used
// for every contract violation the scheduler core detects; there is no
// user-visible error surface for these (spec §4.6).
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf(llog.ErrorLog, "%s", msg)
	panic(msg)
}
