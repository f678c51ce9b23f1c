// Package config declares the kernel's boot-time parameters (spec §6:
// "-mlfqs", TIMER_FREQ, TIME_SLICE, the default thread priority) and
// registers them on a pflag.FlagSet.
//
// RegisterFlags is a thin wrapper over the teacher's own
// cmd/pflagvar.RegisterFlagsInStruct (itself a pflag.FlagSet adapter over
// cmd/flagvar.RegisterFlagsInStruct): struct fields carry a `flagvar` tag
// of the form "name,,usage" (the teacher's tag grammar always reserves a
// default-value field between name and usage; this package leaves it
// empty and supplies defaults out of band, via valueDefaults, from the
// struct's current field values instead) and are registered under that
// name, instead of each kernel parameter needing its own call to
// pflag.BoolVar/IntVar/etc. scattered through cmd/kernel/main.go.
package config

import (
	"fmt"
	"reflect"

	"github.com/spf13/pflag"

	"threadsched/cmd/flagvar"
	"threadsched/cmd/pflagvar"
)

const (
	minTimerFreq = 19
	maxTimerFreq = 1000

	// PriMin and PriMax bound both the static base/effective priority
	// range and the MLFQS-computed priority range (spec §6).
	PriMin = 0
	PriMax = 63

	// DefaultPriority is the priority assigned to a thread created
	// without an explicit priority, and the default for Config.
	DefaultPriority = 31

	// DefaultTimeSlice is TIME_SLICE from spec §4.1: the maximum number
	// of consecutive ticks a thread runs before round-robin preemption
	// among equal-priority peers.
	DefaultTimeSlice = 4

	// DefaultTimerFreq is a representative TIMER_FREQ within the
	// spec-mandated [19,1000] range.
	DefaultTimerFreq = 100

	// DefaultMaxThreads bounds the number of simultaneously live threads a
	// Kernel tolerates before Create reports resource exhaustion (spec §7:
	// "Resource exhaustion (create when no page is available): surfaced as
	// a sentinel id value (TID_ERROR)"). Chosen generously so ordinary
	// scenarios never hit it; set lower in tests that want to exercise the
	// exhaustion path directly.
	DefaultMaxThreads = 4096
)

// Config holds every command-line-configurable kernel parameter named in
// spec §6. The `flagvar` tag follows the teacher's <name>,<default>,<usage>
// grammar (cmd/flagvar.ParseFlagTag); the default field is left empty here
// because RegisterFlags supplies defaults itself, from the struct's
// current field values, via valueDefaults.
type Config struct {
	MLFQS           bool `flagvar:"mlfqs,,enable the multi-level feedback queue scheduler"`
	TimerFreq       int  `flagvar:"timer-freq,,'timer interrupt frequency in Hz, 19<=f<=1000'"`
	TimeSlice       int  `flagvar:"time-slice,,ticks a thread runs before round-robin preemption"`
	DefaultPriority int  `flagvar:"default-priority,,priority assigned to a thread created without one"`
	// MaxThreads bounds concurrently live threads; 0 disables the bound.
	// Past it, Create returns sched.ErrResourceExhausted instead of
	// allocating (spec §7's TID_ERROR-equivalent sentinel).
	MaxThreads int `flagvar:"max-threads,,'bound on simultaneously live threads, 0 disables the bound'"`
}

// Default returns the Config a freshly booted kernel uses when no flags are
// given.
func Default() Config {
	return Config{
		MLFQS:           false,
		TimerFreq:       DefaultTimerFreq,
		TimeSlice:       DefaultTimeSlice,
		DefaultPriority: DefaultPriority,
		MaxThreads:      DefaultMaxThreads,
	}
}

// RegisterFlags registers every `flagvar`-tagged field of cfg on fs via
// cmd/pflagvar.RegisterFlagsInStruct, passing the field's current value as
// its valueDefaults entry so the flag's default (and usage-string default)
// reflects whatever cfg held when RegisterFlags was called — typically
// Default(), but a caller may pre-seed cfg differently first. cfg must be
// a pointer to a Config (or a struct shaped like one).
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	typ := reflect.TypeOf(cfg).Elem()
	val := reflect.ValueOf(cfg).Elem()
	valueDefaults := make(map[string]interface{})
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag, ok := field.Tag.Lookup("flagvar")
		if !ok {
			continue
		}
		name, _, _, err := flagvar.ParseFlagTag(tag)
		if err != nil {
			panic(fmt.Sprintf("config: field %s: %v", field.Name, err))
		}
		fv := val.Field(i)
		switch fv.Kind() {
		case reflect.Bool:
			valueDefaults[name] = fv.Bool()
		case reflect.Int:
			valueDefaults[name] = int(fv.Int())
		default:
			panic(fmt.Sprintf("config: field %s: unsupported kind %s", field.Name, fv.Kind()))
		}
	}
	if err := pflagvar.RegisterFlagsInStruct(fs, "flagvar", cfg, valueDefaults, nil); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Validate checks the invariants spec §6 places on configuration:
// 19<=TimerFreq<=1000 and 0<=DefaultPriority<=63.
func (c Config) Validate() error {
	if c.TimerFreq < minTimerFreq || c.TimerFreq > maxTimerFreq {
		return fmt.Errorf("timer-freq %d out of range [%d,%d]", c.TimerFreq, minTimerFreq, maxTimerFreq)
	}
	if c.DefaultPriority < PriMin || c.DefaultPriority > PriMax {
		return fmt.Errorf("default-priority %d out of range [%d,%d]", c.DefaultPriority, PriMin, PriMax)
	}
	if c.TimeSlice <= 0 {
		return fmt.Errorf("time-slice %d must be positive", c.TimeSlice)
	}
	if c.MaxThreads < 0 {
		return fmt.Errorf("max-threads %d must be >= 0 (0 disables the bound)", c.MaxThreads)
	}
	return nil
}
