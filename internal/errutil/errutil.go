// Package errutil provides the fuzzer's error taxonomy: a small Kind enum
// wrapping a plain error, matching the teacher's style of plain
// fmt.Errorf("...: %w", err) wrapping rather than a custom error type
// hierarchy. The taxonomy exists so the fuzzer loop can decide, at the
// per-execution boundary, whether an error should halt the whole run
// (Config, Fatal) or just be logged and skipped (Emulator, IO, Limit,
// Crash already has its own non-error ExitReason path upstream).
package errutil

import (
	"errors"
	"fmt"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/log"
)

// Kind classifies where an error originated, so the fuzzer loop can decide
// how to react without parsing error strings.
type Kind int

const (
	// Config: a malformed target/archive configuration. Halts the process.
	Config Kind = iota
	// IO: a filesystem or archive read/write failure. Logged and skipped;
	// does not halt the process.
	IO
	// Emulator: a Unicorn setup/teardown failure (not a target crash,
	// which is reported via emulator.ExitReason, never as a Go error).
	Emulator
	// Limit: an execution-budget violation surfaced as an error rather
	// than an ExitReason (used only outside the main fuzz loop, e.g. a
	// single `run` replay that wants a non-zero exit code).
	Limit
	// Crash: a target fault surfaced as an error (used only outside the
	// main fuzz loop, see Limit).
	Crash
	// Fatal: an unrecoverable internal invariant violation. Halts the
	// process unconditionally.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case IO:
		return "io"
	case Emulator:
		return "emulator"
	case Limit:
		return "limit"
	case Crash:
		return "crash"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds a Kind-tagged error from a format string and its arguments,
// in the same fmt.Errorf("...: %w", err) shape the teacher uses throughout
// internal/emulator, just with a Kind attached for the caller to branch on.
func Wrap(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Halts reports whether an error of this Kind should stop the whole
// process rather than just abort the current execution.
func (k Kind) Halts() bool {
	switch k {
	case Config, Fatal:
		return true
	default:
		return false
	}
}

// Log reports err via the global logger at Error level and returns whether
// the caller should continue running (false for a halting Kind). Mirrors
// the reference implementation's LogError trait: one failing execution
// should not abort a fuzzing run unless the error is one that makes
// continuing meaningless.
func Log(err error) bool {
	if err == nil {
		return true
	}

	kind, ok := KindOf(err)
	if !ok {
		kind = Fatal
	}

	if log.L != nil {
		log.L.Sugar().Errorw("error", "kind", kind.String(), "error", err)
	}

	return !kind.Halts()
}
