// Package statistics tracks cumulative and windowed fuzzing counters, and
// periodically samples them into a gob-serialized History an external
// tool can later turn into a plot — mirroring the reference
// implementation's own bincode-serialized Vec<ExecutionsHistory>, just
// with Go's standard serialization idiom instead.
package statistics

import (
	"encoding/gob"
	"io"
	"time"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
)

// SampleInterval is the minimum wall-clock time between automatic history
// samples; a sample is also always taken at termination regardless of how
// long it has been since the last one.
const SampleInterval = 5 * time.Minute

// Sample is one point-in-time snapshot of the run's cumulative state,
// recorded into History every SampleInterval or at termination.
type Sample struct {
	Elapsed     time.Duration
	Executions  uint64
	CorpusSize  int
	Features    int
	Crashes     uint64
	Timeouts    uint64
	Minimized   uint64
	TotalCounts emulator.Counts
}

// History is the full sequence of samples taken over a run, serialized
// with encoding/gob for an offline analysis/plotting tool to consume.
type History struct {
	Samples []Sample
}

// Encode writes h as gob to w.
func (h *History) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(h)
}

// DecodeHistory reads a History previously written by Encode.
func DecodeHistory(r io.Reader) (*History, error) {
	var h History
	if err := gob.NewDecoder(r).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Window holds counters that reset every time they are read, used to
// compute an executions/sec-style rate for the live TUI without having to
// remember the previous cumulative value.
type Window struct {
	executions uint64
	crashes    uint64
	timeouts   uint64
	minimized  uint64
}

func (w *Window) recordExecution() { w.executions++ }
func (w *Window) recordCrash()     { w.crashes++ }
func (w *Window) recordTimeout()   { w.timeouts++ }
func (w *Window) recordMinimized() { w.minimized++ }

// Take returns the window's counts and resets it.
func (w *Window) Take() (executions, crashes, timeouts uint64) {
	executions, crashes, timeouts = w.executions, w.crashes, w.timeouts
	w.executions, w.crashes, w.timeouts = 0, 0, 0
	return
}

// Statistics accumulates cumulative counters for a single fuzzing run and
// decides when it is time to append a new Sample to its History.
type Statistics struct {
	started time.Time
	last    time.Time

	executions  uint64
	crashes     uint64
	timeouts    uint64
	minimized   uint64
	totalCounts emulator.Counts

	window  Window
	history History
}

// New returns a Statistics tracker started at now.
func New(now time.Time) *Statistics {
	return &Statistics{started: now, last: now}
}

// RecordExecution folds one completed execution's counts into the
// cumulative total and the current window.
func (s *Statistics) RecordExecution(counts emulator.Counts) {
	s.executions++
	s.totalCounts = s.totalCounts.Add(counts)
	s.window.recordExecution()
}

// RecordCrash notes one crashing execution.
func (s *Statistics) RecordCrash() {
	s.crashes++
	s.window.recordCrash()
}

// RecordTimeout notes one execution that hit a limit (classified
// LimitReached rather than Crash).
func (s *Statistics) RecordTimeout() {
	s.timeouts++
	s.window.recordTimeout()
}

// RecordMinimization notes one admitted input whose stream was shrunk by
// minimize without losing any feature it covered.
func (s *Statistics) RecordMinimization() {
	s.minimized++
	s.window.recordMinimized()
}

// Executions, Crashes, Timeouts, Minimized, TotalCounts expose the
// cumulative counters for display.
func (s *Statistics) Executions() uint64          { return s.executions }
func (s *Statistics) Crashes() uint64             { return s.crashes }
func (s *Statistics) Timeouts() uint64            { return s.timeouts }
func (s *Statistics) Minimized() uint64           { return s.minimized }
func (s *Statistics) TotalCounts() emulator.Counts { return s.totalCounts }

// Elapsed returns the wall-clock time since New was called, as of now.
func (s *Statistics) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.started)
}

// WindowCounts returns and resets the current window's counters, for the
// live TUI's executions/sec computation.
func (s *Statistics) WindowCounts() (executions, crashes, timeouts uint64) {
	return s.window.Take()
}

// ShouldSample reports whether at least SampleInterval has passed since
// the last sample was recorded.
func (s *Statistics) ShouldSample(now time.Time) bool {
	return now.Sub(s.last) >= SampleInterval
}

// Sample appends a Sample reflecting the current cumulative state,
// passing corpusSize/features in since Statistics itself does not own the
// corpus. Updates the last-sample clock regardless of ShouldSample, so
// termination can force an out-of-schedule sample without double-counting
// the interval.
func (s *Statistics) Sample(now time.Time, corpusSize, features int) {
	s.last = now
	s.history.Samples = append(s.history.Samples, Sample{
		Elapsed:     s.Elapsed(now),
		Executions:  s.executions,
		CorpusSize:  corpusSize,
		Features:    features,
		Crashes:     s.crashes,
		Timeouts:    s.timeouts,
		Minimized:   s.minimized,
		TotalCounts: s.totalCounts,
	})
}

// History returns the accumulated sample history.
func (s *Statistics) History() *History {
	return &s.history
}
