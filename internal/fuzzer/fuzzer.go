// Package fuzzer implements the seed -> mutate -> execute -> classify ->
// admit -> archive loop: the single-threaded cooperative scheduler that
// drives one Emulator across many short executions, growing a Corpus as
// it goes. It mirrors the shape of cmd/galago/main.go's runTrace (set up
// collaborators, then a hook-driven loop, then a summary), just with the
// loop body iterating executions instead of instructions.
package fuzzer

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/corpus"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/log"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/mutator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/statistics"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/stream"
)

// Classification is the outcome category one execution is sorted into.
type Classification int

const (
	// Discard: not novel, not a crash. The input is thrown away.
	Discard Classification = iota
	// Coverage: reached at least one feature no prior input reached.
	Coverage
	// Crash: the exit reason is a target fault, archived regardless of
	// novelty.
	Crash
)

func (c Classification) String() string {
	switch c {
	case Coverage:
		return "coverage"
	case Crash:
		return "crash"
	default:
		return "discard"
	}
}

// Result is everything one execution produced, enough for the loop's
// caller to decide what to archive and to feed statistics/the TUI.
type Result struct {
	Input          *input.Input
	Features       []coverage.Feature
	Classification Classification
	ExitReason     emulator.ExitReason
	Counts         emulator.Counts
}

// Hooks lets a caller (cmd/hoedur) observe admissions and crashes without
// the Fuzzer itself owning an archive writer or a TUI.
type Hooks struct {
	OnAdmit func(in *input.Input, features []coverage.Feature)
	OnCrash func(in *input.Input, reason emulator.ExitReason)
}

// Fuzzer owns one Emulator and drives it through the admit/mutate/execute
// loop against a shared Corpus. Not safe for concurrent use — the loop is
// single-threaded cooperative by design (SPEC_FULL §7).
type Fuzzer struct {
	emu      *emulator.Emulator
	corpus   *corpus.Corpus
	mutator  *mutator.Mutator
	stats    *statistics.Statistics
	entry    uint32
	baseline *emulator.Snapshot
	rng      *rand.Rand
	hooks    Hooks

	// Exit and Term mirror SPEC_FULL §7's EXIT/TERM atomic flags, set by a
	// caller's os/signal handler and checked at the loop's cooperative
	// yield point (between executions).
	Exit atomic.Bool
	Term atomic.Bool
}

// New builds a Fuzzer around an already-constructed, already-loaded
// Emulator. entry is the address each execution starts from; the
// Emulator's current state (after firmware load and
// InitializeFromVectorTable) is captured as the baseline every execution
// restores to afterward.
func New(emu *emulator.Emulator, entry uint32, cp *corpus.Corpus, mut *mutator.Mutator, stats *statistics.Statistics, rng *rand.Rand, hooks Hooks) (*Fuzzer, error) {
	baseline, err := emu.Snapshot()
	if err != nil {
		return nil, errutil.Wrap(errutil.Emulator, "capture baseline snapshot: %w", err)
	}

	return &Fuzzer{
		emu:      emu,
		corpus:   cp,
		mutator:  mut,
		stats:    stats,
		entry:    entry,
		baseline: baseline,
		rng:      rng,
		hooks:    hooks,
	}, nil
}

// SeedInput runs in once and admits it to the corpus if it reaches any
// feature not already covered, per spec step 1 ("run once; if it admits
// features, add to corpus").
func (f *Fuzzer) SeedInput(in *input.Input) (*Result, error) {
	result, err := f.execute(in)
	if err != nil {
		return nil, err
	}

	if f.corpus.IsNovel(result.Features) {
		f.corpus.Admit(result.Input, result.Features)
		if f.hooks.OnAdmit != nil {
			f.hooks.OnAdmit(result.Input, result.Features)
		}
	}

	return result, nil
}

// SeedEmpty runs an empty input (no seed files supplied), per spec step 1's
// fallback.
func (f *Fuzzer) SeedEmpty() (*Result, error) {
	return f.SeedInput(input.New(input.CategorySeed, uuid.UUID{}, nil, nil))
}

// Step runs one iteration of the main loop: pick a parent, mutate it,
// execute the child, classify and admit it, update statistics. ok is false
// if the loop cannot continue (corpus empty, or EXIT/TERM was raised).
func (f *Fuzzer) Step() (result *Result, ok bool, err error) {
	if f.Exit.Load() || f.Term.Load() {
		return nil, false, nil
	}

	parent, found := f.corpus.PickParent(f.rng.IntN)
	if !found {
		return nil, false, nil
	}

	childStream, record, mutated := f.mutator.Mutate(parent)
	if !mutated {
		return nil, true, nil
	}

	child := input.New(input.CategoryGenerated, parent.ID, childStream, []input.MutationRecord{record})

	result, err = f.execute(child)
	if err != nil {
		return nil, false, err
	}

	switch result.Classification {
	case Crash:
		if f.hooks.OnCrash != nil {
			f.hooks.OnCrash(result.Input, result.ExitReason)
		}
	case Coverage:
		f.corpus.Admit(result.Input, result.Features)
		if f.hooks.OnAdmit != nil {
			f.hooks.OnAdmit(result.Input, result.Features)
		}

		if minimized, ok, err := f.minimize(result.Input, result.Features); err != nil {
			errutil.Log(err)
		} else if ok {
			f.corpus.Replace(result.Input.ID, minimized)
			f.stats.RecordMinimization()
			result.Input = minimized
			if f.hooks.OnAdmit != nil {
				f.hooks.OnAdmit(minimized, result.Features)
			}
		}
	}

	return result, true, nil
}

// execute runs one input against the emulator: reset per-execution state,
// install the replay stream, run from entry, extract and classify
// features, record statistics, then restore the baseline snapshot so the
// next execution starts from the same point (spec step 4/7: "Snapshot
// emulator; run...observe exit reason...Restore snapshot. Loop.").
func (f *Fuzzer) execute(in *input.Input) (*Result, error) {
	f.emu.ResetForNextExecution()

	entries := make([]stream.Entry, len(in.Stream))
	for i, e := range in.Stream {
		entries[i] = stream.Entry{Context: e.Context, Value: e.Value}
	}
	f.emu.SetReplayStream(stream.FromAccessLog(entries))

	if err := f.emu.Run(f.entry); err != nil {
		return nil, errutil.Wrap(errutil.Emulator, "run input %s: %w", in.ID, err)
	}

	exit := f.emu.LastExit()
	counts := f.emu.Counts()
	features := coverage.ExtractFeatures(f.emu.Bitmap()).Features()

	// The execution's actual chronological access log can differ from the
	// stream it was seeded with: Constant and Passthrough models record a
	// read without consuming the replay stream at all, and an execution
	// that exits early never reaches later
	// entries. The recorded log, not the pre-execution stream, is what a
	// later mutation or replay must operate on.
	recorded := f.emu.Stream()
	recordedStream := make([]input.AccessEntry, len(recorded))
	for i, e := range recorded {
		recordedStream[i] = input.AccessEntry{Context: e.Context, Value: e.Value}
	}

	class := classify(exit, f.corpus.IsNovel(features))

	f.stats.RecordExecution(counts)
	if class == Crash {
		f.stats.RecordCrash()
	}
	if exit.Kind == emulator.KindLimitReached {
		f.stats.RecordTimeout()
	}

	if log.L != nil {
		log.L.Sugar().Debugw("execution",
			"input_id", in.ID.String(),
			"exit_kind", exit.Kind.String(),
			"classification", class.String(),
			"counts", counts.String(),
		)
	}

	if err := f.emu.Restore(f.baseline); err != nil {
		return nil, errutil.Wrap(errutil.Emulator, "restore baseline after input %s: %w", in.ID, err)
	}

	recordedInput := &input.Input{
		ID:        in.ID,
		Category:  in.Category,
		ParentID:  in.ParentID,
		Stream:    recordedStream,
		Mutations: in.Mutations,
	}

	return &Result{
		Input:          recordedInput,
		Features:       features,
		Classification: class,
		ExitReason:     exit,
		Counts:         counts,
	}, nil
}

// classify implements spec step 5: a crash-class exit reason always wins;
// otherwise novelty promotes to Coverage; otherwise Discard.
func classify(exit emulator.ExitReason, novel bool) Classification {
	switch exit.Kind {
	case emulator.KindCrash, emulator.KindAbort:
		return Crash
	}
	if novel {
		return Coverage
	}
	return Discard
}

// Corpus exposes the underlying corpus for callers that need to archive
// its contents or report its size (e.g. the TUI, or `info`).
func (f *Fuzzer) Corpus() *corpus.Corpus {
	return f.corpus
}

// Statistics exposes the underlying statistics for the same reason.
func (f *Fuzzer) Statistics() *statistics.Statistics {
	return f.stats
}
