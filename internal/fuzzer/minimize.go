package fuzzer

import (
	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/stream"
)

// minimize reduces in's chronological stream by repeatedly removing the
// largest contiguous range whose removal still produces the exact feature
// set the original run did, per spec step: "after admission, reduce the
// chronological input by removing the largest contiguous chrono ranges
// whose removal still produces the same feature set". A classic
// delta-debugging sweep: try progressively smaller chunk sizes, restarting
// the sweep at the current chunk size whenever a removal succeeds, halving
// the chunk size only once a full pass over the current stream removes
// nothing. Returns ok=false if no range could be removed.
func (f *Fuzzer) minimize(in *input.Input, original []coverage.Feature) (*input.Input, bool, error) {
	working := in.Clone()
	changed := false

	chunk := len(working) / 2
	for chunk >= 1 {
		reducedThisPass := false

		start := 0
		for start < len(working) {
			end := start + chunk
			if end > len(working) {
				end = len(working)
			}

			candidate := make([]input.AccessEntry, 0, len(working)-(end-start))
			candidate = append(candidate, working[:start]...)
			candidate = append(candidate, working[end:]...)

			features, err := f.runCandidate(candidate)
			if err != nil {
				return nil, false, err
			}

			if sameFeatureSet(features, original) {
				working = candidate
				changed = true
				reducedThisPass = true
				continue
			}
			start = end
		}

		if !reducedThisPass {
			chunk /= 2
		}
	}

	if !changed {
		return nil, false, nil
	}

	minimized := input.New(input.CategoryMinimized, in.ParentID, working, in.Mutations)
	minimized.ID = in.ID
	return minimized, true, nil
}

// runCandidate executes a candidate stream against the emulator and returns
// the features it reached, without touching statistics or firing hooks —
// minimization explores many candidates per admitted input and none of
// them should count as a recorded execution.
func (f *Fuzzer) runCandidate(candidateStream []input.AccessEntry) ([]coverage.Feature, error) {
	f.emu.ResetForNextExecution()

	entries := make([]stream.Entry, len(candidateStream))
	for i, e := range candidateStream {
		entries[i] = stream.Entry{Context: e.Context, Value: e.Value}
	}
	f.emu.SetReplayStream(stream.FromAccessLog(entries))

	if err := f.emu.Run(f.entry); err != nil {
		return nil, errutil.Wrap(errutil.Emulator, "run minimization candidate: %w", err)
	}

	features := coverage.ExtractFeatures(f.emu.Bitmap()).Features()

	if err := f.emu.Restore(f.baseline); err != nil {
		return nil, errutil.Wrap(errutil.Emulator, "restore baseline after minimization candidate: %w", err)
	}

	return features, nil
}

// sameFeatureSet reports whether a and b contain exactly the same set of
// features, ignoring order and duplicate entries.
func sameFeatureSet(a, b []coverage.Feature) bool {
	if len(a) != len(b) {
		return false
	}

	set := make(map[coverage.Feature]struct{}, len(a))
	for _, f := range a {
		set[f] = struct{}{}
	}
	for _, f := range b {
		if _, ok := set[f]; !ok {
			return false
		}
	}
	return true
}
