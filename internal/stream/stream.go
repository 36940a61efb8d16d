// Package stream implements the chronological MMIO access log an input
// replays against: the sequence of (context, value) reads the emulator
// consumed, plus a per-context reverse lookup so the mutator and corpus can
// binary-search into one context's slice of that history without scanning
// the whole stream.
package stream

import (
	"sort"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

// Entry is one chronologically-ordered MMIO read: the context it was
// answered in, and the raw value handed back to the target.
type Entry struct {
	Context modeling.ModelContext
	Value   uint64
}

// Index names one occurrence of a context within the chronological stream:
// the context, and which occurrence (0-based, in context-local order) of
// it this is.
type Index struct {
	Context    modeling.ModelContext
	Occurrence int
}

// ChronoStream is the full chronological record of one input's MMIO reads.
// It is built once, from a completed execution's access log, and is
// immutable afterward; mutators construct a new input (and a new
// ChronoStream on replay) rather than editing one in place.
type ChronoStream struct {
	entries       []Entry
	reverseLookup map[modeling.ModelContext][]int
}

// FromAccessLog builds a ChronoStream from the ordered sequence of reads an
// execution produced.
func FromAccessLog(log []Entry) *ChronoStream {
	entries := make([]Entry, len(log))
	copy(entries, log)

	reverseLookup := make(map[modeling.ModelContext][]int)
	for i, e := range entries {
		reverseLookup[e.Context] = append(reverseLookup[e.Context], i)
	}

	return &ChronoStream{entries: entries, reverseLookup: reverseLookup}
}

// Len returns the number of reads in the stream.
func (s *ChronoStream) Len() int {
	return len(s.entries)
}

// IsEmpty reports whether the stream has no reads.
func (s *ChronoStream) IsEmpty() bool {
	return len(s.entries) == 0
}

// Entries exposes the full chronological log, read-only.
func (s *ChronoStream) Entries() []Entry {
	return s.entries
}

// At returns the entry at a raw chronological position.
func (s *ChronoStream) At(chronoPos int) Entry {
	return s.entries[chronoPos]
}

// Contains reports whether context was read at least once.
func (s *ChronoStream) Contains(context modeling.ModelContext) bool {
	_, ok := s.reverseLookup[context]
	return ok
}

// OccurrencesOf returns every chronological position context was read at,
// in ascending order.
func (s *ChronoStream) OccurrencesOf(context modeling.ModelContext) []int {
	return s.reverseLookup[context]
}

// ChronoIndex resolves a (context, occurrence) pair to its absolute
// chronological position. If target's occurrence is past the number of
// times context was actually read, it clamps to the last occurrence —
// mirroring how a mutation that extends a context's demand is resolved
// against a shorter recorded history.
func (s *ChronoStream) ChronoIndex(target Index) (int, bool) {
	occurrences, ok := s.reverseLookup[target.Context]
	if !ok || len(occurrences) == 0 {
		return 0, false
	}
	if target.Occurrence < len(occurrences) {
		return occurrences[target.Occurrence], true
	}
	return occurrences[len(occurrences)-1], true
}

// StreamRange resolves a half-open range of absolute chronological
// positions into the half-open range of context-local occurrence indices
// that fall inside it, via binary search over that context's sorted
// occurrence list.
func (s *ChronoStream) StreamRange(context modeling.ModelContext, chronoRange [2]int) ([2]int, bool) {
	occurrences, ok := s.reverseLookup[context]
	if !ok {
		return [2]int{}, false
	}

	lo, hi := chronoRange[0], chronoRange[1]

	start := sort.SearchInts(occurrences, lo)

	var end int
	if lo >= hi {
		end = start
	} else {
		end = start + sort.SearchInts(occurrences[start:], hi)
	}

	return [2]int{start, end}, true
}

// SkipUntil returns every stream entry from target's resolved chronological
// position onward, in chronological order. If target cannot be resolved,
// it returns an empty slice.
func (s *ChronoStream) SkipUntil(target Index) []Entry {
	pos, ok := s.ChronoIndex(target)
	if !ok {
		return nil
	}
	return s.entries[pos:]
}

// NextTarget returns the Index immediately following target in
// chronological order, or false if target is the last entry (or cannot be
// resolved at all).
func (s *ChronoStream) NextTarget(target Index) (Index, bool) {
	pos, ok := s.ChronoIndex(target)
	if !ok || pos+1 >= len(s.entries) {
		return Index{}, false
	}

	nextPos := pos + 1
	next := s.entries[nextPos]
	occurrences := s.reverseLookup[next.Context]
	occurrenceIdx := sort.SearchInts(occurrences, nextPos)

	return Index{Context: next.Context, Occurrence: occurrenceIdx}, true
}
