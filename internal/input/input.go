// Package input defines the corpus's unit of work: a fuzzer Input is the
// ordered sequence of MMIO read values an execution consumed, plus the
// provenance (how it was produced) needed to explain and replay a crash.
package input

import (
	"github.com/google/uuid"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

// Category classifies how an Input came to exist.
type Category int

const (
	// CategorySeed is an initial corpus entry loaded from disk at startup,
	// never produced by mutation.
	CategorySeed Category = iota
	// CategoryGenerated was produced by mutating a parent already in the
	// corpus.
	CategoryGenerated
	// CategoryImported was loaded from an external archive (e.g. a crash
	// reproducer handed in for triage) rather than grown by this run.
	CategoryImported
	// CategoryMinimized replaced a CategoryGenerated or CategorySeed input
	// already in the corpus with a shorter stream reaching the same
	// feature set.
	CategoryMinimized
)

func (c Category) String() string {
	switch c {
	case CategorySeed:
		return "seed"
	case CategoryGenerated:
		return "generated"
	case CategoryImported:
		return "imported"
	case CategoryMinimized:
		return "minimized"
	default:
		return "unknown"
	}
}

// AccessEntry is one MMIO read recorded during an execution: the context it
// was answered in, and the value the model or stream handed back.
type AccessEntry struct {
	Context modeling.ModelContext
	Value   uint64
}

// Input is the corpus's replayable unit: the chronological stream of MMIO
// reads a single execution consumed, together with the lineage that
// produced it.
type Input struct {
	ID       uuid.UUID
	Category Category

	// ParentID is the input this one was derived from by mutation. The
	// zero UUID for seed and imported inputs, which have no parent.
	ParentID uuid.UUID

	// Stream is the raw chronological access log this input replays.
	// Mutators operate on a copy of this slice; Input itself is immutable
	// once constructed.
	Stream []AccessEntry

	// Mutations records the operators applied to derive this input from
	// its parent, in application order. Empty for seed and imported
	// inputs.
	Mutations []MutationRecord
}

// New constructs a fresh Input with a random ID.
func New(category Category, parentID uuid.UUID, streamLog []AccessEntry, mutations []MutationRecord) *Input {
	stream := make([]AccessEntry, len(streamLog))
	copy(stream, streamLog)

	return &Input{
		ID:        uuid.New(),
		Category:  category,
		ParentID:  parentID,
		Stream:    stream,
		Mutations: mutations,
	}
}

// NewSeed constructs a seed Input from a raw byte stream, one access entry
// per byte, each scoped to the given fixed MMIO context. This matches how a
// plain byte-file seed corpus (no recorded access contexts) is interpreted:
// every byte answers the same undifferentiated read site in order.
func NewSeed(context modeling.ModelContext, raw []byte) *Input {
	stream := make([]AccessEntry, len(raw))
	for i, b := range raw {
		stream[i] = AccessEntry{Context: context, Value: uint64(b)}
	}

	return &Input{
		ID:       uuid.New(),
		Category: CategorySeed,
		Stream:   stream,
	}
}

// Len returns the number of recorded reads.
func (in *Input) Len() int {
	return len(in.Stream)
}

// Clone returns a deep copy suitable for a mutator to edit in place before
// being wrapped into a new Input via New.
func (in *Input) Clone() []AccessEntry {
	out := make([]AccessEntry, len(in.Stream))
	copy(out, in.Stream)
	return out
}
