// Package mutator implements the chronological-stream-level mutation
// operators that turn one corpus input into a new candidate: bit/byte
// flips, arithmetic increment/decrement, splice, dictionary insertion,
// duplicate/erase of a range, and swapping values across contexts.
package mutator

import (
	"math/rand/v2"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/corpus"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
)

// Mutator applies stream-level operators to produce child streams. It
// holds no state of its own beyond its random source; each call takes the
// parent stream by value (via input.Input.Clone) and returns a fresh one.
type Mutator struct {
	rng  *rand.Rand
	dict *corpus.Dictionary
}

// New builds a Mutator. dict may be nil, in which case OpDictionaryInsert
// is skipped by Mutate.
func New(rng *rand.Rand, dict *corpus.Dictionary) *Mutator {
	return &Mutator{rng: rng, dict: dict}
}

// available lists the operators this Mutator can currently run:
// OpDictionaryInsert only when a non-empty dictionary is attached.
func (m *Mutator) available() []input.Operator {
	ops := []input.Operator{
		input.OpBitFlip,
		input.OpByteFlip,
		input.OpArithmeticInc,
		input.OpArithmeticDec,
		input.OpSplice,
		input.OpDuplicateRange,
		input.OpEraseRange,
		input.OpCrossContextSwap,
	}
	if m.dict != nil && m.dict.Len() > 0 {
		ops = append(ops, input.OpDictionaryInsert)
	}
	return ops
}

// Mutate picks one operator at random and applies it to a clone of
// parent's stream, returning the mutated stream and the record describing
// what was done. It returns ok=false if parent's stream is empty (nothing
// to mutate).
func (m *Mutator) Mutate(parent *input.Input) (stream []input.AccessEntry, record input.MutationRecord, ok bool) {
	if parent.Len() == 0 {
		return nil, input.MutationRecord{}, false
	}

	ops := m.available()
	op := ops[m.rng.IntN(len(ops))]
	stream = parent.Clone()

	switch op {
	case input.OpBitFlip:
		pos := m.rng.IntN(len(stream))
		bit := m.rng.IntN(8)
		stream[pos].Value ^= 1 << uint(bit)
		record = input.NewMutationRecord(op, pos)

	case input.OpByteFlip:
		pos := m.rng.IntN(len(stream))
		stream[pos].Value ^= 0xFF
		record = input.NewMutationRecord(op, pos)

	case input.OpArithmeticInc:
		pos := m.rng.IntN(len(stream))
		stream[pos].Value++
		record = input.NewMutationRecord(op, pos)

	case input.OpArithmeticDec:
		pos := m.rng.IntN(len(stream))
		stream[pos].Value--
		record = input.NewMutationRecord(op, pos)

	case input.OpSplice:
		pos := m.rng.IntN(len(stream))
		value := uint64(m.rng.Uint32())
		stream = spliceInsert(stream, pos, input.AccessEntry{Context: stream[pos].Context, Value: value})
		record = input.NewMutationRecord(op, pos)

	case input.OpDictionaryInsert:
		pos := m.rng.IntN(len(stream))
		entry := m.dict.RandomEntry(m.rng)
		stream = insertDictionaryEntry(stream, pos, entry)
		record = input.NewRangeMutationRecord(op, pos, len(entry))

	case input.OpDuplicateRange:
		start, length := randomRange(m.rng, len(stream))
		stream = duplicateRange(stream, start, length)
		record = input.NewRangeMutationRecord(op, start, length)

	case input.OpEraseRange:
		start, length := randomRange(m.rng, len(stream))
		stream = eraseRange(stream, start, length)
		record = input.NewRangeMutationRecord(op, start, length)

	case input.OpCrossContextSwap:
		a := m.rng.IntN(len(stream))
		b := m.rng.IntN(len(stream))
		stream[a].Value, stream[b].Value = stream[b].Value, stream[a].Value
		record = input.NewRangeMutationRecord(op, a, b-a)
	}

	return stream, record, true
}

func randomRange(rng *rand.Rand, n int) (start, length int) {
	start = rng.IntN(n)
	maxLength := n - start
	if maxLength == 0 {
		maxLength = 1
	}
	length = 1 + rng.IntN(maxLength)
	return start, length
}

func spliceInsert(stream []input.AccessEntry, pos int, entry input.AccessEntry) []input.AccessEntry {
	out := make([]input.AccessEntry, 0, len(stream)+1)
	out = append(out, stream[:pos]...)
	out = append(out, entry)
	out = append(out, stream[pos:]...)
	return out
}

func insertDictionaryEntry(stream []input.AccessEntry, pos int, entry []byte) []input.AccessEntry {
	if len(entry) == 0 {
		return stream
	}
	context := stream[pos].Context
	inserted := make([]input.AccessEntry, len(entry))
	for i, b := range entry {
		inserted[i] = input.AccessEntry{Context: context, Value: uint64(b)}
	}

	out := make([]input.AccessEntry, 0, len(stream)+len(inserted))
	out = append(out, stream[:pos]...)
	out = append(out, inserted...)
	out = append(out, stream[pos:]...)
	return out
}

func duplicateRange(stream []input.AccessEntry, start, length int) []input.AccessEntry {
	end := start + length
	if end > len(stream) {
		end = len(stream)
	}
	segment := append([]input.AccessEntry(nil), stream[start:end]...)

	out := make([]input.AccessEntry, 0, len(stream)+len(segment))
	out = append(out, stream[:end]...)
	out = append(out, segment...)
	out = append(out, stream[end:]...)
	return out
}

func eraseRange(stream []input.AccessEntry, start, length int) []input.AccessEntry {
	end := start + length
	if end > len(stream) {
		end = len(stream)
	}
	out := make([]input.AccessEntry, 0, len(stream)-(end-start))
	out = append(out, stream[:start]...)
	out = append(out, stream[end:]...)
	return out
}
