package stream

import (
	"testing"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

func ctxFor(addr modeling.Address) modeling.ModelContext {
	return modeling.FromMmioContext(modeling.NewMmioContext(addr))
}

func TestFromAccessLogLenAndEmpty(t *testing.T) {
	s := FromAccessLog(nil)
	if !s.IsEmpty() || s.Len() != 0 {
		t.Fatal("want empty stream from nil log")
	}

	s = FromAccessLog([]Entry{{Context: ctxFor(1), Value: 1}})
	if s.IsEmpty() || s.Len() != 1 {
		t.Fatal("want non-empty single-entry stream")
	}
}

func TestChronoIndexResolvesEachOccurrence(t *testing.T) {
	a, b := ctxFor(0x1000), ctxFor(0x2000)
	log := []Entry{
		{Context: a, Value: 10},
		{Context: b, Value: 20},
		{Context: a, Value: 11},
		{Context: a, Value: 12},
	}
	s := FromAccessLog(log)

	pos, ok := s.ChronoIndex(Index{Context: a, Occurrence: 0})
	if !ok || pos != 0 {
		t.Fatalf("want occurrence 0 of a at position 0, got %d ok=%v", pos, ok)
	}
	pos, ok = s.ChronoIndex(Index{Context: a, Occurrence: 1})
	if !ok || pos != 2 {
		t.Fatalf("want occurrence 1 of a at position 2, got %d ok=%v", pos, ok)
	}
	pos, ok = s.ChronoIndex(Index{Context: a, Occurrence: 2})
	if !ok || pos != 3 {
		t.Fatalf("want occurrence 2 of a at position 3, got %d ok=%v", pos, ok)
	}
}

func TestChronoIndexClampsPastLastOccurrence(t *testing.T) {
	a := ctxFor(0x1000)
	s := FromAccessLog([]Entry{{Context: a, Value: 1}, {Context: a, Value: 2}})

	pos, ok := s.ChronoIndex(Index{Context: a, Occurrence: 50})
	if !ok || pos != 1 {
		t.Fatalf("want clamp to last occurrence (position 1), got %d ok=%v", pos, ok)
	}
}

func TestChronoIndexUnknownContext(t *testing.T) {
	s := FromAccessLog([]Entry{{Context: ctxFor(1), Value: 1}})
	if _, ok := s.ChronoIndex(Index{Context: ctxFor(2), Occurrence: 0}); ok {
		t.Fatal("want false for a context never read")
	}
}

func TestContains(t *testing.T) {
	a, b := ctxFor(1), ctxFor(2)
	s := FromAccessLog([]Entry{{Context: a, Value: 1}})
	if !s.Contains(a) {
		t.Fatal("want Contains true for a read context")
	}
	if s.Contains(b) {
		t.Fatal("want Contains false for an unread context")
	}
}

func TestStreamRangeBinarySearch(t *testing.T) {
	a := ctxFor(0x1000)
	b := ctxFor(0x2000)
	log := []Entry{
		{Context: a}, {Context: b}, {Context: a}, {Context: b}, {Context: a}, {Context: a}, {Context: b},
	}
	s := FromAccessLog(log)
	// a occurs at absolute positions 0, 2, 4, 5. Absolute range [1,3) only
	// covers position 2, i.e. occurrence index 1, so the occurrence-index
	// range returned should be [1,2).
	rng, ok := s.StreamRange(a, [2]int{1, 3})
	if !ok {
		t.Fatal("expected a range for context a")
	}
	if rng != [2]int{1, 2} {
		t.Fatalf("want occurrence range [1,2), got %v", rng)
	}
}

func TestStreamRangeEmptyRangeReusesStart(t *testing.T) {
	a := ctxFor(0x1000)
	s := FromAccessLog([]Entry{{Context: a}, {Context: a}, {Context: a}})
	rng, ok := s.StreamRange(a, [2]int{1, 1})
	if !ok {
		t.Fatal("expected a range")
	}
	if rng[0] != rng[1] {
		t.Fatalf("empty chrono range should produce an empty occurrence range, got %v", rng)
	}
}

func TestStreamRangeUnknownContext(t *testing.T) {
	s := FromAccessLog([]Entry{{Context: ctxFor(1)}})
	if _, ok := s.StreamRange(ctxFor(2), [2]int{0, 1}); ok {
		t.Fatal("want false for an unread context")
	}
}

func TestSkipUntilReturnsSuffix(t *testing.T) {
	a := ctxFor(0x1000)
	log := []Entry{{Context: a, Value: 1}, {Context: a, Value: 2}, {Context: a, Value: 3}}
	s := FromAccessLog(log)

	rest := s.SkipUntil(Index{Context: a, Occurrence: 1})
	if len(rest) != 2 || rest[0].Value != 2 || rest[1].Value != 3 {
		t.Fatalf("unexpected suffix: %+v", rest)
	}
}

func TestSkipUntilUnresolvableReturnsNil(t *testing.T) {
	s := FromAccessLog([]Entry{{Context: ctxFor(1), Value: 1}})
	rest := s.SkipUntil(Index{Context: ctxFor(2), Occurrence: 0})
	if rest != nil {
		t.Fatalf("want nil suffix for unresolvable target, got %+v", rest)
	}
}

func TestNextTargetAdvancesOneStep(t *testing.T) {
	a, b := ctxFor(0x1000), ctxFor(0x2000)
	log := []Entry{
		{Context: a, Value: 1}, // pos 0
		{Context: b, Value: 2}, // pos 1
		{Context: a, Value: 3}, // pos 2
	}
	s := FromAccessLog(log)

	next, ok := s.NextTarget(Index{Context: a, Occurrence: 0})
	if !ok {
		t.Fatal("expected a next target")
	}
	if next.Context != b || next.Occurrence != 0 {
		t.Fatalf("want (b, 0), got %+v", next)
	}
}

func TestNextTargetAtEndReturnsFalse(t *testing.T) {
	a := ctxFor(0x1000)
	s := FromAccessLog([]Entry{{Context: a, Value: 1}})
	if _, ok := s.NextTarget(Index{Context: a, Occurrence: 0}); ok {
		t.Fatal("want false when target is the last entry")
	}
}
