package input

import "testing"

func TestNewMutationRecordSinglePosition(t *testing.T) {
	r := NewMutationRecord(OpBitFlip, 12)
	if r.Operator != OpBitFlip || r.Position != 12 || r.Length != 0 {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestNewRangeMutationRecord(t *testing.T) {
	r := NewRangeMutationRecord(OpEraseRange, 4, 8)
	if r.Operator != OpEraseRange || r.Position != 4 || r.Length != 8 {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestOperatorStringCoversAllValues(t *testing.T) {
	ops := []Operator{
		OpBitFlip, OpByteFlip, OpArithmeticInc, OpArithmeticDec,
		OpSplice, OpDictionaryInsert, OpDuplicateRange, OpEraseRange,
		OpCrossContextSwap,
	}
	seen := map[string]bool{}
	for _, op := range ops {
		s := op.String()
		if s == "unknown" {
			t.Fatalf("operator %d has no name", op)
		}
		if seen[s] {
			t.Fatalf("duplicate operator name %q", s)
		}
		seen[s] = true
	}
}
