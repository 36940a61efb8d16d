package fuzzer

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/corpus"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/mutator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/statistics"
)

// fourReadsTestCode is `movs r1, #1; lsls r1, r1, #30; ldr r0, [r1]` repeated
// four times, then `bkpt #0`: four unconditional reads of the same MMIO
// address with no branch depending on the value read back, so the PC trace
// (and therefore the feature set) is identical no matter how many of those
// reads the replay stream actually has values for — so minimize can remove
// every stream entry without changing the feature set.
var fourReadsTestCode = []byte{
	0x01, 0x21, // movs r1, #1
	0x89, 0x07, // lsls r1, r1, #30
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x00, 0xbe, // bkpt #0
}

func newMultiReadTestFuzzer(t *testing.T) *Fuzzer {
	t.Helper()

	bitmap := coverage.NewRawBitmap(coverage.DefaultSize)
	store := modeling.NewStore()
	addr := modeling.Address(emulator.MmioBase)
	store.Add(modeling.FromMmioContext(modeling.NewMmioContext(addr)), modeling.NewBitExtractModel(modeling.NewModelBitExtract(8, 0)))

	emu, err := emulator.New(emulator.WithBitmap(bitmap), emulator.WithModelStore(store))
	if err != nil {
		t.Fatalf("emulator.New: %v", err)
	}
	t.Cleanup(func() { emu.Close() })

	entry := uint32(emulator.FlashBase + 0x40)
	vt := make([]byte, 8)
	binary.LittleEndian.PutUint32(vt[0:4], emulator.RamBase+emulator.RamSize)
	binary.LittleEndian.PutUint32(vt[4:8], entry|1)
	if err := emu.LoadFirmware(vt); err != nil {
		t.Fatalf("LoadFirmware: %v", err)
	}
	if err := emu.MemWrite(uint64(entry), fourReadsTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.InitializeFromVectorTable(); err != nil {
		t.Fatalf("InitializeFromVectorTable: %v", err)
	}

	cp := corpus.New()
	mut := mutator.New(rand.New(rand.NewPCG(5, 6)), nil)
	stats := statistics.New(time.Now())
	rng := rand.New(rand.NewPCG(7, 8))

	f, err := New(emu, entry, cp, mut, stats, rng, Hooks{})
	if err != nil {
		t.Fatalf("fuzzer.New: %v", err)
	}
	return f
}

func TestSameFeatureSetIgnoresOrderAndDuplicates(t *testing.T) {
	a := []coverage.Feature{{Edge: 1, HitBucket: 0}, {Edge: 2, HitBucket: 1}}
	b := []coverage.Feature{{Edge: 2, HitBucket: 1}, {Edge: 1, HitBucket: 0}}
	if !sameFeatureSet(a, b) {
		t.Fatal("expected reordered identical feature sets to compare equal")
	}

	c := []coverage.Feature{{Edge: 1, HitBucket: 0}, {Edge: 3, HitBucket: 0}}
	if sameFeatureSet(a, c) {
		t.Fatal("expected differing feature sets to compare unequal")
	}

	if !sameFeatureSet(nil, nil) {
		t.Fatal("expected two empty feature sets to compare equal")
	}
}

func TestMinimizeDropsTrailingReadsThatDontAffectCoverage(t *testing.T) {
	f := newMultiReadTestFuzzer(t)

	ctx := modeling.FromMmioContext(modeling.NewMmioContext(modeling.Address(emulator.MmioBase)))
	padded := input.New(input.CategoryGenerated, uuid.Nil, []input.AccessEntry{
		{Context: ctx, Value: 1},
		{Context: ctx, Value: 2},
		{Context: ctx, Value: 3},
		{Context: ctx, Value: 4},
	}, nil)

	result, err := f.execute(padded)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	minimized, ok, err := f.minimize(result.Input, result.Features)
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if !ok {
		t.Fatal("expected minimize to find a reduction: four unconditional reads of the same address produce identical coverage regardless of stream length")
	}

	if minimized.ID != result.Input.ID {
		t.Errorf("expected minimized input to keep the original's ID, got %s vs %s", minimized.ID, result.Input.ID)
	}
	if minimized.Category != input.CategoryMinimized {
		t.Errorf("expected CategoryMinimized, got %s", minimized.Category)
	}
	if len(minimized.Stream) >= len(result.Input.Stream) {
		t.Errorf("expected a shorter stream, got %d vs original %d", len(minimized.Stream), len(result.Input.Stream))
	}

	features, err := f.runCandidate(minimized.Stream)
	if err != nil {
		t.Fatalf("runCandidate on minimized stream: %v", err)
	}
	if !sameFeatureSet(features, result.Features) {
		t.Fatal("minimized stream must reach the exact same feature set as the original")
	}
}

func TestCorpusReplaceSwapsInputInPlace(t *testing.T) {
	f, _ := newTestFuzzer(t)

	seed, err := f.SeedEmpty()
	if err != nil {
		t.Fatalf("SeedEmpty: %v", err)
	}

	replacement := input.New(input.CategoryMinimized, seed.Input.ParentID, nil, nil)
	replacement.ID = seed.Input.ID

	if !f.Corpus().Replace(seed.Input.ID, replacement) {
		t.Fatal("expected Replace to find the seeded input by ID")
	}

	got, ok := f.Corpus().Get(seed.Input.ID)
	if !ok {
		t.Fatal("expected Get to still find the input under its original ID")
	}
	if got.Category != input.CategoryMinimized {
		t.Errorf("expected replaced entry to carry CategoryMinimized, got %s", got.Category)
	}
	if f.Corpus().Len() != 1 {
		t.Errorf("expected Replace not to change corpus size, got %d", f.Corpus().Len())
	}
}
