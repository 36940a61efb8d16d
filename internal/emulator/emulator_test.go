package emulator

import (
	"encoding/binary"
	"testing"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/stream"
)

// thumbAddTestCode is `movs r0, #5; movs r1, #3; adds r2, r0, r1; bkpt #0`
// in Thumb encoding, used as a minimal known-good basic block to exercise
// coverage recording and register state without needing a full firmware
// image.
var thumbAddTestCode = []byte{
	0x05, 0x20, // movs r0, #5
	0x03, 0x21, // movs r1, #3
	0x42, 0x18, // adds r2, r0, r1
	0x00, 0xbe, // bkpt #0
}

func vectorTable(resetHandler uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], RamBase+RamSize) // initial SP
	binary.LittleEndian.PutUint32(buf[4:8], resetHandler|1)  // Thumb bit set
	return buf
}

func newTestEmulator(t *testing.T, opts ...Option) *Emulator {
	t.Helper()
	emu, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { emu.Close() })
	return emu
}

func TestInitializeFromVectorTable(t *testing.T) {
	emu := newTestEmulator(t)

	if err := emu.LoadFirmware(vectorTable(FlashBase + 0x100)); err != nil {
		t.Fatalf("LoadFirmware: %v", err)
	}
	if err := emu.InitializeFromVectorTable(); err != nil {
		t.Fatalf("InitializeFromVectorTable: %v", err)
	}

	if got, want := emu.PC(), uint32(FlashBase+0x100); got != want {
		t.Errorf("PC = 0x%x, want 0x%x", got, want)
	}
	if got, want := emu.SP(), uint32(RamBase+RamSize); got != want {
		t.Errorf("SP = 0x%x, want 0x%x", got, want)
	}
}

func TestRunRecordsBasicBlockCoverage(t *testing.T) {
	bitmap := coverage.NewRawBitmap(coverage.DefaultSize)
	emu := newTestEmulator(t, WithBitmap(bitmap))

	entry := uint32(FlashBase + 0x40)
	if err := emu.MemWrite(uint64(entry), thumbAddTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.SetPC(entry); err != nil {
		t.Fatalf("SetPC: %v", err)
	}

	_ = emu.Run(entry)

	if emu.Counts().BasicBlock == 0 {
		t.Error("expected at least one basic block recorded")
	}

	features := coverage.ExtractFeatures(bitmap)
	if features.Len() == 0 {
		t.Error("expected non-zero coverage features after running a block")
	}
}

func TestBasicBlockLimitAbortsRun(t *testing.T) {
	aborted := false
	emu := newTestEmulator(t,
		WithLimits(Limits{BasicBlocks: 1}),
		WithHooks(Hooks{OnAbort: func(reason string) { aborted = true }}),
	)

	entry := uint32(FlashBase + 0x40)
	if err := emu.MemWrite(uint64(entry), thumbAddTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.SetPC(entry); err != nil {
		t.Fatalf("SetPC: %v", err)
	}

	_ = emu.Run(entry)

	if !aborted {
		t.Error("expected limit-exceeded abort with BasicBlocks: 1")
	}
}

// fourMmioReadsTestCode is `movs r1, #1; lsls r1, r1, #30; ldr r0, [r1]`
// repeated four times, then `bkpt #0`: four unconditional reads of the same
// unmodeled MMIO address within a single basic block, used to drive the
// input-read-overdue limit without needing a replay stream or a branch.
var fourMmioReadsTestCode = []byte{
	0x01, 0x21, // movs r1, #1
	0x89, 0x07, // lsls r1, r1, #30
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x00, 0xbe, // bkpt #0
}

// TestInputReadOverdueLimitAbortsRun covers spec §8 scenario 1: with no
// replay stream attached, every MMIO read against an unmodeled address is
// immediately overdue, and the run ends with LimitReached(InputReadOverdue)
// once the configured limit is reached — checked at the read itself, not
// just at the next basic-block boundary, since all four reads here occur
// inside one block.
func TestInputReadOverdueLimitAbortsRun(t *testing.T) {
	var reason string
	emu := newTestEmulator(t,
		WithLimits(Limits{InputReadOverdue: 3}),
		WithHooks(Hooks{OnAbort: func(r string) { reason = r }}),
	)

	entry := uint32(FlashBase + 0x40)
	if err := emu.MemWrite(uint64(entry), fourMmioReadsTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.SetPC(entry); err != nil {
		t.Fatalf("SetPC: %v", err)
	}

	_ = emu.Run(entry)

	if reason == "" {
		t.Fatal("expected limit-exceeded abort with InputReadOverdue: 3")
	}
	if got := emu.Counts().InputReadOverdue; got < 3 {
		t.Errorf("expected at least 3 overdue reads recorded, got %d", got)
	}
	if exit := emu.LastExit(); exit.Kind != KindLimitReached {
		t.Errorf("expected exit kind LimitReached, got %v", exit.Kind)
	}
}

// twoMmioReadsTestCode is `movs r1, #1; lsls r1, r1, #30; ldr r0, [r1]`
// repeated twice, then `bkpt #0`: two reads of the same address so a Set
// model's second answer can be checked against the replay stream's second
// recorded byte rather than the execution's running MMIO-read count.
var twoMmioReadsTestCode = []byte{
	0x01, 0x21, // movs r1, #1
	0x89, 0x07, // lsls r1, r1, #30
	0x08, 0x68, // ldr r0, [r1, #0]
	0x08, 0x68, // ldr r0, [r1, #0]
	0x00, 0xbe, // bkpt #0
}

// TestSetModelIndexesByStreamByte covers spec §4.1 step 2's Set case
// ("read one byte b; return values[b mod len(values)]"): the index must
// come from the replayed/mutated stream, not from
// counts.MmioRead (which would return the same two indices, 1 then 2,
// regardless of what the stream says, making a Set-modeled register
// permanently unfuzzable).
func TestSetModelIndexesByStreamByte(t *testing.T) {
	store := modeling.NewStore()
	// twoMmioReadsTestCode's `movs r1, #1; lsls r1, r1, #30` always puts r1
	// at exactly MmioBase, so the model must be registered for that
	// address for resolveFromStore to find it rather than falling through
	// to the unmodeled-address path.
	addr := modeling.Address(MmioBase)
	ctx := modeling.FromMmioContext(modeling.NewMmioContext(addr))
	values := []uint64{0x10, 0x20, 0x30}
	store.Add(ctx, modeling.NewSetModel(values))

	replay := stream.FromAccessLog([]stream.Entry{
		{Context: ctx, Value: 7}, // 7 % 3 == 1 -> 0x20
		{Context: ctx, Value: 0}, // 0 % 3 == 0 -> 0x10
	})

	emu := newTestEmulator(t, WithModelStore(store), WithReplayStream(replay))

	entry := uint32(FlashBase + 0x40)
	if err := emu.MemWrite(uint64(entry), twoMmioReadsTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.SetPC(entry); err != nil {
		t.Fatalf("SetPC: %v", err)
	}

	_ = emu.Run(entry)

	// The buggy counts.MmioRead-indexed implementation would have picked
	// values[2] (0x30) for the second read, since two reads had already
	// happened; the stream-driven implementation must pick values[0]
	// (0x10) per the second stream entry's value of 0.
	r0, err := emu.RegRead(uc.ARM_REG_R0)
	if err != nil {
		t.Fatalf("RegRead: %v", err)
	}
	if r0 != values[0] {
		t.Errorf("expected final r0 == values[0] (0x%x, driven by the stream's second byte), got 0x%x", values[0], r0)
	}
}

func TestStoreResolvesConstantModelAtAnySite(t *testing.T) {
	store := modeling.NewStore()
	addr := modeling.Address(MmioBase + 0x1000)
	store.Add(modeling.FromMmioContext(modeling.NewMmioContext(addr)), modeling.NewConstantModel(0x42))

	var resolved uint64
	emu := newTestEmulator(t, WithModelStore(store), WithHooks(Hooks{
		OnMmioRead: func(pc, a uint32, size int) uint64 {
			model, _ := store.Resolve(pc, a)
			resolved = model.Constant
			return resolved
		},
	}))

	// The emulator is built but never run, so no read goes through
	// resolveFromStore here; this checks only the store lookup, confirming
	// the constant model answers 0x42 regardless of access site.
	model, ok := store.Resolve(0, addr)
	if !ok || model.Constant != 0x42 {
		t.Fatalf("expected constant model 0x42, got %+v ok=%v", model, ok)
	}
	_ = emu
}

func TestResetForNextExecutionClearsPerRunState(t *testing.T) {
	bitmap := coverage.NewRawBitmap(coverage.DefaultSize)
	emu := newTestEmulator(t, WithBitmap(bitmap))

	entry := uint32(FlashBase + 0x40)
	if err := emu.MemWrite(uint64(entry), thumbAddTestCode); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if err := emu.SetPC(entry); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	_ = emu.Run(entry)

	if emu.Counts().BasicBlock == 0 {
		t.Fatal("expected basic blocks recorded before reset")
	}

	emu.ResetForNextExecution()

	if emu.Counts() != (Counts{}) {
		t.Errorf("expected zeroed counts after reset, got %+v", emu.Counts())
	}
	if len(emu.Stream()) != 0 {
		t.Errorf("expected empty stream after reset, got %d entries", len(emu.Stream()))
	}
	// Bitmap is cumulative across executions and must survive a reset.
	if coverage.ExtractFeatures(bitmap).Len() == 0 {
		t.Error("expected bitmap coverage to survive ResetForNextExecution")
	}
}
