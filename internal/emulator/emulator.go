// Package emulator provides Cortex-M (ARMv7-M/ARMv6-M, Thumb) emulation on
// top of Unicorn Engine, instrumented for coverage-guided fuzzing: every
// basic block feeds the edge bitmap, every MMIO read is resolved through a
// model store and recorded to a chronological access log, and every
// execution is bounded by a configurable set of limits.
package emulator

import (
	"encoding/binary"
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/stream"
)

// Memory layout, following the conventional Cortex-M map: code (flash) at
// address zero (so the vector table sits at the reset address), SRAM at
// 0x20000000, and the peripheral/MMIO region at 0x40000000.
const (
	FlashBase = 0x00000000
	FlashSize = 0x01000000 // 16MB, generous for a fuzzing target image
	RamBase   = 0x20000000
	RamSize   = 0x00100000 // 1MB SRAM
	MmioBase  = 0x40000000
	MmioSize  = 0x20000000 // 512MB peripheral window
)

// isMmio reports whether addr falls in the peripheral window.
func isMmio(addr uint64) bool {
	return addr >= MmioBase && addr < MmioBase+MmioSize
}

// isRAM reports whether addr falls in the SRAM window.
func isRAM(addr uint64) bool {
	return addr >= RamBase && addr < RamBase+RamSize
}

// AccessEntry is one MMIO read recorded during an execution.
type AccessEntry struct {
	Context modeling.ModelContext
	Value   uint64
}

// Hooks is the harness's callback contract: every category of event a
// Cortex-M target can produce during one execution, each optional. A nil
// field means the harness does not invoke it.
type Hooks struct {
	OnBasicBlock       func(pc uint32)
	OnInstruction      func(pc uint32, size uint32)
	OnInterruptTrigger func(number int)
	OnDebug            func(pc uint32)
	OnExit             func(pc uint32, code int)
	OnNX               func(pc uint32)
	OnException        func(pc uint32, exception uint32)
	OnRomRead          func(addr uint32, size int)
	OnRomWrite         func(addr uint32, size int)
	OnRamRead          func(addr uint32, size int)
	OnRamWrite         func(addr uint32, size int)
	OnMmioRead         func(pc, addr uint32, size int) uint64
	OnMmioWrite        func(pc, addr uint32, size int, value uint64)
	OnWaitForInterrupt func()
	OnUpdate           func(counts Counts)
	OnAbort            func(reason string)
}

// Emulator wraps a Unicorn ARM Cortex-M CPU with coverage tracing, MMIO
// model resolution, and execution-budget enforcement.
type Emulator struct {
	mu uc.Unicorn

	bitmap *coverage.RawBitmap
	tracer *coverage.Tracer

	hitCounts bool

	limits Limits
	counts Counts

	store  *modeling.Store
	stream []AccessEntry

	// replay is the input being replayed against this execution: the
	// fuzz-controlled source of every BitExtract read. replayCursor
	// tracks, per context, how many values have been consumed so far so
	// repeated reads of the same register step forward through its
	// recorded history instead of always returning the first value.
	replay       *stream.ChronoStream
	replayCursor map[modeling.ModelContext]int

	// lastWritten backs the Passthrough model kind: the most recent value
	// the target itself wrote to an MMIO address, returned on the next
	// read as if the peripheral simply echoed it back.
	lastWritten map[uint32]uint64

	// dirtyPages tracks which page-aligned regions of RAM/flash this
	// execution has written to, so Snapshot only needs to copy out the
	// pages that actually changed.
	dirtyPages map[uint64]struct{}

	// debugAddrs/exitAddrs are addresses a target signals a semantic
	// event at by reaching them, resolved ahead of time (from symbol
	// names or a target config) rather than recognized from an
	// instruction encoding. wfiAddrs is detected automatically by
	// scanning the loaded firmware image for wfi/wfe Thumb opcodes.
	debugAddrs map[uint32]bool
	exitAddrs  map[uint32]bool
	wfiAddrs   map[uint32]bool

	hooks Hooks

	stopped  bool
	exited   bool
	lastExit ExitReason
}

// Option configures an Emulator at construction time.
type Option func(*Emulator)

// WithBitmap attaches a coverage bitmap, shared with the caller so it can
// be snapshotted and restored between executions.
func WithBitmap(bitmap *coverage.RawBitmap) Option {
	return func(e *Emulator) { e.bitmap = bitmap }
}

// WithHitCounts toggles saturating-add bitmap semantics (true) vs.
// presence-only semantics (false, "Set").
func WithHitCounts(enabled bool) Option {
	return func(e *Emulator) { e.hitCounts = enabled }
}

// WithLimits sets the execution budget.
func WithLimits(limits Limits) Option {
	return func(e *Emulator) { e.limits = limits }
}

// WithModelStore attaches the MMIO model store used to resolve reads.
func WithModelStore(store *modeling.Store) Option {
	return func(e *Emulator) { e.store = store }
}

// WithHooks installs the harness callback contract.
func WithHooks(hooks Hooks) Option {
	return func(e *Emulator) { e.hooks = hooks }
}

// WithReplayStream attaches the chronological access log of the input being
// replayed: the source BitExtract reads pull their raw value from. A nil
// (or omitted) replay stream means every BitExtract read sees zero, as if
// replaying an empty input.
func WithReplayStream(replay *stream.ChronoStream) Option {
	return func(e *Emulator) { e.replay = replay }
}

// WithDebugAddresses marks addresses that, when reached, fire OnDebug
// rather than being treated as ordinary code.
func WithDebugAddresses(addrs ...uint32) Option {
	return func(e *Emulator) {
		for _, a := range addrs {
			e.debugAddrs[a] = true
		}
	}
}

// WithExitAddresses marks addresses that, when reached, fire OnExit and
// stop the run — the harness's equivalent of a target calling exit().
func WithExitAddresses(addrs ...uint32) Option {
	return func(e *Emulator) {
		for _, a := range addrs {
			e.exitAddrs[a] = true
		}
	}
}

// New creates a Cortex-M emulator: ARM architecture, M-class, Thumb mode.
func New(opts ...Option) (*Emulator, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_ARM, uc.MODE_MCLASS|uc.MODE_THUMB)
	if err != nil {
		return nil, fmt.Errorf("emulator: create unicorn: %w", err)
	}

	e := &Emulator{
		mu:           mu,
		bitmap:       coverage.NewRawBitmap(coverage.DefaultSize),
		tracer:       coverage.NewTracer(),
		limits:       NewLimits(),
		store:        modeling.NewStore(),
		replayCursor: make(map[modeling.ModelContext]int),
		lastWritten:  make(map[uint32]uint64),
		dirtyPages:   make(map[uint64]struct{}),
		debugAddrs:   make(map[uint32]bool),
		exitAddrs:    make(map[uint32]bool),
		wfiAddrs:     make(map[uint32]bool),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.mapMemory(); err != nil {
		mu.Close()
		return nil, err
	}
	if err := e.setupHooks(); err != nil {
		mu.Close()
		return nil, err
	}

	return e, nil
}

func (e *Emulator) mapMemory() error {
	regions := []struct {
		base, size uint64
		name       string
	}{
		{FlashBase, FlashSize, "flash"},
		{RamBase, RamSize, "ram"},
		{MmioBase, MmioSize, "mmio"},
	}

	for _, r := range regions {
		if err := e.mu.MemMap(r.base, r.size); err != nil {
			return fmt.Errorf("emulator: map %s (0x%x): %w", r.name, r.base, err)
		}
	}

	return nil
}

// Close releases the underlying Unicorn context.
func (e *Emulator) Close() error {
	return e.mu.Close()
}

// Counts returns the event tally accumulated so far.
func (e *Emulator) Counts() Counts {
	return e.counts
}

// Bitmap returns the coverage bitmap this emulator writes into.
func (e *Emulator) Bitmap() *coverage.RawBitmap {
	return e.bitmap
}

// Stream returns the chronological MMIO access log recorded so far.
func (e *Emulator) Stream() []AccessEntry {
	return e.stream
}

// ResetForNextExecution clears per-execution state (counts, access log,
// tracer last-location) while leaving the bitmap and model store intact,
// matching one input's worth of history starting fresh against the
// cumulative coverage map.
func (e *Emulator) ResetForNextExecution() {
	e.counts = Counts{}
	e.stream = nil
	e.replayCursor = make(map[modeling.ModelContext]int)
	e.lastWritten = make(map[uint32]uint64)
	e.dirtyPages = make(map[uint64]struct{})
	e.tracer.Reset()
	e.stopped = false
	e.exited = false
	e.lastExit = ExitReason{}
}

// nextReplayValue returns the next unconsumed raw value recorded for ctx in
// the replay stream, advancing that context's cursor. exhausted is true
// with no replay stream attached, when ctx was never recorded at all, or
// once ctx's recorded history has already been fully consumed — the three
// cases spec step 4 treats identically ("if the stream is exhausted:
// return 0 and increment the overdue counter").
func (e *Emulator) nextReplayValue(ctx modeling.ModelContext) (value uint64, exhausted bool) {
	if e.replay == nil {
		return 0, true
	}

	occurrences := e.replay.OccurrencesOf(ctx)
	if len(occurrences) == 0 {
		return 0, true
	}

	i := e.replayCursor[ctx]
	if i >= len(occurrences) {
		return 0, true
	}
	e.replayCursor[ctx] = i + 1

	return e.replay.At(occurrences[i]).Value, false
}

// SetReplayStream swaps in a new input's access log between executions,
// without tearing down the Unicorn VM. WithReplayStream only sets the
// stream at construction time; the fuzzer loop needs to do this once per
// execution, reusing the same Emulator across the whole run.
func (e *Emulator) SetReplayStream(replay *stream.ChronoStream) {
	e.replay = replay
	e.replayCursor = make(map[modeling.ModelContext]int)
}

// MemWrite writes bytes to memory.
func (e *Emulator) MemWrite(addr uint64, data []byte) error {
	return e.mu.MemWrite(addr, data)
}

// MemRead reads bytes from memory.
func (e *Emulator) MemRead(addr, size uint64) ([]byte, error) {
	return e.mu.MemRead(addr, size)
}

// LoadFirmware writes a flat firmware image at FlashBase and scans it for
// wfi/wfe sites so OnWaitForInterrupt fires at the right addresses.
func (e *Emulator) LoadFirmware(image []byte) error {
	if err := e.mu.MemWrite(FlashBase, image); err != nil {
		return err
	}
	e.scanWaitForInterruptSites(image, FlashBase)
	return nil
}

// wfiOpcode and wfeOpcode are the 16-bit Thumb encodings of `wfi` and `wfe`,
// the only two instructions a Cortex-M target uses to suspend itself
// pending an interrupt; Unicorn has no hook specifically for them, so
// on_wait_for_interrupt is emulated by recognizing these two halfwords
// directly in the loaded image, the same address-hook-map approach the
// teacher harness uses for its own fixed-address hooks.
const (
	wfiOpcode = 0xBF30
	wfeOpcode = 0xBF20
)

func (e *Emulator) scanWaitForInterruptSites(image []byte, base uint32) {
	for i := 0; i+1 < len(image); i += 2 {
		instr := uint16(image[i]) | uint16(image[i+1])<<8
		if instr == wfiOpcode || instr == wfeOpcode {
			e.wfiAddrs[base+uint32(i)] = true
		}
	}
}

// RegRead reads a raw register value.
func (e *Emulator) RegRead(reg int) (uint64, error) {
	return e.mu.RegRead(reg)
}

// RegWrite writes a raw register value.
func (e *Emulator) RegWrite(reg int, val uint64) error {
	return e.mu.RegWrite(reg, val)
}

// PC returns the program counter.
func (e *Emulator) PC() uint32 {
	pc, _ := e.mu.RegRead(uc.ARM_REG_PC)
	return uint32(pc)
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(val uint32) error {
	return e.mu.RegWrite(uc.ARM_REG_PC, uint64(val))
}

// SP returns the stack pointer.
func (e *Emulator) SP() uint32 {
	sp, _ := e.mu.RegRead(uc.ARM_REG_SP)
	return uint32(sp)
}

// SetSP sets the stack pointer.
func (e *Emulator) SetSP(val uint32) error {
	return e.mu.RegWrite(uc.ARM_REG_SP, uint64(val))
}

// InitializeFromVectorTable reads the Cortex-M reset vector (initial SP at
// offset 0, reset handler address at offset 4) out of a loaded firmware
// image and sets SP/PC accordingly. bit 0 of the reset handler address is
// the Thumb marker and is masked off before writing PC.
func (e *Emulator) InitializeFromVectorTable() error {
	header, err := e.mu.MemRead(FlashBase, 8)
	if err != nil {
		return fmt.Errorf("emulator: read vector table: %w", err)
	}

	initialSP := binary.LittleEndian.Uint32(header[0:4])
	resetHandler := binary.LittleEndian.Uint32(header[4:8]) &^ 1

	if err := e.SetSP(initialSP); err != nil {
		return fmt.Errorf("emulator: set initial SP: %w", err)
	}
	if err := e.SetPC(resetHandler); err != nil {
		return fmt.Errorf("emulator: set reset handler PC: %w", err)
	}

	return nil
}

// Run starts emulation at entry and runs until a hook stops it (exit,
// limit exceeded, or abort) or Unicorn itself halts. The classification of
// why it stopped is available afterward via LastExit; Run itself only
// returns a non-nil error for a harness-side failure a hook did not already
// classify as a target crash.
func (e *Emulator) Run(entry uint32) error {
	e.stopped = false
	e.lastExit = ExitReason{}

	err := e.mu.Start(uint64(entry), 0)

	switch {
	case err != nil && e.stopped:
		// A deliberate Stop() from inside a hook surfaces as a Unicorn
		// error; the hook that called Stop already classified lastExit.
		return nil
	case err != nil && looksLikeCrash(err):
		e.lastExit = ExitReason{Kind: KindCrash, Detail: err.Error(), PC: e.PC()}
		return nil
	case err != nil:
		return err
	case e.lastExit.Kind == KindRunning:
		e.lastExit = ExitReason{Kind: KindNormal, PC: e.PC()}
		return nil
	default:
		return nil
	}
}

// Stop halts emulation from within a hook callback.
func (e *Emulator) Stop() {
	e.stopped = true
	e.mu.Stop()
}
