package emulator

import (
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
)

const dirtyPageSize = 0x1000

// Snapshot captures enough state to restore an Emulator to a point in its
// execution without replaying from reset: the coverage bitmap (cloned, so
// mutating the live bitmap afterward does not corrupt the snapshot), the
// full Unicorn register context, and only the RAM/flash pages the run
// actually wrote to. Restoring is O(dirty-set), not O(memory size).
type Snapshot struct {
	regContext  uc.Context
	bitmap      *coverage.RawBitmap
	tracer      coverage.Tracer
	counts      Counts
	pages       map[uint64][]byte
	lastWritten map[uint32]uint64
}

// Snapshot records the emulator's current state. The caller owns the
// returned Snapshot and may take many of them cheaply relative to a full
// memory dump, since only dirty pages are copied.
func (e *Emulator) Snapshot() (*Snapshot, error) {
	regContext, err := e.mu.ContextSave(nil)
	if err != nil {
		return nil, err
	}

	pages := make(map[uint64][]byte, len(e.dirtyPages))
	for page := range e.dirtyPages {
		data, err := e.mu.MemRead(page, dirtyPageSize)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		pages[page] = buf
	}

	lastWritten := make(map[uint32]uint64, len(e.lastWritten))
	for k, v := range e.lastWritten {
		lastWritten[k] = v
	}

	return &Snapshot{
		regContext:  regContext,
		bitmap:      e.bitmap.Clone(),
		tracer:      *e.tracer,
		counts:      e.counts,
		pages:       pages,
		lastWritten: lastWritten,
	}, nil
}

// Restore resets the emulator to a previously captured Snapshot: registers
// via Unicorn's context restore, the coverage bitmap and tracer state, the
// event counts, and every dirty memory page the snapshot recorded.
func (e *Emulator) Restore(s *Snapshot) error {
	if err := e.mu.ContextRestore(s.regContext); err != nil {
		return err
	}

	e.bitmap.Restore(s.bitmap)
	*e.tracer = s.tracer
	e.counts = s.counts

	for page, data := range s.pages {
		if err := e.mu.MemWrite(page, data); err != nil {
			return err
		}
	}

	e.lastWritten = make(map[uint32]uint64, len(s.lastWritten))
	for k, v := range s.lastWritten {
		e.lastWritten[k] = v
	}

	e.dirtyPages = make(map[uint64]struct{}, len(s.pages))
	for page := range s.pages {
		e.dirtyPages[page] = struct{}{}
	}

	e.stream = nil

	return nil
}

// markDirty records that the page containing addr was written to during
// this execution, so a later Snapshot knows to capture it.
func (e *Emulator) markDirty(addr uint64) {
	page := addr &^ (dirtyPageSize - 1)
	e.dirtyPages[page] = struct{}{}
}
