package trace

import (
	"fmt"
	"sync"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
)

// Collector accumulates trace Events fired by an Emulator's Hooks across a
// single replay, for `hoedur run --disasm` to render afterward. It only
// observes hooks that cannot change how a read is resolved — OnMmioRead is
// deliberately left alone, so a Collector never interferes with the
// model-store/replay-stream resolution an Emulator already performs.
type Collector struct {
	mu     sync.Mutex
	events []*Event
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) add(e *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns the collected events in recorded order.
func (c *Collector) Events() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByPC groups events by the PC they fired at, for a disassembly printer
// that walks basic blocks and wants "what happened here" at each address.
func (c *Collector) ByPC() map[uint32][]*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint32][]*Event)
	for _, e := range c.events {
		out[e.PC] = append(out[e.PC], e)
	}
	return out
}

// Hooks returns an emulator.Hooks that records one Event per call, merged
// with base by the caller (e.g. emulator.Hooks{OnMmioRead: ...,
// OnBasicBlock: collector.Hooks().OnBasicBlock}) since a Collector has no
// opinion on MMIO read resolution.
func (c *Collector) Hooks() emulator.Hooks {
	return emulator.Hooks{
		OnBasicBlock: func(pc uint32) {
			c.add(NewEvent(pc, BasicBlock, ""))
		},
		OnInterruptTrigger: func(number int) {
			c.add(NewEvent(0, Interrupt, fmt.Sprintf("irq %d", number)))
		},
		OnDebug: func(pc uint32) {
			c.add(NewEvent(pc, Debug, ""))
		},
		OnExit: func(pc uint32, code int) {
			e := NewEvent(pc, Exit, fmt.Sprintf("code %d", code))
			c.add(e)
		},
		OnException: func(pc uint32, exception uint32) {
			c.add(NewEvent(pc, Interrupt, fmt.Sprintf("exception 0x%x", exception)))
		},
		OnMmioWrite: func(pc, addr uint32, size int, value uint64) {
			c.add(NewEvent(pc, MmioWrite, fmt.Sprintf("addr=0x%08x value=0x%x size=%d", addr, value, size)))
		},
		OnWaitForInterrupt: func() {
			c.add(NewEvent(0, WaitForIntr, ""))
		},
		OnAbort: func(reason string) {
			e := NewEvent(0, Crash, reason)
			c.add(e)
		},
	}
}
