package emulator

import "fmt"

// Counts tallies the events one execution produced, checked against Limits
// after every basic block to decide whether the run must be aborted.
type Counts struct {
	BasicBlock       int
	Interrupt        int
	MmioRead         int
	MmioWrite        int
	InputReadOverdue int
}

func (c Counts) String() string {
	return fmt.Sprintf(
		"%9d basic blocks, %6d interrupts, %6d MMIO reads, %6d MMIO writes, %6d overdue reads",
		c.BasicBlock, c.Interrupt, c.MmioRead, c.MmioWrite, c.InputReadOverdue,
	)
}

// Add returns the element-wise sum of c and other, used to accumulate
// per-execution counts into a run-wide total.
func (c Counts) Add(other Counts) Counts {
	return Counts{
		BasicBlock:       c.BasicBlock + other.BasicBlock,
		Interrupt:        c.Interrupt + other.Interrupt,
		MmioRead:         c.MmioRead + other.MmioRead,
		MmioWrite:        c.MmioWrite + other.MmioWrite,
		InputReadOverdue: c.InputReadOverdue + other.InputReadOverdue,
	}
}

// Sub returns the element-wise difference of c and other.
func (c Counts) Sub(other Counts) Counts {
	return Counts{
		BasicBlock:       c.BasicBlock - other.BasicBlock,
		Interrupt:        c.Interrupt - other.Interrupt,
		MmioRead:         c.MmioRead - other.MmioRead,
		MmioWrite:        c.MmioWrite - other.MmioWrite,
		InputReadOverdue: c.InputReadOverdue - other.InputReadOverdue,
	}
}
